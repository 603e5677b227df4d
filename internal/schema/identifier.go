package schema

import (
	"fmt"
	"regexp"
)

// identifierPattern is the only shape of name allowed into SQL text.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Valid reports whether name may be used as an identifier.
func Valid(name string) bool {
	return identifierPattern.MatchString(name)
}

// Quote validates name and returns it wrapped in double quotes.
// It fails with ErrInvalidIdentifier for anything outside
// ^[A-Za-z_][A-Za-z0-9_]*$, so the quoted form never needs escaping.
func Quote(name string) (string, error) {
	if !Valid(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}
