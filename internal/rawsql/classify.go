package rawsql

import "regexp"

var (
	readPattern   = regexp.MustCompile(`(?i)^\s*(with|select)\b`)
	selectPattern = regexp.MustCompile(`(?i)\bselect\b`)
	ddlPattern    = regexp.MustCompile(`(?i)^\s*(create|alter|drop)\b`)
)

// IsRead reports whether the statement starts with WITH or SELECT.
func IsRead(query string) bool {
	return readPattern.MatchString(query)
}

// ReturnsRows reports whether the statement mentions SELECT anywhere.
func ReturnsRows(query string) bool {
	return selectPattern.MatchString(query)
}

// IsDDL reports whether the statement starts with CREATE, ALTER or DROP.
func IsDDL(query string) bool {
	return ddlPattern.MatchString(query)
}
