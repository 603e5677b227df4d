package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "sqlgate"

// Topics builds topic names under a prefix.
//
//	topics := mqtt.Topics{Prefix: "sqlgate"}
//	topics.Change("users") // "sqlgate/change/users"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// Change returns the topic for row changes on a table.
//
// Example: sqlgate/change/users
func (t Topics) Change(table string) string {
	return t.prefix() + "/change/" + table
}

// SystemStatus returns the retained status topic.
//
// Example: sqlgate/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}
