package mqtt

import "strings"

// DefaultTopicPrefix roots every topic when no prefix is configured.
const DefaultTopicPrefix = "servicedesk"

// Topics builds the service desk topic hierarchy under a configurable prefix:
//
//	{prefix}/audit/{action}     one message per stored audit entry
//	{prefix}/system/status      retained online/offline status (LWT)
//
// The zero value uses DefaultTopicPrefix.
type Topics struct {
	Prefix string
}

func (t Topics) root() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// Audit returns the topic for audit entries with the given action.
//
// Example: servicedesk/audit/login_failed
func (t Topics) Audit(action string) string {
	return t.root() + "/audit/" + action
}

// AllAudit returns a wildcard matching every audit topic.
func (t Topics) AllAudit() string {
	return t.root() + "/audit/+"
}

// SystemStatus returns the retained status topic.
//
// Example: servicedesk/system/status
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}
