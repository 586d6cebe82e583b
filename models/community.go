package models

// Community is a group actor. Moderators is the URL of its moderator
// collection, which doubles as the target of Add/Remove activities.
type Community struct {
	ID                string
	PreferredUsername string
	Inbox             string
	SharedInbox       string
	Followers         string
	Moderators        string
	Local             bool
}

// SharedInboxOrInbox prefers the instance-wide shared inbox so that one
// delivery reaches every recipient on the same server.
func (c *Community) SharedInboxOrInbox() string {
	if c.SharedInbox != "" {
		return c.SharedInbox
	}
	return c.Inbox
}
