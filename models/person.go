package models

// Person is a federated user, either local to this instance or cached
// from a remote one after a successful dereference.
type Person struct {
	ID                string
	PreferredUsername string
	Inbox             string
	SharedInbox       string
	PublicKeyPem      string
	Local             bool
}

// SharedInboxOrInbox prefers the instance-wide shared inbox so that one
// delivery reaches every recipient on the same server.
func (p *Person) SharedInboxOrInbox() string {
	if p.SharedInbox != "" {
		return p.SharedInbox
	}
	return p.Inbox
}
