package subscriptions

import "net/url"

// Manager tracks, per community, the follower inboxes an Announce fans
// out to. Membership itself lives in the store; this registry only
// serves delivery.
type Manager interface {
	Add(community string, target url.URL) bool
	Remove(community string, target url.URL) bool
	List(community string) []url.URL
}
