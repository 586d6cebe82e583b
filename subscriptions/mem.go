package subscriptions

import (
	"net/url"
	"sync"
)

// MemManager keeps follower inboxes in memory, keyed by community.
type MemManager struct {
	targets map[string][]url.URL

	sync.RWMutex
}

// NewMemManager instantiates a new manager.
func NewMemManager() *MemManager {
	return &MemManager{
		targets: make(map[string][]url.URL),
	}
}

// Add registers a follower inbox for a community. Re-adding an inbox
// that is already registered is a no-op.
func (m *MemManager) Add(community string, target url.URL) bool {
	m.Lock()
	defer m.Unlock()

	for _, existing := range m.targets[community] {
		if existing == target {
			return true
		}
	}
	m.targets[community] = append(m.targets[community], target)
	return true
}

// Remove drops a follower inbox from a community.
func (m *MemManager) Remove(community string, target url.URL) bool {
	m.Lock()
	defer m.Unlock()

	inboxes := m.targets[community]
	for i, existing := range inboxes {
		if existing == target {
			m.targets[community] = append(inboxes[:i], inboxes[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the follower inboxes of a community.
func (m *MemManager) List(community string) []url.URL {
	m.RLock()
	defer m.RUnlock()

	inboxes := make([]url.URL, len(m.targets[community]))
	copy(inboxes, m.targets[community])
	return inboxes
}
