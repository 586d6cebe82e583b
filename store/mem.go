package store

import (
	"fmt"
	"sync"

	"github.com/parleysocial/parley/models"
)

type relKey struct {
	left, right string
}

// MemStore keeps all entities in memory. It backs tests and single-node
// setups; a durable implementation satisfies the same interface.
type MemStore struct {
	mu sync.RWMutex
	// txMu serializes InTx blocks so one activity's apply step never
	// interleaves with another's.
	txMu sync.Mutex

	people      map[string]*models.Person
	communities map[string]*models.Community
	posts       map[string]*models.Post
	comments    map[string]*models.Comment
	members     map[relKey]bool
	moderators  map[relKey]bool
	votes       map[relKey]int
	modlog      []models.ModLogEntry
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		people:      make(map[string]*models.Person),
		communities: make(map[string]*models.Community),
		posts:       make(map[string]*models.Post),
		comments:    make(map[string]*models.Comment),
		members:     make(map[relKey]bool),
		moderators:  make(map[relKey]bool),
		votes:       make(map[relKey]int),
	}
}

// Person returns the person with the given id.
func (s *MemStore) Person(id string) (*models.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[id]
	return p, ok
}

// UpsertPerson inserts or replaces a person.
func (s *MemStore) UpsertPerson(p *models.Person) error {
	if p.ID == "" {
		return fmt.Errorf("person has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[p.ID] = p
	return nil
}

// Community returns the community with the given id.
func (s *MemStore) Community(id string) (*models.Community, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.communities[id]
	return c, ok
}

// UpsertCommunity inserts or replaces a community.
func (s *MemStore) UpsertCommunity(c *models.Community) error {
	if c.ID == "" {
		return fmt.Errorf("community has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communities[c.ID] = c
	return nil
}

// Post returns the post with the given id.
func (s *MemStore) Post(id string) (*models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	return p, ok
}

// UpsertPost inserts or replaces a post.
func (s *MemStore) UpsertPost(p *models.Post) error {
	if p.ID == "" {
		return fmt.Errorf("post has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = p
	return nil
}

// DeletePost tombstones a post. Deleting an unknown post is a no-op.
func (s *MemStore) DeletePost(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[id]; ok {
		p.Deleted = true
	}
	return nil
}

// Comment returns the comment with the given id.
func (s *MemStore) Comment(id string) (*models.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	return c, ok
}

// UpsertComment inserts or replaces a comment.
func (s *MemStore) UpsertComment(c *models.Comment) error {
	if c.ID == "" {
		return fmt.Errorf("comment has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = c
	return nil
}

// DeleteComment tombstones a comment. Unknown comments are a no-op.
func (s *MemStore) DeleteComment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.comments[id]; ok {
		c.Deleted = true
	}
	return nil
}

// IsMember reports whether person is a member of community.
func (s *MemStore) IsMember(community, person string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[relKey{community, person}]
}

// AddMember records membership. Adding an existing member is a no-op.
func (s *MemStore) AddMember(community, person string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[relKey{community, person}] = true
	return nil
}

// RemoveMember drops membership. Removing a non-member is a no-op.
func (s *MemStore) RemoveMember(community, person string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, relKey{community, person})
	return nil
}

// IsModerator reports whether person moderates community.
func (s *MemStore) IsModerator(community, person string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moderators[relKey{community, person}]
}

// JoinModerators grants moderator standing. Idempotent.
func (s *MemStore) JoinModerators(community, person string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moderators[relKey{community, person}] = true
	return nil
}

// LeaveModerators revokes moderator standing. Idempotent.
func (s *MemStore) LeaveModerators(community, person string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.moderators, relKey{community, person})
	return nil
}

// Moderators lists the moderators of a community.
func (s *MemStore) Moderators(community string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mods := make([]string, 0)
	for k := range s.moderators {
		if k.left == community {
			mods = append(mods, k.right)
		}
	}
	return mods
}

// Vote returns the standing vote score of actor on object.
func (s *MemStore) Vote(actor, object string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.votes[relKey{actor, object}]
	return score, ok
}

// UpsertVote records a vote, replacing any previous vote by the same
// actor on the same object. Duplicate delivery converges to one row.
func (s *MemStore) UpsertVote(actor, object string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[relKey{actor, object}] = score
	return nil
}

// DeleteVote retracts a vote. Retracting an absent vote is a no-op.
func (s *MemStore) DeleteVote(actor, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.votes, relKey{actor, object})
	return nil
}

// AppendModLog appends one moderation log entry.
func (s *MemStore) AppendModLog(e models.ModLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modlog = append(s.modlog, e)
	return nil
}

// ModLog returns the log entries for a community in append order.
func (s *MemStore) ModLog(community string) []models.ModLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]models.ModLogEntry, 0)
	for _, e := range s.modlog {
		if e.Community == community {
			entries = append(entries, e)
		}
	}
	return entries
}

// InTx runs fn with the store's transaction lock held. The in-memory
// store cannot roll back; it serializes apply steps instead.
func (s *MemStore) InTx(fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}
