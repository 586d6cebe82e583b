package store

import "github.com/parleysocial/parley/models"

// Store is the persistence collaborator. The federation pipeline treats
// it as transactional and durable; InTx scopes the mutations of one
// activity's apply step.
type Store interface {
	Person(id string) (*models.Person, bool)
	UpsertPerson(p *models.Person) error

	Community(id string) (*models.Community, bool)
	UpsertCommunity(c *models.Community) error

	Post(id string) (*models.Post, bool)
	UpsertPost(p *models.Post) error
	DeletePost(id string) error

	Comment(id string) (*models.Comment, bool)
	UpsertComment(c *models.Comment) error
	DeleteComment(id string) error

	IsMember(community, person string) bool
	AddMember(community, person string) error
	RemoveMember(community, person string) error

	IsModerator(community, person string) bool
	JoinModerators(community, person string) error
	LeaveModerators(community, person string) error
	Moderators(community string) []string

	Vote(actor, object string) (int, bool)
	UpsertVote(actor, object string, score int) error
	DeleteVote(actor, object string) error

	AppendModLog(e models.ModLogEntry) error
	ModLog(community string) []models.ModLogEntry

	InTx(fn func(tx Store) error) error
}
