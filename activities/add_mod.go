package activities

import (
	"context"
	"time"

	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/store"
)

// AddMod grants a person moderator standing in a community. Its target
// is the community's moderator collection URL.
type AddMod struct {
	Actor  string   `json:"actor"`
	To     Audience `json:"to"`
	Object string   `json:"object"`
	Target string   `json:"target"`
	Cc     Audience `json:"cc,omitempty"`
	Kind   string   `json:"type"`
	ID     string   `json:"id"`

	Unparsed Unparsed `json:"-"`
}

// NewAddMod builds a moderator grant for addedMod in community by
// actor, stamping a fresh id.
func NewAddMod(community *models.Community, addedMod, actor *models.Person, scheme, host string) (*AddMod, error) {
	id, err := GenerateActivityID(KindAdd, scheme, host)
	if err != nil {
		return nil, err
	}
	return &AddMod{
		Actor:  actor.ID,
		To:     Audience{Public},
		Object: addedMod.ID,
		Target: community.Moderators,
		Cc:     Audience{community.ID},
		Kind:   KindAdd,
		ID:     id,
	}, nil
}

// Identity returns the activity id.
func (a *AddMod) Identity() string { return a.ID }

// ActorIRI returns the acting entity's id.
func (a *AddMod) ActorIRI() string { return a.Actor }

// Verify checks id policy, public addressing, that the actor is a
// member and moderator of the community derived from the target, and
// that the target really is that community's moderator collection.
func (a *AddMod) Verify(ctx context.Context, fc *Context, budget *int) error {
	if err := fc.verifyIdentity(a.ID); err != nil {
		return err
	}
	if err := verifyIsPublic(a.To, a.Cc); err != nil {
		return err
	}
	community, err := fc.communityFromModeratorsURL(ctx, a.Target, budget)
	if err != nil {
		return err
	}
	if err := fc.verifyPersonInCommunity(ctx, a.Actor, community, budget); err != nil {
		return err
	}
	if err := fc.verifyModAction(ctx, a.Actor, community, budget); err != nil {
		return err
	}
	return verifyModTarget(a.Target, community)
}

// Receive grants the moderator relation and appends one mod log entry.
// Granting an existing moderator changes nothing but is still logged
// at most once per activity.
func (a *AddMod) Receive(ctx context.Context, fc *Context, budget *int) error {
	community, err := fc.communityFromModeratorsURL(ctx, a.Target, budget)
	if err != nil {
		return err
	}
	added, err := fc.Resolver.Person(ctx, a.Object, budget)
	if err != nil {
		return err
	}
	actor, err := fc.Resolver.Person(ctx, a.Actor, budget)
	if err != nil {
		return err
	}
	return fc.Store.InTx(func(tx store.Store) error {
		if err := tx.JoinModerators(community.ID, added.ID); err != nil {
			return err
		}
		return tx.AppendModLog(models.ModLogEntry{
			Mod:       actor.ID,
			Other:     added.ID,
			Community: community.ID,
			Removed:   false,
			When:      time.Now().UTC(),
		})
	})
}

// UnmarshalJSON decodes the grant and captures unrecognized fields.
func (a *AddMod) UnmarshalJSON(data []byte) error {
	type alias AddMod
	var aa alias
	unparsed, err := decodeEnvelope(data, &aa)
	if err != nil {
		return err
	}
	*a = AddMod(aa)
	a.Unparsed = unparsed
	return nil
}

// MarshalJSON re-emits the grant with its unrecognized fields intact.
func (a AddMod) MarshalJSON() ([]byte, error) {
	type alias AddMod
	return encodeEnvelope(alias(a), a.Unparsed)
}
