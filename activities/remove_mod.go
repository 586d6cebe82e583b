package activities

import (
	"context"
	"time"

	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/store"
)

// RemoveMod revokes a person's moderator standing in a community.
type RemoveMod struct {
	Actor  string   `json:"actor"`
	To     Audience `json:"to"`
	Object string   `json:"object"`
	Target string   `json:"target"`
	Cc     Audience `json:"cc,omitempty"`
	Kind   string   `json:"type"`
	ID     string   `json:"id"`

	Unparsed Unparsed `json:"-"`
}

// NewRemoveMod builds a moderator revocation for removedMod in
// community by actor, stamping a fresh id.
func NewRemoveMod(community *models.Community, removedMod, actor *models.Person, scheme, host string) (*RemoveMod, error) {
	id, err := GenerateActivityID(KindRemove, scheme, host)
	if err != nil {
		return nil, err
	}
	return &RemoveMod{
		Actor:  actor.ID,
		To:     Audience{Public},
		Object: removedMod.ID,
		Target: community.Moderators,
		Cc:     Audience{community.ID},
		Kind:   KindRemove,
		ID:     id,
	}, nil
}

// Identity returns the activity id.
func (r *RemoveMod) Identity() string { return r.ID }

// ActorIRI returns the acting entity's id.
func (r *RemoveMod) ActorIRI() string { return r.Actor }

// Verify mirrors AddMod: the actor must be a member and a current
// moderator of the community the target names.
func (r *RemoveMod) Verify(ctx context.Context, fc *Context, budget *int) error {
	if err := fc.verifyIdentity(r.ID); err != nil {
		return err
	}
	if err := verifyIsPublic(r.To, r.Cc); err != nil {
		return err
	}
	community, err := fc.communityFromModeratorsURL(ctx, r.Target, budget)
	if err != nil {
		return err
	}
	if err := fc.verifyPersonInCommunity(ctx, r.Actor, community, budget); err != nil {
		return err
	}
	if err := fc.verifyModAction(ctx, r.Actor, community, budget); err != nil {
		return err
	}
	return verifyModTarget(r.Target, community)
}

// Receive revokes the moderator relation and appends one mod log
// entry. Revoking a non-moderator changes nothing.
func (r *RemoveMod) Receive(ctx context.Context, fc *Context, budget *int) error {
	community, err := fc.communityFromModeratorsURL(ctx, r.Target, budget)
	if err != nil {
		return err
	}
	removed, err := fc.Resolver.Person(ctx, r.Object, budget)
	if err != nil {
		return err
	}
	actor, err := fc.Resolver.Person(ctx, r.Actor, budget)
	if err != nil {
		return err
	}
	return fc.Store.InTx(func(tx store.Store) error {
		if err := tx.LeaveModerators(community.ID, removed.ID); err != nil {
			return err
		}
		return tx.AppendModLog(models.ModLogEntry{
			Mod:       actor.ID,
			Other:     removed.ID,
			Community: community.ID,
			Removed:   true,
			When:      time.Now().UTC(),
		})
	})
}

// UnmarshalJSON decodes the revocation and captures unrecognized fields.
func (r *RemoveMod) UnmarshalJSON(data []byte) error {
	type alias RemoveMod
	var a alias
	unparsed, err := decodeEnvelope(data, &a)
	if err != nil {
		return err
	}
	*r = RemoveMod(a)
	r.Unparsed = unparsed
	return nil
}

// MarshalJSON re-emits the revocation with its unrecognized fields intact.
func (r RemoveMod) MarshalJSON() ([]byte, error) {
	type alias RemoveMod
	return encodeEnvelope(alias(r), r.Unparsed)
}
