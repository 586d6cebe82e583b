package activities

import (
	"context"

	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/store"
)

// UndoVote retracts a previously sent vote. The undo envelope itself
// carries public addressing even though the wrapped vote need not: the
// asymmetry tells peers the retraction may circulate without disclosing
// the original actor's preference.
type UndoVote struct {
	Actor  string   `json:"actor"`
	To     Audience `json:"to,omitempty"`
	Object Vote     `json:"object"`
	Cc     Audience `json:"cc,omitempty"`
	Kind   string   `json:"type"`
	ID     string   `json:"id"`

	Unparsed Unparsed `json:"-"`
}

// NewUndoVote wraps a vote retraction, stamping a fresh id.
func NewUndoVote(actor *models.Person, vote *Vote, scheme, host string) (*UndoVote, error) {
	id, err := GenerateActivityID(KindUndo, scheme, host)
	if err != nil {
		return nil, err
	}
	return &UndoVote{
		Actor:  actor.ID,
		To:     Audience{Public},
		Object: *vote,
		Kind:   KindUndo,
		ID:     id,
	}, nil
}

// Identity returns the activity id.
func (u *UndoVote) Identity() string { return u.ID }

// ActorIRI returns the acting entity's id.
func (u *UndoVote) ActorIRI() string { return u.Actor }

// Verify checks the undo envelope, then the wrapped vote. The
// actor-equality check runs before any resolution of the vote's target
// so an actor-confusion forgery is rejected without network work.
func (u *UndoVote) Verify(ctx context.Context, fc *Context, budget *int) error {
	if err := fc.verifyIdentity(u.ID); err != nil {
		return err
	}
	if err := verifyIsPublic(u.To, u.Cc); err != nil {
		return err
	}
	if err := verifyURLsMatch(u.Actor, u.Object.Actor); err != nil {
		return err
	}
	community, err := u.Object.community(ctx, fc, budget)
	if err != nil {
		return err
	}
	if err := fc.verifyPersonInCommunity(ctx, u.Actor, community, budget); err != nil {
		return err
	}
	return u.Object.Verify(ctx, fc, budget)
}

// Receive retracts the wrapped vote. Retracting an already absent vote
// is a no-op, so duplicate delivery is harmless.
func (u *UndoVote) Receive(ctx context.Context, fc *Context, budget *int) error {
	actor, err := fc.Resolver.Person(ctx, u.Actor, budget)
	if err != nil {
		return err
	}
	object, err := fc.Resolver.PostOrComment(ctx, u.Object.Object, budget)
	if err != nil {
		return err
	}
	return fc.Store.InTx(func(tx store.Store) error {
		return tx.DeleteVote(actor.ID, object.ID())
	})
}

// UnmarshalJSON decodes the undo and captures unrecognized fields.
func (u *UndoVote) UnmarshalJSON(data []byte) error {
	type alias UndoVote
	var a alias
	unparsed, err := decodeEnvelope(data, &a)
	if err != nil {
		return err
	}
	*u = UndoVote(a)
	u.Unparsed = unparsed
	return nil
}

// MarshalJSON re-emits the undo with its unrecognized fields intact.
func (u UndoVote) MarshalJSON() ([]byte, error) {
	type alias UndoVote
	return encodeEnvelope(alias(u), u.Unparsed)
}
