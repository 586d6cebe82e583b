package activities

import (
	"context"
	"fmt"
	"net/url"

	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/store"
)

// UndoFollow leaves a community by retracting an earlier Follow.
type UndoFollow struct {
	Actor  string   `json:"actor"`
	To     Audience `json:"to,omitempty"`
	Object Follow   `json:"object"`
	Kind   string   `json:"type"`
	ID     string   `json:"id"`

	Unparsed Unparsed `json:"-"`
}

// NewUndoFollow wraps a follow retraction, stamping a fresh id.
func NewUndoFollow(actor *models.Person, follow *Follow, scheme, host string) (*UndoFollow, error) {
	id, err := GenerateActivityID(KindUndo, scheme, host)
	if err != nil {
		return nil, err
	}
	return &UndoFollow{
		Actor:  actor.ID,
		To:     Audience{follow.Object},
		Object: *follow,
		Kind:   KindUndo,
		ID:     id,
	}, nil
}

// Identity returns the activity id.
func (u *UndoFollow) Identity() string { return u.ID }

// ActorIRI returns the acting entity's id.
func (u *UndoFollow) ActorIRI() string { return u.Actor }

// Verify checks the undo envelope, actor consistency with the wrapped
// follow, and then the wrapped follow itself.
func (u *UndoFollow) Verify(ctx context.Context, fc *Context, budget *int) error {
	if err := fc.verifyIdentity(u.ID); err != nil {
		return err
	}
	if err := verifyURLsMatch(u.Actor, u.Object.Actor); err != nil {
		return err
	}
	return u.Object.Verify(ctx, fc, budget)
}

// Receive drops membership and unregisters the follower's inbox.
func (u *UndoFollow) Receive(ctx context.Context, fc *Context, budget *int) error {
	actor, err := fc.Resolver.Person(ctx, u.Actor, budget)
	if err != nil {
		return err
	}
	community, err := fc.Resolver.Community(ctx, u.Object.Object, budget)
	if err != nil {
		return err
	}
	inbox, err := url.Parse(actor.SharedInboxOrInbox())
	if err != nil {
		return fmt.Errorf("%w: follower inbox: %v", ErrMalformedEnvelope, err)
	}
	if err := fc.Store.InTx(func(tx store.Store) error {
		return tx.RemoveMember(community.ID, actor.ID)
	}); err != nil {
		return err
	}
	fc.Followers.Remove(community.ID, *inbox)
	return nil
}

// UnmarshalJSON decodes the undo and captures unrecognized fields.
func (u *UndoFollow) UnmarshalJSON(data []byte) error {
	type alias UndoFollow
	var a alias
	unparsed, err := decodeEnvelope(data, &a)
	if err != nil {
		return err
	}
	*u = UndoFollow(a)
	u.Unparsed = unparsed
	return nil
}

// MarshalJSON re-emits the undo with its unrecognized fields intact.
func (u UndoFollow) MarshalJSON() ([]byte, error) {
	type alias UndoFollow
	return encodeEnvelope(alias(u), u.Unparsed)
}
