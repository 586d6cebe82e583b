package activities

import (
	"context"
	"fmt"
	"net/url"

	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/store"
)

// Follow joins a person to a community. It is addressed directly, not
// publicly.
type Follow struct {
	Actor  string   `json:"actor"`
	To     Audience `json:"to,omitempty"`
	Object string   `json:"object"`
	Kind   string   `json:"type"`
	ID     string   `json:"id"`

	Unparsed Unparsed `json:"-"`
}

// NewFollow builds a follow of community by actor, stamping a fresh id.
func NewFollow(actor *models.Person, community *models.Community, scheme, host string) (*Follow, error) {
	id, err := GenerateActivityID(KindFollow, scheme, host)
	if err != nil {
		return nil, err
	}
	return &Follow{
		Actor:  actor.ID,
		To:     Audience{community.ID},
		Object: community.ID,
		Kind:   KindFollow,
		ID:     id,
	}, nil
}

// Identity returns the activity id.
func (f *Follow) Identity() string { return f.ID }

// ActorIRI returns the acting entity's id.
func (f *Follow) ActorIRI() string { return f.Actor }

// Verify checks the id and that the object resolves to a community.
func (f *Follow) Verify(ctx context.Context, fc *Context, budget *int) error {
	if err := fc.verifyIdentity(f.ID); err != nil {
		return err
	}
	if _, err := fc.Resolver.Community(ctx, f.Object, budget); err != nil {
		return err
	}
	_, err := fc.Resolver.Person(ctx, f.Actor, budget)
	return err
}

// Receive records membership and registers the follower's inbox for
// announce fan-out. Both are idempotent.
func (f *Follow) Receive(ctx context.Context, fc *Context, budget *int) error {
	actor, err := fc.Resolver.Person(ctx, f.Actor, budget)
	if err != nil {
		return err
	}
	community, err := fc.Resolver.Community(ctx, f.Object, budget)
	if err != nil {
		return err
	}
	inbox, err := url.Parse(actor.SharedInboxOrInbox())
	if err != nil {
		return fmt.Errorf("%w: follower inbox: %v", ErrMalformedEnvelope, err)
	}
	if err := fc.Store.InTx(func(tx store.Store) error {
		return tx.AddMember(community.ID, actor.ID)
	}); err != nil {
		return err
	}
	fc.Followers.Add(community.ID, *inbox)
	return nil
}

// UnmarshalJSON decodes the follow and captures unrecognized fields.
func (f *Follow) UnmarshalJSON(data []byte) error {
	type alias Follow
	var a alias
	unparsed, err := decodeEnvelope(data, &a)
	if err != nil {
		return err
	}
	*f = Follow(a)
	f.Unparsed = unparsed
	return nil
}

// MarshalJSON re-emits the follow with its unrecognized fields intact.
func (f Follow) MarshalJSON() ([]byte, error) {
	type alias Follow
	return encodeEnvelope(alias(f), f.Unparsed)
}
