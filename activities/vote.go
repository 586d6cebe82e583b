package activities

import (
	"context"
	"fmt"

	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/store"
)

// Vote is a Like or Dislike on a post or comment. Votes are sent with
// public addressing but inbound verification does not demand it, so a
// vote arriving only inside an Undo stays valid.
type Vote struct {
	Actor  string   `json:"actor"`
	To     Audience `json:"to,omitempty"`
	Object string   `json:"object"`
	Cc     Audience `json:"cc,omitempty"`
	Kind   string   `json:"type"`
	ID     string   `json:"id"`

	Unparsed Unparsed `json:"-"`
}

// NewVote builds a vote on object by actor, stamping a fresh id.
func NewVote(actor *models.Person, object *models.PostOrComment, kind, scheme, host string) (*Vote, error) {
	id, err := GenerateActivityID(kind, scheme, host)
	if err != nil {
		return nil, err
	}
	return &Vote{
		Actor:  actor.ID,
		To:     Audience{Public},
		Object: object.ID(),
		Kind:   kind,
		ID:     id,
	}, nil
}

// Identity returns the activity id.
func (v *Vote) Identity() string { return v.ID }

// ActorIRI returns the acting entity's id.
func (v *Vote) ActorIRI() string { return v.Actor }

func (v *Vote) score() (int, error) {
	switch v.Kind {
	case KindLike:
		return 1, nil
	case KindDislike:
		return -1, nil
	}
	return 0, fmt.Errorf("%w: vote kind %q", ErrMalformedEnvelope, v.Kind)
}

func (v *Vote) community(ctx context.Context, fc *Context, budget *int) (*models.Community, error) {
	object, err := fc.Resolver.PostOrComment(ctx, v.Object, budget)
	if err != nil {
		return nil, err
	}
	if object.CommunityIRI() == "" {
		return nil, fmt.Errorf("%w: %s names no community", ErrMalformedEnvelope, object.ID())
	}
	return fc.Resolver.Community(ctx, object.CommunityIRI(), budget)
}

// Verify checks the vote's id, derives its community through the voted
// object, and confirms the voter's membership.
func (v *Vote) Verify(ctx context.Context, fc *Context, budget *int) error {
	if err := fc.verifyIdentity(v.ID); err != nil {
		return err
	}
	if _, err := v.score(); err != nil {
		return err
	}
	community, err := v.community(ctx, fc, budget)
	if err != nil {
		return err
	}
	return fc.verifyPersonInCommunity(ctx, v.Actor, community, budget)
}

// Receive applies the vote. Duplicate delivery of the same vote
// converges on a single recorded score.
func (v *Vote) Receive(ctx context.Context, fc *Context, budget *int) error {
	actor, err := fc.Resolver.Person(ctx, v.Actor, budget)
	if err != nil {
		return err
	}
	object, err := fc.Resolver.PostOrComment(ctx, v.Object, budget)
	if err != nil {
		return err
	}
	score, err := v.score()
	if err != nil {
		return err
	}
	return fc.Store.InTx(func(tx store.Store) error {
		return tx.UpsertVote(actor.ID, object.ID(), score)
	})
}

// UnmarshalJSON decodes the vote and captures unrecognized fields.
func (v *Vote) UnmarshalJSON(data []byte) error {
	type alias Vote
	var a alias
	unparsed, err := decodeEnvelope(data, &a)
	if err != nil {
		return err
	}
	*v = Vote(a)
	v.Unparsed = unparsed
	return nil
}

// MarshalJSON re-emits the vote with its unrecognized fields intact.
func (v Vote) MarshalJSON() ([]byte, error) {
	type alias Vote
	return encodeEnvelope(alias(v), v.Unparsed)
}
