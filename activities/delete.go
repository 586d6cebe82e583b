package activities

import (
	"context"
	"fmt"

	"github.com/parleysocial/parley/store"
)

// Delete tombstones a post or comment. Only the author or a community
// moderator may delete.
type Delete struct {
	Actor  string   `json:"actor"`
	To     Audience `json:"to"`
	Object string   `json:"object"`
	Cc     Audience `json:"cc,omitempty"`
	Kind   string   `json:"type"`
	ID     string   `json:"id"`

	Unparsed Unparsed `json:"-"`
}

// NewDelete builds a deletion of object by actor, stamping a fresh id.
func NewDelete(actorIRI, objectIRI, communityIRI, scheme, host string) (*Delete, error) {
	id, err := GenerateActivityID(KindDelete, scheme, host)
	if err != nil {
		return nil, err
	}
	return &Delete{
		Actor:  actorIRI,
		To:     Audience{Public},
		Object: objectIRI,
		Cc:     Audience{communityIRI},
		Kind:   KindDelete,
		ID:     id,
	}, nil
}

// Identity returns the activity id.
func (d *Delete) Identity() string { return d.ID }

// ActorIRI returns the acting entity's id.
func (d *Delete) ActorIRI() string { return d.Actor }

// Verify resolves the doomed content and requires the actor to be its
// author or a moderator of its community.
func (d *Delete) Verify(ctx context.Context, fc *Context, budget *int) error {
	if err := fc.verifyIdentity(d.ID); err != nil {
		return err
	}
	if err := verifyIsPublic(d.To, d.Cc); err != nil {
		return err
	}
	object, err := fc.Resolver.PostOrComment(ctx, d.Object, budget)
	if err != nil {
		return err
	}
	if object.CommunityIRI() == "" {
		return fmt.Errorf("%w: %s names no community", ErrMalformedEnvelope, object.ID())
	}
	community, err := fc.Resolver.Community(ctx, object.CommunityIRI(), budget)
	if err != nil {
		return err
	}
	if err := fc.verifyPersonInCommunity(ctx, d.Actor, community, budget); err != nil {
		return err
	}

	var author string
	if object.Post != nil {
		author = object.Post.AttributedTo
	} else {
		author = object.Comment.AttributedTo
	}
	if d.Actor == author {
		return nil
	}
	return fc.verifyModAction(ctx, d.Actor, community, budget)
}

// Receive tombstones the content. Deleting twice is a no-op.
func (d *Delete) Receive(ctx context.Context, fc *Context, budget *int) error {
	object, err := fc.Resolver.PostOrComment(ctx, d.Object, budget)
	if err != nil {
		return err
	}
	return fc.Store.InTx(func(tx store.Store) error {
		if object.Post != nil {
			return tx.DeletePost(object.Post.ID)
		}
		return tx.DeleteComment(object.Comment.ID)
	})
}

// UnmarshalJSON decodes the deletion and captures unrecognized fields.
func (d *Delete) UnmarshalJSON(data []byte) error {
	type alias Delete
	var a alias
	unparsed, err := decodeEnvelope(data, &a)
	if err != nil {
		return err
	}
	*d = Delete(a)
	d.Unparsed = unparsed
	return nil
}

// MarshalJSON re-emits the deletion with its unrecognized fields intact.
func (d Delete) MarshalJSON() ([]byte, error) {
	type alias Delete
	return encodeEnvelope(alias(d), d.Unparsed)
}
