package activities

import (
	"context"
	"fmt"
	"time"

	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/store"
)

// Page is the content document embedded in Create and Update
// activities. It carries its own extension bag so unknown fields on
// content survive relay.
type Page struct {
	ID           string     `json:"id"`
	Kind         string     `json:"type"`
	AttributedTo string     `json:"attributedTo"`
	To           Audience   `json:"to,omitempty"`
	Audience     string     `json:"audience,omitempty"`
	Name         string     `json:"name,omitempty"`
	Content      string     `json:"content,omitempty"`
	Published    *time.Time `json:"published,omitempty"`
	Updated      *time.Time `json:"updated,omitempty"`

	Unparsed Unparsed `json:"-"`
}

// UnmarshalJSON decodes the page and captures unrecognized fields.
func (p *Page) UnmarshalJSON(data []byte) error {
	type alias Page
	var a alias
	unparsed, err := decodeEnvelope(data, &a)
	if err != nil {
		return err
	}
	*p = Page(a)
	p.Unparsed = unparsed
	return nil
}

// MarshalJSON re-emits the page with its unrecognized fields intact.
func (p Page) MarshalJSON() ([]byte, error) {
	type alias Page
	return encodeEnvelope(alias(p), p.Unparsed)
}

// CreateOrUpdatePage publishes or edits a post in a community. The
// kind distinguishes first publication from edits; both upsert.
type CreateOrUpdatePage struct {
	Actor  string   `json:"actor"`
	To     Audience `json:"to"`
	Object Page     `json:"object"`
	Cc     Audience `json:"cc,omitempty"`
	Kind   string   `json:"type"`
	ID     string   `json:"id"`

	Unparsed Unparsed `json:"-"`
}

// NewCreateOrUpdatePage builds a Create or Update envelope for a local
// post, stamping a fresh id.
func NewCreateOrUpdatePage(post *models.Post, actor *models.Person, community *models.Community, kind, scheme, host string) (*CreateOrUpdatePage, error) {
	id, err := GenerateActivityID(kind, scheme, host)
	if err != nil {
		return nil, err
	}
	page := Page{
		ID:           post.ID,
		Kind:         "Page",
		AttributedTo: actor.ID,
		To:           Audience{Public},
		Audience:     community.ID,
		Name:         post.Name,
		Content:      post.Content,
	}
	if !post.Published.IsZero() {
		published := post.Published
		page.Published = &published
	}
	if kind == KindUpdate && !post.Updated.IsZero() {
		updated := post.Updated
		page.Updated = &updated
	}
	return &CreateOrUpdatePage{
		Actor:  actor.ID,
		To:     Audience{Public},
		Object: page,
		Cc:     Audience{community.ID},
		Kind:   kind,
		ID:     id,
	}, nil
}

// Identity returns the activity id.
func (c *CreateOrUpdatePage) Identity() string { return c.ID }

// ActorIRI returns the acting entity's id.
func (c *CreateOrUpdatePage) ActorIRI() string { return c.Actor }

// Verify checks id policy, public addressing, that the envelope actor
// authored the embedded page, and the author's community membership.
func (c *CreateOrUpdatePage) Verify(ctx context.Context, fc *Context, budget *int) error {
	if err := fc.verifyIdentity(c.ID); err != nil {
		return err
	}
	if err := verifyIsPublic(c.To, c.Cc); err != nil {
		return err
	}
	if err := verifyURLsMatch(c.Actor, c.Object.AttributedTo); err != nil {
		return err
	}
	if c.Object.Audience == "" {
		return fmt.Errorf("%w: page names no community", ErrMalformedEnvelope)
	}
	community, err := fc.Resolver.Community(ctx, c.Object.Audience, budget)
	if err != nil {
		return err
	}
	return fc.verifyPersonInCommunity(ctx, c.Actor, community, budget)
}

// Receive upserts the post. Create and Update converge on the same
// stored state, so duplicate or reordered delivery is tolerated.
func (c *CreateOrUpdatePage) Receive(ctx context.Context, fc *Context, budget *int) error {
	actor, err := fc.Resolver.Person(ctx, c.Actor, budget)
	if err != nil {
		return err
	}
	community, err := fc.Resolver.Community(ctx, c.Object.Audience, budget)
	if err != nil {
		return err
	}
	post := &models.Post{
		ID:           c.Object.ID,
		AttributedTo: actor.ID,
		Community:    community.ID,
		Name:         c.Object.Name,
		Content:      c.Object.Content,
	}
	if c.Object.Published != nil {
		post.Published = *c.Object.Published
	}
	if c.Object.Updated != nil {
		post.Updated = *c.Object.Updated
	}
	return fc.Store.InTx(func(tx store.Store) error {
		return tx.UpsertPost(post)
	})
}

// UnmarshalJSON decodes the envelope and captures unrecognized fields.
func (c *CreateOrUpdatePage) UnmarshalJSON(data []byte) error {
	type alias CreateOrUpdatePage
	var a alias
	unparsed, err := decodeEnvelope(data, &a)
	if err != nil {
		return err
	}
	*c = CreateOrUpdatePage(a)
	c.Unparsed = unparsed
	return nil
}

// MarshalJSON re-emits the envelope with its unrecognized fields intact.
func (c CreateOrUpdatePage) MarshalJSON() ([]byte, error) {
	type alias CreateOrUpdatePage
	return encodeEnvelope(alias(c), c.Unparsed)
}
