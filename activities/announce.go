package activities

import (
	"context"
	"encoding/json"

	"github.com/parleysocial/parley/models"
)

// Announce is the relay by which a community re-broadcasts a
// member-authored activity to its followers. The inner activity is
// kept as raw bytes so its id, actor, and any unrecognized fields
// survive the relay untouched.
type Announce struct {
	Actor  string          `json:"actor"`
	To     Audience        `json:"to"`
	Object json.RawMessage `json:"object"`
	Cc     Audience        `json:"cc,omitempty"`
	Kind   string          `json:"type"`
	ID     string          `json:"id"`

	Unparsed Unparsed `json:"-"`
}

// NewAnnounce wraps inner in an Announce authored by the community.
func NewAnnounce(community *models.Community, inner Activity, scheme, host string) (*Announce, error) {
	id, err := GenerateActivityID(KindAnnounce, scheme, host)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	return &Announce{
		Actor:  community.ID,
		To:     Audience{Public},
		Object: raw,
		Cc:     Audience{community.Followers},
		Kind:   KindAnnounce,
		ID:     id,
	}, nil
}

// Identity returns the activity id.
func (a *Announce) Identity() string { return a.ID }

// ActorIRI returns the announcing community's id.
func (a *Announce) ActorIRI() string { return a.Actor }

// Inner decodes the wrapped activity.
func (a *Announce) Inner() (Activity, error) {
	inner, err := DecodeActivity(a.Object)
	if err != nil {
		return nil, err
	}
	return inner, nil
}

// Verify checks the announce envelope, that its actor is a community,
// and then runs the inner activity's own verification pipeline.
func (a *Announce) Verify(ctx context.Context, fc *Context, budget *int) error {
	if err := fc.verifyIdentity(a.ID); err != nil {
		return err
	}
	if err := verifyIsPublic(a.To, a.Cc); err != nil {
		return err
	}
	if _, err := fc.Resolver.Community(ctx, a.Actor, budget); err != nil {
		return err
	}
	inner, err := a.Inner()
	if err != nil {
		return err
	}
	return inner.Verify(ctx, fc, budget)
}

// Receive applies the inner activity.
func (a *Announce) Receive(ctx context.Context, fc *Context, budget *int) error {
	inner, err := a.Inner()
	if err != nil {
		return err
	}
	return inner.Receive(ctx, fc, budget)
}

// UnmarshalJSON decodes the announce and captures unrecognized fields.
func (a *Announce) UnmarshalJSON(data []byte) error {
	type alias Announce
	var aa alias
	unparsed, err := decodeEnvelope(data, &aa)
	if err != nil {
		return err
	}
	*a = Announce(aa)
	a.Unparsed = unparsed
	return nil
}

// MarshalJSON re-emits the announce with its unrecognized fields intact.
func (a Announce) MarshalJSON() ([]byte, error) {
	type alias Announce
	return encodeEnvelope(alias(a), a.Unparsed)
}
