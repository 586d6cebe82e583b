package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/parleysocial/parley/fetch"
	"github.com/parleysocial/parley/store"
	"github.com/parleysocial/parley/subscriptions"
	"github.com/parleysocial/parley/tasks"
)

// Public is the well-known collection denoting public addressing.
const Public = "https://www.w3.org/ns/activitystreams#Public"

// Wire values of the type discriminant.
const (
	KindLike     = "Like"
	KindDislike  = "Dislike"
	KindUndo     = "Undo"
	KindAdd      = "Add"
	KindRemove   = "Remove"
	KindFollow   = "Follow"
	KindCreate   = "Create"
	KindUpdate   = "Update"
	KindDelete   = "Delete"
	KindAnnounce = "Announce"
)

// ErrMalformedEnvelope is returned when a document cannot be decoded
// into the variant its type claims.
var ErrMalformedEnvelope = errors.New("malformed activity envelope")

// ErrUnsupportedActivity is returned for kinds outside the known set.
// Callers treat it as ignorable to stay forward compatible with peers
// speaking newer protocol versions.
var ErrUnsupportedActivity = errors.New("unsupported activity kind")

// Activity is the contract every envelope variant satisfies. Verify
// runs strictly before Receive; both thread the caller-owned fetch
// budget through every resolution.
type Activity interface {
	Identity() string
	ActorIRI() string
	Verify(ctx context.Context, fc *Context, budget *int) error
	Receive(ctx context.Context, fc *Context, budget *int) error
}

// Context carries the collaborators one activity's processing needs.
// Build a fresh one per inbound activity so the resolver cache is never
// shared across concurrent work.
type Context struct {
	Policy    Policy
	Store     store.Store
	Resolver  *fetch.Resolver
	Followers subscriptions.Manager
	Queuer    tasks.Queuer
	Storer    tasks.Storer
	Signer    tasks.Signer
	KeyID     string
	Client    *http.Client
}

// Audience is an addressing list that accepts both a single string and
// an array on the wire.
type Audience []string

// UnmarshalJSON accepts "iri" and ["iri", ...].
func (a *Audience) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*a = Audience{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*a = Audience(many)
	return nil
}

// Contains reports whether iri appears in the list.
func (a Audience) Contains(iri string) bool {
	for _, member := range a {
		if member == iri {
			return true
		}
	}
	return false
}

// Unparsed holds fields the schema does not recognize so they survive
// a decode/encode round trip verbatim.
type Unparsed map[string]json.RawMessage

// knownJSONKeys lists the wire names of v's recognized fields.
func knownJSONKeys(v interface{}) []string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name := strings.SplitN(tag, ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		keys = append(keys, name)
	}
	return keys
}

// decodeEnvelope unmarshals data into v and collects every key the
// schema does not claim. The @context key is handled by the transport
// layer and excluded from the bag.
func decodeEnvelope(data []byte, v interface{}) (Unparsed, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, key := range knownJSONKeys(v) {
		delete(all, key)
	}
	delete(all, "@context")
	if len(all) == 0 {
		return nil, nil
	}
	return Unparsed(all), nil
}

// encodeEnvelope marshals v and merges the unparsed bag back in.
// Recognized fields always win over stale bag entries.
func encodeEnvelope(v interface{}, extra Unparsed) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return b, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for key, raw := range extra {
		if _, ok := m[key]; !ok {
			m[key] = raw
		}
	}
	return json.Marshal(m)
}

// DecodeActivity parses one wire document into its envelope variant by
// the type discriminant, peeking at the wrapped object's type for Undo.
func DecodeActivity(data []byte) (Activity, error) {
	var probe struct {
		Type   string          `json:"type"`
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var act Activity
	switch probe.Type {
	case KindLike, KindDislike:
		act = new(Vote)
	case KindUndo:
		var inner struct {
			Type string `json:"type"`
		}
		// An Undo wrapping a bare reference has no inner type to
		// dispatch on and is not supported.
		_ = json.Unmarshal(probe.Object, &inner)
		switch inner.Type {
		case KindLike, KindDislike:
			act = new(UndoVote)
		case KindFollow:
			act = new(UndoFollow)
		default:
			return nil, fmt.Errorf("%w: undo of %q", ErrUnsupportedActivity, inner.Type)
		}
	case KindAdd:
		act = new(AddMod)
	case KindRemove:
		act = new(RemoveMod)
	case KindFollow:
		act = new(Follow)
	case KindCreate, KindUpdate:
		act = new(CreateOrUpdatePage)
	case KindDelete:
		act = new(Delete)
	case KindAnnounce:
		act = new(Announce)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedActivity, probe.Type)
	}

	if err := json.Unmarshal(data, act); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if act.Identity() == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedEnvelope)
	}
	if act.ActorIRI() == "" {
		return nil, fmt.Errorf("%w: missing actor", ErrMalformedEnvelope)
	}
	return act, nil
}
