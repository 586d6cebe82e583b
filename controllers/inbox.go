package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"

	"github.com/piprate/json-gold/ld"

	"github.com/parleysocial/parley/activities"
	"github.com/parleysocial/parley/fetch"
	"github.com/parleysocial/parley/store"
	"github.com/parleysocial/parley/subscriptions"
	"github.com/parleysocial/parley/tasks"
)

const maxActivitySz = 16 * (1 << 20) // 16 MB

const followIRI = "https://www.w3.org/ns/activitystreams#Follow"
const undoIRI = "https://www.w3.org/ns/activitystreams#Undo"
const actorIRI = "https://www.w3.org/ns/activitystreams#actor"
const objectIRI = "https://www.w3.org/ns/activitystreams#object"

// ErrNotCompact is returned when a document lacks the compact id/type
// fields and the JSON-LD fallback cannot recover a supported activity.
var ErrNotCompact = errors.New("document is not in compact activity form")

// Inbox is a controller that accepts federated activities, verifies
// them, and applies their side effects. Each request is one
// independent unit of work with its own fetch budget and resolver.
type Inbox struct {
	policy     activities.Policy
	store      store.Store
	followers  subscriptions.Manager
	queuer     tasks.Queuer
	storer     tasks.Storer
	signer     tasks.Signer
	keyID      string
	client     *http.Client
	fetchLimit int

	loader *ld.RFC7324CachingDocumentLoader
	proc   *ld.JsonLdProcessor
	opts   *ld.JsonLdOptions
}

// NewInbox creates a new Inbox controller.
func NewInbox(
	policy activities.Policy,
	st store.Store,
	followers subscriptions.Manager,
	queuer tasks.Queuer,
	storer tasks.Storer,
	signer tasks.Signer,
	keyID string,
	client *http.Client,
	fetchLimit int,
) *Inbox {
	loader := ld.NewRFC7324CachingDocumentLoader(client)
	opts := ld.NewJsonLdOptions("")
	opts.DocumentLoader = loader

	return &Inbox{
		policy:     policy,
		store:      st,
		followers:  followers,
		queuer:     queuer,
		storer:     storer,
		signer:     signer,
		keyID:      keyID,
		client:     client,
		fetchLimit: fetchLimit,
		loader:     loader,
		proc:       ld.NewJsonLdProcessor(),
		opts:       opts,
	}
}

func errorResponse(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	w.WriteHeader(statusCode)
	_, writeErr := w.Write([]byte(err.Error()))
	if writeErr != nil {
		log.Printf("error writing response: %v\n", writeErr)
	}
}

// statusForError maps rejection classes to HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, activities.ErrInvalidIdentity),
		errors.Is(err, activities.ErrActorNotInCommunity),
		errors.Is(err, activities.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, fetch.ErrUnreachablePeer):
		return http.StatusBadGateway
	case errors.Is(err, activities.ErrMalformedEnvelope),
		errors.Is(err, activities.ErrNotPublic),
		errors.Is(err, activities.ErrActorMismatch),
		errors.Is(err, activities.ErrInvalidTarget),
		errors.Is(err, fetch.ErrBudgetExhausted),
		errors.Is(err, fetch.ErrUnexpectedType),
		errors.Is(err, fetch.ErrIdentityMismatch):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (i *Inbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxActivitySz)
	bodyBytes, err := ioutil.ReadAll(body)
	if err != nil {
		errorResponse(w, r, http.StatusNotAcceptable, errors.New("could not read request body"))
		return
	}

	activity, err := activities.DecodeActivity(bodyBytes)
	if errors.Is(err, activities.ErrUnsupportedActivity) {
		// Some peers deliver expanded or exotically contexted
		// documents; try to normalize before giving up.
		activity, err = i.expandAndDecode(bodyBytes)
		if errors.Is(err, activities.ErrUnsupportedActivity) || errors.Is(err, ErrNotCompact) {
			// Unknown kinds are acknowledged, not failed, so newer
			// peers keep federating with us.
			log.Printf("ignoring unsupported activity: %v\n", err)
			w.WriteHeader(http.StatusAccepted)
			return
		}
	}
	if err != nil {
		errorResponse(w, r, statusForError(err), err)
		return
	}

	budget := i.fetchLimit
	fc := &activities.Context{
		Policy:    i.policy,
		Store:     i.store,
		Resolver:  fetch.NewResolver(i.client, i.store, i.policy.CheckURL),
		Followers: i.followers,
		Queuer:    i.queuer,
		Storer:    i.storer,
		Signer:    i.signer,
		KeyID:     i.keyID,
		Client:    i.client,
	}

	if err := activity.Verify(r.Context(), fc, &budget); err != nil {
		log.Printf("rejected activity %s: %v\n", activity.Identity(), err)
		errorResponse(w, r, statusForError(err), err)
		return
	}

	if err := activity.Receive(r.Context(), fc, &budget); err != nil {
		log.Printf("could not apply activity %s: %v\n", activity.Identity(), err)
		errorResponse(w, r, http.StatusInternalServerError, errors.New("could not apply activity"))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// expandAndDecode runs JSON-LD expansion on a document that did not
// decode directly and rebuilds the few variants whose expanded form we
// accept: Follow and Undo-of-Follow.
func (i *Inbox) expandAndDecode(bodyBytes []byte) (activities.Activity, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", activities.ErrMalformedEnvelope, err)
	}

	expanded, err := i.proc.Expand(raw, i.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", activities.ErrMalformedEnvelope, err)
	}
	if len(expanded) != 1 {
		return nil, fmt.Errorf("%w: %d top-level nodes", ErrNotCompact, len(expanded))
	}
	node, ok := expanded[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: top-level node is not an object", ErrNotCompact)
	}

	switch {
	case hasType(node, followIRI):
		follow, err := followFromExpanded(node)
		if err != nil {
			return nil, err
		}
		return follow, nil
	case hasType(node, undoIRI):
		object, ok := firstValue(node, objectIRI).(map[string]interface{})
		if !ok || !hasType(object, followIRI) {
			return nil, fmt.Errorf("%w: expanded undo", activities.ErrUnsupportedActivity)
		}
		follow, err := followFromExpanded(object)
		if err != nil {
			return nil, err
		}
		return &activities.UndoFollow{
			Actor:  nodeID(node, actorIRI),
			Object: *follow,
			Kind:   activities.KindUndo,
			ID:     nodeSelfID(node),
		}, nil
	}
	return nil, fmt.Errorf("%w: expanded form", activities.ErrUnsupportedActivity)
}

func followFromExpanded(node map[string]interface{}) (*activities.Follow, error) {
	follow := &activities.Follow{
		Actor:  nodeID(node, actorIRI),
		Object: nodeID(node, objectIRI),
		Kind:   activities.KindFollow,
		ID:     nodeSelfID(node),
	}
	if follow.ID == "" || follow.Actor == "" || follow.Object == "" {
		return nil, fmt.Errorf("%w: expanded follow is incomplete", activities.ErrMalformedEnvelope)
	}
	return follow, nil
}

func hasType(node map[string]interface{}, iri string) bool {
	types, ok := node["@type"].([]interface{})
	if !ok {
		return false
	}
	for _, t := range types {
		if s, ok := t.(string); ok && s == iri {
			return true
		}
	}
	return false
}

func firstValue(node map[string]interface{}, key string) interface{} {
	values, ok := node[key].([]interface{})
	if !ok || len(values) == 0 {
		return nil
	}
	return values[0]
}

func nodeSelfID(node map[string]interface{}) string {
	id, _ := node["@id"].(string)
	return id
}

// nodeID extracts the @id of the first value of an expanded property,
// accepting both node references and bare strings.
func nodeID(node map[string]interface{}, key string) string {
	switch v := firstValue(node, key).(type) {
	case string:
		return v
	case map[string]interface{}:
		id, _ := v["@id"].(string)
		return id
	}
	return ""
}
