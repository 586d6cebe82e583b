package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/store"
)

const maxDocumentSz = 1 << 20 // 1 MB

// ErrBudgetExhausted is returned once an inbound activity has used up
// its allowance of network fetches.
var ErrBudgetExhausted = errors.New("fetch budget exhausted")

// ErrUnreachablePeer is returned when the remote server cannot be
// reached or answers with an error status.
var ErrUnreachablePeer = errors.New("peer unreachable")

// ErrUnexpectedType is returned when the fetched document does not have
// the structural shape the caller asked for.
var ErrUnexpectedType = errors.New("unexpected entity type")

// ErrIdentityMismatch is returned when a document claims an id other
// than the locator it was fetched from.
var ErrIdentityMismatch = errors.New("document id does not match its locator")

// Resolver dereferences remote identifiers into entities. One Resolver
// serves exactly one inbound activity: its cache guarantees that
// resolving the same identifier twice costs one fetch, and nothing is
// shared across concurrently processed activities.
type Resolver struct {
	client   *http.Client
	store    store.Store
	checkURL func(iri string) error
	cache    map[string]interface{}
}

// NewResolver builds a resolver for one processing session. checkURL is
// the site-wide allow/deny policy applied before any network request.
func NewResolver(client *http.Client, st store.Store, checkURL func(string) error) *Resolver {
	return &Resolver{
		client:   client,
		store:    st,
		checkURL: checkURL,
		cache:    make(map[string]interface{}),
	}
}

func (r *Resolver) get(ctx context.Context, iri string, budget *int) ([]byte, error) {
	if err := r.checkURL(iri); err != nil {
		return nil, err
	}
	if *budget <= 0 {
		return nil, fmt.Errorf("%w: cannot fetch %s", ErrBudgetExhausted, iri)
	}
	*budget--

	req, err := http.NewRequest(http.MethodGet, iri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachablePeer, err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/activity+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachablePeer, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode > 399 {
		return nil, fmt.Errorf("%w: %s answered %d", ErrUnreachablePeer, iri, resp.StatusCode)
	}

	body, err := ioutil.ReadAll(http.MaxBytesReader(nil, resp.Body, maxDocumentSz))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachablePeer, err)
	}
	return body, nil
}

type personDoc struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	PreferredUsername string `json:"preferredUsername"`
	Inbox             string `json:"inbox"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	PublicKey struct {
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

type groupDoc struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	PreferredUsername string `json:"preferredUsername"`
	Inbox             string `json:"inbox"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	Followers    string `json:"followers"`
	AttributedTo string `json:"attributedTo"`
}

type contentDoc struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	AttributedTo string     `json:"attributedTo"`
	Audience     string     `json:"audience"`
	InReplyTo    string     `json:"inReplyTo"`
	Name         string     `json:"name"`
	Content      string     `json:"content"`
	Published    *time.Time `json:"published"`
}

// Person resolves iri to a person. Known local or previously resolved
// entities are returned without spending budget.
func (r *Resolver) Person(ctx context.Context, iri string, budget *int) (*models.Person, error) {
	if p, ok := r.store.Person(iri); ok {
		return p, nil
	}
	if cached, ok := r.cache[iri]; ok {
		p, ok := cached.(*models.Person)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a person", ErrUnexpectedType, iri)
		}
		return p, nil
	}

	body, err := r.get(ctx, iri, budget)
	if err != nil {
		return nil, err
	}
	var doc personDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedType, err)
	}
	if doc.Type != "Person" {
		return nil, fmt.Errorf("%w: %s is %q, wanted Person", ErrUnexpectedType, iri, doc.Type)
	}
	if doc.ID != iri {
		return nil, fmt.Errorf("%w: %s claims id %s", ErrIdentityMismatch, iri, doc.ID)
	}

	p := &models.Person{
		ID:                doc.ID,
		PreferredUsername: doc.PreferredUsername,
		Inbox:             doc.Inbox,
		SharedInbox:       doc.Endpoints.SharedInbox,
		PublicKeyPem:      doc.PublicKey.PublicKeyPem,
	}
	if err := r.store.UpsertPerson(p); err != nil {
		return nil, err
	}
	r.cache[iri] = p
	return p, nil
}

// Community resolves iri to a community.
func (r *Resolver) Community(ctx context.Context, iri string, budget *int) (*models.Community, error) {
	if c, ok := r.store.Community(iri); ok {
		return c, nil
	}
	if cached, ok := r.cache[iri]; ok {
		c, ok := cached.(*models.Community)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a community", ErrUnexpectedType, iri)
		}
		return c, nil
	}

	body, err := r.get(ctx, iri, budget)
	if err != nil {
		return nil, err
	}
	var doc groupDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedType, err)
	}
	if doc.Type != "Group" {
		return nil, fmt.Errorf("%w: %s is %q, wanted Group", ErrUnexpectedType, iri, doc.Type)
	}
	if doc.ID != iri {
		return nil, fmt.Errorf("%w: %s claims id %s", ErrIdentityMismatch, iri, doc.ID)
	}

	c := &models.Community{
		ID:                doc.ID,
		PreferredUsername: doc.PreferredUsername,
		Inbox:             doc.Inbox,
		SharedInbox:       doc.Endpoints.SharedInbox,
		Followers:         doc.Followers,
		Moderators:        doc.AttributedTo,
	}
	if err := r.store.UpsertCommunity(c); err != nil {
		return nil, err
	}
	r.cache[iri] = c
	return c, nil
}

// PostOrComment resolves iri to a post (Page) or comment (Note).
func (r *Resolver) PostOrComment(ctx context.Context, iri string, budget *int) (*models.PostOrComment, error) {
	if p, ok := r.store.Post(iri); ok {
		return &models.PostOrComment{Post: p}, nil
	}
	if c, ok := r.store.Comment(iri); ok {
		return &models.PostOrComment{Comment: c}, nil
	}
	if cached, ok := r.cache[iri]; ok {
		pc, ok := cached.(*models.PostOrComment)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a post or comment", ErrUnexpectedType, iri)
		}
		return pc, nil
	}

	body, err := r.get(ctx, iri, budget)
	if err != nil {
		return nil, err
	}
	var doc contentDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedType, err)
	}
	if doc.ID != iri {
		return nil, fmt.Errorf("%w: %s claims id %s", ErrIdentityMismatch, iri, doc.ID)
	}

	var pc *models.PostOrComment
	switch doc.Type {
	case "Page":
		post := &models.Post{
			ID:           doc.ID,
			AttributedTo: doc.AttributedTo,
			Community:    doc.Audience,
			Name:         doc.Name,
			Content:      doc.Content,
		}
		if doc.Published != nil {
			post.Published = *doc.Published
		}
		if err := r.store.UpsertPost(post); err != nil {
			return nil, err
		}
		pc = &models.PostOrComment{Post: post}
	case "Note":
		comment := &models.Comment{
			ID:           doc.ID,
			AttributedTo: doc.AttributedTo,
			Community:    doc.Audience,
			InReplyTo:    doc.InReplyTo,
			Content:      doc.Content,
		}
		if doc.Published != nil {
			comment.Published = *doc.Published
		}
		if err := r.store.UpsertComment(comment); err != nil {
			return nil, err
		}
		pc = &models.PostOrComment{Comment: comment}
	default:
		return nil, fmt.Errorf("%w: %s is %q, wanted Page or Note", ErrUnexpectedType, iri, doc.Type)
	}

	r.cache[iri] = pc
	return pc, nil
}
