package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/store"
)

type scriptedTransport struct {
	mu     sync.Mutex
	docs   map[string]string
	status int
	calls  int
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	doc, ok := s.docs[req.URL.String()]
	if !ok {
		return nil, fmt.Errorf("unexpected fetch of %s", req.URL.String())
	}

	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	header := make(http.Header)
	header.Add("Content-Type", "application/activity+json")
	return &http.Response{
		Status:     http.StatusText(status),
		StatusCode: status,
		Proto:      req.Proto,
		ProtoMajor: req.ProtoMajor,
		ProtoMinor: req.ProtoMinor,
		Request:    req,
		Header:     header,
		Body:       ioutil.NopCloser(strings.NewReader(doc)),
	}, nil
}

func (s *scriptedTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func allowAll(string) error { return nil }

func newResolver(st store.Store, transport http.RoundTripper, checkURL func(string) error) *Resolver {
	return NewResolver(&http.Client{Transport: transport}, st, checkURL)
}

func personDocJSON(id string) string {
	return fmt.Sprintf(
		`{"id":%q,"type":"Person","preferredUsername":"frank","inbox":%q,"endpoints":{"sharedInbox":"https://remote.example.com/inbox"}}`,
		id, id+"/inbox",
	)
}

func TestResolvingTwiceChargesBudgetOnce(t *testing.T) {
	t.Parallel()

	iri := "https://remote.example.com/u/frank"
	transport := &scriptedTransport{docs: map[string]string{iri: personDocJSON(iri)}}
	st := store.NewMemStore()
	r := newResolver(st, transport, allowAll)
	budget := 5

	first, err := r.Person(context.Background(), iri, &budget)
	if err != nil {
		t.Errorf("first resolve failed: %v", err)
		t.FailNow()
	}
	second, err := r.Person(context.Background(), iri, &budget)
	if err != nil {
		t.Errorf("second resolve failed: %v", err)
		t.FailNow()
	}

	if first.ID != iri || second.ID != iri {
		t.Errorf("resolved the wrong person: %s, %s", first.ID, second.ID)
	}
	if transport.callCount() != 1 {
		t.Errorf("two resolutions took %d fetches, wanted 1", transport.callCount())
	}
	if budget != 4 {
		t.Errorf("budget is %d, wanted 4", budget)
	}
	if first.SharedInbox != "https://remote.example.com/inbox" {
		t.Errorf("shared inbox not captured: %q", first.SharedInbox)
	}

	// The resolved entity is also persisted for future activities.
	if _, ok := st.Person(iri); !ok {
		t.Errorf("resolved person was not stored")
	}
}

func TestKnownEntitySpendsNoBudget(t *testing.T) {
	t.Parallel()

	iri := "https://remote.example.com/u/grace"
	st := store.NewMemStore()
	_ = st.UpsertPerson(&models.Person{ID: iri, Inbox: iri + "/inbox"})

	transport := &scriptedTransport{}
	r := newResolver(st, transport, allowAll)
	budget := 0

	person, err := r.Person(context.Background(), iri, &budget)
	if err != nil {
		t.Errorf("resolve failed: %v", err)
		t.FailNow()
	}
	if person.ID != iri {
		t.Errorf("resolved the wrong person: %s", person.ID)
	}
	if transport.callCount() != 0 {
		t.Errorf("known entity caused %d fetches", transport.callCount())
	}
}

func TestExhaustedBudgetBlocksFetching(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{}
	r := newResolver(store.NewMemStore(), transport, allowAll)
	budget := 0

	_, err := r.Person(context.Background(), "https://remote.example.com/u/frank", &budget)
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("got %v, wanted %v", err, ErrBudgetExhausted)
	}
	if transport.callCount() != 0 {
		t.Errorf("exhausted budget still caused %d fetches", transport.callCount())
	}
}

// A document claiming an id other than the locator it came from is a
// spoofing attempt and must not be stored.
func TestIdentityMismatchRejected(t *testing.T) {
	t.Parallel()

	iri := "https://remote.example.com/u/frank"
	transport := &scriptedTransport{docs: map[string]string{
		iri: personDocJSON("https://remote.example.com/u/mallory"),
	}}
	st := store.NewMemStore()
	r := newResolver(st, transport, allowAll)
	budget := 5

	_, err := r.Person(context.Background(), iri, &budget)
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Errorf("got %v, wanted %v", err, ErrIdentityMismatch)
	}
	if _, ok := st.Person(iri); ok {
		t.Errorf("spoofed document was stored under the requested id")
	}
	if _, ok := st.Person("https://remote.example.com/u/mallory"); ok {
		t.Errorf("spoofed document was stored under its claimed id")
	}
}

func TestWrongShapeRejected(t *testing.T) {
	t.Parallel()

	iri := "https://remote.example.com/u/frank"
	transport := &scriptedTransport{docs: map[string]string{iri: personDocJSON(iri)}}
	r := newResolver(store.NewMemStore(), transport, allowAll)
	budget := 5

	// The document at the IRI is a Person; asking for a community must
	// fail.
	_, err := r.Community(context.Background(), iri, &budget)
	if !errors.Is(err, ErrUnexpectedType) {
		t.Errorf("got %v, wanted %v", err, ErrUnexpectedType)
	}
}

func TestErrorStatusIsUnreachablePeer(t *testing.T) {
	t.Parallel()

	iri := "https://remote.example.com/u/frank"
	transport := &scriptedTransport{
		docs:   map[string]string{iri: "gateway timeout"},
		status: http.StatusGatewayTimeout,
	}
	r := newResolver(store.NewMemStore(), transport, allowAll)
	budget := 5

	_, err := r.Person(context.Background(), iri, &budget)
	if !errors.Is(err, ErrUnreachablePeer) {
		t.Errorf("got %v, wanted %v", err, ErrUnreachablePeer)
	}
	// A failed fetch still spends its budget slot.
	if budget != 4 {
		t.Errorf("budget is %d, wanted 4", budget)
	}
}

func TestTransportFailureIsUnreachablePeer(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{}
	r := newResolver(store.NewMemStore(), transport, allowAll)
	budget := 5

	_, err := r.Person(context.Background(), "https://unreachable.example.com/u/frank", &budget)
	if !errors.Is(err, ErrUnreachablePeer) {
		t.Errorf("got %v, wanted %v", err, ErrUnreachablePeer)
	}
}

func TestPolicyRejectionBlocksFetching(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("host is blocked")
	transport := &scriptedTransport{}
	r := newResolver(store.NewMemStore(), transport, func(string) error { return wantErr })
	budget := 5

	_, err := r.Person(context.Background(), "https://blocked.example.com/u/frank", &budget)
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v, wanted %v", err, wantErr)
	}
	if transport.callCount() != 0 {
		t.Errorf("blocked host was fetched %d times", transport.callCount())
	}
	if budget != 5 {
		t.Errorf("policy rejection spent budget: %d remaining of 5", budget)
	}
}

func TestPostOrCommentShapes(t *testing.T) {
	t.Parallel()

	pageIRI := "https://remote.example.com/post/10"
	noteIRI := "https://remote.example.com/comment/10"
	transport := &scriptedTransport{docs: map[string]string{
		pageIRI: fmt.Sprintf(
			`{"id":%q,"type":"Page","attributedTo":"https://remote.example.com/u/frank","audience":"https://remote.example.com/c/golang","name":"a page"}`,
			pageIRI,
		),
		noteIRI: fmt.Sprintf(
			`{"id":%q,"type":"Note","attributedTo":"https://remote.example.com/u/frank","audience":"https://remote.example.com/c/golang","inReplyTo":%q,"content":"a note"}`,
			noteIRI, pageIRI,
		),
	}}
	st := store.NewMemStore()
	r := newResolver(st, transport, allowAll)
	budget := 5

	page, err := r.PostOrComment(context.Background(), pageIRI, &budget)
	if err != nil {
		t.Errorf("page resolve failed: %v", err)
		t.FailNow()
	}
	if page.Post == nil || page.Comment != nil {
		t.Errorf("page did not resolve to a post")
		t.FailNow()
	}
	if page.CommunityIRI() != "https://remote.example.com/c/golang" {
		t.Errorf("page community is %q", page.CommunityIRI())
	}

	note, err := r.PostOrComment(context.Background(), noteIRI, &budget)
	if err != nil {
		t.Errorf("note resolve failed: %v", err)
		t.FailNow()
	}
	if note.Comment == nil || note.Post != nil {
		t.Errorf("note did not resolve to a comment")
		t.FailNow()
	}
	if note.Comment.InReplyTo != pageIRI {
		t.Errorf("note reply target is %q", note.Comment.InReplyTo)
	}

	if _, ok := st.Post(pageIRI); !ok {
		t.Errorf("resolved post was not stored")
	}
	if _, ok := st.Comment(noteIRI); !ok {
		t.Errorf("resolved comment was not stored")
	}
}

func TestCommunityCarriesModeratorCollection(t *testing.T) {
	t.Parallel()

	iri := "https://remote.example.com/c/golang"
	transport := &scriptedTransport{docs: map[string]string{
		iri: fmt.Sprintf(
			`{"id":%q,"type":"Group","preferredUsername":"golang","inbox":%q,"followers":%q,"attributedTo":%q,"endpoints":{"sharedInbox":"https://remote.example.com/inbox"}}`,
			iri, iri+"/inbox", iri+"/followers", iri+"/moderators",
		),
	}}
	r := newResolver(store.NewMemStore(), transport, allowAll)
	budget := 5

	community, err := r.Community(context.Background(), iri, &budget)
	if err != nil {
		t.Errorf("resolve failed: %v", err)
		t.FailNow()
	}
	if community.Moderators != iri+"/moderators" {
		t.Errorf("moderator collection is %q", community.Moderators)
	}
	if community.Followers != iri+"/followers" {
		t.Errorf("follower collection is %q", community.Followers)
	}
}
