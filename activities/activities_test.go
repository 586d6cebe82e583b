package activities

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"

	"github.com/parleysocial/parley/fetch"
	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/store"
	"github.com/parleysocial/parley/subscriptions"
	"github.com/parleysocial/parley/tasks"
)

const (
	testLocalHost  = "local.example.com"
	testRemoteHost = "remote.example.com"

	communityIRI  = "https://remote.example.com/c/golang"
	moderatorsIRI = "https://remote.example.com/c/golang/moderators"
	aliceIRI      = "https://remote.example.com/u/alice"
	bobIRI        = "https://remote.example.com/u/bob"
	carolIRI      = "https://remote.example.com/u/carol"
	postIRI       = "https://remote.example.com/post/1"
)

// scriptedTransport serves canned documents by URL and counts every
// request so tests can assert on fetch behavior.
type scriptedTransport struct {
	mu    sync.Mutex
	docs  map[string]string
	calls int
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	doc, ok := s.docs[req.URL.String()]
	if !ok {
		return nil, fmt.Errorf("unexpected fetch of %s", req.URL.String())
	}

	header := make(http.Header)
	header.Add("Content-Type", "application/activity+json")
	return &http.Response{
		Status:     http.StatusText(http.StatusOK),
		StatusCode: http.StatusOK,
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

func newTestContext(st store.Store, transport http.RoundTripper) *Context {
	client := &http.Client{Transport: transport}
	policy := Policy{Scheme: "https", Hostname: testLocalHost}
	return &Context{
		Policy:    policy,
		Store:     st,
		Resolver:  fetch.NewResolver(client, st, policy.CheckURL),
		Followers: subscriptions.NewMemManager(),
		Queuer:    tasks.NewMemoryQueue(),
		Storer:    tasks.NewMemoryStorage(),
		Client:    client,
	}
}

// seededStore returns a store with a remote community, its members
// alice (moderator), bob, and carol, and one post by bob.
func seededStore() *store.MemStore {
	st := store.NewMemStore()
	_ = st.UpsertCommunity(&models.Community{
		ID:          communityIRI,
		Inbox:       communityIRI + "/inbox",
		SharedInbox: "https://remote.example.com/inbox",
		Followers:   communityIRI + "/followers",
		Moderators:  moderatorsIRI,
	})
	for _, person := range []string{aliceIRI, bobIRI, carolIRI} {
		_ = st.UpsertPerson(&models.Person{
			ID:          person,
			Inbox:       person + "/inbox",
			SharedInbox: "https://remote.example.com/inbox",
		})
		_ = st.AddMember(communityIRI, person)
	}
	_ = st.JoinModerators(communityIRI, aliceIRI)
	_ = st.UpsertPost(&models.Post{
		ID:           postIRI,
		AttributedTo: bobIRI,
		Community:    communityIRI,
		Name:         "a post",
	})
	return st
}

// commentFixture returns a comment by carol in the seeded community.
func commentFixture(id string) *models.Comment {
	return &models.Comment{
		ID:           id,
		AttributedTo: carolIRI,
		Community:    communityIRI,
		InReplyTo:    postIRI,
		Content:      "a comment",
	}
}

func remoteActivityID(kind string) string {
	return fmt.Sprintf("https://%s/activities/%s/some-id", testRemoteHost, strings.ToLower(kind))
}
