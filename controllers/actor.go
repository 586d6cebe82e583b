package controllers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/parleysocial/parley/keystore"
	"github.com/parleysocial/parley/store"
)

// Actor serves the actor documents of local people and communities so
// peers can dereference them.
type Actor struct {
	Scheme, Domain string
	Store          store.Store
	Keys           *keystore.Store
}

// NewActor creates a new Actor controller.
func NewActor(scheme, domain string, st store.Store, keys *keystore.Store) Actor {
	return Actor{
		Scheme: scheme,
		Domain: domain,
		Store:  st,
		Keys:   keys,
	}
}

func (a Actor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := a.routeURL(r.URL.Path).String()

	var doc map[string]interface{}
	if person, ok := a.Store.Person(id); ok && person.Local {
		doc = map[string]interface{}{
			"type":              "Person",
			"preferredUsername": person.PreferredUsername,
			"inbox":             person.Inbox,
			"endpoints": map[string]interface{}{
				"sharedInbox": a.routeURL("/inbox").String(),
			},
		}
	} else if community, ok := a.Store.Community(id); ok && community.Local {
		doc = map[string]interface{}{
			"type":              "Group",
			"preferredUsername": community.PreferredUsername,
			"inbox":             community.Inbox,
			"followers":         community.Followers,
			"attributedTo":      community.Moderators,
			"endpoints": map[string]interface{}{
				"sharedInbox": a.routeURL("/inbox").String(),
			},
		}
	} else {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	doc["@context"] = []string{
		"https://www.w3.org/ns/activitystreams",
		"https://w3id.org/security/v1",
	}
	doc["id"] = id
	doc["publicKey"] = map[string]interface{}{
		"id":           id + "#main-key",
		"owner":        id,
		"publicKeyPem": string(a.Keys.PubKeyPem()),
	}

	b, err := json.Marshal(doc)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/activity+json")
	_, _ = w.Write(b)
}

func (a Actor) routeURL(path string) *url.URL {
	return &url.URL{
		Scheme: a.Scheme,
		Host:   a.Domain,
		Path:   path,
	}
}
