package activities

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/parleysocial/parley/models"
	"github.com/parleysocial/parley/tasks"
)

// asContext is the @context stamped onto every outbound document.
var asContext = []string{
	"https://www.w3.org/ns/activitystreams",
	"https://w3id.org/security/v1",
}

// GenerateActivityID mints a globally unique, URL-shaped activity id
// under this instance's hostname. Ids are assigned exactly once, at
// construction, and never reassigned.
func GenerateActivityID(kind, scheme, host string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	u := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   fmt.Sprintf("/activities/%s/%s", strings.ToLower(kind), id.String()),
	}
	return u.String(), nil
}

// marshalWithContext serializes an outbound activity and prepends the
// @context envelope wrapper.
func marshalWithContext(act Activity) ([]byte, error) {
	body, err := json.Marshal(act)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	rawCtx, err := json.Marshal(asContext)
	if err != nil {
		return nil, err
	}
	m["@context"] = rawCtx
	return json.Marshal(m)
}

// Dispatch hands one activity to the delivery transport, one queued
// task per inbox. Delivery is fire and forget from here: retries and
// backoff belong to whoever drains the queue.
func (fc *Context) Dispatch(act Activity, inboxes []url.URL) error {
	body, err := marshalWithContext(act)
	if err != nil {
		return err
	}

	seen := make(map[url.URL]bool)
	for _, inbox := range inboxes {
		if seen[inbox] {
			continue
		}
		seen[inbox] = true

		taskID, err := tasks.NewTaskID()
		if err != nil {
			return err
		}
		deliver := &tasks.Deliver{
			TaskID:   taskID,
			Activity: body,
			Target:   inbox,
			KeyID:    fc.KeyID,
			Signer:   fc.Signer,
			Client:   fc.Client,
		}
		if !fc.Storer.Put(deliver, taskID) {
			return fmt.Errorf("could not store delivery for %s", inbox.String())
		}
		if !fc.Queuer.Enqueue(taskID) {
			return fmt.Errorf("could not enqueue delivery for %s", inbox.String())
		}
		log.Printf("queued delivery of %s to %s", act.Identity(), inbox.String())
	}
	return nil
}

// SendActivityInCommunity routes a community-scoped activity. A local
// community announces it to its followers under the community's own
// identity; for a remote community the bare activity goes to the
// community's shared inbox and the community relays it from there.
// extra lists additional direct recipients, such as a removed
// moderator's own inbox.
func (fc *Context) SendActivityInCommunity(act Activity, community *models.Community, extra []url.URL) error {
	if !community.Local {
		inbox, err := url.Parse(community.SharedInboxOrInbox())
		if err != nil {
			return err
		}
		return fc.Dispatch(act, append(extra, *inbox))
	}

	announce, err := NewAnnounce(community, act, fc.Policy.Scheme, fc.Policy.Hostname)
	if err != nil {
		return err
	}
	inboxes := append(fc.Followers.List(community.ID), extra...)
	return fc.Dispatch(announce, inboxes)
}

// SendAddMod builds and routes a moderator grant.
func (fc *Context) SendAddMod(community *models.Community, addedMod, actor *models.Person) error {
	add, err := NewAddMod(community, addedMod, actor, fc.Policy.Scheme, fc.Policy.Hostname)
	if err != nil {
		return err
	}
	return fc.sendToCommunityAnd(add, community, addedMod)
}

// SendRemoveMod builds and routes a moderator revocation.
func (fc *Context) SendRemoveMod(community *models.Community, removedMod, actor *models.Person) error {
	remove, err := NewRemoveMod(community, removedMod, actor, fc.Policy.Scheme, fc.Policy.Hostname)
	if err != nil {
		return err
	}
	return fc.sendToCommunityAnd(remove, community, removedMod)
}

// SendVote builds and routes a vote on object.
func (fc *Context) SendVote(object *models.PostOrComment, actor *models.Person, community *models.Community, kind string) error {
	vote, err := NewVote(actor, object, kind, fc.Policy.Scheme, fc.Policy.Hostname)
	if err != nil {
		return err
	}
	return fc.SendActivityInCommunity(vote, community, nil)
}

// SendUndoVote builds and routes a retraction of actor's vote on
// object. The retraction reconstructs the vote it cancels.
func (fc *Context) SendUndoVote(object *models.PostOrComment, actor *models.Person, community *models.Community, kind string) error {
	vote, err := NewVote(actor, object, kind, fc.Policy.Scheme, fc.Policy.Hostname)
	if err != nil {
		return err
	}
	undo, err := NewUndoVote(actor, vote, fc.Policy.Scheme, fc.Policy.Hostname)
	if err != nil {
		return err
	}
	return fc.SendActivityInCommunity(undo, community, nil)
}

// SendFollow delivers a follow straight to the community's inbox.
func (fc *Context) SendFollow(actor *models.Person, community *models.Community) error {
	follow, err := NewFollow(actor, community, fc.Policy.Scheme, fc.Policy.Hostname)
	if err != nil {
		return err
	}
	inbox, err := url.Parse(community.SharedInboxOrInbox())
	if err != nil {
		return err
	}
	return fc.Dispatch(follow, []url.URL{*inbox})
}

func (fc *Context) sendToCommunityAnd(act Activity, community *models.Community, direct *models.Person) error {
	var extra []url.URL
	if inbox, err := url.Parse(direct.SharedInboxOrInbox()); err == nil && inbox.Host != "" {
		extra = append(extra, *inbox)
	}
	return fc.SendActivityInCommunity(act, community, extra)
}
