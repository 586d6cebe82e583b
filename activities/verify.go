package activities

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/parleysocial/parley/models"
)

// ErrInvalidIdentity is returned when an activity id fails the
// site-wide federation policy.
var ErrInvalidIdentity = errors.New("activity id fails federation policy")

// ErrNotPublic is returned when a variant that must broadcast publicly
// lacks public addressing.
var ErrNotPublic = errors.New("activity is not publicly addressed")

// ErrActorNotInCommunity is returned when the acting entity is not a
// member of the community the activity applies to.
var ErrActorNotInCommunity = errors.New("actor is not a member of the community")

// ErrNotAuthorized is returned when the acting entity lacks the
// standing the variant requires (moderator or author).
var ErrNotAuthorized = errors.New("actor is not authorized for this action")

// ErrActorMismatch is returned when a wrapper activity claims a
// different actor than the activity it wraps.
var ErrActorMismatch = errors.New("nested activity actor differs from outer actor")

// ErrInvalidTarget is returned when a mod action's target is not the
// community's moderator collection.
var ErrInvalidTarget = errors.New("target is not the community moderator collection")

// Policy is the site-wide federation allow/deny configuration.
type Policy struct {
	Scheme   string
	Hostname string
	Allowed  []string
	Blocked  []string
}

// CheckURL rejects identifiers that the instance refuses to federate
// with: malformed URLs, wrong scheme, loopback hosts, blocked hosts,
// and hosts outside a non-empty allowlist.
func (p Policy) CheckURL(iri string) error {
	u, err := url.Parse(iri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if u.Scheme != p.Scheme || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidIdentity, iri)
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return fmt.Errorf("%w: loopback host in %s", ErrInvalidIdentity, iri)
	}
	for _, blocked := range p.Blocked {
		if host == blocked {
			return fmt.Errorf("%w: %s is blocked", ErrInvalidIdentity, host)
		}
	}
	if len(p.Allowed) > 0 && host != p.Hostname {
		for _, allowed := range p.Allowed {
			if host == allowed {
				return nil
			}
		}
		return fmt.Errorf("%w: %s is not on the allowlist", ErrInvalidIdentity, host)
	}
	return nil
}

// verifyIdentity checks an inbound activity's own id: it must satisfy
// the federation policy and must not claim to originate here.
func (fc *Context) verifyIdentity(id string) error {
	if err := fc.Policy.CheckURL(id); err != nil {
		return err
	}
	u, err := url.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if u.Hostname() == fc.Policy.Hostname {
		return fmt.Errorf("%w: %s claims local origin", ErrInvalidIdentity, id)
	}
	return nil
}

// verifyIsPublic requires public addressing in either to or cc.
func verifyIsPublic(to, cc Audience) error {
	if to.Contains(Public) || cc.Contains(Public) {
		return nil
	}
	return ErrNotPublic
}

// verifyURLsMatch rejects wrappers whose claimed actor differs from the
// wrapped activity's actor.
func verifyURLsMatch(outer, inner string) error {
	if outer != inner {
		return fmt.Errorf("%w: %s vs %s", ErrActorMismatch, outer, inner)
	}
	return nil
}

// verifyPersonInCommunity resolves the actor and confirms membership.
func (fc *Context) verifyPersonInCommunity(ctx context.Context, actor string, community *models.Community, budget *int) error {
	person, err := fc.Resolver.Person(ctx, actor, budget)
	if err != nil {
		return err
	}
	if !fc.Store.IsMember(community.ID, person.ID) {
		return fmt.Errorf("%w: %s in %s", ErrActorNotInCommunity, person.ID, community.ID)
	}
	return nil
}

// verifyModAction confirms the actor currently holds moderator
// standing in the community.
func (fc *Context) verifyModAction(ctx context.Context, actor string, community *models.Community, budget *int) error {
	person, err := fc.Resolver.Person(ctx, actor, budget)
	if err != nil {
		return err
	}
	if !fc.Store.IsModerator(community.ID, person.ID) {
		return fmt.Errorf("%w: %s does not moderate %s", ErrNotAuthorized, person.ID, community.ID)
	}
	return nil
}

// verifyModTarget checks that a mod action names the community's own
// moderator collection.
func verifyModTarget(target string, community *models.Community) error {
	if community.Moderators == "" || target != community.Moderators {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, target)
	}
	return nil
}

// communityFromModeratorsURL derives the community a mod action applies
// to from its target, the moderator collection URL.
func (fc *Context) communityFromModeratorsURL(ctx context.Context, target string, budget *int) (*models.Community, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: bad target %q", ErrMalformedEnvelope, target)
	}
	u.Path = path.Dir(u.Path)
	u.Fragment = ""
	u.RawQuery = ""
	return fc.Resolver.Community(ctx, u.String(), budget)
}
