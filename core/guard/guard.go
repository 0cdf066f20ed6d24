// Package guard decides, before a screen is shown, whether the visitor may see it.
package guard

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
)

// Outcome of a navigation attempt.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
	Forbid
)

type Decision struct {
	Outcome  Outcome
	Location string // set for Redirect
}

// Resolver answers the session questions the guard needs.
type Resolver interface {
	IsAuthenticated(ctx context.Context) bool
	IsAdmin(ctx context.Context) bool
}

// SignOuter drops the stored credential.
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// Policy holds the redirect targets.
type Policy struct {
	Login     string
	UserHome  string
	AdminHome string
}

func (p Policy) validate() error {
	if p.Login == "" || p.UserHome == "" || p.AdminHome == "" {
		return errors.New("guard policy needs login, user home and admin home paths")
	}
	return nil
}

type Guard struct {
	table  Table
	policy Policy
}

func New(table Table, policy Policy) (*Guard, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Guard{table: table, policy: policy}, nil
}

func (g *Guard) Policy() Policy {
	return g.policy
}

// Decide evaluates one navigation to path.
func (g *Guard) Decide(ctx context.Context, path string, sess Resolver) Decision {
	switch g.table.Match(path) {
	case Public:
		return Decision{Outcome: Allow}
	case Guest:
		if !sess.IsAuthenticated(ctx) {
			return Decision{Outcome: Allow}
		}
		return Decision{Outcome: Redirect, Location: g.Home(ctx, sess)}
	case Admin:
		if !sess.IsAuthenticated(ctx) {
			return g.toLogin(path)
		}
		if !sess.IsAdmin(ctx) {
			return Decision{Outcome: Forbid}
		}
		return Decision{Outcome: Allow}
	default: // Authenticated
		if !sess.IsAuthenticated(ctx) {
			return g.toLogin(path)
		}
		return Decision{Outcome: Allow}
	}
}

// Home is where a signed-in visitor lands: the admin root for admins, the user home otherwise.
func (g *Guard) Home(ctx context.Context, sess Resolver) string {
	if sess.IsAdmin(ctx) {
		return g.policy.AdminHome
	}
	return g.policy.UserHome
}

// ForceLogout clears the credential, then sends the visitor to the login screen.
// Screens call it whenever the API answers 401 or 403.
func (g *Guard) ForceLogout(ctx context.Context, s SignOuter) (Decision, error) {
	if err := s.SignOut(ctx); err != nil {
		return Decision{}, errors.Wrap(err, "forced logout")
	}
	return Decision{Outcome: Redirect, Location: g.policy.Login}, nil
}

func (g *Guard) toLogin(next string) Decision {
	loc := g.policy.Login
	if next != "" && next != "/" {
		loc += "?next=" + url.QueryEscape(next)
	}
	return Decision{Outcome: Redirect, Location: loc}
}
