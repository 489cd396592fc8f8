// Package noop provides an authenticator that admits every request as the
// anonymous caller. It backs auth.type "none".
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/scoregate/pkg/auth"
)

// Authenticator always votes Yes.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     auth.AnonymousSubject,
			ServiceTier: "default",
		},
	}
}
