package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision is the vote an authenticator casts for a request.
type AuthDecision int

const (
	// Yes: credentials are valid. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No: credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain: the authenticator does not understand the credentials.
	// The chain moves on.
	Abstain
)

func (d AuthDecision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abstain:
		return "abstain"
	}
	return "unknown"
}

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // set when Decision == Yes
	Err      error     // set when Decision == No
}

// Identity is an authenticated caller of the gateway.
type Identity struct {
	// Subject is the unique caller identifier (required).
	Subject string

	// ServiceTier selects the rate limit bucket.
	ServiceTier string

	Scopes []string

	// Metadata carries provider-specific data. "tenant_id" scopes
	// conversion history.
	Metadata map[string]string
}

// AnonymousSubject is the subject given to callers admitted by a default Yes.
const AnonymousSubject = "anonymous"

// TenantID returns the tenant identifier from metadata, or empty string.
func (id *Identity) TenantID() string {
	if id == nil || id.Metadata == nil {
		return ""
	}
	return id.Metadata["tenant_id"]
}

// Authenticator examines request credentials and returns a vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain evaluates authenticators in order. The first Yes or No wins;
// when all abstain DefaultDecision applies.
type AuthChain struct {
	Authenticators []Authenticator

	// DefaultDecision is Yes for open gateways and No when credentials
	// are mandatory.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain against r.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		if result := authn.Authenticate(ctx, r); result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: AnonymousSubject, ServiceTier: "default"},
		}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}

type identityKey struct{}

// ContextWithIdentity attaches the caller's identity to ctx.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity set by Middleware, or nil when
// the request was not authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
