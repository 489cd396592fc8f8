// Package auth provides pluggable authentication and rate limiting for the
// scoregate HTTP surface.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from the
// conversion engine. The middleware also injects the tenant identity into
// the request context so conversion history is scoped per tenant.
package auth
