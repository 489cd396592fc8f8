package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/scoregate/pkg/api"
	"github.com/rhuss/scoregate/pkg/debug"
	"github.com/rhuss/scoregate/pkg/observability"
	"github.com/rhuss/scoregate/pkg/storage"
	"github.com/rhuss/scoregate/pkg/transport"
)

// Middleware creates HTTP middleware from an AuthChain and optional RateLimiter.
// It checks the bypass list, runs authentication, injects tenant context,
// and optionally enforces rate limits.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			debug.Log("auth", "chain decision", "decision", result.Decision.String(), "path", r.URL.Path)

			if result.Decision == No {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				writeUnauthorized(w)
				return
			}

			if result.Decision != Yes || result.Identity == nil {
				writeUnauthorized(w)
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			debug.Log("auth", "authenticated", "subject", result.Identity.Subject, "tier", result.Identity.ServiceTier)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", result.Identity.ServiceTier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(tierOf(result.Identity)).Inc()
					w.Header().Set("Retry-After", "60")
					transport.WriteAPIError(w, &api.APIError{
						Type:    api.ErrorTypeTooManyRequests,
						Message: "rate limit exceeded",
					})
					return
				}
			}

			ctx := ContextWithIdentity(r.Context(), result.Identity)

			if tenantID := result.Identity.TenantID(); tenantID != "" {
				ctx = storage.WithTenant(ctx, tenantID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="scoregate"`)
	transport.WriteAPIError(w, &api.APIError{
		Type:    api.ErrorTypeUnauthorized,
		Message: "authentication required",
	})
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/health", "/healthz", "/metrics"}
