package main

import (
	"fmt"

	"github.com/rhuss/scoregate/pkg/auth"
	"github.com/rhuss/scoregate/pkg/auth/apikey"
	"github.com/rhuss/scoregate/pkg/auth/jwt"
	"github.com/rhuss/scoregate/pkg/auth/noop"
	"github.com/rhuss/scoregate/pkg/config"
)

// buildAuth assembles the authenticator chain and rate limiter for cfg.
// A nil chain means requests are not authenticated at all.
func buildAuth(cfg config.AuthConfig) (*auth.AuthChain, auth.RateLimiter, error) {
	var chain *auth.AuthChain

	switch cfg.Type {
	case "none", "":
		if !rateLimited(cfg.RateLimit) {
			return nil, nil, nil
		}
		// Anonymous callers still share the default tier's limit.
		chain = &auth.AuthChain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}
	case "apikey":
		chain = &auth.AuthChain{
			Authenticators:  []auth.Authenticator{apikey.FromConfig(cfg.APIKeys)},
			DefaultDecision: auth.No,
		}
	case "jwt":
		j := cfg.JWT
		chain = &auth.AuthChain{
			Authenticators: []auth.Authenticator{jwt.New(jwt.Config{
				Issuer:      j.Issuer,
				Audience:    j.Audience,
				Secret:      []byte(j.Secret),
				JWKSURL:     j.JWKSURL,
				UserClaim:   j.UserClaim,
				TenantClaim: j.TenantClaim,
				TierClaim:   j.TierClaim,
			})},
			DefaultDecision: auth.No,
		}
	default:
		return nil, nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	if !rateLimited(cfg.RateLimit) {
		return chain, nil, nil
	}

	tiers := make(map[string]auth.TierConfig, len(cfg.RateLimit.Tiers))
	for name, rpm := range cfg.RateLimit.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
	}
	return chain, auth.NewInProcessLimiter(tiers, cfg.RateLimit.DefaultRPM), nil
}

func rateLimited(cfg config.RateLimitConfig) bool {
	if cfg.DefaultRPM > 0 {
		return true
	}
	for _, rpm := range cfg.Tiers {
		if rpm > 0 {
			return true
		}
	}
	return false
}
