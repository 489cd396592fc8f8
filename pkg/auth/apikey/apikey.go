// Package apikey authenticates callers by static API keys. Keys are held
// only as SHA-256 hashes and compared in constant time.
//
// A key is accepted from "Authorization: Bearer <key>" or from the
// X-API-Key header used by simple upload clients.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/rhuss/scoregate/pkg/auth"
	"github.com/rhuss/scoregate/pkg/config"
)

// HeaderName is the alternative header carrying a raw API key.
const HeaderName = "X-API-Key"

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates API keys against a static key set.
type Authenticator struct {
	keys []keyEntry
}

// RawKeyEntry pairs a plaintext key with the identity it grants.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// New hashes entries and returns an Authenticator. Plaintext keys are not
// retained.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{keys: make([]keyEntry, 0, len(entries))}
	for _, e := range entries {
		a.keys = append(a.keys, keyEntry{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: e.Identity,
		})
	}
	return a
}

// FromConfig builds an Authenticator from the auth.api_keys section.
// Entries without a subject use the key's position as subject.
func FromConfig(keys []config.APIKeyConfig) *Authenticator {
	entries := make([]RawKeyEntry, 0, len(keys))
	for i, k := range keys {
		if k.Key == "" {
			continue
		}
		id := auth.Identity{
			Subject:     k.Subject,
			ServiceTier: k.ServiceTier,
		}
		if id.Subject == "" {
			id.Subject = "apikey-" + strconv.Itoa(i)
		}
		if k.TenantID != "" {
			id.Metadata = map[string]string{"tenant_id": k.TenantID}
		}
		entries = append(entries, RawKeyEntry{Key: k.Key, Identity: id})
	}
	return New(entries)
}

// Authenticate votes Abstain when no key is presented, No for an unknown
// key and Yes with a copy of the stored identity otherwise.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	token, present := credential(r)
	if !present {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	sum := sha256.Sum256([]byte(token))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(sum[:], entry.hash[:]) == 1 {
			id := entry.identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

func credential(r *http.Request) (string, bool) {
	if v, ok := r.Header[http.CanonicalHeaderKey(HeaderName)]; ok && len(v) > 0 {
		return strings.TrimSpace(v[0]), true
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), true
}
