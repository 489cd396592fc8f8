package apikey

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/scoregate/pkg/auth"
	"github.com/rhuss/scoregate/pkg/config"
)

func newTestAuth() *Authenticator {
	return New([]RawKeyEntry{
		{
			Key: "sg-test-key-1",
			Identity: auth.Identity{
				Subject:     "alice",
				ServiceTier: "standard",
				Metadata:    map[string]string{"tenant_id": "org-1"},
			},
		},
		{
			Key:      "sg-test-key-2",
			Identity: auth.Identity{Subject: "bob", ServiceTier: "premium"},
		},
	})
}

func request(header, value string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/omr", nil)
	if header != "" {
		r.Header.Set(header, value)
	}
	return r
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		value       string
		want        auth.AuthDecision
		wantSubject string
	}{
		{"bearer first key", "Authorization", "Bearer sg-test-key-1", auth.Yes, "alice"},
		{"bearer second key", "Authorization", "Bearer sg-test-key-2", auth.Yes, "bob"},
		{"x-api-key header", HeaderName, "sg-test-key-2", auth.Yes, "bob"},
		{"unknown key", "Authorization", "Bearer sg-wrong", auth.No, ""},
		{"unknown x-api-key", HeaderName, "sg-wrong", auth.No, ""},
		{"empty bearer", "Authorization", "Bearer ", auth.No, ""},
		{"basic scheme", "Authorization", "Basic dXNlcjpwYXNz", auth.Abstain, ""},
		{"no credentials", "", "", auth.Abstain, ""},
	}

	a := newTestAuth()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.Authenticate(context.Background(), request(tt.header, tt.value))
			if res.Decision != tt.want {
				t.Fatalf("decision = %s, want %s", res.Decision, tt.want)
			}
			if tt.wantSubject != "" && res.Identity.Subject != tt.wantSubject {
				t.Errorf("subject = %q, want %q", res.Identity.Subject, tt.wantSubject)
			}
		})
	}
}

func TestIdentityIsCopied(t *testing.T) {
	a := newTestAuth()
	res := a.Authenticate(context.Background(), request("Authorization", "Bearer sg-test-key-1"))
	res.Identity.Subject = "mallory"

	again := a.Authenticate(context.Background(), request("Authorization", "Bearer sg-test-key-1"))
	if again.Identity.Subject != "alice" {
		t.Errorf("stored identity mutated: %q", again.Identity.Subject)
	}
	if again.Identity.TenantID() != "org-1" {
		t.Errorf("tenant = %q", again.Identity.TenantID())
	}
}

func TestFromConfig(t *testing.T) {
	a := FromConfig([]config.APIKeyConfig{
		{Key: "k-one", Subject: "scanner", TenantID: "choir", ServiceTier: "basic"},
		{Key: "k-two"},
		{Subject: "no-key"},
	})

	res := a.Authenticate(context.Background(), request(HeaderName, "k-one"))
	if res.Decision != auth.Yes {
		t.Fatalf("decision = %s", res.Decision)
	}
	if res.Identity.Subject != "scanner" || res.Identity.TenantID() != "choir" || res.Identity.ServiceTier != "basic" {
		t.Errorf("identity = %+v", res.Identity)
	}

	res = a.Authenticate(context.Background(), request(HeaderName, "k-two"))
	if res.Decision != auth.Yes || res.Identity.Subject != "apikey-1" {
		t.Errorf("fallback subject: %+v", res)
	}

	if n := len(a.keys); n != 2 {
		t.Errorf("keys = %d, want 2 (empty key skipped)", n)
	}
}
