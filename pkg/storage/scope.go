package storage

import "context"

type tenantKey struct{}

// WithTenant scopes ctx to a tenant. Records saved under it carry the
// tenant and listings only return that tenant's records.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantFromContext returns the tenant ctx is scoped to. Empty means
// unscoped: a single-tenant deployment that sees every record.
func TenantFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(tenantKey{}).(string)
	return tenantID
}

// Visible reports whether a record owned by owner may be read under ctx.
func Visible(ctx context.Context, owner string) bool {
	tenantID := TenantFromContext(ctx)
	return tenantID == "" || tenantID == owner
}
