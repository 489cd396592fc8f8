package transport

import (
	"context"

	"github.com/rhuss/scoregate/pkg/api"
)

// Converter turns one uploaded score into MusicXML. An error return means
// the request itself was rejected (an *api.APIError); conversion failures
// are reported inside a degraded result instead.
type Converter interface {
	Convert(ctx context.Context, req *api.ConversionRequest) (*api.ConversionResult, error)
}

// ConverterFunc is an adapter that allows using an ordinary function
// as a Converter.
type ConverterFunc func(ctx context.Context, req *api.ConversionRequest) (*api.ConversionResult, error)

// Convert calls f(ctx, req).
func (f ConverterFunc) Convert(ctx context.Context, req *api.ConversionRequest) (*api.ConversionResult, error) {
	return f(ctx, req)
}

// ListOptions controls pagination and filtering for record listing.
type ListOptions struct {
	After  string               // Cursor: return records older than this ID.
	Limit  int                  // Maximum number of records to return (default 20, max 100).
	Status api.ConversionStatus // Filter by final status; empty means all.
}

// Page size bounds for ListRecords.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// EffectiveLimit clamps Limit into [1, MaxListLimit], defaulting to
// DefaultListLimit.
func (o ListOptions) EffectiveLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return o.Limit
	}
}

// RecordStore persists summaries of finished conversions.
type RecordStore interface {
	// SaveRecord persists a finished conversion. Returns storage.ErrConflict
	// if the ID already exists.
	SaveRecord(ctx context.Context, rec *api.ConversionRecord) error

	// GetRecord retrieves a record by ID. Returns storage.ErrNotFound when
	// absent or owned by another tenant.
	GetRecord(ctx context.Context, id string) (*api.ConversionRecord, error)

	// ListRecords returns records newest first, filtered by tenant when one
	// is present in context.
	ListRecords(ctx context.Context, opts ListOptions) (*api.RecordList, error)

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases database connections and resources.
	Close() error
}
