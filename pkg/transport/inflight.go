package transport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rhuss/scoregate/pkg/api"
)

// InFlightJob describes a conversion currently being processed.
type InFlightJob struct {
	RequestID string
	Filename  string
	Started   time.Time
}

// InFlightRegistry tracks conversions in progress, keyed by request ID.
// Graceful shutdown and the health endpoint read it.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]InFlightJob
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]InFlightJob),
	}
}

// Register records a conversion as started.
func (r *InFlightRegistry) Register(id, filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = InFlightJob{RequestID: id, Filename: filename, Started: time.Now()}
}

// Remove drops a conversion from the registry. Removing an unknown ID is a
// no-op.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of conversions in progress.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns the conversions in progress, oldest first.
func (r *InFlightRegistry) Snapshot() []InFlightJob {
	r.mu.Lock()
	jobs := make([]InFlightJob, 0, len(r.entries))
	for _, j := range r.entries {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Started.Before(jobs[j].Started)
	})
	return jobs
}

// InFlight returns middleware that registers each conversion for its
// duration. It must run inside RequestID so the key is set.
func InFlight(reg *InFlightRegistry) Middleware {
	return func(next Converter) Converter {
		return ConverterFunc(func(ctx context.Context, req *api.ConversionRequest) (*api.ConversionResult, error) {
			id := RequestIDFromContext(ctx)
			if id == "" {
				id = NewRequestID()
				ctx = ContextWithRequestID(ctx, id)
			}
			reg.Register(id, req.Filename)
			defer reg.Remove(id)
			return next.Convert(ctx, req)
		})
	}
}
