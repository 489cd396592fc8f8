package http

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/scoregate/pkg/api"
	"github.com/rhuss/scoregate/pkg/debug"
	"github.com/rhuss/scoregate/pkg/storage"
	"github.com/rhuss/scoregate/pkg/transport"
)

// ImageField is the multipart form field carrying the uploaded score.
const ImageField = "image"

// ConversionIDHeader names the stored conversion record on success and on
// degraded responses.
const ConversionIDHeader = "X-Conversion-ID"

// Adapter serves the conversion API over HTTP.
type Adapter struct {
	converter transport.Converter
	store     transport.RecordStore // nil when history is disabled
	inflight  *transport.InFlightRegistry
	mux       *http.ServeMux
	config    Config
	started   time.Time
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	// MaxUploadBytes caps the whole request body of POST /omr.
	MaxUploadBytes int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxUploadBytes: api.DefaultValidationConfig().MaxUploadBytes,
	}
}

// NewAdapter creates an HTTP adapter around conv. The store is optional;
// when nil the history endpoints answer 404. Middleware wraps conv in the
// given order, innermost last, and every conversion is tracked in the
// adapter's in-flight registry.
func NewAdapter(conv transport.Converter, store transport.RecordStore, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}

	a := &Adapter{
		store:    store,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
		started:  time.Now(),
	}
	a.converter = transport.Chain(append(middlewares, transport.InFlight(a.inflight))...)(conv)

	a.mux.HandleFunc("POST /omr", a.handleConvert)
	a.mux.HandleFunc("GET /health", a.handleHealth)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	a.mux.HandleFunc("GET /v1/conversions", a.handleListConversions)
	a.mux.HandleFunc("GET /v1/conversions/{id}", a.handleGetConversion)

	return a
}

// Handle registers an additional route on the adapter's mux, for example
// the metrics or MCP endpoints.
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Routes returns the adapter's mux for route resolution.
func (a *Adapter) Routes() *http.ServeMux {
	return a.mux
}

// InFlight returns the registry of conversions in progress.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// Handler returns the http.Handler for this adapter, including request ID
// propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware takes X-Request-ID from the client or generates
// one, stores it in the context for the converter middleware, and echoes
// it on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// handleConvert handles POST /omr.
func (a *Adapter) handleConvert(w http.ResponseWriter, r *http.Request) {
	limit := a.config.MaxUploadBytes
	if r.ContentLength > limit {
		debug.Log("transport", "upload rejected by content length", "content_length", r.ContentLength, "limit", limit)
		transport.WriteAPIError(w, api.NewPayloadTooLargeError(limit))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	part, apiErr := imagePart(r, limit)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	defer part.Close()

	req := &api.ConversionRequest{
		Filename: part.FileName(),
		Size:     -1,
		Body:     part,
	}

	res, err := a.converter.Convert(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.ID != "" {
		w.Header().Set(ConversionIDHeader, res.ID)
	}
	transport.WriteJSON(w, http.StatusOK, res)
}

// imagePart advances the multipart stream to the image file part. Other
// fields before it are skipped; a plain text field named image does not
// count as a file.
func imagePart(r *http.Request, limit int64) (*multipart.Part, *api.APIError) {
	mr, err := r.MultipartReader()
	if err != nil {
		debug.Log("transport", "request is not multipart", "error", err)
		return nil, missingImage()
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return nil, missingImage()
		}
		if err != nil {
			if tooLarge(err) {
				return nil, api.NewPayloadTooLargeError(limit)
			}
			return nil, api.NewInvalidRequestError(ImageField, "malformed multipart body")
		}

		if p.FormName() != ImageField {
			p.Close()
			continue
		}
		name, isFile := fileName(p)
		if !isFile {
			p.Close()
			continue
		}
		if name == "" {
			p.Close()
			return nil, api.NewInvalidRequestError(ImageField, "no file selected")
		}
		return p, nil
	}
}

func missingImage() *api.APIError {
	return api.NewInvalidRequestError(ImageField, "missing 'image' file")
}

// fileName reports the part's filename and whether the part declared one
// at all. Browsers send filename="" when no file was chosen.
func fileName(p *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	if _, ok := params["filename"]; !ok {
		return "", false
	}
	return p.FileName(), true
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	// multipart does not always wrap the body reader's error.
	return strings.Contains(err.Error(), "request body too large")
}

// writeError writes a converter error. Rejections carry an *api.APIError;
// anything else is reported as a server error.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		transport.WriteAPIError(w, apiErr)
		return
	}
	slog.Error("conversion request failed", "error", err)
	transport.WriteAPIError(w, api.NewServerError(err.Error()))
}

// handleHealth handles GET /health and GET /healthz. It never touches the
// engine.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, api.HealthResponse{
		Status:        "ok",
		InFlight:      a.inflight.Len(),
		UptimeSeconds: int64(time.Since(a.started).Seconds()),
	})
}

// handleGetConversion handles GET /v1/conversions/{id}.
func (a *Adapter) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteAPIError(w, historyDisabled())
		return
	}

	id := r.PathValue("id")
	if !api.ValidateConversionID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed conversion ID"))
		return
	}

	rec, err := a.store.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("conversion "+id+" not found"))
			return
		}
		writeError(w, err)
		return
	}

	transport.WriteJSON(w, http.StatusOK, rec)
}

// handleListConversions handles GET /v1/conversions.
func (a *Adapter) handleListConversions(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteAPIError(w, historyDisabled())
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	list, err := a.store.ListRecords(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	transport.WriteJSON(w, http.StatusOK, list)
}

func historyDisabled() *api.APIError {
	return api.NewNotFoundError("conversion history is disabled")
}

// parseListOptions extracts pagination parameters from the query string.
func parseListOptions(r *http.Request) (transport.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := transport.ListOptions{
		After:  q.Get("after"),
		Status: api.ConversionStatus(q.Get("status")),
	}

	if opts.After != "" && !api.ValidateConversionID(opts.After) {
		return opts, api.NewInvalidRequestError("after", "malformed conversion ID")
	}

	switch opts.Status {
	case "", api.ConversionStatusSucceeded, api.ConversionStatusFailed:
	default:
		return opts, api.NewInvalidRequestError("status", "status must be 'succeeded' or 'failed'")
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}

	return opts, nil
}
