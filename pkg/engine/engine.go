package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/scoregate/pkg/api"
	"github.com/rhuss/scoregate/pkg/debug"
	"github.com/rhuss/scoregate/pkg/observability"
	"github.com/rhuss/scoregate/pkg/omr"
	"github.com/rhuss/scoregate/pkg/transport"
)

// Engine runs conversions. It implements transport.Converter.
type Engine struct {
	assembler  *omr.Assembler
	store      transport.RecordStore
	cfg        Config
	validation api.ValidationConfig
	slots      chan struct{}
}

// Ensure Engine implements transport.Converter at compile time.
var _ transport.Converter = (*Engine)(nil)

// New creates a new Engine. The runner must not be nil. The store can be
// nil to disable conversion history.
func New(runner omr.Runner, store transport.RecordStore, cfg Config) (*Engine, error) {
	if runner == nil {
		return nil, fmt.Errorf("engine: runner must not be nil")
	}
	validation := api.DefaultValidationConfig()
	if cfg.MaxUploadBytes > 0 {
		validation.MaxUploadBytes = cfg.MaxUploadBytes
	}
	return &Engine{
		assembler:  omr.NewAssembler(runner),
		store:      store,
		cfg:        cfg,
		validation: validation,
		slots:      make(chan struct{}, cfg.maxConcurrent()),
	}, nil
}

// Convert handles one upload. Rejected requests return an *api.APIError;
// every failure after the upload is stored yields a degraded result.
func (e *Engine) Convert(ctx context.Context, req *api.ConversionRequest) (*api.ConversionResult, error) {
	if apiErr := api.ValidateRequest(req, e.validation); apiErr != nil {
		return nil, apiErr
	}

	start := time.Now()

	ws, err := omr.NewWorkspace(e.cfg.WorkDir)
	if err != nil {
		out := omr.Failure(omr.KindUnexpected, omr.NewDiagnostic("Error: "+err.Error()))
		return e.finish(ctx, req, out, time.Since(start)), nil
	}
	defer func() {
		if err := ws.Close(); err != nil {
			slog.Warn("removing workspace failed", "dir", ws.Dir(), "error", err)
		}
	}()

	limit := e.validation.MaxUploadBytes
	job, err := ws.StoreInput(req.Filename, &cappedReader{r: req.Body, remaining: limit})
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.Is(err, errUploadTooLarge) || errors.As(err, &maxBytesErr) {
			return nil, api.NewPayloadTooLargeError(limit)
		}
		out := omr.Failure(omr.KindUnexpected, omr.NewDiagnostic("Error: "+err.Error()))
		return e.finish(ctx, req, out, time.Since(start)), nil
	}
	debug.Log("engine", "upload stored", "input", job.InputPath, "filename", req.Filename)

	if err := e.acquire(ctx); err != nil {
		slog.Warn("conversion abandoned while queued", "filename", req.Filename, "error", err)
		out := omr.Failure(omr.KindCancelled, omr.NewDiagnostic("Conversion cancelled while waiting for the OMR engine: "+err.Error()))
		return e.finish(ctx, req, out, time.Since(start)), nil
	}
	out := e.assembler.Assemble(ctx, job)
	e.release()

	return e.finish(ctx, req, out, time.Since(start)), nil
}

// acquire blocks until an engine slot is free or ctx is done.
func (e *Engine) acquire(ctx context.Context) error {
	select {
	case e.slots <- struct{}{}:
		observability.EngineInflight.Inc()
		return nil
	default:
	}

	debug.Log("engine", "waiting for engine slot", "capacity", cap(e.slots))
	select {
	case e.slots <- struct{}{}:
		observability.EngineInflight.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	<-e.slots
	observability.EngineInflight.Dec()
}

// finish turns an outcome into the API result, records metrics and
// persists the record.
func (e *Engine) finish(ctx context.Context, req *api.ConversionRequest, out omr.Outcome, dur time.Duration) *api.ConversionResult {
	id := api.NewConversionID()

	var res *api.ConversionResult
	if out.OK() {
		res = api.NewSuccessResult(id, out.MusicXML())
	} else {
		res = api.NewDegradedResult(id, string(out.Kind()), out.Note().String())
	}

	observability.RecordConversion(res.FailureKind, dur.Seconds())
	e.saveRecord(ctx, req, res, dur)
	return res
}

// saveRecord persists the conversion summary. Storage failures are logged
// and never change the response.
func (e *Engine) saveRecord(ctx context.Context, req *api.ConversionRequest, res *api.ConversionResult, dur time.Duration) {
	if e.store == nil {
		return
	}

	rec := &api.ConversionRecord{
		ID:          res.ID,
		Object:      "conversion",
		Filename:    req.Filename,
		Status:      api.ConversionStatusSucceeded,
		FailureKind: res.FailureKind,
		Note:        res.Note,
		DurationMs:  dur.Milliseconds(),
		CreatedAt:   time.Now().Unix(),
	}
	if res.Degraded() {
		rec.Status = api.ConversionStatusFailed
	} else {
		rec.XMLBytes = len(res.MusicXML)
	}

	if err := e.store.SaveRecord(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("saving conversion record failed", "conversion_id", rec.ID, "error", err)
		return
	}
	debug.Log("storage", "conversion record saved", "conversion_id", rec.ID, "status", rec.Status)
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

// cappedReader fails with errUploadTooLarge once more than remaining bytes
// have been read.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, errUploadTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errUploadTooLarge
	}
	return n, err
}
