package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rhuss/scoregate/pkg/api"
	"github.com/rhuss/scoregate/pkg/storage/memory"
	"github.com/rhuss/scoregate/pkg/transport"
)

const testXML = `<?xml version="1.0"?><score-partwise/>`

// fakeConverter reads the whole upload and answers with a fixed result.
type fakeConverter struct {
	result *api.ConversionResult
	err    error
	calls  atomic.Int32
	got    []byte
	name   string
}

func (f *fakeConverter) Convert(_ context.Context, req *api.ConversionRequest) (*api.ConversionResult, error) {
	f.calls.Add(1)
	f.name = req.Filename
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	f.got = data
	return f.result, f.err
}

type formPart struct {
	field    string
	filename string // "" with file=false means a plain text field
	file     bool
	content  string
}

func multipartBody(t *testing.T, parts ...formPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		var (
			w   io.Writer
			err error
		)
		if p.file {
			w, err = mw.CreateFormFile(p.field, p.filename)
		} else {
			w, err = mw.CreateFormField(p.field)
		}
		if err != nil {
			t.Fatalf("creating part: %v", err)
		}
		io.WriteString(w, p.content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, h http.Handler, parts ...formPart) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/omr", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestConvertSuccess(t *testing.T) {
	conv := &fakeConverter{result: api.NewSuccessResult("conv_0123456789abcdef0123456789abcdef", testXML)}
	a := NewAdapter(conv, nil, DefaultConfig())

	rec := upload(t, a.Handler(),
		formPart{field: "title", content: "Ave Maria"},
		formPart{field: ImageField, filename: "page1.PNG", file: true, content: "PNGDATA"},
	)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	body := decodeMap(t, rec)
	if body["musicXml"] != testXML {
		t.Errorf("musicXml = %v", body["musicXml"])
	}
	if _, ok := body["note"]; ok {
		t.Error("success response must not carry a note")
	}
	if got := rec.Header().Get(ConversionIDHeader); got != "conv_0123456789abcdef0123456789abcdef" {
		t.Errorf("%s = %q", ConversionIDHeader, got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if string(conv.got) != "PNGDATA" || conv.name != "page1.PNG" {
		t.Errorf("converter saw %q / %q", conv.name, conv.got)
	}
}

func TestConvertDegraded(t *testing.T) {
	conv := &fakeConverter{result: api.NewDegradedResult("conv_0123456789abcdef0123456789abcdef", "timeout", "Audiveris timed out after 120 seconds.")}
	a := NewAdapter(conv, nil, DefaultConfig())

	rec := upload(t, a.Handler(), formPart{field: ImageField, filename: "scan.pdf", file: true, content: "%PDF"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["musicXml"] != api.PlaceholderXML {
		t.Errorf("musicXml = %v, want placeholder", body["musicXml"])
	}
	if body["note"] != "Audiveris timed out after 120 seconds." {
		t.Errorf("note = %v", body["note"])
	}
}

func TestConvertRequestErrors(t *testing.T) {
	tests := []struct {
		name      string
		parts     []formPart
		wantError string
	}{
		{
			name:      "no image field",
			parts:     []formPart{{field: "file", filename: "a.png", file: true, content: "x"}},
			wantError: "missing 'image' file",
		},
		{
			name:      "image sent as text field",
			parts:     []formPart{{field: ImageField, content: "not a file"}},
			wantError: "missing 'image' file",
		},
		{
			name:      "empty filename",
			parts:     []formPart{{field: ImageField, filename: "", file: true, content: ""}},
			wantError: "no file selected",
		},
		{
			name:      "empty form",
			wantError: "missing 'image' file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &fakeConverter{result: api.NewSuccessResult("", testXML)}
			a := NewAdapter(conv, nil, DefaultConfig())

			rec := upload(t, a.Handler(), tt.parts...)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeMap(t, rec)["error"]; got != tt.wantError {
				t.Errorf("error = %v, want %q", got, tt.wantError)
			}
			if conv.calls.Load() != 0 {
				t.Error("converter must not be called")
			}
		})
	}
}

func TestConvertNotMultipart(t *testing.T) {
	conv := &fakeConverter{}
	a := NewAdapter(conv, nil, DefaultConfig())

	req := httptest.NewRequest(http.MethodPost, "/omr", strings.NewReader(`{"image":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeMap(t, rec)["error"]; got != "missing 'image' file" {
		t.Errorf("error = %v", got)
	}
}

func TestConvertOversizedByContentLength(t *testing.T) {
	conv := &fakeConverter{result: api.NewSuccessResult("", testXML)}
	a := NewAdapter(conv, nil, Config{MaxUploadBytes: 1 << 20})

	rec := upload(t, a.Handler(), formPart{field: ImageField, filename: "big.png", file: true, content: strings.Repeat("x", 2<<20)})

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["error"] != "file too large" {
		t.Errorf("error = %v", body["error"])
	}
	if body["note"] != "Maximum size: 1 MB. Reduce the image or PDF and try again." {
		t.Errorf("note = %v", body["note"])
	}
	if conv.calls.Load() != 0 {
		t.Error("converter must not be called for oversized uploads")
	}
}

func TestConvertOversizedStreaming(t *testing.T) {
	conv := &fakeConverter{result: api.NewSuccessResult("", testXML)}
	a := NewAdapter(conv, nil, Config{MaxUploadBytes: 1024})

	body, ct := multipartBody(t,
		formPart{field: "comment", content: strings.Repeat("c", 4096)},
		formPart{field: ImageField, filename: "a.png", file: true, content: "x"},
	)
	// Hide the length so only the body reader enforces the cap.
	req := httptest.NewRequest(http.MethodPost, "/omr", struct{ io.Reader }{body})
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413 (body %s)", rec.Code, rec.Body)
	}
	if conv.calls.Load() != 0 {
		t.Error("converter must not be called")
	}
}

func TestConvertRejectedByConverter(t *testing.T) {
	conv := &fakeConverter{err: api.NewPayloadTooLargeError(4 << 20)}
	a := NewAdapter(conv, nil, DefaultConfig())

	rec := upload(t, a.Handler(), formPart{field: ImageField, filename: "a.png", file: true, content: "x"})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	var seen string
	conv := transport.ConverterFunc(func(ctx context.Context, req *api.ConversionRequest) (*api.ConversionResult, error) {
		seen = transport.RequestIDFromContext(ctx)
		return api.NewSuccessResult("", testXML), nil
	})
	a := NewAdapter(conv, nil, DefaultConfig(), transport.RequestID())

	body, ct := multipartBody(t, formPart{field: ImageField, filename: "a.png", file: true, content: "x"})
	req := httptest.NewRequest(http.MethodPost, "/omr", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Request-ID", "client-123")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if seen != "client-123" {
		t.Errorf("converter request ID = %q", seen)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("response X-Request-ID = %q", got)
	}
}

func TestInFlightTrackedDuringConversion(t *testing.T) {
	var during int
	var a *Adapter
	conv := transport.ConverterFunc(func(ctx context.Context, req *api.ConversionRequest) (*api.ConversionResult, error) {
		during = a.InFlight().Len()
		return api.NewSuccessResult("", testXML), nil
	})
	a = NewAdapter(conv, nil, DefaultConfig())

	upload(t, a.Handler(), formPart{field: ImageField, filename: "a.png", file: true, content: "x"})

	if during != 1 {
		t.Errorf("in-flight during conversion = %d, want 1", during)
	}
	if a.InFlight().Len() != 0 {
		t.Errorf("in-flight after conversion = %d, want 0", a.InFlight().Len())
	}
}

func TestHealth(t *testing.T) {
	conv := &fakeConverter{}
	a := NewAdapter(conv, nil, DefaultConfig())

	for _, path := range []string{"/health", "/healthz"} {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
		var h api.HealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
			t.Fatal(err)
		}
		if h.Status != "ok" || h.InFlight != 0 {
			t.Errorf("%s: body = %+v", path, h)
		}
	}
	if conv.calls.Load() != 0 {
		t.Error("health must not touch the converter")
	}
}

func TestHistoryDisabled(t *testing.T) {
	a := NewAdapter(&fakeConverter{}, nil, DefaultConfig())

	for _, path := range []string{"/v1/conversions", "/v1/conversions/conv_0123456789abcdef0123456789abcdef"} {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
		}
	}
}

func TestHistoryEndpoints(t *testing.T) {
	store := memory.New(100)
	ids := []string{
		"conv_00000000000000000000000000000001",
		"conv_00000000000000000000000000000002",
		"conv_00000000000000000000000000000003",
	}
	for i, id := range ids {
		status := api.ConversionStatusSucceeded
		if i == 1 {
			status = api.ConversionStatusFailed
		}
		if err := store.SaveRecord(context.Background(), &api.ConversionRecord{
			ID: id, Object: "conversion", Filename: "p.png", Status: status, CreatedAt: int64(i),
		}); err != nil {
			t.Fatal(err)
		}
	}
	a := NewAdapter(&fakeConverter{}, store, DefaultConfig())

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	t.Run("list newest first", func(t *testing.T) {
		rec := get("/v1/conversions?limit=2")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var list api.RecordList
		json.Unmarshal(rec.Body.Bytes(), &list)
		if len(list.Data) != 2 || list.Data[0].ID != ids[2] || !list.HasMore {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("status filter", func(t *testing.T) {
		var list api.RecordList
		json.Unmarshal(get("/v1/conversions?status=failed").Body.Bytes(), &list)
		if len(list.Data) != 1 || list.Data[0].ID != ids[1] {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("get one", func(t *testing.T) {
		rec := get("/v1/conversions/" + ids[0])
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var r api.ConversionRecord
		json.Unmarshal(rec.Body.Bytes(), &r)
		if r.ID != ids[0] {
			t.Errorf("record = %+v", r)
		}
	})

	tests := []struct {
		path string
		want int
	}{
		{"/v1/conversions/conv_ffffffffffffffffffffffffffffffff", http.StatusNotFound},
		{"/v1/conversions/not-an-id", http.StatusBadRequest},
		{"/v1/conversions?limit=0", http.StatusBadRequest},
		{"/v1/conversions?limit=abc", http.StatusBadRequest},
		{"/v1/conversions?status=pending", http.StatusBadRequest},
		{"/v1/conversions?after=bogus", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := get(tt.path); rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}
