// Package integration runs the scoregate gateway end to end: a real HTTP
// server, the real engine pipeline and a shell script standing in for
// Audiveris, all started in-process.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/rhuss/scoregate/pkg/auth"
	"github.com/rhuss/scoregate/pkg/auth/apikey"
	"github.com/rhuss/scoregate/pkg/engine"
	"github.com/rhuss/scoregate/pkg/omr"
	"github.com/rhuss/scoregate/pkg/storage/memory"
	transporthttp "github.com/rhuss/scoregate/pkg/transport/http"
)

// gateway is one running scoregate instance.
type gateway struct {
	URL   string
	Store *memory.Store
}

type gatewayOptions struct {
	maxUploadBytes int64
	timeout        time.Duration
	apiKeys        []apikey.RawKeyEntry
}

// startGateway runs a gateway whose engine is a shell script with the
// given body. The script sees the engine arguments: $5 is the output
// directory and $6 the input file.
func startGateway(t *testing.T, script string, opts gatewayOptions) *gateway {
	t.Helper()

	if opts.maxUploadBytes == 0 {
		opts.maxUploadBytes = 4 << 20
	}
	if opts.timeout == 0 {
		opts.timeout = 10 * time.Second
	}

	store := memory.New(100)
	invoker := omr.NewInvoker(omr.EngineConfig{
		Command: writeScript(t, script),
		Timeout: opts.timeout,
	})
	eng, err := engine.New(invoker, store, engine.Config{
		MaxConcurrent:  2,
		WorkDir:        t.TempDir(),
		MaxUploadBytes: opts.maxUploadBytes,
	})
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}

	serverOpts := []transporthttp.ServerOption{
		transporthttp.WithMaxUploadBytes(opts.maxUploadBytes),
		transporthttp.WithMetrics("/metrics"),
	}
	if len(opts.apiKeys) > 0 {
		chain := &auth.AuthChain{
			Authenticators:  []auth.Authenticator{apikey.New(opts.apiKeys)},
			DefaultDecision: auth.No,
		}
		serverOpts = append(serverOpts, transporthttp.WithHTTPMiddleware(auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)))
	}

	srv := transporthttp.NewServer(eng, store, serverOpts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &gateway{URL: ts.URL, Store: store}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audiveris")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing fake engine: %v", err)
	}
	return path
}

// writeMXL builds a compressed MusicXML container at path.
func writeMXL(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("adding %s: %v", name, err)
		}
		io.WriteString(w, content)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
}

// upload posts content as the image field of a multipart form.
func upload(t *testing.T, url, filename string, content []byte, header http.Header) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	w, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatal(err)
	}
	w.Write(content)
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, url+"/omr", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /omr: %v", err)
	}
	return resp
}

func getURL(t *testing.T, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

// decode reads and closes the body into a generic map.
func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return m
}
