// Package transport defines the handler interfaces and middleware chain for
// the scoregate HTTP transport layer.
//
// The transport layer bridges external clients and the conversion engine.
// The HTTP adapter in transport/http parses uploads into
// api.ConversionRequest values, dispatches them to a Converter, and
// serializes the api.ConversionResult back to the client.
//
// # Handler Interfaces
//
//   - Converter handles the convert operation. It always yields a result
//     for a valid request; engine failures become degraded results.
//   - RecordStore persists conversion records and is optional. Without it
//     the history endpoints answer 404.
//
// # Middleware
//
// The middleware chain wraps Converter with cross-cutting concerns.
// Built-in middleware provides panic recovery into a degraded result,
// request ID assignment (X-Request-ID), in-flight tracking, and structured
// logging via log/slog.
package transport
