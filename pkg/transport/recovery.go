package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/scoregate/pkg/api"
)

// UnexpectedKind is the failure kind reported for recovered panics.
const UnexpectedKind = "unexpected"

// Recovery returns middleware that catches panics in the converter and
// turns them into a degraded result, so the client still receives the
// placeholder document and a note. The server continues to accept new
// requests after a panic is recovered.
func Recovery() Middleware {
	return func(next Converter) Converter {
		return ConverterFunc(func(ctx context.Context, req *api.ConversionRequest) (res *api.ConversionResult, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("conversion panicked",
						"request_id", RequestIDFromContext(ctx),
						"panic", r,
					)
					res = api.NewDegradedResult("", UnexpectedKind, fmt.Sprintf("Unexpected error: %v", r))
					retErr = nil
				}
			}()
			return next.Convert(ctx, req)
		})
	}
}
