package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/scoregate/pkg/api"
)

// Logging returns middleware that emits one structured log entry per
// conversion: request ID, filename, upload size, duration, and either the
// conversion ID or the failure kind and note.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Converter) Converter {
		return ConverterFunc(func(ctx context.Context, req *api.ConversionRequest) (*api.ConversionResult, error) {
			start := time.Now()

			res, err := next.Convert(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("filename", req.Filename),
				slog.Int64("size", req.Size),
				slog.Duration("duration", time.Since(start)),
			}

			switch {
			case err != nil:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelWarn, "conversion rejected", attrs...)
			case res.Degraded():
				attrs = append(attrs,
					slog.String("conversion_id", res.ID),
					slog.String("kind", res.FailureKind),
					slog.String("note", res.Note),
				)
				logger.LogAttrs(ctx, slog.LevelWarn, "conversion degraded", attrs...)
			default:
				attrs = append(attrs,
					slog.String("conversion_id", res.ID),
					slog.Int("xml_bytes", len(res.MusicXML)),
				)
				logger.LogAttrs(ctx, slog.LevelInfo, "conversion completed", attrs...)
			}

			return res, err
		})
	}
}
