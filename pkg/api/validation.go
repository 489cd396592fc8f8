package api

import "strings"

// ValidationConfig holds upload limits.
type ValidationConfig struct {
	MaxUploadBytes int64
}

// DefaultValidationConfig returns the limits used when nothing is configured.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxUploadBytes: 4 << 20,
	}
}

// ValidateRequest checks a conversion request before any work is done.
// Returns nil when the request may proceed.
func ValidateRequest(req *ConversionRequest, cfg ValidationConfig) *APIError {
	if req == nil || req.Body == nil {
		return NewInvalidRequestError("image", "missing 'image' file")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return NewInvalidRequestError("image", "no file selected")
	}
	if cfg.MaxUploadBytes > 0 && req.Size > cfg.MaxUploadBytes {
		return NewPayloadTooLargeError(cfg.MaxUploadBytes)
	}
	return nil
}
