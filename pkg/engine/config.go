package engine

// Config holds configuration for the conversion engine.
type Config struct {
	// MaxConcurrent bounds engine runs in flight. Requests beyond it wait
	// for a slot. Zero or negative means 1.
	MaxConcurrent int

	// WorkDir is the parent of per-request workspaces. Empty means the
	// system temporary directory.
	WorkDir string

	// MaxUploadBytes caps the stored upload. Zero or negative means
	// api.DefaultValidationConfig's limit.
	MaxUploadBytes int64
}

func (c Config) maxConcurrent() int {
	if c.MaxConcurrent <= 0 {
		return 1
	}
	return c.MaxConcurrent
}
