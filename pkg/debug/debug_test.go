package debug

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "archive", map[string]bool{"archive": true}},
		{"multiple", "archive,engine", map[string]bool{"archive": true, "engine": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " archive , engine ", map[string]bool{"archive": true, "engine": true}},
		{"uppercase normalized", "ARCHIVE,Engine", map[string]bool{"archive": true, "engine": true}},
		{"empty segments", "archive,,engine", map[string]bool{"archive": true, "engine": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
			if len(got) != len(tt.want) {
				t.Errorf("len(got) = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	// Save and restore.
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("archive,engine")

	if !Enabled("archive") {
		t.Error("archive should be enabled")
	}
	if !Enabled("engine") {
		t.Error("engine should be enabled")
	}
	if Enabled("mcp") {
		t.Error("mcp should not be enabled")
	}
	if Enabled("all") {
		t.Error("all should not be enabled (not in categories)")
	}
}

func TestEnabled_All(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("all")

	if !Enabled("archive") {
		t.Error("archive should be enabled via 'all'")
	}
	if !Enabled("engine") {
		t.Error("engine should be enabled via 'all'")
	}
	if !Enabled("anything") {
		t.Error("anything should be enabled via 'all'")
	}
}

func TestEnabled_Empty(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	if Enabled("archive") {
		t.Error("nothing should be enabled when no categories set")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q, want %q", got, "short")
	}
	if got := Truncate("this is a long string", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q, want %q", got, "this is a ...")
	}
}

func TestLog_DisabledCategory(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	// Should not panic or produce output.
	Log("archive", "test message", "key", "value")
	Trace("archive", "trace message", "key", "value")
}

func TestTruncate_UTF8Boundary(t *testing.T) {
	// "é" is two bytes; cutting at byte 3 would split the second one.
	if got := Truncate("éééé", 3); got != "é..." {
		t.Errorf("Truncate = %q, want %q", got, "é...")
	}
}

func TestInit_EnvOverridesConfig(t *testing.T) {
	orig := categories
	origLogger := slog.Default()
	defer func() {
		categories = orig
		slog.SetDefault(origLogger)
	}()

	t.Setenv(DebugEnv, "locator")
	t.Setenv(LogLevelEnv, "DEBUG")
	Init("archive", "ERROR", "json")

	if !Enabled("locator") {
		t.Error("locator should be enabled from the environment")
	}
	if Enabled("archive") {
		t.Error("archive should be ignored when the environment is set")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("DEBUG level should be active")
	}
}
