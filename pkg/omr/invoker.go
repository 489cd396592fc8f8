package omr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rhuss/scoregate/pkg/debug"
)

const (
	// DefaultCommand is the engine executable looked up in PATH.
	DefaultCommand = "audiveris"

	// DefaultJavaOptions keeps the engine's JVM inside a small host.
	DefaultJavaOptions = "-Xmx192m -XX:+UseSerialGC -XX:MaxMetaspaceSize=64m"

	// DefaultTimeout is the wall-clock bound on a single engine run.
	DefaultTimeout = 120 * time.Second

	// JavaOptionsEnv is the variable the JVM reads extra options from.
	JavaOptionsEnv = "JAVA_TOOL_OPTIONS"

	maxErrorRunes = 500
	maxTailRunes  = 300
	tailLines     = 3
	waitDelay     = 5 * time.Second
)

// EngineConfig is the process-wide engine configuration. It is built once at
// startup and not modified afterwards.
type EngineConfig struct {
	// Command is the engine executable name or path.
	Command string

	// JavaOptions is forwarded to the subprocess as JAVA_TOOL_OPTIONS.
	// Empty leaves the inherited environment untouched.
	JavaOptions string

	// Timeout bounds a single run. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultEngineConfig returns the configuration used when nothing is set.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Command:     DefaultCommand,
		JavaOptions: DefaultJavaOptions,
		Timeout:     DefaultTimeout,
	}
}

// InvokeResult describes one engine run.
type InvokeResult struct {
	// OK is true when the engine exited zero.
	OK bool

	// Kind classifies the failure when OK is false.
	Kind FailureKind

	// Note explains the failure when OK is false.
	Note string

	// StderrTail holds the last engine log lines of a successful run.
	StderrTail string

	// ExitCode is the process exit code, or -1 when it did not exit normally.
	ExitCode int

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// Runner runs the engine on one input file.
type Runner interface {
	Invoke(ctx context.Context, inputPath, outputDir string) InvokeResult
}

// Invoker runs the engine as a subprocess bounded by a timeout.
type Invoker struct {
	cfg EngineConfig
}

// Ensure Invoker implements Runner at compile time.
var _ Runner = (*Invoker)(nil)

// NewInvoker returns an Invoker for cfg, filling in defaults for unset fields.
func NewInvoker(cfg EngineConfig) *Invoker {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Invoker{cfg: cfg}
}

// Config returns the effective configuration.
func (i *Invoker) Config() EngineConfig { return i.cfg }

// Args returns the engine arguments for one run.
func Args(inputPath, outputDir string) []string {
	return []string{"-batch", "-transcribe", "-export", "-output", outputDir, inputPath}
}

// Invoke runs the engine on inputPath, writing into outputDir. Cancellation
// of ctx does not stop a started run; only the configured timeout does, and
// on expiry the whole process group is killed.
func (i *Invoker) Invoke(ctx context.Context, inputPath, outputDir string) InvokeResult {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, i.cfg.Command, Args(inputPath, outputDir)...)
	cmd.Env = i.environ()
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	stdout := newOutputCapture(captureLimit)
	stderr := newOutputCapture(captureLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	debug.Log("engine", "starting", "command", i.cfg.Command, "input", inputPath, "output", outputDir)

	start := time.Now()
	err := cmd.Run()
	res := InvokeResult{Duration: time.Since(start), ExitCode: -1}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil || errors.Is(err, exec.ErrWaitDelay) && runCtx.Err() == nil:
		res.OK = true
		res.StderrTail = lastLines(stderr.Tail(), tailLines, maxTailRunes)
	case cmd.ProcessState == nil && isNotFound(err):
		res.Kind = KindNotFound
		res.Note = fmt.Sprintf("OMR engine not found (command %q not in PATH).", i.cfg.Command)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Kind = KindTimeout
		res.Note = fmt.Sprintf("OMR engine timed out after %g seconds.", i.cfg.Timeout.Seconds())
	case errors.As(err, &exitErr):
		res.Kind = KindExit
		res.Note = "OMR engine error: " + truncateRunes(firstNonEmpty(stderr.Head(), stdout.Head(), err.Error()), maxErrorRunes)
	default:
		res.Kind = KindStart
		res.Note = "Error: " + err.Error()
	}

	level := slog.LevelInfo
	if !res.OK {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "engine finished",
		"ok", res.OK,
		"kind", string(res.Kind),
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration.Milliseconds(),
	)
	debug.Log("engine", "output",
		"stderr_head", debug.Truncate(stderr.Head(), 2000),
		"stderr_tail", debug.Truncate(stderr.Tail(), 2000),
		"stdout_head", debug.Truncate(stdout.Head(), 2000),
		"truncated", stderr.Truncated() || stdout.Truncated(),
	)

	return res
}

// environ returns the inherited environment with JAVA_TOOL_OPTIONS replaced.
func (i *Invoker) environ() []string {
	env := os.Environ()
	if i.cfg.JavaOptions == "" {
		return env
	}
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, JavaOptionsEnv+"=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, JavaOptionsEnv+"="+i.cfg.JavaOptions)
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// lastLines returns the last n lines of s, bounded to maxRunes.
func lastLines(s string, n, maxRunes int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return truncateRunes(strings.TrimSpace(strings.Join(lines, "\n")), maxRunes)
}
