//go:build unix

package omr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestInvokeTimeoutKillsProcessGroup(t *testing.T) {
	out := t.TempDir()
	engine := fakeEngine(t, `sleep 30 &
echo $! > "$5/child.pid"
wait`)

	start := time.Now()
	res := NewInvoker(EngineConfig{Command: engine, Timeout: 300 * time.Millisecond}).Invoke(context.Background(), "in.png", out)
	elapsed := time.Since(start)

	if res.Kind != KindTimeout {
		t.Fatalf("Kind = %q, want %q (note %q)", res.Kind, KindTimeout, res.Note)
	}
	if !strings.Contains(res.Note, "timed out after 0.3 seconds") {
		t.Errorf("Note = %q", res.Note)
	}
	// A surviving child keeps the output pipes open until WaitDelay.
	if elapsed >= 3*time.Second {
		t.Errorf("Invoke() took %v after a 300ms timeout", elapsed)
	}

	data, err := os.ReadFile(filepath.Join(out, "child.pid"))
	if err != nil {
		t.Fatalf("reading child pid: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parsing child pid %q: %v", data, err)
	}
	if !processGone(pid, 2*time.Second) {
		syscall.Kill(pid, syscall.SIGKILL)
		t.Errorf("engine child %d outlived the timeout", pid)
	}
}

// processGone polls until pid no longer exists or is a zombie waiting to
// be reaped.
func processGone(pid int, within time.Duration) bool {
	deadline := time.Now().Add(within)
	for {
		if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
			return true
		}
		if processState(pid) == "Z" {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// processState returns the state letter from /proc/<pid>/stat, or "" where
// procfs is unavailable.
func processState(pid int) string {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return ""
	}
	s := string(data)
	i := strings.LastIndexByte(s, ')')
	if i < 0 {
		return ""
	}
	fields := strings.Fields(s[i+1:])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
