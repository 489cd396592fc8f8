//go:build !unix

package omr

import "os/exec"

// configureProcessGroup keeps the default cancellation, which kills the
// engine process itself.
func configureProcessGroup(*exec.Cmd) {}
