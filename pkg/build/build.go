// Package build produces the APK under test by running the project's build
// command.
package build

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/logger"
)

// Builder runs a build command inside a project directory.
type Builder struct {
	Dir     string
	Command string

	// Output receives the command's stdout and stderr.
	Output io.Writer
}

// New creates a Builder whose output goes to the run log.
func New(dir, command string) *Builder {
	return &Builder{
		Dir:     dir,
		Command: command,
		Output:  logger.GetWriter(),
	}
}

// Build runs the command and waits for it. A non-zero exit is
// core.ErrBuildFailed.
func (b *Builder) Build(ctx context.Context) error {
	args := strings.Fields(b.Command)
	if len(args) == 0 {
		return core.ErrMissingRequired.WithMessage("build command is empty")
	}

	out := b.Output
	if out == nil {
		out = io.Discard
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //#nosec G204 -- command comes from the user's config
	cmd.Dir = b.Dir
	cmd.Stdout = out
	cmd.Stderr = out

	logger.Info("build: %s (in %s)", b.Command, b.Dir)
	start := time.Now()
	if err := cmd.Run(); err != nil {
		return core.ErrBuildFailed.WithCause(fmt.Errorf("%s: %w", b.Command, err))
	}
	logger.Info("build finished in %s", time.Since(start).Round(time.Millisecond))
	return nil
}
