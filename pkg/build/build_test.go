package build

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestBuild_Success(t *testing.T) {
	requireTool(t, "echo")
	var out bytes.Buffer
	b := &Builder{Dir: t.TempDir(), Command: "echo assembled", Output: &out}

	if err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if out.String() != "assembled\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestBuild_RunsInProjectDir(t *testing.T) {
	requireTool(t, "pwd")
	dir := t.TempDir()
	var out bytes.Buffer
	b := &Builder{Dir: dir, Command: "pwd", Output: &out}

	if err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out.Bytes(), []byte(real)) {
		t.Errorf("expected to run in %s, got %q", dir, out.String())
	}
}

func TestBuild_Failure(t *testing.T) {
	requireTool(t, "false")
	b := &Builder{Dir: t.TempDir(), Command: "false"}

	err := b.Build(context.Background())
	if !errors.Is(err, core.ErrBuildFailed) {
		t.Errorf("expected ErrBuildFailed, got %v", err)
	}
}

func TestBuild_MissingExecutable(t *testing.T) {
	b := &Builder{Dir: t.TempDir(), Command: "./gradlew-does-not-exist assemble"}

	if err := b.Build(context.Background()); !errors.Is(err, core.ErrBuildFailed) {
		t.Errorf("expected ErrBuildFailed, got %v", err)
	}
}

func TestBuild_EmptyCommand(t *testing.T) {
	b := &Builder{Command: "  "}
	if err := b.Build(context.Background()); !errors.Is(err, core.ErrMissingRequired) {
		t.Errorf("expected ErrMissingRequired, got %v", err)
	}
}
