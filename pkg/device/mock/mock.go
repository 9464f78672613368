// Package mock provides a fake device for testing the discovery and replay
// protocols without hardware.
package mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
)

var _ core.Device = (*Device)(nil)

// Operation names recorded in Calls
const (
	OpInstall       = "install"
	OpUninstall     = "uninstall"
	OpLaunch        = "launch"
	OpForceStop     = "force-stop"
	OpTap           = "tap"
	OpDumpHierarchy = "dump"
	OpPullFile      = "pull"
	OpClearLogs     = "clear-logs"
	OpCaptureLogs   = "capture-logs"
	OpScreenshot    = "screenshot"
)

// Call is one recorded device operation.
type Call struct {
	Op   string
	Arg  string
	Tap  core.Point
	Path string
}

// Device is an in-memory core.Device.
type Device struct {
	Config Config

	mu        sync.Mutex
	calls     []Call
	dumpCount int
	logLines  []string
	launched  bool
}

// Config configures mock behavior.
type Config struct {
	Serial string

	// Snapshots are returned by successive DumpHierarchy calls; the last
	// one repeats once the list is exhausted.
	Snapshots []string

	// CrashOnTap appends CrashLine to the log buffer when a tap lands on
	// one of these points.
	CrashOnTap []core.Point
	CrashLine  string

	// BackgroundLog is present in every capture (noise that must not match).
	BackgroundLog []string

	// FailOn makes the named operation fail with a communication error.
	// FailAfter delays the failure until the op has succeeded that many times.
	FailOn    string
	FailAfter int
}

// DefaultCrashLine is a typical fatal exception line.
const DefaultCrashLine = "E AndroidRuntime: FATAL EXCEPTION: main Process: com.mapbox.vision.teaser, PID: 4242"

// New creates a new mock device.
func New(cfg Config) *Device {
	if cfg.Serial == "" {
		cfg.Serial = "mock-device"
	}
	if cfg.CrashLine == "" {
		cfg.CrashLine = DefaultCrashLine
	}
	return &Device{Config: cfg}
}

// Serial returns the configured serial.
func (d *Device) Serial() string { return d.Config.Serial }

// Calls returns a copy of the recorded operations.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// CallsOf returns the recorded operations with the given name.
func (d *Device) CallsOf(op string) []Call {
	var out []Call
	for _, c := range d.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Taps returns every tapped point in order.
func (d *Device) Taps() []core.Point {
	var out []core.Point
	for _, c := range d.CallsOf(OpTap) {
		out = append(out, c.Tap)
	}
	return out
}

// Launched reports whether the app is currently running.
func (d *Device) Launched() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launched
}

func (d *Device) record(c Call) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, c)
	if d.Config.FailOn == c.Op {
		n := 0
		for _, prev := range d.calls {
			if prev.Op == c.Op {
				n++
			}
		}
		if n > d.Config.FailAfter {
			return core.ErrDeviceCommunication.WithCause(fmt.Errorf("mock %s failure", c.Op))
		}
	}
	return nil
}

// Install records the install.
func (d *Device) Install(_ context.Context, apkPath string, grant bool) error {
	return d.record(Call{Op: OpInstall, Arg: fmt.Sprintf("%s grant=%v", apkPath, grant)})
}

// Uninstall records the uninstall.
func (d *Device) Uninstall(_ context.Context, pkg string) error {
	return d.record(Call{Op: OpUninstall, Arg: pkg})
}

// Launch marks the app as running.
func (d *Device) Launch(_ context.Context, pkg, activity string) error {
	if err := d.record(Call{Op: OpLaunch, Arg: pkg + "/" + activity}); err != nil {
		return err
	}
	d.mu.Lock()
	d.launched = true
	d.mu.Unlock()
	return nil
}

// ForceStop marks the app as stopped.
func (d *Device) ForceStop(_ context.Context, pkg string) error {
	if err := d.record(Call{Op: OpForceStop, Arg: pkg}); err != nil {
		return err
	}
	d.mu.Lock()
	d.launched = false
	d.mu.Unlock()
	return nil
}

// Tap records the tap and injects a crash line for configured points.
func (d *Device) Tap(_ context.Context, p core.Point) error {
	if err := d.record(Call{Op: OpTap, Tap: p}); err != nil {
		return err
	}
	for _, c := range d.Config.CrashOnTap {
		if c == p {
			d.mu.Lock()
			d.logLines = append(d.logLines, d.Config.CrashLine)
			d.mu.Unlock()
		}
	}
	return nil
}

// DumpHierarchy writes the next configured snapshot to localPath.
func (d *Device) DumpHierarchy(_ context.Context, localPath string) error {
	if err := d.record(Call{Op: OpDumpHierarchy, Path: localPath}); err != nil {
		return err
	}

	d.mu.Lock()
	if len(d.Config.Snapshots) == 0 {
		d.mu.Unlock()
		return core.ErrDeviceCommunication.WithCause(fmt.Errorf("mock has no snapshots"))
	}
	idx := d.dumpCount
	if idx >= len(d.Config.Snapshots) {
		idx = len(d.Config.Snapshots) - 1
	}
	d.dumpCount++
	xml := d.Config.Snapshots[idx]
	d.mu.Unlock()

	return writeFile(localPath, []byte(xml))
}

// PullFile writes an empty file at localPath.
func (d *Device) PullFile(_ context.Context, remotePath, localPath string) error {
	if err := d.record(Call{Op: OpPullFile, Arg: remotePath, Path: localPath}); err != nil {
		return err
	}
	return writeFile(localPath, nil)
}

// ClearLogs empties the log buffer.
func (d *Device) ClearLogs(_ context.Context) error {
	if err := d.record(Call{Op: OpClearLogs}); err != nil {
		return err
	}
	d.mu.Lock()
	d.logLines = nil
	d.mu.Unlock()
	return nil
}

// CaptureLogs writes background lines plus any injected crash lines.
func (d *Device) CaptureLogs(_ context.Context, minSeverity, localPath string) error {
	if err := d.record(Call{Op: OpCaptureLogs, Arg: minSeverity, Path: localPath}); err != nil {
		return err
	}
	d.mu.Lock()
	lines := append(append([]string(nil), d.Config.BackgroundLog...), d.logLines...)
	d.mu.Unlock()

	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	return writeFile(localPath, []byte(content))
}

// Screenshot writes a minimal PNG to localPath.
func (d *Device) Screenshot(_ context.Context, localPath string) error {
	if err := d.record(Call{Op: OpScreenshot, Path: localPath}); err != nil {
		return err
	}
	return writeFile(localPath, pngBytes)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Minimal valid PNG (1x1 transparent pixel)
var pngBytes = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}
