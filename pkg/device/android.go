// Package device provides Android device control via ADB.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/logger"
)

// Remote scratch files on the device
const (
	RemoteHierarchyPath  = "/sdcard/window_dump.xml"
	RemoteLogPath        = "/sdcard/smoke_logs.txt"
	RemoteScreenshotPath = "/sdcard/smoke_screenshot.png"
)

// CommandFunc runs a host command and returns its stdout.
// Replaced in tests to avoid a real adb.
type CommandFunc func(ctx context.Context, name string, args ...string) (string, error)

var _ core.Device = (*AndroidDevice)(nil)

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial  string
	adbPath string
	timeout time.Duration
	run     CommandFunc
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string `json:"serial"`
	State      string `json:"state"`
	Model      string `json:"model,omitempty"`
	SDK        string `json:"sdk,omitempty"`
	Brand      string `json:"brand,omitempty"`
	IsEmulator bool   `json:"isEmulator"`
}

// Option configures an AndroidDevice.
type Option func(*AndroidDevice)

// WithTimeout bounds every adb invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *AndroidDevice) { a.timeout = d }
}

// WithCommandFunc replaces the process runner.
func WithCommandFunc(fn CommandFunc) Option {
	return func(a *AndroidDevice) { a.run = fn }
}

// WithADBPath skips the PATH lookup.
func WithADBPath(path string) Option {
	return func(a *AndroidDevice) { a.adbPath = path }
}

// New creates an AndroidDevice for the given serial.
func New(serial string, opts ...Option) (*AndroidDevice, error) {
	if serial == "" {
		return nil, core.ErrMissingRequired.WithMessage("device serial is required")
	}

	d := &AndroidDevice{
		serial: serial,
		run:    runCommand,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.adbPath == "" {
		adbPath, err := FindADB()
		if err != nil {
			return nil, err
		}
		d.adbPath = adbPath
	}

	return d, nil
}

// ListDevices returns the devices reported by `adb devices`, in the
// order adb lists them.
func ListDevices(ctx context.Context, opts ...Option) ([]DeviceInfo, error) {
	d := &AndroidDevice{run: runCommand}
	for _, opt := range opts {
		opt(d)
	}
	if d.adbPath == "" {
		adbPath, err := FindADB()
		if err != nil {
			return nil, err
		}
		d.adbPath = adbPath
	}

	out, err := d.adb(ctx, "devices")
	if err != nil {
		return nil, err
	}
	return ParseDevices(out), nil
}

// ParseDevices parses `adb devices` output.
func ParseDevices(out string) []DeviceInfo {
	var devices []DeviceInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		devices = append(devices, DeviceInfo{
			Serial:     parts[0],
			State:      parts[1],
			IsEmulator: strings.HasPrefix(parts[0], "emulator-"),
		})
	}
	return devices
}

// OnlineSerials filters devices to those in the "device" state.
func OnlineSerials(devices []DeviceInfo) []string {
	var serials []string
	for _, d := range devices {
		if d.State == "device" {
			serials = append(serials, d.Serial)
		}
	}
	return serials
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(ctx context.Context, cmd string) (string, error) {
	return d.adb(ctx, "shell", cmd)
}

// Install installs an APK on the device.
func (d *AndroidDevice) Install(ctx context.Context, apkPath string, grantPermissions bool) error {
	args := []string{"install"}
	if grantPermissions {
		args = append(args, "-g")
	}
	args = append(args, apkPath)
	_, err := d.adb(ctx, args...)
	return err
}

// Uninstall removes a package from the device, keeping its data.
func (d *AndroidDevice) Uninstall(ctx context.Context, pkg string) error {
	_, err := d.Shell(ctx, "pm uninstall -k "+pkg)
	return err
}

// Launch starts an activity.
func (d *AndroidDevice) Launch(ctx context.Context, pkg, activity string) error {
	_, err := d.Shell(ctx, fmt.Sprintf("am start -n %s/%s", pkg, activity))
	return err
}

// ForceStop kills the app.
func (d *AndroidDevice) ForceStop(ctx context.Context, pkg string) error {
	_, err := d.Shell(ctx, "am force-stop "+pkg)
	return err
}

// Tap injects a tap.
func (d *AndroidDevice) Tap(ctx context.Context, p core.Point) error {
	_, err := d.Shell(ctx, fmt.Sprintf("input tap %d %d", p.X, p.Y))
	return err
}

// DumpHierarchy dumps the UI hierarchy on the device and pulls it to localPath.
func (d *AndroidDevice) DumpHierarchy(ctx context.Context, localPath string) error {
	if _, err := d.Shell(ctx, "uiautomator dump "+RemoteHierarchyPath); err != nil {
		return err
	}
	return d.PullFile(ctx, RemoteHierarchyPath, localPath)
}

// PullFile copies a file from the device, creating local parent dirs.
func (d *AndroidDevice) PullFile(ctx context.Context, remotePath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(localPath), err)
	}
	_, err := d.adb(ctx, "pull", remotePath, localPath)
	return err
}

// ClearLogs clears the logcat buffers.
func (d *AndroidDevice) ClearLogs(ctx context.Context) error {
	_, err := d.adb(ctx, "logcat", "-c")
	return err
}

// CaptureLogs dumps logcat at minSeverity and above to localPath.
func (d *AndroidDevice) CaptureLogs(ctx context.Context, minSeverity, localPath string) error {
	if minSeverity == "" {
		minSeverity = "D"
	}
	if _, err := d.adb(ctx, "logcat", "*:"+minSeverity, "-d", "-f", RemoteLogPath); err != nil {
		return err
	}
	return d.PullFile(ctx, RemoteLogPath, localPath)
}

// Screenshot captures the screen to localPath and removes the device copy.
func (d *AndroidDevice) Screenshot(ctx context.Context, localPath string) error {
	if _, err := d.Shell(ctx, "/system/bin/screencap -p "+RemoteScreenshotPath); err != nil {
		return err
	}
	if err := d.PullFile(ctx, RemoteScreenshotPath, localPath); err != nil {
		return err
	}
	if _, err := d.Shell(ctx, "rm "+RemoteScreenshotPath); err != nil {
		logger.Warn("failed to remove %s on %s: %v", RemoteScreenshotPath, d.serial, err)
	}
	return nil
}

// Info returns device information.
func (d *AndroidDevice) Info(ctx context.Context) (DeviceInfo, error) {
	info := DeviceInfo{Serial: d.serial, State: "device"}

	if model, err := d.Shell(ctx, "getprop ro.product.model"); err == nil {
		info.Model = strings.TrimSpace(model)
	}
	if sdk, err := d.Shell(ctx, "getprop ro.build.version.sdk"); err == nil {
		info.SDK = strings.TrimSpace(sdk)
	}
	if brand, err := d.Shell(ctx, "getprop ro.product.brand"); err == nil {
		info.Brand = strings.TrimSpace(brand)
	}

	chars, _ := d.Shell(ctx, "getprop ro.kernel.qemu")
	info.IsEmulator = strings.TrimSpace(chars) == "1"

	return info, nil
}

// adb executes an ADB command under the per-call timeout.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	logger.Debug("adb %s", strings.Join(cmdArgs, " "))
	out, err := d.run(ctx, d.adbPath, cmdArgs...)
	if err != nil {
		details := map[string]interface{}{"serial": d.serial, "args": strings.Join(args, " ")}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", core.ErrTimeout.WithCause(fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)).WithDetails(details)
		}
		return "", core.ErrDeviceCommunication.WithCause(fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)).WithDetails(details)
	}
	return out, nil
}

// runCommand is the default CommandFunc.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(errMsg))
	}

	return stdout.String(), nil
}

// FindADB locates the ADB binary.
func FindADB() (string, error) {
	// Try PATH first
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}

	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if sdk := os.Getenv(env); sdk != "" {
			candidate := filepath.Join(sdk, "platform-tools", "adb")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}

	return "", core.ErrMissingRequired.WithMessage("adb not found in PATH or $ANDROID_HOME/platform-tools")
}
