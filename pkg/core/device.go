package core

import (
	"context"
	"time"
)

// Device defines the device-control capabilities the discovery and replay
// protocols need. Implementations: device.AndroidDevice (adb), mock.Device.
// Every call blocks until the underlying command completes and returns an
// error wrapping ErrDeviceCommunication or ErrTimeout on failure.
type Device interface {
	// Serial returns the device identifier used to partition output.
	Serial() string

	// Install installs an APK, optionally granting all runtime permissions
	Install(ctx context.Context, apkPath string, grantPermissions bool) error

	// Uninstall removes a package, keeping its data directory
	Uninstall(ctx context.Context, pkg string) error

	// Launch starts the given activity of a package
	Launch(ctx context.Context, pkg, activity string) error

	// ForceStop kills the package's processes
	ForceStop(ctx context.Context, pkg string) error

	// Tap injects a single tap at p
	Tap(ctx context.Context, p Point) error

	// DumpHierarchy writes the current UI hierarchy XML to localPath
	DumpHierarchy(ctx context.Context, localPath string) error

	// PullFile copies a device file to localPath
	PullFile(ctx context.Context, remotePath, localPath string) error

	// ClearLogs empties the device log buffers
	ClearLogs(ctx context.Context) error

	// CaptureLogs dumps logs at or above minSeverity (V, D, I, W, E, F) to localPath
	CaptureLogs(ctx context.Context, minSeverity, localPath string) error

	// Screenshot writes a PNG of the current screen to localPath
	Screenshot(ctx context.Context, localPath string) error
}

// Point is a pixel coordinate on the device canvas
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Bounds is a node's rectangle as reported by uiautomator: [X1,Y1][X2,Y2]
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Center returns the floor midpoint of the bounds on both axes.
func (b Bounds) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Width returns X2-X1
func (b Bounds) Width() int { return b.X2 - b.X1 }

// Height returns Y2-Y1
func (b Bounds) Height() int { return b.Y2 - b.Y1 }

// Contains checks if a point is within the bounds (right/bottom edges exclusive)
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X1 && p.X < b.X2 && p.Y >= b.Y1 && p.Y < b.Y2
}

// Valid reports whether the corners are ordered and non-negative.
func (b Bounds) Valid() bool {
	return b.X1 >= 0 && b.Y1 >= 0 && b.X1 <= b.X2 && b.Y1 <= b.Y2
}

// Sleeper waits for d or until ctx is done. Settle delays go through a
// Sleeper so protocol tests can run without real waits.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
