// Package layout decides where run artifacts are written.
//
//	<root>/report.json
//	<root>/smoke-runner.log
//	<root>/<serial>/views/view.xml
//	<root>/<serial>/logs/logs-<screen>.txt
//	<root>/<serial>/images/<screen>.png
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout is rooted at the run's output directory.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root.
func New(root string) Layout {
	return Layout{Root: root}
}

var serialReplacer = strings.NewReplacer(":", "_", "/", "_", "\\", "_")

// DeviceDir returns the directory owned by one device.
func (l Layout) DeviceDir(serial string) string {
	return filepath.Join(l.Root, serialReplacer.Replace(serial))
}

// ViewPath is where hierarchy dumps are pulled.
func (l Layout) ViewPath(serial string) string {
	return filepath.Join(l.DeviceDir(serial), "views", "view.xml")
}

// LogPath is where a screen's device log is pulled.
func (l Layout) LogPath(serial, screenID string) string {
	return filepath.Join(l.DeviceDir(serial), "logs", fmt.Sprintf("logs-%s.txt", screenID))
}

// ScreenshotPath is where a screenshot named name is pulled.
func (l Layout) ScreenshotPath(serial, name string) string {
	return filepath.Join(l.DeviceDir(serial), "images", name+".png")
}

// ReportPath is the run report.
func (l Layout) ReportPath() string {
	return filepath.Join(l.Root, "report.json")
}

// LogFilePath is the runner's own log file.
func (l Layout) LogFilePath() string {
	return filepath.Join(l.Root, "smoke-runner.log")
}

// Prepare creates the device's directories.
func (l Layout) Prepare(serial string) error {
	for _, dir := range []string{
		filepath.Dir(l.ViewPath(serial)),
		filepath.Dir(l.LogPath(serial, "x")),
		filepath.Dir(l.ScreenshotPath(serial, "x")),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
