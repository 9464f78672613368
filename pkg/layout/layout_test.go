package layout

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLayout_Paths(t *testing.T) {
	l := New("/out")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"view", l.ViewPath("R58M"), "/out/R58M/views/view.xml"},
		{"log", l.LogPath("R58M", "ar_routing"), "/out/R58M/logs/logs-ar_routing.txt"},
		{"screenshot", l.ScreenshotPath("R58M", "ar_routing_map"), "/out/R58M/images/ar_routing_map.png"},
		{"network serial", l.DeviceDir("192.168.0.7:5555"), "/out/192.168.0.7_5555"},
		{"report", l.ReportPath(), "/out/report.json"},
		{"log file", l.LogFilePath(), "/out/smoke-runner.log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if filepath.ToSlash(tt.got) != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestLayout_DevicesDoNotCollide(t *testing.T) {
	l := New("/out")
	if l.ScreenshotPath("a", "s") == l.ScreenshotPath("b", "s") {
		t.Error("devices must have separate trees")
	}
}

func TestLayout_Prepare(t *testing.T) {
	l := New(t.TempDir())
	if err := l.Prepare("emulator-5554"); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"views", "logs", "images"} {
		info, err := os.Stat(filepath.Join(l.DeviceDir("emulator-5554"), sub))
		if err != nil || !info.IsDir() {
			t.Errorf("missing %s dir: %v", sub, err)
		}
	}
}
