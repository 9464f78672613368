package logscan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var teaser = Signature{PackageMarker: "com.mapbox", RuntimeMarker: "AndroidRuntime"}

func TestScan(t *testing.T) {
	tests := []struct {
		name     string
		logs     string
		want     bool
		wantLine int
	}{
		{
			name: "crash",
			logs: "E Vision: frame dropped\nE AndroidRuntime: Process: com.mapbox.vision.teaser, PID: 1\n",
			want: true, wantLine: 2,
		},
		{
			name: "runtime marker for other app",
			logs: "E AndroidRuntime: Process: com.google.android.gms, PID: 7\n",
			want: false,
		},
		{
			name: "package marker without runtime",
			logs: "E com.mapbox.vision: camera not ready\n",
			want: false,
		},
		{
			name: "markers on different lines",
			logs: "E AndroidRuntime: FATAL EXCEPTION: main\nE Process: com.mapbox.vision.teaser\n",
			want: false,
		},
		{
			name: "empty",
			logs: "",
			want: false,
		},
		{
			name: "no trailing newline",
			logs: "I x\nE AndroidRuntime: at com.mapbox.vision.Foo.bar",
			want: true, wantLine: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok, err := Scan(strings.NewReader(tt.logs), teaser)
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.want {
				t.Fatalf("Scan() matched = %v, want %v", ok, tt.want)
			}
			if ok && m.Number != tt.wantLine {
				t.Errorf("line = %d, want %d", m.Number, tt.wantLine)
			}
		})
	}
}

func TestScan_LongLines(t *testing.T) {
	long := strings.Repeat("x", 2<<20)

	_, ok, err := Scan(strings.NewReader("I Vision: "+long+"\n"), teaser)
	if err != nil || ok {
		t.Fatalf("clean long line: ok=%v err=%v", ok, err)
	}

	logs := "I Vision: " + long + "\nE AndroidRuntime: Process: com.mapbox.vision.teaser\n"
	m, ok, err := Scan(strings.NewReader(logs), teaser)
	if err != nil || !ok {
		t.Fatalf("expected match after long line, got ok=%v err=%v", ok, err)
	}
	if m.Number != 2 {
		t.Errorf("line = %d, want 2", m.Number)
	}

	m, ok, _ = Scan(strings.NewReader("E AndroidRuntime: com.mapbox "+long+"\r\n"), teaser)
	if !ok || strings.HasSuffix(m.Line, "\r") {
		t.Errorf("long crash line must match without line terminator, ok=%v", ok)
	}
}

func TestSignature_EmptyMarkers(t *testing.T) {
	line := "I/ActivityManager: Displayed activity"
	for _, sig := range []Signature{
		{},
		{PackageMarker: "com.mapbox"},
		{RuntimeMarker: "AndroidRuntime"},
	} {
		if sig.Valid() {
			t.Errorf("%+v: expected invalid", sig)
		}
		if sig.Matches(line) {
			t.Errorf("%+v must not match %q", sig, line)
		}
	}
	if !teaser.Valid() {
		t.Error("teaser signature should be valid")
	}
}

func TestScanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs-segmentation.txt")
	content := "E AndroidRuntime: Process: com.mapbox.vision.teaser, PID: 4242\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, ok, err := ScanFile(path, teaser)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	if !strings.Contains(m.Line, "PID: 4242") {
		t.Errorf("unexpected line: %s", m.Line)
	}

	if _, _, err := ScanFile(filepath.Join(t.TempDir(), "missing.txt"), teaser); err == nil {
		t.Error("expected error for missing file")
	}
}
