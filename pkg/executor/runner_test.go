package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/config"
	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/device/mock"
	"github.com/devicelab-dev/smoke-runner/pkg/layout"
)

const teaser = "com.mapbox.vision.teaser"

func hierarchy(elements ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<hierarchy rotation="0"><node resource-id="" class="android.widget.FrameLayout" bounds="[0,0][1000,2000]">`)
	for _, e := range elements {
		fmt.Fprintf(&b, `<node resource-id="%s:id/%s" bounds="%s"/>`, teaser, e[0], e[1])
	}
	b.WriteString(`</node></hierarchy>`)
	return b.String()
}

var (
	mainScreen = hierarchy(
		[2]string{"sign_detection_container", "[0,300][500,700]"},
		[2]string{"segm_container", "[500,300][1000,700]"},
		[2]string{"det_container", "[0,700][500,1100]"},
		[2]string{"line_detection_container", "[500,700][1000,1100]"},
		[2]string{"distance_container", "[0,1100][500,1500]"},
		[2]string{"ar_navigation_button_container", "[501,1100][1000,1501]"},
	)
	mapScreen = hierarchy([2]string{"start_ar", "[400,900][600,1000]"})
)

func instant(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newConfig(t *testing.T) RunnerConfig {
	t.Helper()
	return RunnerConfig{
		Config: config.Default(),
		Layout: layout.New(t.TempDir()),
		Sleep:  instant,
	}
}

func healthyDevice(serial string) *mock.Device {
	return mock.New(mock.Config{Serial: serial, Snapshots: []string{mainScreen, mapScreen}})
}

func TestRunner_Run_AllPassed(t *testing.T) {
	dev := healthyDevice("dev1")
	result := New(newConfig(t)).Run(context.Background(), []core.Device{dev})

	if result.Status != core.StatusPassed {
		t.Fatalf("expected passed, got %s (%+v)", result.Status, result.Devices)
	}
	if result.RunID == "" {
		t.Error("run id must be set")
	}
	d := result.Devices[0]
	if d.Serial != "dev1" || len(d.Screens) != 6 || d.PassedScreens != 6 {
		t.Errorf("unexpected device result %+v", d)
	}
}

func TestRunner_RunID(t *testing.T) {
	cfg := newConfig(t)
	cfg.RunID = "fixed-id"
	result := New(cfg).Run(context.Background(), []core.Device{healthyDevice("dev1")})
	if result.RunID != "fixed-id" {
		t.Errorf("run id = %q", result.RunID)
	}
}

func TestRunner_Lifecycle(t *testing.T) {
	dev := healthyDevice("dev1")
	New(newConfig(t)).Run(context.Background(), []core.Device{dev})

	calls := dev.Calls()
	if calls[0].Op != mock.OpUninstall || calls[1].Op != mock.OpClearLogs || calls[2].Op != mock.OpInstall {
		t.Errorf("unexpected lifecycle start: %+v", calls[:3])
	}
	if !strings.HasSuffix(calls[2].Arg, "app-arm64-v8a-release.apk grant=true") {
		t.Errorf("install must grant permissions: %s", calls[2].Arg)
	}
	if calls[3].Op != mock.OpLaunch {
		t.Errorf("discovery should follow install, got %s", calls[3].Op)
	}
	if last := calls[len(calls)-1]; last.Op != mock.OpUninstall {
		t.Errorf("expected final uninstall, got %s", last.Op)
	}
}

func TestRunner_UninstallFailureIsWarning(t *testing.T) {
	dev := mock.New(mock.Config{Serial: "dev1", Snapshots: []string{mainScreen, mapScreen}, FailOn: mock.OpUninstall})
	result := New(newConfig(t)).Run(context.Background(), []core.Device{dev})

	if result.Devices[0].Status != core.StatusPassed {
		t.Errorf("uninstall failures must not fail the device: %+v", result.Devices[0])
	}
}

func TestRunner_InstallFailure(t *testing.T) {
	dev := mock.New(mock.Config{Serial: "dev1", FailOn: mock.OpInstall})
	result := New(newConfig(t)).Run(context.Background(), []core.Device{dev})

	d := result.Devices[0]
	if d.Status != core.StatusErrored || !strings.Contains(d.Error, "install") {
		t.Errorf("expected errored device, got %+v", d)
	}
	if n := len(dev.CallsOf(mock.OpLaunch)); n != 0 {
		t.Errorf("nothing should launch after a failed install, got %d launches", n)
	}
}

func TestRunner_DiscoveryFailureSkipsReplay(t *testing.T) {
	broken := hierarchy([2]string{"sign_detection_container", "[0,300][500,700]"})
	bad := mock.New(mock.Config{Serial: "bad", Snapshots: []string{broken}})
	good := healthyDevice("good")

	result := New(newConfig(t)).Run(context.Background(), []core.Device{bad, good})

	if result.Status != core.StatusErrored || result.ErroredDevices != 1 || result.PassedDevices != 1 {
		t.Errorf("unexpected summary %+v", result)
	}
	d := result.Devices[0]
	if d.Serial != "bad" || len(d.Screens) != 0 || !strings.Contains(d.Error, "discovery") {
		t.Errorf("unexpected device result %+v", d)
	}
	if n := len(bad.CallsOf(mock.OpScreenshot)); n != 0 {
		t.Errorf("no replay expected, got %d screenshots", n)
	}
	if result.Devices[1].Status != core.StatusPassed {
		t.Error("second device must still run")
	}
}

func TestRunner_CrashFailsDevice(t *testing.T) {
	dev := mock.New(mock.Config{
		Serial:     "dev1",
		Snapshots:  []string{mainScreen, mapScreen},
		CrashOnTap: []core.Point{{X: 750, Y: 500}}, // segmentation
	})
	result := New(newConfig(t)).Run(context.Background(), []core.Device{dev})

	d := result.Devices[0]
	if d.Status != core.StatusFailed || d.FailedScreens != 1 || d.PassedScreens != 5 {
		t.Errorf("unexpected device result %+v", d)
	}
	if d.Screens[1].FailureReason != core.FailureExceptionInLogs {
		t.Errorf("segmentation should fail with a crash, got %+v", d.Screens[1])
	}
}

func TestRunner_ReplayAbortKeepsPartialScreens(t *testing.T) {
	// Discovery launches once; replay fails on its third launch.
	dev := mock.New(mock.Config{
		Serial:    "dev1",
		Snapshots: []string{mainScreen, mapScreen},
		FailOn:    mock.OpLaunch,
		FailAfter: 3,
	})
	result := New(newConfig(t)).Run(context.Background(), []core.Device{dev})

	d := result.Devices[0]
	if d.Status != core.StatusErrored {
		t.Fatalf("expected errored device, got %s", d.Status)
	}
	if len(d.Screens) != 3 || !d.Screens[0].Succeeded || !d.Screens[1].Succeeded || d.Screens[2].Succeeded {
		t.Errorf("unexpected partial screens %+v", d.Screens)
	}
}

func TestRunner_Run_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := New(newConfig(t)).Run(ctx, []core.Device{healthyDevice("a"), healthyDevice("b")})
	for _, d := range result.Devices {
		if d.Status != core.StatusSkipped {
			t.Errorf("%s: expected skipped, got %s", d.Serial, d.Status)
		}
	}
	if result.Status != core.StatusErrored || result.SkippedDevices != 2 || result.PassedDevices != 0 {
		t.Errorf("cancelled run: status=%s passed=%d skipped=%d", result.Status, result.PassedDevices, result.SkippedDevices)
	}
}

func TestRunner_Callbacks(t *testing.T) {
	cfg := newConfig(t)
	var phases []string
	var screens int
	var ended []string
	cfg.OnPhase = func(serial, phase string) { phases = append(phases, phase) }
	cfg.OnScreenEnd = func(serial string, r core.ScreenResult) { screens++ }
	cfg.OnDeviceEnd = func(r core.DeviceResult) { ended = append(ended, r.Serial) }

	New(cfg).Run(context.Background(), []core.Device{healthyDevice("dev1")})

	want := []string{PhaseUninstall, PhaseInstall, PhaseDiscovery, PhaseReplay, PhaseCleanup}
	if strings.Join(phases, ",") != strings.Join(want, ",") {
		t.Errorf("phases = %v, want %v", phases, want)
	}
	if screens != 6 || len(ended) != 1 {
		t.Errorf("screens = %d, ended = %v", screens, ended)
	}
}

func TestParallelRunner_Run(t *testing.T) {
	devices := []core.Device{healthyDevice("a"), mock.New(mock.Config{Serial: "b", FailOn: mock.OpInstall}), healthyDevice("c")}

	cfg := newConfig(t)
	var mu sync.Mutex
	started := map[string]bool{}
	cfg.OnDeviceStart = func(idx, total int, serial string) {
		mu.Lock()
		started[serial] = true
		mu.Unlock()
	}

	result, err := NewParallelRunner(devices, cfg).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(started) != 3 {
		t.Errorf("expected 3 devices started, got %v", started)
	}
	for i, want := range []string{"a", "b", "c"} {
		if result.Devices[i].Serial != want {
			t.Errorf("result %d is %s, want %s", i, result.Devices[i].Serial, want)
		}
	}
	if result.PassedDevices != 2 || result.ErroredDevices != 1 {
		t.Errorf("unexpected summary %+v", result)
	}
}

func TestParallelRunner_NoDevices(t *testing.T) {
	_, err := NewParallelRunner(nil, newConfig(t)).Run(context.Background())
	if err != core.ErrNoDevices {
		t.Errorf("expected ErrNoDevices, got %v", err)
	}
}

func TestParallelRunner_Limit(t *testing.T) {
	devices := []core.Device{healthyDevice("a"), healthyDevice("b"), healthyDevice("c")}
	pr := NewParallelRunner(devices, newConfig(t))
	pr.Limit = 1

	result, err := pr.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalDevices != 3 || result.Status != core.StatusPassed {
		t.Errorf("unexpected summary %+v", result)
	}
}
