package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/device/mock"
	"github.com/devicelab-dev/smoke-runner/pkg/viewtree"
)

func teaserRouted() Routed {
	return Routed{
		Entry:            "ar_navigation_button_container",
		FollowUp:         "start_ar",
		XPercent:         70,
		YPercent:         60,
		EntryDelay:       time.Second,
		DerivedDelay:     2 * time.Second,
		EntrySettle:      4 * time.Second,
		MapSettle:        3 * time.Second,
		MapCaptureSuffix: "_map",
	}
}

func TestRouted_DerivedPoint(t *testing.T) {
	st := teaserRouted()
	tests := []struct {
		w, h int
		want core.Point
	}{
		{1000, 2000, core.Point{X: 700, Y: 1200}},
		{1080, 2280, core.Point{X: 756, Y: 1368}},
		{1079, 2339, core.Point{X: 755, Y: 1403}}, // 755.3, 1403.4
		{1, 1, core.Point{X: 0, Y: 0}},
		{0, 0, core.Point{X: 0, Y: 0}},
		{1440, 3119, core.Point{X: 1008, Y: 1871}}, // 1871.4
	}
	for _, tt := range tests {
		if got := st.DerivedPoint(tt.w, tt.h); got != tt.want {
			t.Errorf("DerivedPoint(%d,%d) = %+v, want %+v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestRouted_DerivedPointIsFloor(t *testing.T) {
	st := teaserRouted()
	for w := 0; w <= 3000; w += 7 {
		h := 2 * w
		p := st.DerivedPoint(w, h)
		// floor(0.7w) is the largest x with 10x <= 7w
		if 10*p.X > 7*w || 10*(p.X+1) <= 7*w {
			t.Fatalf("x=%d is not floor(0.7*%d)", p.X, w)
		}
		if 10*p.Y > 6*h || 10*(p.Y+1) <= 6*h {
			t.Fatalf("y=%d is not floor(0.6*%d)", p.Y, h)
		}
	}
}

func TestRouted_BuildOrderIndependentOfCanvas(t *testing.T) {
	st := teaserRouted()
	for _, size := range [][2]int{{720, 1280}, {1000, 2000}, {1440, 3200}} {
		derived := st.DerivedPoint(size[0], size[1])
		s, err := st.Build("ar_routing", core.Point{X: 1, Y: 1}, derived, core.Point{X: 2, Y: 2})
		if err != nil {
			t.Fatal(err)
		}
		actions := s.Actions()
		if len(actions) != 3 {
			t.Fatalf("expected 3 actions, got %d", len(actions))
		}
		if actions[0].Delay != time.Second || actions[1].Delay != 2*time.Second || actions[2].Delay != 0 {
			t.Errorf("delays = %v %v %v", actions[0].Delay, actions[1].Delay, actions[2].Delay)
		}
		if actions[0].Point != (core.Point{X: 1, Y: 1}) || actions[1].Point != derived || actions[2].Point != (core.Point{X: 2, Y: 2}) {
			t.Errorf("order broken: %+v", actions)
		}
		if !actions[0].CheckLogs || !actions[1].CheckLogs {
			t.Error("routed entry and map taps must be log-checked")
		}
	}
}

func TestRouted_Discover_ScenarioPoints(t *testing.T) {
	initial, err := viewtree.Parse([]byte(mainScreen()))
	if err != nil {
		t.Fatal(err)
	}
	dev := mock.New(mock.Config{Snapshots: []string{mapScreen()}})
	rec := &sleepRecorder{}

	session := &Session{
		Device:     dev,
		Initial:    initial,
		Width:      1000,
		Height:     2000,
		ResourceID: func(e string) string { return pkg + ":id/" + e },
		Resnapshot: func(ctx context.Context) (*viewtree.Snapshot, error) {
			return viewtree.Parse([]byte(mapScreen()))
		},
		Sleep: rec.sleep,
	}

	s, err := teaserRouted().Discover(context.Background(), session, "ar_routing")
	if err != nil {
		t.Fatal(err)
	}
	actions := s.Actions()
	if actions[1].Point != (core.Point{X: 700, Y: 1200}) {
		t.Errorf("derived = %+v, want (700,1200)", actions[1].Point)
	}
	if actions[2].Point != (core.Point{X: 500, Y: 950}) {
		t.Errorf("follow-up = %+v, want (500,950)", actions[2].Point)
	}
	if len(rec.waits) != 2 || rec.waits[0] != 4*time.Second || rec.waits[1] != 3*time.Second {
		t.Errorf("waits = %v", rec.waits)
	}
}

func TestSimple_Discover(t *testing.T) {
	initial, err := viewtree.Parse([]byte(mainScreen()))
	if err != nil {
		t.Fatal(err)
	}
	session := &Session{
		Initial:    initial,
		ResourceID: func(e string) string { return pkg + ":id/" + e },
	}

	s, err := Simple{Element: "det_container"}.Discover(context.Background(), session, "object_detection")
	if err != nil {
		t.Fatal(err)
	}
	a := s.Actions()
	if len(a) != 1 || a[0].Point != (core.Point{X: 250, Y: 900}) || a[0].Delay != 0 {
		t.Errorf("unexpected script: %+v", a)
	}

	_, err = Simple{Element: "nope"}.Discover(context.Background(), session, "x")
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Errorf("expected ErrElementNotFound, got %v", err)
	}
}
