package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/script"
	"github.com/devicelab-dev/smoke-runner/pkg/viewtree"
)

// Session is what a Strategy may use while building one screen's script.
type Session struct {
	Device core.Device

	// Initial is the snapshot taken right after launch. Every strategy
	// resolves its entry control here.
	Initial *viewtree.Snapshot

	// Width and Height are the canvas size of Initial.
	Width, Height int

	// ResourceID qualifies a bare element name with the app package.
	ResourceID func(element string) string

	// Resnapshot dumps and parses the live hierarchy again.
	Resnapshot func(ctx context.Context) (*viewtree.Snapshot, error)

	Sleep core.Sleeper
}

// Strategy builds the script of one screen.
type Strategy interface {
	Discover(ctx context.Context, s *Session, screenID string) (script.Script, error)
}

// Simple screens are one tap away from the main screen.
type Simple struct {
	Element string
}

// Discover locates the entry control in the initial snapshot.
func (st Simple) Discover(_ context.Context, s *Session, screenID string) (script.Script, error) {
	center, err := s.Initial.CenterOf(s.ResourceID(st.Element))
	if err != nil {
		return script.Script{}, fmt.Errorf("screen %s: %w", screenID, err)
	}
	return script.New(screenID, script.TapAction{Point: center})
}

// Routed screens sit behind a map: tap the entry control, tap a point in
// the map that has no resolvable id, then tap a follow-up control that only
// exists after the map tap.
type Routed struct {
	Entry    string // entry control element name
	FollowUp string // control that appears after the map tap

	// Map tap position as a percentage of canvas width/height.
	XPercent int
	YPercent int

	// Replay delays after the entry and map taps.
	EntryDelay   time.Duration
	DerivedDelay time.Duration

	// Discovery-time waits for the live navigation.
	EntrySettle time.Duration
	MapSettle   time.Duration

	// MapCaptureSuffix names the extra screenshot taken just before the
	// map tap during replay. Empty disables it.
	MapCaptureSuffix string
}

// DerivedPoint returns (floor(w*X%), floor(h*Y%)). Integer arithmetic
// keeps the floor exact for every canvas size.
func (st Routed) DerivedPoint(width, height int) core.Point {
	return core.Point{
		X: width * st.XPercent / 100,
		Y: height * st.YPercent / 100,
	}
}

// Build assembles the three-action script from resolved points. The order
// is fixed: the UI transitions asynchronously and each control is only
// reachable once the previous tap has settled.
func (st Routed) Build(screenID string, entry, derived, followUp core.Point) (script.Script, error) {
	return script.New(screenID,
		script.TapAction{Point: entry, Delay: st.EntryDelay, CheckLogs: true},
		script.TapAction{Point: derived, Delay: st.DerivedDelay, CheckLogs: true, CaptureBefore: st.MapCaptureSuffix},
		script.TapAction{Point: followUp},
	)
}

// Discover resolves the entry control, navigates into the map, and
// re-snapshots to resolve the follow-up control.
func (st Routed) Discover(ctx context.Context, s *Session, screenID string) (script.Script, error) {
	entry, err := s.Initial.CenterOf(s.ResourceID(st.Entry))
	if err != nil {
		return script.Script{}, fmt.Errorf("screen %s entry: %w", screenID, err)
	}
	derived := st.DerivedPoint(s.Width, s.Height)

	if err := s.Device.Tap(ctx, entry); err != nil {
		return script.Script{}, err
	}
	if err := s.Sleep(ctx, st.EntrySettle); err != nil {
		return script.Script{}, err
	}
	if err := s.Device.Tap(ctx, derived); err != nil {
		return script.Script{}, err
	}
	if err := s.Sleep(ctx, st.MapSettle); err != nil {
		return script.Script{}, err
	}

	snap, err := s.Resnapshot(ctx)
	if err != nil {
		return script.Script{}, err
	}
	followUp, err := snap.CenterOf(s.ResourceID(st.FollowUp))
	if err != nil {
		return script.Script{}, fmt.Errorf("screen %s follow-up: %w", screenID, err)
	}

	return st.Build(screenID, entry, derived, followUp)
}
