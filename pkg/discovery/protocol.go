// Package discovery builds per-device screen scripts from live UI
// hierarchy dumps.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/config"
	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/layout"
	"github.com/devicelab-dev/smoke-runner/pkg/logger"
	"github.com/devicelab-dev/smoke-runner/pkg/script"
	"github.com/devicelab-dev/smoke-runner/pkg/viewtree"
)

// State is the discovery progress of one device.
type State int

const (
	StateIdle State = iota
	StateAppLaunched
	StateSnapshotTaken
	StateScriptBuilt // at least one screen resolved
	StateAllScriptsBuilt
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAppLaunched:
		return "app_launched"
	case StateSnapshotTaken:
		return "snapshot_taken"
	case StateScriptBuilt:
		return "script_built"
	case StateAllScriptsBuilt:
		return "all_scripts_built"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Screen pairs a screen id with the strategy that discovers it.
type Screen struct {
	ID       string
	Strategy Strategy
}

// Protocol runs discovery once on one device.
type Protocol struct {
	Device   core.Device
	Package  string
	Activity string
	Screens  []Screen

	// ViewPath is where hierarchy dumps are pulled locally.
	ViewPath string

	// LaunchSettle is the wait between launch and the first snapshot.
	LaunchSettle time.Duration

	Sleep core.Sleeper

	state State
	log   *logger.Entry
}

// FromConfig builds a Protocol for dev. The routed screen gets the Routed
// strategy, every other screen gets Simple.
func FromConfig(cfg *config.Config, dev core.Device, l layout.Layout) *Protocol {
	return &Protocol{
		Device:       dev,
		Package:      cfg.Package,
		Activity:     cfg.Activity,
		Screens:      Screens(cfg),
		ViewPath:     l.ViewPath(dev.Serial()),
		LaunchSettle: config.Millis(cfg.Delays.DiscoveryLaunchMs),
		Sleep:        core.Sleep,
	}
}

// MapCaptureSuffix is appended to the routed screen id for the extra
// screenshot of the map state.
const MapCaptureSuffix = "_map"

// Screens maps the configured screens to strategies, in config order.
func Screens(cfg *config.Config) []Screen {
	screens := make([]Screen, 0, len(cfg.Screens))
	for _, s := range cfg.Screens {
		var st Strategy = Simple{Element: s.Element}
		if s.Name == cfg.RoutedScreen {
			st = Routed{
				Entry:            s.Element,
				FollowUp:         cfg.FollowUpElement,
				XPercent:         cfg.DerivedTap.XPercent,
				YPercent:         cfg.DerivedTap.YPercent,
				EntryDelay:       config.Millis(cfg.Delays.RoutedEntryDelayMs),
				DerivedDelay:     config.Millis(cfg.Delays.RoutedMapDelayMs),
				EntrySettle:      config.Millis(cfg.Delays.RoutedEntrySettleMs),
				MapSettle:        config.Millis(cfg.Delays.RoutedMapSettleMs),
				MapCaptureSuffix: MapCaptureSuffix,
			}
		}
		screens = append(screens, Screen{ID: s.Name, Strategy: st})
	}
	return screens
}

// State returns the current state.
func (p *Protocol) State() State {
	return p.state
}

// Discover launches the app, resolves every screen, and closes the app.
// It is all-or-nothing: on any error the partial table is dropped and nil
// is returned.
func (p *Protocol) Discover(ctx context.Context) (table *script.Table, err error) {
	if p.Sleep == nil {
		p.Sleep = core.Sleep
	}
	p.state = StateIdle
	p.log = logger.WithFields(logger.Fields{"device": p.Device.Serial(), "phase": "discovery"})

	defer func() {
		// Replay must start from a clean launch.
		stopErr := p.Device.ForceStop(ctx, p.Package)
		if err != nil {
			p.state = StateFailed
			table = nil
			if stopErr != nil {
				p.log.Warn("force-stop after failed discovery: %v", stopErr)
			}
			return
		}
		if stopErr != nil {
			p.state = StateFailed
			table, err = nil, stopErr
		}
	}()

	if err := p.Device.Launch(ctx, p.Package, p.Activity); err != nil {
		return nil, err
	}
	p.state = StateAppLaunched
	if err := p.Sleep(ctx, p.LaunchSettle); err != nil {
		return nil, err
	}

	initial, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	width, height, err := initial.CanvasSize()
	if err != nil {
		return nil, fmt.Errorf("canvas: %w", err)
	}
	p.state = StateSnapshotTaken
	p.log.Debug("canvas %dx%d, %d nodes", width, height, len(initial.Nodes))

	session := &Session{
		Device:     p.Device,
		Initial:    initial,
		Width:      width,
		Height:     height,
		ResourceID: func(element string) string { return p.Package + ":id/" + element },
		Resnapshot: p.snapshot,
		Sleep:      p.Sleep,
	}

	table = script.NewTable()
	for _, screen := range p.Screens {
		s, err := screen.Strategy.Discover(ctx, session, screen.ID)
		if err != nil {
			if errors.Is(err, core.ErrElementNotFound) {
				p.log.Error("discovery aborted at %s: %v", screen.ID, err)
			}
			return nil, err
		}
		if err := table.Put(s); err != nil {
			return nil, err
		}
		p.state = StateScriptBuilt
		p.log.Info("screen %s: %v", screen.ID, s.Actions())
	}

	p.state = StateAllScriptsBuilt
	return table, nil
}

func (p *Protocol) snapshot(ctx context.Context) (*viewtree.Snapshot, error) {
	if err := p.Device.DumpHierarchy(ctx, p.ViewPath); err != nil {
		return nil, err
	}
	return viewtree.ParseFile(p.ViewPath)
}
