package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
)

// ParallelRunner runs every device in its own goroutine. Devices share no
// state; each result is stored at the device's enumeration index.
type ParallelRunner struct {
	devices []core.Device
	config  RunnerConfig

	// Limit caps concurrent devices (0 = one goroutine per device).
	Limit int
}

// NewParallelRunner creates a parallel runner over the given devices.
func NewParallelRunner(devices []core.Device, config RunnerConfig) *ParallelRunner {
	return &ParallelRunner{
		devices: devices,
		config:  config,
	}
}

// Run executes the smoke protocol on all devices concurrently.
func (pr *ParallelRunner) Run(ctx context.Context) (*core.RunResult, error) {
	if len(pr.devices) == 0 {
		return nil, core.ErrNoDevices
	}

	start := time.Now()
	results := make([]core.DeviceResult, len(pr.devices))
	runner := New(pr.config)

	g, gctx := errgroup.WithContext(ctx)
	if pr.Limit > 0 {
		g.SetLimit(pr.Limit)
	}

	total := len(pr.devices)
	for i, dev := range pr.devices {
		i, dev := i, dev
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = skippedDevice(dev.Serial(), gctx.Err())
				return nil
			}
			// Device failures stay in the device result so the others keep
			// running.
			results[i] = runner.runDevice(gctx, i, total, dev)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parallel run: %w", err)
	}

	return buildRunResult(pr.config.RunID, results, start), nil
}
