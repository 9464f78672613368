package report

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/logger"
)

// IndexWriter provides thread-safe updates to report.json while a run is in
// progress. Parallel device goroutines update it concurrently.
type IndexWriter struct {
	mu        sync.Mutex
	outputDir string
	path      string
	index     *Index
}

// NewIndexWriter creates a new IndexWriter.
func NewIndexWriter(outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, IndexFile),
		index:     index,
	}
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now

	w.flushLocked()
}

// DeviceStarted marks a device entry as running.
func (w *IndexWriter) DeviceStarted(idx int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx < 0 || idx >= len(w.index.Devices) {
		return
	}
	now := time.Now()
	w.index.Devices[idx].Status = StatusRunning
	w.index.Devices[idx].StartTime = &now

	w.flushLocked()
}

// UpdateDevice replaces the entry of a finished device, matched by serial.
func (w *IndexWriter) UpdateDevice(result core.DeviceResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.index.Devices {
		if w.index.Devices[i].Serial == result.Serial {
			w.index.Devices[i] = deviceEntry(i, result, w.outputDir)
			break
		}
	}

	w.flushLocked()
}

// End replaces the index with the final run result.
func (w *IndexWriter) End(run *core.RunResult, cfg BuilderConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.index.UpdateSeq
	w.index = Build(run, cfg)
	w.index.UpdateSeq = seq

	w.flushLocked()
}

// GetIndex returns the current index (for reading).
func (w *IndexWriter) GetIndex() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index
}

// flushLocked writes the index while holding the lock.
func (w *IndexWriter) flushLocked() {
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = computeSummary(w.index.Devices)
	if w.index.EndTime == nil {
		w.index.Status = runningStatus(w.index.Devices)
	}

	if err := atomicWriteJSON(w.path, w.index); err != nil {
		logger.Warn("write %s: %v", w.path, err)
	}
}

// runningStatus is the run status while devices may still be pending.
func runningStatus(devices []DeviceEntry) Status {
	for _, d := range devices {
		if d.Status != StatusPending {
			return computeRunStatus(devices)
		}
	}
	return StatusRunning
}
