package workers

import (
	"chat-relay/contract"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Health is one sample of the server process state.
type Health struct {
	Sessions   int
	RSSBytes   uint64
	CPUPercent float64
}

// HealthWorker periodically logs the number of active sessions next to
// the memory and CPU usage of the server process.
type HealthWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	interval time.Duration
	proc     *process.Process
}

func NewHealthWorker(log *slog.Logger, registry contract.IRegistry, interval time.Duration) (*HealthWorker, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("inspect own process: %w", err)
	}
	return &HealthWorker{log: log, registry: registry, interval: interval, proc: proc}, nil
}

func (w *HealthWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health sampling")
			return nil
		case <-ticker.C:
			health, err := w.Sample()
			if err != nil {
				w.log.Warn("Health sampling failed", "error", err)
				continue
			}
			w.log.Info("Health",
				"sessions", health.Sessions,
				"rss_bytes", health.RSSBytes,
				"cpu_percent", fmt.Sprintf("%.1f", health.CPUPercent))
		}
	}
}

func (w *HealthWorker) Sample() (Health, error) {
	mem, err := w.proc.MemoryInfo()
	if err != nil {
		return Health{}, fmt.Errorf("memory info: %w", err)
	}
	cpu, err := w.proc.CPUPercent()
	if err != nil {
		return Health{}, fmt.Errorf("cpu percent: %w", err)
	}
	return Health{Sessions: w.registry.Len(), RSSBytes: mem.RSS, CPUPercent: cpu}, nil
}
