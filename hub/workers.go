package hub

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker periodically logs the process's own health metrics
// alongside the hub's session count.
type HeartbeatWorker struct {
	log      *slog.Logger
	hub      *Hub
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, hub *Hub, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, hub: hub, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Heartbeat",
				"pid", os.Getpid(),
				"ram_bytes", rss,
				"cpu_percent", cpu,
				"sessions", len(w.hub.presence.Snapshot()),
			)
		}
	}
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}

// ReconcilerWorker sweeps the presence map for sinks whose connection died
// without a clean teardown and runs the normal disconnect path for them.
type ReconcilerWorker struct {
	log      *slog.Logger
	hub      *Hub
	interval time.Duration
}

func NewReconcilerWorker(log *slog.Logger, hub *Hub, interval time.Duration) *ReconcilerWorker {
	return &ReconcilerWorker{log: log, hub: hub, interval: interval}
}

func (w *ReconcilerWorker) Run(ctx context.Context) error {
	w.log.Info("Starting reconciler worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for userID, handle := range w.hub.presence.Snapshot() {
				if handle.Closed() {
					w.log.Warn("Reaping dead session", "user_id", userID)
					w.hub.Disconnect(userID, handle)
				}
			}
		}
	}
}
