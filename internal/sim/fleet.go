// Fleet scheduler owning the virtual clock and all device agents
package sim

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"iotfleet-sim/internal/config"
	"iotfleet-sim/internal/payload"
	"iotfleet-sim/internal/telemetry"
	"iotfleet-sim/internal/timing"
	"iotfleet-sim/internal/transport"
)

// Fleet builds and drives the device agents under one discrete-event
// engine. Device i starts at window_start + i*start_stagger; all devices
// share the same stop time. The engine is the only authority over
// virtual time; agents ask for future events, never mutate the queue.
type Fleet struct {
	fleetID string
	cfg     *config.SimulationConfig

	engine       *timing.Engine
	agents       []*Agent
	writer       AttemptWriter
	deviceWriter DeviceWriter
	log          *slog.Logger

	shutdownOnce sync.Once
}

// FleetHealth summarizes fleet progress.
type FleetHealth struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Sent      int `json:"sent"`
	Attempts  int `json:"attempts"`
}

// New creates the fleet and schedules every agent's start and stop
// events. A nil sender uses a real TCP transport client configured with
// the per-attempt I/O timeout; a nil rnd uses a time-seeded source.
func New(fleetID string, cfg *config.SimulationConfig, writer AttemptWriter, deviceWriter DeviceWriter, sender PayloadSender, rnd *rand.Rand, log *slog.Logger) *Fleet {
	if log == nil {
		log = slog.Default()
	}
	if sender == nil {
		sender = transport.New(cfg.IOTimeout.Std())
	}

	f := &Fleet{
		fleetID:      fleetID,
		cfg:          cfg,
		engine:       timing.NewEngine(),
		writer:       writer,
		deviceWriter: deviceWriter,
		log:          log,
	}

	gen := payload.NewGenerator(rnd)
	stopAt := timing.VTime(cfg.WindowStop.Std())

	for i := 0; i < cfg.DeviceCount; i++ {
		agent := NewAgent(i, fleetID, cfg.TargetHost, cfg.TargetPort,
			cfg.PacketSizeBytes, cfg.PacketsPerDevice, cfg.SendInterval.Std(),
			stopAt, f.engine, gen, sender, writer, log)
		f.agents = append(f.agents, agent)

		start := timing.VTime(cfg.WindowStart.Std() + time.Duration(i)*cfg.StartStagger.Std())
		f.engine.Schedule(&startEvent{timing.NewEventBase(start, agent)})
		if stopAt > 0 {
			f.engine.Schedule(&stopEvent{timing.NewEventBase(stopAt, agent)})
		}
	}

	return f
}

// Run advances the virtual clock until the global horizon or until no
// events remain, then waits for in-flight attempts to finish (they are
// never replaced past the horizon), forces every agent to Stopped, and
// writes the device summaries. Cancelling ctx shuts the fleet down early.
func (f *Fleet) Run(ctx context.Context) error {
	f.log.Info("starting fleet",
		"fleet_id", f.fleetID,
		"devices", f.cfg.DeviceCount,
		"target", f.cfg.TargetHost,
		"horizon", f.cfg.Horizon.Std().String())

	release := context.AfterFunc(ctx, f.engine.Shutdown)
	defer release()

	err := f.engine.Run(timing.VTime(f.cfg.Horizon.Std()))
	f.engine.Drain()
	f.stopAll()
	f.writeSummaries()

	f.log.Info("fleet stopped",
		"fleet_id", f.fleetID,
		"vtime", f.engine.CurrentTime().String())
	return err
}

// Shutdown cancels all pending events and forces every agent to Stopped.
// Idempotent; safe to call concurrently with Run.
func (f *Fleet) Shutdown() {
	f.shutdownOnce.Do(func() {
		f.engine.Shutdown()
		f.stopAll()
	})
}

// CurrentTime returns the engine's virtual clock.
func (f *Fleet) CurrentTime() timing.VTime {
	return f.engine.CurrentTime()
}

// Agents exposes the fleet's device agents.
func (f *Fleet) Agents() []*Agent {
	return f.agents
}

// Config returns the simulation configuration.
func (f *Fleet) Config() *config.SimulationConfig {
	return f.cfg
}

// Health returns aggregated progress for the whole fleet.
func (f *Fleet) Health() FleetHealth {
	h := FleetHealth{Total: len(f.agents)}
	for _, a := range f.agents {
		h.Sent += a.Sent()
		h.Attempts += a.Attempts()
		if a.Running() {
			h.Running++
		}
		if a.Sent() >= f.cfg.PacketsPerDevice {
			h.Completed++
		}
	}
	return h
}

// Snapshot returns the latest summary row for every device.
func (f *Fleet) Snapshot() []telemetry.DeviceRow {
	rows := make([]telemetry.DeviceRow, 0, len(f.agents))
	for _, a := range f.agents {
		rows = append(rows, a.Snapshot())
	}
	return rows
}

func (f *Fleet) stopAll() {
	for _, a := range f.agents {
		a.Stop()
	}
}

// writeSummaries emits one DeviceRow per agent, using batch mode if the
// writer supports it.
func (f *Fleet) writeSummaries() {
	if f.deviceWriter == nil {
		return
	}
	rows := f.Snapshot()
	if bw, ok := f.deviceWriter.(batchDeviceWriter); ok {
		if err := bw.WriteDevices(rows); err != nil {
			f.log.Error("device summary batch write failed", "err", err)
		}
		return
	}
	for _, row := range rows {
		if err := f.deviceWriter.WriteDevice(row); err != nil {
			f.log.Error("device summary write failed", "device_id", row.DeviceID, "err", err)
		}
	}
}
