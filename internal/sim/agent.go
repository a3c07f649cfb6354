// Per-device send lifecycle driven by virtual-time events
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"iotfleet-sim/internal/monitoring"
	"iotfleet-sim/internal/payload"
	"iotfleet-sim/internal/telemetry"
	"iotfleet-sim/internal/timing"
	"iotfleet-sim/internal/transport"
)

// PayloadSender delivers one payload to host:port and reports the bytes
// written. One call is one complete attempt (resolve, connect, send,
// close); implementations hold no state across calls.
type PayloadSender interface {
	Send(host string, port int, payload []byte) (int, error)
}

// Events owned by an Agent. The agent schedules events only for itself;
// the engine is the sole party that fires them.
type startEvent struct{ *timing.EventBase }
type stopEvent struct{ *timing.EventBase }
type sendEvent struct{ *timing.EventBase }

// Agent owns one simulated device's send lifecycle: how many packets to
// deliver, at what interval, to which target. The quota counts
// successes, not attempts, so a failing endpoint keeps the device
// retrying at the configured interval until its stop time.
type Agent struct {
	index   int
	id      string
	fleetID string

	host     string
	port     int
	pktSize  int
	quota    int
	interval time.Duration
	stopAt   timing.VTime

	engine *timing.Engine
	gen    *payload.Generator
	sender PayloadSender
	writer AttemptWriter
	log    *slog.Logger

	running  atomic.Bool
	sent     atomic.Int64
	attempts atomic.Int64

	mu      sync.Mutex
	pending *sendEvent
}

// NewAgent creates an idle agent for device index. It becomes active
// when its start event fires.
func NewAgent(index int, fleetID, host string, port, pktSize, quota int, interval time.Duration, stopAt timing.VTime, engine *timing.Engine, gen *payload.Generator, sender PayloadSender, writer AttemptWriter, log *slog.Logger) *Agent {
	return &Agent{
		index:    index,
		id:       generateDeviceID(fleetID, index),
		fleetID:  fleetID,
		host:     host,
		port:     port,
		pktSize:  pktSize,
		quota:    quota,
		interval: interval,
		stopAt:   stopAt,
		engine:   engine,
		gen:      gen,
		sender:   sender,
		writer:   writer,
		log:      log,
	}
}

// Handle processes the agent's own scheduled events on the engine loop.
func (a *Agent) Handle(e timing.Event) error {
	switch evt := e.(type) {
	case *startEvent:
		a.start(e.Time())
	case *stopEvent:
		a.Stop()
	case *sendEvent:
		a.mu.Lock()
		if a.pending == evt {
			a.pending = nil
		}
		a.mu.Unlock()
		a.send(e.Time())
	default:
		return fmt.Errorf("agent %s: unknown event type %T", a.id, e)
	}
	return nil
}

func (a *Agent) start(at timing.VTime) {
	if a.stopAt > 0 && at >= a.stopAt {
		return
	}
	if a.running.Swap(true) {
		return
	}
	a.sent.Store(0)
	monitoring.DevicesActive.Inc()
	a.log.Debug("device started", "device_id", a.id, "vtime", at.String())
	a.send(at)
}

// Stop forces the agent to Stopped: the pending send event, if any, is
// cancelled and no further attempts are issued. An attempt already in
// flight finishes or times out naturally. Idempotent.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		a.pending.Cancel()
		a.pending = nil
	}
	if a.running.Swap(false) {
		monitoring.DevicesActive.Dec()
	}
}

// send fires one attempt at virtual time at. The transport work runs on
// its own worker so a slow socket never stalls the engine loop.
func (a *Agent) send(at timing.VTime) {
	if !a.running.Load() {
		return
	}
	if a.stopAt > 0 && at >= a.stopAt {
		return
	}
	if int(a.sent.Load()) >= a.quota {
		return
	}

	// Payload and signal sample come from the engine loop; the worker
	// owns the buffer exclusively from here on. The worker's only
	// follow-up event is the next send slot, one interval out.
	buf := a.gen.Generate(a.pktSize)
	signal := a.gen.SampleSignal()

	a.engine.Go(at.Add(a.interval), func() {
		a.attempt(at, buf, signal)
	})
}

// attempt performs the blocking transport work and, unless the quota is
// met or the agent was stopped, requests the next event one interval
// after this attempt's virtual time.
func (a *Agent) attempt(at timing.VTime, buf []byte, signal float64) {
	n, err := a.sender.Send(a.host, a.port, buf)

	attemptNo := int(a.attempts.Add(1))
	outcome := classifyOutcome(err)
	sent := int(a.sent.Load())
	if err == nil {
		sent = int(a.sent.Add(1))
	}

	row := telemetry.AttemptRow{
		FleetID:     a.fleetID,
		DeviceID:    a.id,
		DeviceIndex: a.index,
		Attempt:     attemptNo,
		Sent:        sent,
		VirtualTime: at.Seconds(),
		Outcome:     outcome,
		Bytes:       n,
		Signal:      signal,
		Target:      net.JoinHostPort(a.host, strconv.Itoa(a.port)),
		Timestamp:   time.Now().UTC(),
	}
	if err != nil {
		row.Error = err.Error()
	}
	if a.writer != nil {
		if werr := a.writer.WriteAttempt(row); werr != nil {
			a.log.Error("attempt write failed", "device_id", a.id, "err", werr)
		}
	}

	monitoring.AttemptsTotal.WithLabelValues(outcome).Inc()
	if err == nil {
		monitoring.BytesSentTotal.Add(float64(n))
		a.log.Info("payload sent",
			"device_id", a.id, "attempt", attemptNo, "sent", sent,
			"bytes", n, "signal", signal, "vtime", at.String())
	} else {
		a.log.Warn("attempt failed",
			"device_id", a.id, "attempt", attemptNo, "outcome", outcome,
			"vtime", at.String(), "err", err)
	}

	if sent < a.quota {
		a.rearm(at.Add(a.interval))
	}
}

func (a *Agent) rearm(at timing.VTime) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running.Load() {
		return
	}
	if a.stopAt > 0 && at >= a.stopAt {
		return
	}
	evt := &sendEvent{timing.NewEventBase(at, a)}
	a.pending = evt
	a.engine.Schedule(evt)
}

// ID returns the device identifier.
func (a *Agent) ID() string { return a.id }

// Index returns the device ordinal within the fleet.
func (a *Agent) Index() int { return a.index }

// Sent returns the number of successful deliveries so far.
func (a *Agent) Sent() int { return int(a.sent.Load()) }

// Attempts returns the total number of attempts, successful or not.
func (a *Agent) Attempts() int { return int(a.attempts.Load()) }

// Running reports whether the agent is between start and stop.
func (a *Agent) Running() bool { return a.running.Load() }

// Snapshot returns the agent's current summary row.
func (a *Agent) Snapshot() telemetry.DeviceRow {
	return telemetry.DeviceRow{
		FleetID:     a.fleetID,
		DeviceID:    a.id,
		DeviceIndex: a.index,
		Sent:        a.Sent(),
		Attempts:    a.Attempts(),
		Quota:       a.quota,
		Running:     a.Running(),
		Timestamp:   time.Now().UTC(),
	}
}

func classifyOutcome(err error) string {
	if err == nil {
		return telemetry.OutcomeSent
	}
	var resErr *transport.ResolutionError
	if errors.As(err, &resErr) {
		return telemetry.OutcomeResolveFailed
	}
	var connErr *transport.ConnectError
	if errors.As(err, &connErr) {
		return telemetry.OutcomeConnectFailed
	}
	return telemetry.OutcomeSendFailed
}

func generateDeviceID(fleetID string, index int) string {
	// Include the device's index along with a UUID to guarantee uniqueness
	return fmt.Sprintf("%s-%d-%s", fleetID, index, uuid.New().String())
}
