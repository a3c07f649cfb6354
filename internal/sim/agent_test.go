package sim

import (
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"iotfleet-sim/internal/payload"
	"iotfleet-sim/internal/telemetry"
	"iotfleet-sim/internal/timing"
	"iotfleet-sim/internal/transport"
)

// scriptedSender pops one result per Send call; once the script is
// exhausted every further call succeeds.
type scriptedSender struct {
	mu     sync.Mutex
	script []error
	calls  int
	bytes  int
}

func (s *scriptedSender) Send(host string, port int, payload []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.bytes += len(payload)
	if len(s.script) > 0 {
		err := s.script[0]
		s.script = s.script[1:]
		if err != nil {
			return 0, err
		}
	}
	return len(payload), nil
}

func (s *scriptedSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// captureWriter records attempt and device rows from any goroutine.
type captureWriter struct {
	mu       sync.Mutex
	attempts []telemetry.AttemptRow
	devices  []telemetry.DeviceRow
}

func (w *captureWriter) WriteAttempt(row telemetry.AttemptRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts = append(w.attempts, row)
	return nil
}

func (w *captureWriter) WriteDevice(row telemetry.DeviceRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.devices = append(w.devices, row)
	return nil
}

func (w *captureWriter) Attempts() []telemetry.AttemptRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]telemetry.AttemptRow(nil), w.attempts...)
}

func (w *captureWriter) Devices() []telemetry.DeviceRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]telemetry.DeviceRow(nil), w.devices...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestAgent(t *testing.T, eng *timing.Engine, sender PayloadSender, w AttemptWriter, quota int, stopAt timing.VTime) *Agent {
	t.Helper()
	gen := payload.NewGenerator(rand.New(rand.NewSource(1)))
	return NewAgent(0, "fleet-test", "collector.test", 6000, 64, quota,
		time.Second, stopAt, eng, gen, sender, w, testLogger())
}

func TestAgentSendsQuotaAtFixedInterval(t *testing.T) {
	eng := timing.NewEngine()
	sender := &scriptedSender{}
	w := &captureWriter{}
	a := newTestAgent(t, eng, sender, w, 3, 0)

	eng.Schedule(&startEvent{timing.NewEventBase(timing.VTime(2*time.Second), a)})
	if err := eng.Run(0); err != nil {
		t.Fatalf("run: %v", err)
	}
	eng.Drain()

	if got := a.Attempts(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if got := a.Sent(); got != 3 {
		t.Fatalf("sent = %d, want 3", got)
	}

	rows := w.Attempts()
	want := []float64{2.0, 3.0, 4.0}
	if len(rows) != len(want) {
		t.Fatalf("recorded %d rows, want %d", len(rows), len(want))
	}
	for i, row := range rows {
		if row.VirtualTime != want[i] {
			t.Errorf("attempt %d at vt=%v, want %v", i, row.VirtualTime, want[i])
		}
		if row.Outcome != telemetry.OutcomeSent {
			t.Errorf("attempt %d outcome = %q", i, row.Outcome)
		}
		if row.Sent != i+1 {
			t.Errorf("attempt %d sent counter = %d, want %d", i, row.Sent, i+1)
		}
		if row.Bytes != 64 {
			t.Errorf("attempt %d bytes = %d, want 64", i, row.Bytes)
		}
	}
}

func TestAgentRetriesFailuresUntilStopTime(t *testing.T) {
	eng := timing.NewEngine()
	failAll := make([]error, 64)
	for i := range failAll {
		failAll[i] = &transport.ConnectError{Host: "collector.test", Port: 6000}
	}
	sender := &scriptedSender{script: failAll}
	w := &captureWriter{}
	a := newTestAgent(t, eng, sender, w, 5, timing.VTime(5*time.Second))

	eng.Schedule(&startEvent{timing.NewEventBase(0, a)})
	if err := eng.Run(0); err != nil {
		t.Fatalf("run: %v", err)
	}
	eng.Drain()

	// Attempts at 0s..4s; the 5s slot is at the stop time and is dropped.
	if got := a.Attempts(); got != 5 {
		t.Fatalf("attempts = %d, want 5", got)
	}
	if got := a.Sent(); got != 0 {
		t.Fatalf("sent = %d, want 0", got)
	}
	for i, row := range w.Attempts() {
		if row.Outcome != telemetry.OutcomeConnectFailed {
			t.Errorf("attempt %d outcome = %q, want %q", i, row.Outcome, telemetry.OutcomeConnectFailed)
		}
		if row.Error == "" {
			t.Errorf("attempt %d missing error detail", i)
		}
	}
}

func TestAgentFailuresDoNotConsumeQuota(t *testing.T) {
	eng := timing.NewEngine()
	sender := &scriptedSender{script: []error{
		&transport.ConnectError{Host: "collector.test", Port: 6000},
		&transport.ConnectError{Host: "collector.test", Port: 6000},
		&transport.ConnectError{Host: "collector.test", Port: 6000},
	}}
	w := &captureWriter{}
	a := newTestAgent(t, eng, sender, w, 5, 0)

	eng.Schedule(&startEvent{timing.NewEventBase(0, a)})
	if err := eng.Run(0); err != nil {
		t.Fatalf("run: %v", err)
	}
	eng.Drain()

	// 3 failures then 5 successes, one interval apart each.
	if got := a.Attempts(); got != 8 {
		t.Fatalf("attempts = %d, want 8", got)
	}
	if got := a.Sent(); got != 5 {
		t.Fatalf("sent = %d, want 5", got)
	}
	rows := w.Attempts()
	if len(rows) != 8 {
		t.Fatalf("recorded %d rows, want 8", len(rows))
	}
	for i, row := range rows {
		if want := float64(i); row.VirtualTime != want {
			t.Errorf("attempt %d at vt=%v, want %v", i, row.VirtualTime, want)
		}
	}
	if last := rows[7]; last.Sent != 5 || last.Outcome != telemetry.OutcomeSent {
		t.Errorf("final row sent=%d outcome=%q", last.Sent, last.Outcome)
	}
}

func TestAgentStopCancelsPendingSend(t *testing.T) {
	eng := timing.NewEngine()
	sender := &scriptedSender{}
	w := &captureWriter{}
	a := newTestAgent(t, eng, sender, w, 100, 0)

	// Stop is scheduled before the run begins, so at the 2s tie it fires
	// ahead of the send slot scheduled mid-run.
	eng.Schedule(&startEvent{timing.NewEventBase(0, a)})
	eng.Schedule(&stopEvent{timing.NewEventBase(timing.VTime(2*time.Second), a)})
	if err := eng.Run(0); err != nil {
		t.Fatalf("run: %v", err)
	}
	eng.Drain()

	if got := a.Attempts(); got != 2 {
		t.Fatalf("attempts = %d, want 2 (0s and 1s)", got)
	}
	if a.Running() {
		t.Fatal("agent still running after stop event")
	}
}

func TestAgentStartAtStopTimeIsNoop(t *testing.T) {
	eng := timing.NewEngine()
	sender := &scriptedSender{}
	w := &captureWriter{}
	a := newTestAgent(t, eng, sender, w, 10, timing.VTime(2*time.Second))

	eng.Schedule(&startEvent{timing.NewEventBase(timing.VTime(2*time.Second), a)})
	if err := eng.Run(0); err != nil {
		t.Fatalf("run: %v", err)
	}
	eng.Drain()

	if got := a.Attempts(); got != 0 {
		t.Fatalf("attempts = %d, want 0", got)
	}
	if a.Running() {
		t.Fatal("agent should never have started")
	}
}

func TestAgentStopIsIdempotent(t *testing.T) {
	eng := timing.NewEngine()
	a := newTestAgent(t, eng, &scriptedSender{}, &captureWriter{}, 1, 0)
	a.Stop()
	a.Stop()
	if a.Running() {
		t.Fatal("agent running after Stop")
	}
}

func TestClassifyOutcome(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, telemetry.OutcomeSent},
		{&transport.ResolutionError{Host: "h"}, telemetry.OutcomeResolveFailed},
		{&transport.ConnectError{Host: "h", Port: 1}, telemetry.OutcomeConnectFailed},
		{&transport.SendError{Written: 3}, telemetry.OutcomeSendFailed},
	}
	for _, c := range cases {
		if got := classifyOutcome(c.err); got != c.want {
			t.Errorf("classifyOutcome(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestDeviceIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := generateDeviceID("fleet-test", i)
		if seen[id] {
			t.Fatalf("duplicate device id %s", id)
		}
		seen[id] = true
	}
}
