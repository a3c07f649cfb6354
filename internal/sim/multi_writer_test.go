package sim

import (
	"testing"

	"iotfleet-sim/internal/telemetry"
)

func TestMultiWriterFansOut(t *testing.T) {
	w1 := &captureWriter{}
	w2 := &captureWriter{}
	mw := NewMultiWriter(
		[]AttemptWriter{w1, w2},
		[]DeviceWriter{w1, w2},
	)

	if err := mw.WriteAttempt(telemetry.AttemptRow{DeviceID: "d-0"}); err != nil {
		t.Fatalf("WriteAttempt: %v", err)
	}
	if err := mw.WriteDevice(telemetry.DeviceRow{DeviceID: "d-0"}); err != nil {
		t.Fatalf("WriteDevice: %v", err)
	}

	for i, w := range []*captureWriter{w1, w2} {
		if len(w.Attempts()) != 1 {
			t.Errorf("writer %d got %d attempts, want 1", i, len(w.Attempts()))
		}
		if len(w.Devices()) != 1 {
			t.Errorf("writer %d got %d device rows, want 1", i, len(w.Devices()))
		}
	}
}

func TestMultiWriterPrefersBatchMode(t *testing.T) {
	plain := &captureWriter{}
	batch := &batchCaptureWriter{}
	mw := NewMultiWriter(nil, []DeviceWriter{plain, batch})

	rows := []telemetry.DeviceRow{{DeviceID: "d-0"}, {DeviceID: "d-1"}}
	if err := mw.WriteDevices(rows); err != nil {
		t.Fatalf("WriteDevices: %v", err)
	}
	if len(plain.Devices()) != 2 {
		t.Errorf("plain writer got %d rows, want 2", len(plain.Devices()))
	}
	if batch.batches != 1 {
		t.Errorf("batch writer called %d times, want 1", batch.batches)
	}
	if len(batch.Devices()) != 2 {
		t.Errorf("batch writer got %d rows, want 2", len(batch.Devices()))
	}
}
