package sim

import "iotfleet-sim/internal/telemetry"

// AttemptWriter is an interface to support different attempt-record
// output writers. Writers must tolerate concurrent calls: attempt
// workers for different devices report in parallel.
type AttemptWriter interface {
	WriteAttempt(telemetry.AttemptRow) error
}

// DeviceWriter handles per-device summary rows.
type DeviceWriter interface {
	WriteDevice(telemetry.DeviceRow) error
}

// Optional: writers can also support batch mode.
type batchAttemptWriter interface {
	WriteAttempts([]telemetry.AttemptRow) error
}

// Optional: device writers may support batch mode.
type batchDeviceWriter interface {
	WriteDevices([]telemetry.DeviceRow) error
}
