package sim

import "iotfleet-sim/internal/telemetry"

// MultiWriter fans out attempt and device rows to multiple writers.
type MultiWriter struct {
	attemptWriters []AttemptWriter
	deviceWriters  []DeviceWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(aws []AttemptWriter, dws []DeviceWriter) *MultiWriter {
	return &MultiWriter{attemptWriters: aws, deviceWriters: dws}
}

// WriteAttempt sends an attempt row to all writers.
func (mw *MultiWriter) WriteAttempt(row telemetry.AttemptRow) error {
	for _, w := range mw.attemptWriters {
		if err := w.WriteAttempt(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteAttempts sends multiple attempt rows to all writers, using batch
// mode if supported.
func (mw *MultiWriter) WriteAttempts(rows []telemetry.AttemptRow) error {
	for _, w := range mw.attemptWriters {
		if bw, ok := w.(batchAttemptWriter); ok {
			if err := bw.WriteAttempts(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteAttempt(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteDevice sends a device summary row to all device writers.
func (mw *MultiWriter) WriteDevice(row telemetry.DeviceRow) error {
	for _, w := range mw.deviceWriters {
		if err := w.WriteDevice(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteDevices sends multiple device rows to all device writers, using
// batch mode if supported.
func (mw *MultiWriter) WriteDevices(rows []telemetry.DeviceRow) error {
	for _, w := range mw.deviceWriters {
		if bw, ok := w.(batchDeviceWriter); ok {
			if err := bw.WriteDevices(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteDevice(r); err != nil {
				return err
			}
		}
	}
	return nil
}
