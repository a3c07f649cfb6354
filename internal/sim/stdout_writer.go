// Writer implementation printing attempt records to STDOUT
package sim

import (
	"encoding/json"
	"fmt"
	"sync"

	"iotfleet-sim/internal/telemetry"
)

// StdoutWriter prints attempt and device rows to STDOUT as JSON lines.
type StdoutWriter struct {
	mu sync.Mutex
}

// WriteAttempt outputs a single attempt row.
func (w *StdoutWriter) WriteAttempt(row telemetry.AttemptRow) error {
	data, _ := json.Marshal(row)
	w.mu.Lock()
	fmt.Println(string(data))
	w.mu.Unlock()
	return nil
}

// WriteAttempts outputs multiple attempt rows.
func (w *StdoutWriter) WriteAttempts(rows []telemetry.AttemptRow) error {
	for _, r := range rows {
		_ = w.WriteAttempt(r)
	}
	return nil
}

// WriteDevice prints a device summary row to STDOUT.
func (w *StdoutWriter) WriteDevice(row telemetry.DeviceRow) error {
	data, _ := json.Marshal(row)
	w.mu.Lock()
	fmt.Println(string(data))
	w.mu.Unlock()
	return nil
}

// WriteDevices prints multiple device summary rows.
func (w *StdoutWriter) WriteDevices(rows []telemetry.DeviceRow) error {
	for _, r := range rows {
		_ = w.WriteDevice(r)
	}
	return nil
}
