package sim

import (
	"encoding/json"
	"os"
	"sync"

	"iotfleet-sim/internal/telemetry"
)

// FileWriter writes attempt and device summary data to JSONL files.
type FileWriter struct {
	mu          sync.Mutex
	attemptFile *os.File
	deviceFile  *os.File
	attemptEnc  *json.Encoder
	deviceEnc   *json.Encoder
}

// NewFileWriter creates a FileWriter. devicePath may be empty to skip
// the device summary log.
func NewFileWriter(attemptPath, devicePath string) (*FileWriter, error) {
	af, err := os.Create(attemptPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{attemptFile: af, attemptEnc: json.NewEncoder(af)}
	if devicePath != "" {
		df, err := os.Create(devicePath)
		if err != nil {
			af.Close()
			return nil, err
		}
		fw.deviceFile = df
		fw.deviceEnc = json.NewEncoder(df)
	}
	return fw, nil
}

// WriteAttempt logs a single attempt row.
func (f *FileWriter) WriteAttempt(row telemetry.AttemptRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attemptEnc.Encode(row)
}

// WriteAttempts logs multiple attempt rows.
func (f *FileWriter) WriteAttempts(rows []telemetry.AttemptRow) error {
	for _, r := range rows {
		if err := f.WriteAttempt(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteDevice logs a single device summary row, if enabled.
func (f *FileWriter) WriteDevice(row telemetry.DeviceRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deviceEnc == nil {
		return nil
	}
	return f.deviceEnc.Encode(row)
}

// WriteDevices logs multiple device summary rows.
func (f *FileWriter) WriteDevices(rows []telemetry.DeviceRow) error {
	for _, r := range rows {
		if err := f.WriteDevice(r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.attemptFile != nil {
		if e := f.attemptFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.deviceFile != nil {
		if e := f.deviceFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
