// Attempt and device record types with greptime tags
package telemetry

import (
	"os"
	"time"
)

// Outcome of a transmission attempt.
const (
	OutcomeSent          = "sent"
	OutcomeSendFailed    = "send_failed"
	OutcomeConnectFailed = "connect_failed"
	OutcomeResolveFailed = "resolve_failed"
)

// AttemptRow represents one transmission attempt of one device. Rows are
// transient: they are handed to the configured writers and never kept.
type AttemptRow struct {
	FleetID     string    `json:"fleet_id"`       // TAG
	DeviceID    string    `json:"device_id"`      // TAG
	DeviceIndex int       `json:"device_index"`   // FIELD
	Attempt     int       `json:"attempt"`        // FIELD, 1-based ordinal
	Sent        int       `json:"sent"`           // FIELD, successes so far
	VirtualTime float64   `json:"virtual_time_s"` // FIELD, seconds since sim start
	Outcome     string    `json:"outcome"`        // FIELD
	Bytes       int       `json:"bytes"`          // FIELD
	Signal      float64   `json:"signal"`         // FIELD, diagnostic sample in [0,1)
	Target      string    `json:"target"`         // FIELD
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"ts"` // TIME INDEX
}

// Succeeded reports whether the attempt delivered its payload.
func (r AttemptRow) Succeeded() bool {
	return r.Outcome == OutcomeSent
}

// DeviceRow summarizes one device's progress. Written at device stop and
// at simulation teardown.
type DeviceRow struct {
	FleetID     string    `json:"fleet_id"`  // TAG
	DeviceID    string    `json:"device_id"` // TAG
	DeviceIndex int       `json:"device_index"`
	Sent        int       `json:"sent"`
	Attempts    int       `json:"attempts"`
	Quota       int       `json:"quota"`
	Running     bool      `json:"running"`
	Timestamp   time.Time `json:"ts"` // TIME INDEX
}

// AttemptTableName holds the GreptimeDB table for attempt rows. Defaults
// to "device_attempts", overridable via GREPTIMEDB_TABLE.
var AttemptTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "device_attempts"
}()

// DeviceTableName holds the GreptimeDB table for device summary rows.
// Defaults to "device_summary", overridable via DEVICE_SUMMARY_TABLE.
var DeviceTableName = func() string {
	if env := os.Getenv("DEVICE_SUMMARY_TABLE"); env != "" {
		return env
	}
	return "device_summary"
}()

func (AttemptRow) TableName() string {
	return AttemptTableName
}

func (DeviceRow) TableName() string {
	return DeviceTableName
}
