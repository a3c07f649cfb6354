package sim

import (
	"context"
	"log/slog"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	ingesterContext "github.com/GreptimeTeam/greptimedb-ingester-go/context"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"iotfleet-sim/internal/telemetry"
)

// GreptimeDBWriter writes attempt records to GreptimeDB via the ingester
// client.
type GreptimeDBWriter struct {
	client       greptime.Client
	db           string
	attemptTable string
	deviceTable  string
	log          *slog.Logger
}

// NewGreptimeDBWriter creates a new GreptimeDB writer and auto-creates
// the tables if needed. Empty table names fall back to the defaults in
// the telemetry package.
func NewGreptimeDBWriter(endpoint, database, attemptTable, deviceTable string, log *slog.Logger) (*GreptimeDBWriter, error) {
	if attemptTable == "" {
		attemptTable = telemetry.AttemptTableName
	}
	if deviceTable == "" {
		deviceTable = telemetry.DeviceTableName
	}
	if log == nil {
		log = slog.Default()
	}

	ctx := ingesterContext.NewContext(context.Background())
	client, err := greptime.NewClient(ctx, &greptime.Config{
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, err
	}

	// Auto-create table schemas
	ddl := `
CREATE TABLE IF NOT EXISTS ` + attemptTable + ` (
  fleet_id STRING TAG,
  device_id STRING TAG,
  device_index BIGINT,
  attempt BIGINT,
  sent BIGINT,
  virtual_time_s DOUBLE,
  outcome STRING,
  bytes BIGINT,
  signal DOUBLE,
  target STRING,
  error STRING,
  ts TIMESTAMP TIME INDEX
) WITH (ttl='30d')
`
	if _, err := client.SQL(ctx, ddl); err != nil {
		return nil, err
	}

	ddl = `
CREATE TABLE IF NOT EXISTS ` + deviceTable + ` (
  fleet_id STRING TAG,
  device_id STRING TAG,
  device_index BIGINT,
  sent BIGINT,
  attempts BIGINT,
  quota BIGINT,
  running BOOLEAN,
  ts TIMESTAMP TIME INDEX
) WITH (ttl='30d')
`
	if _, err := client.SQL(ctx, ddl); err != nil {
		return nil, err
	}

	return &GreptimeDBWriter{
		client:       client,
		db:           database,
		attemptTable: attemptTable,
		deviceTable:  deviceTable,
		log:          log,
	}, nil
}

// WriteAttempt inserts a single attempt row.
func (w *GreptimeDBWriter) WriteAttempt(row telemetry.AttemptRow) error {
	return w.WriteAttempts([]telemetry.AttemptRow{row})
}

// WriteAttempts inserts multiple attempt rows.
func (w *GreptimeDBWriter) WriteAttempts(rows []telemetry.AttemptRow) error {
	if len(rows) == 0 {
		return nil
	}

	ctx := ingesterContext.NewContext(context.Background())

	tbl := table.New(w.attemptTable)
	tbl.AddTagColumn("fleet_id", types.StringType, 0)
	tbl.AddTagColumn("device_id", types.StringType, 0)
	tbl.AddFieldColumn("device_index", types.Int64Type)
	tbl.AddFieldColumn("attempt", types.Int64Type)
	tbl.AddFieldColumn("sent", types.Int64Type)
	tbl.AddFieldColumn("virtual_time_s", types.Float64Type)
	tbl.AddFieldColumn("outcome", types.StringType)
	tbl.AddFieldColumn("bytes", types.Int64Type)
	tbl.AddFieldColumn("signal", types.Float64Type)
	tbl.AddFieldColumn("target", types.StringType)
	tbl.AddFieldColumn("error", types.StringType)
	tbl.SetTimeIndex("ts", types.TimestampType)

	for _, r := range rows {
		tbl.AppendTagValue("fleet_id", r.FleetID)
		tbl.AppendTagValue("device_id", r.DeviceID)
		tbl.AppendFieldValue("device_index", int64(r.DeviceIndex))
		tbl.AppendFieldValue("attempt", int64(r.Attempt))
		tbl.AppendFieldValue("sent", int64(r.Sent))
		tbl.AppendFieldValue("virtual_time_s", r.VirtualTime)
		tbl.AppendFieldValue("outcome", r.Outcome)
		tbl.AppendFieldValue("bytes", int64(r.Bytes))
		tbl.AppendFieldValue("signal", r.Signal)
		tbl.AppendFieldValue("target", r.Target)
		tbl.AppendFieldValue("error", r.Error)
		tbl.AppendTimeIndex(r.Timestamp)
	}

	if err := w.client.Write(ctx, w.db, []*table.Table{tbl}); err != nil {
		w.log.Error("greptime attempt write failed", "err", err)
		return err
	}
	return nil
}

// WriteDevice inserts a single device summary row.
func (w *GreptimeDBWriter) WriteDevice(row telemetry.DeviceRow) error {
	return w.WriteDevices([]telemetry.DeviceRow{row})
}

// WriteDevices inserts multiple device summary rows.
func (w *GreptimeDBWriter) WriteDevices(rows []telemetry.DeviceRow) error {
	if len(rows) == 0 {
		return nil
	}

	ctx := ingesterContext.NewContext(context.Background())

	tbl := table.New(w.deviceTable)
	tbl.AddTagColumn("fleet_id", types.StringType, 0)
	tbl.AddTagColumn("device_id", types.StringType, 0)
	tbl.AddFieldColumn("device_index", types.Int64Type)
	tbl.AddFieldColumn("sent", types.Int64Type)
	tbl.AddFieldColumn("attempts", types.Int64Type)
	tbl.AddFieldColumn("quota", types.Int64Type)
	tbl.AddFieldColumn("running", types.BooleanType)
	tbl.SetTimeIndex("ts", types.TimestampType)

	for _, r := range rows {
		tbl.AppendTagValue("fleet_id", r.FleetID)
		tbl.AppendTagValue("device_id", r.DeviceID)
		tbl.AppendFieldValue("device_index", int64(r.DeviceIndex))
		tbl.AppendFieldValue("sent", int64(r.Sent))
		tbl.AppendFieldValue("attempts", int64(r.Attempts))
		tbl.AppendFieldValue("quota", int64(r.Quota))
		tbl.AppendFieldValue("running", r.Running)
		tbl.AppendTimeIndex(r.Timestamp)
	}

	if err := w.client.Write(ctx, w.db, []*table.Table{tbl}); err != nil {
		w.log.Error("greptime device write failed", "err", err)
		return err
	}
	return nil
}
