package main

import (
	"os"

	"golang.org/x/term"

	"iotfleet-sim/internal/config"
	"iotfleet-sim/internal/logging"
	"iotfleet-sim/internal/sim"
)

// newWriters sets up attempt and device writers based on flags and env
// vars. The returned TUIWriter is non-nil only when the TUI is active;
// cleanup closes any resources.
func newWriters(cfg *config.SimulationConfig, printOnly bool, logFile string, useTUI bool) (sim.AttemptWriter, sim.DeviceWriter, *sim.TUIWriter, func(), error) {
	cleanup := func() {}

	var writer sim.AttemptWriter
	var deviceWriter sim.DeviceWriter
	var tui *sim.TUIWriter

	switch {
	case useTUI && term.IsTerminal(int(os.Stdout.Fd())):
		tui = sim.NewTUIWriter(cfg)
		writer = tui
		deviceWriter = tui
		cleanup = func() { _ = tui.Close() }
	case !printOnly && os.Getenv("GREPTIMEDB_ENDPOINT") != "":
		endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
		gw, err := sim.NewGreptimeDBWriter(endpoint, "public",
			os.Getenv("GREPTIMEDB_TABLE"), os.Getenv("DEVICE_SUMMARY_TABLE"), logging.New())
		if err != nil {
			return nil, nil, nil, nil, err
		}
		writer = gw
		deviceWriter = gw
	default:
		sw := &sim.StdoutWriter{}
		writer = sw
		deviceWriter = sw
	}

	if logFile == "" {
		return writer, deviceWriter, tui, cleanup, nil
	}

	fw, err := sim.NewFileWriter(logFile, logFile+".devices")
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}
	mw := sim.NewMultiWriter(
		[]sim.AttemptWriter{writer, fw},
		[]sim.DeviceWriter{deviceWriter, fw},
	)
	prev := cleanup
	cleanup = func() {
		_ = fw.Close()
		prev()
	}
	return mw, mw, tui, cleanup, nil
}
