package main

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"iotfleet-sim/internal/admin"
	"iotfleet-sim/internal/config"
	"iotfleet-sim/internal/logging"
	"iotfleet-sim/internal/sim"
)

var (
	simConfigPath string
	simSchemaPath string
	simPrintOnly  bool
	simLogFile    string
	simTUI        bool
	simAdminAddr  string
	simSeed       int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the device fleet against the configured collector",
	Long:  "simulate builds the device fleet and advances the virtual clock until the configured horizon, delivering payloads over TCP and emitting one attempt record per transmission.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}

		writer, deviceWriter, tui, cleanup, err := newWriters(cfg, simPrintOnly, simLogFile, simTUI)
		if err != nil {
			return err
		}
		defer cleanup()

		logger := logging.New()
		if tui != nil {
			// Keep log lines off the alternate screen.
			logger = logging.NewWithWriter(io.Discard)
		}

		fleetID := os.Getenv("FLEET_ID")
		if fleetID == "" {
			fleetID = "fleet-01"
		}

		var rnd *rand.Rand
		if simSeed != 0 {
			rnd = rand.New(rand.NewSource(simSeed))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fleet := sim.New(fleetID, cfg, writer, deviceWriter, nil, rnd, logger)

		if simAdminAddr != "" {
			srv := admin.NewServer(fleet)
			go func() {
				logger.Info("admin server listening", "addr", simAdminAddr)
				if tui != nil {
					tui.SetAdminStatus(true)
				}
				if err := srv.Start(ctx, simAdminAddr); err != nil && err != http.ErrServerClosed {
					slog.Error("admin server failed", "err", err)
				}
			}()
		}

		if tui != nil {
			go func() {
				ticker := time.NewTicker(500 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						tui.UpdateHealth(fleet.Health())
					case <-ctx.Done():
						return
					}
				}
			}()
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigs
			cancel()
		}()

		return fleet.Run(ctx)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	simulateCmd.Flags().BoolVar(&simPrintOnly, "print-only", false, "Print attempt records to STDOUT instead of writing to DB")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export attempt/device logs (JSONL)")
	simulateCmd.Flags().BoolVar(&simTUI, "tui", false, "Render a live TUI (requires a terminal)")
	simulateCmd.Flags().StringVar(&simAdminAddr, "admin-addr", ":8080", "Admin server listen address (empty to disable)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Seed for the payload random source (0 = time-based)")
}
