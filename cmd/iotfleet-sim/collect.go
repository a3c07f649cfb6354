package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"iotfleet-sim/internal/collector"
	"iotfleet-sim/internal/logging"
)

var collectAddr string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a debug collector sink",
	Long:  "collect listens for fleet connections, reads each payload to EOF, and reports received connection and byte counts on shutdown. It stands in for the downstream collector during local runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New()

		ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), logger))
		defer cancel()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigs
			cancel()
		}()

		c, err := collector.New(collectAddr)
		if err != nil {
			return err
		}
		logger.Info("collector listening", "addr", c.Addr().String())

		err = c.Serve(ctx)
		stats := c.Stats()
		logger.Info("collector stopped",
			"connections", stats.Connections, "bytes", stats.Bytes)
		return err
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectAddr, "addr", ":6000", "Listen address for the collector sink")
}
