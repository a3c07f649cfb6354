package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "iotfleet-sim",
	Short: "IoT fleet transport simulator",
	Long:  "iotfleet-sim drives a fleet of simulated IoT devices that deliver synthetic telemetry payloads over TCP under a discrete-event virtual clock.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(collectCmd)
}
