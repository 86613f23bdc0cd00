package main

import (
	"github.com/spf13/cobra"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/telemetry"
)

const defaultAddr = "localhost:8765"

var (
	deviceAddr string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "deskctl",
	Short: "Inspect and configure a running deskcards device",
	Long: `deskctl talks to the event mirror of a running device.

  - cards    List, add, remove, reorder and edit cards
  - events   Tail the device's event queue`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.Init(telemetry.ParseLogLevel(config.Load().LogLevel))
	},
}

func init() {
	addr := config.Load().MirrorAddr
	if addr == "" {
		addr = defaultAddr
	}
	rootCmd.PersistentFlags().StringVar(&deviceAddr, "addr", addr, "Device mirror address (host:port)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.AddCommand(cardsCmd)
	rootCmd.AddCommand(eventsCmd)
}
