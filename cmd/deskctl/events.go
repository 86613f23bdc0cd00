package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/fanout"
)

var tailKinds []string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Watch the device's event queue",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print every event as the device publishes it",
	Long: `Connect to the device mirror and print events until interrupted.
Reconnects with backoff if the device goes away.`,
	Args: cobra.NoArgs,
	RunE: runEventsTail,
}

func init() {
	eventsTailCmd.Flags().StringSliceVar(&tailKinds, "kinds", nil, "Only show these kinds (e.g. weather_data_received,wifi_connected)")

	eventsCmd.AddCommand(eventsTailCmd)
}

func runEventsTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, k := range tailKinds {
		if !events.Kind(k).Valid() {
			return fmt.Errorf("unknown event kind %q", k)
		}
	}

	w := cmd.OutOrStdout()
	client := fanout.NewClient(deviceAddr, tailKinds, func(evt events.Event) {
		if jsonOutput {
			if data, err := fanout.MarshalEvent(evt); err == nil {
				fmt.Fprintln(w, string(data))
			}
			return
		}
		fmt.Fprintln(w, formatEvent(evt))
	})
	client.ConnectWithRetry(ctx)
	fmt.Fprintln(cmd.ErrOrStderr(), "stopped")
	return nil
}

func formatEvent(evt events.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-24s", evt.Timestamp.Format("15:04:05.000"), evt.Kind)
	if evt.SubjectID != "" {
		fmt.Fprintf(&b, "  subject=%s", evt.SubjectID)
	}
	if evt.Kind.IsResponse() {
		fmt.Fprintf(&b, "  success=%t", evt.Success)
	}
	if evt.Title != "" {
		fmt.Fprintf(&b, "  title=%q", evt.Title)
	}
	if evt.Payload != "" {
		fmt.Fprintf(&b, "  payload=%q", evt.Payload)
	}
	return b.String()
}
