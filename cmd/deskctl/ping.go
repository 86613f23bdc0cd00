package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/charleschow/deskcards/internal/config"
)

const pingTimeout = 10 * time.Second

var (
	pingCount int
	pingWS    bool
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure latency to the services the cards depend on",
	Long: `Measures cold and warm HTTP round-trips to the weather, Last.fm and
time-source endpoints from the device configuration. With --ws it also
measures ping/pong latency to the device mirror.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	pingCmd.Flags().IntVarP(&pingCount, "count", "n", 10, "Requests per endpoint")
	pingCmd.Flags().BoolVar(&pingWS, "ws", false, "Also measure mirror WebSocket ping/pong latency")

	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	w := cmd.OutOrStdout()

	targets := []struct{ label, url string }{
		{"Weather", cfg.WeatherBaseURL},
		{"Last.fm", cfg.LastFMBaseURL},
		{"Time source", cfg.TimeSourceURL},
	}
	for _, t := range targets {
		pingHTTP(cmd.Context(), w, t.label, t.url, pingCount)
	}

	if pingWS {
		fmt.Fprintf(w, "\n%s\n  MIRROR %s\n%s\n", strings.Repeat("=", 55), deviceAddr, strings.Repeat("=", 55))
		lat, err := measureWSLatency(cmd.Context(), "ws://"+deviceAddr+"/ws", pingCount)
		if err != nil {
			fmt.Fprintf(w, "  [!] %v\n", err)
		}
		printStats(w, lat, "Mirror WebSocket")
	}
	fmt.Fprintln(w)
	return nil
}

func pingHTTP(ctx context.Context, w io.Writer, label, url string, n int) {
	fmt.Fprintf(w, "\n%s\n  %s: %s\n%s\n", strings.Repeat("=", 55), strings.ToUpper(label), url, strings.Repeat("=", 55))

	fmt.Fprintln(w, "\n  Cold-start request (DNS + TCP + TLS + HTTP):")
	ms, code, err := measureHTTP(ctx, url, nil)
	if err != nil {
		fmt.Fprintf(w, "    FAILED: %v\n", err)
		return
	}
	fmt.Fprintf(w, "    %.1f ms  (HTTP %d)\n", ms, code)

	fmt.Fprintf(w, "\n  Warm HTTP latency (%d requests, keep-alive):\n", n)
	client := &http.Client{Timeout: pingTimeout}
	if _, _, err := measureHTTP(ctx, url, client); err != nil {
		fmt.Fprintf(w, "  [!] Warm-up request failed: %v\n", err)
		return
	}
	latencies := make([]float64, 0, n)
	pad := len(fmt.Sprintf("%d", n))
	for i := 1; i <= n; i++ {
		ms, code, err := measureHTTP(ctx, url, client)
		if err != nil {
			fmt.Fprintf(w, "  [%*d/%d]  FAILED: %v\n", pad, i, n, err)
			continue
		}
		latencies = append(latencies, ms)
		fmt.Fprintf(w, "  [%*d/%d]  %7.1f ms  (HTTP %d)\n", pad, i, n, ms, code)
	}
	printStats(w, latencies, label+" HTTP")
}

// measureHTTP times a HEAD request to url.
func measureHTTP(ctx context.Context, url string, client *http.Client) (ms float64, statusCode int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, 0, err
	}
	c := client
	if c == nil {
		c = &http.Client{Timeout: pingTimeout}
	}
	start := time.Now()
	resp, err := c.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, 0, err
	}
	resp.Body.Close()
	return float64(elapsed.Microseconds()) / 1000, resp.StatusCode, nil
}

func measureWSLatency(ctx context.Context, wsURL string, n int) ([]float64, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	// Control frames are only processed while reading.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	latencies := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			return latencies, fmt.Errorf("ping: %w", err)
		}
		select {
		case <-pongCh:
			latencies = append(latencies, float64(time.Since(start).Microseconds())/1000)
		case <-time.After(5 * time.Second):
			return latencies, fmt.Errorf("pong timeout")
		case <-ctx.Done():
			return latencies, ctx.Err()
		}
	}
	return latencies, nil
}

type latencyStats struct {
	Min, Max, Mean, Median, Stdev, P95, P99 float64
}

func computeStats(latencies []float64) (latencyStats, bool) {
	if len(latencies) < 2 {
		return latencyStats{}, false
	}
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	var s latencyStats
	for _, v := range latencies {
		s.Mean += v
	}
	s.Mean /= float64(len(latencies))

	variance := 0.0
	for _, v := range latencies {
		variance += (v - s.Mean) * (v - s.Mean)
	}
	variance /= float64(len(latencies) - 1)
	s.Stdev = math.Sqrt(variance)

	pct := func(p float64) float64 {
		return sorted[min(int(float64(len(sorted))*p), len(sorted)-1)]
	}
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Median = sorted[len(sorted)/2]
	s.P95 = pct(0.95)
	s.P99 = pct(0.99)
	return s, true
}

func printStats(w io.Writer, latencies []float64, label string) {
	s, ok := computeStats(latencies)
	if !ok {
		fmt.Fprintf(w, "\n  Not enough %s samples for statistics.\n", label)
		return
	}
	fmt.Fprintf(w, "\n  --- %s Stats (%d requests) ---\n", label, len(latencies))
	fmt.Fprintf(w, "  Min:    %7.1f ms\n", s.Min)
	fmt.Fprintf(w, "  Max:    %7.1f ms\n", s.Max)
	fmt.Fprintf(w, "  Mean:   %7.1f ms\n", s.Mean)
	fmt.Fprintf(w, "  Median: %7.1f ms\n", s.Median)
	fmt.Fprintf(w, "  Stdev:  %7.1f ms\n", s.Stdev)
	fmt.Fprintf(w, "  p95:    %7.1f ms\n", s.P95)
	fmt.Fprintf(w, "  p99:    %7.1f ms\n", s.P99)
}
