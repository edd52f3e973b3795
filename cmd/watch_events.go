package cmd

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/mselser95/bangr-engine/pkg/config"
	"github.com/mselser95/bangr-engine/pkg/websocket"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchEventsCmd = &cobra.Command{
	Use:   "watch-events",
	Short: "Watch the engine event stream",
	Long: `Connects to a running engine's WebSocket stream and prints committed
events as they happen. Reconnects with backoff when the connection drops.

Example:
  bangr-engine watch-events --market 3 --types TradeExecuted,OrderPlaced`,
	RunE: runWatchEvents,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchEventsCmd)
	watchEventsCmd.Flags().String("url", "ws://localhost:8080/ws/events", "Stream URL")
	watchEventsCmd.Flags().Uint64P("market", "m", 0, "Only events of this market")
	watchEventsCmd.Flags().StringP("types", "t", "", "Comma separated event types")
	watchEventsCmd.Flags().BoolP("json", "j", false, "Output raw JSON events")
}

func streamURL(base string, marketID uint64, eventTypes string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	if marketID > 0 {
		q.Set("market", strconv.FormatUint(marketID, 10))
	}
	if eventTypes != "" {
		q.Set("types", eventTypes)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func runWatchEvents(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	base, _ := cmd.Flags().GetString("url")
	marketID, _ := cmd.Flags().GetUint64("market")
	eventTypes, _ := cmd.Flags().GetString("types")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	target, err := streamURL(base, marketID, eventTypes)
	if err != nil {
		return err
	}

	client := websocket.NewClient(websocket.ClientConfig{
		URL:          target,
		PingInterval: cfg.WSPingInterval,
		Logger:       logger,
	})
	if err = client.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	fmt.Printf("Watching %s\n\n", target)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	for {
		select {
		case <-sigChan:
			fmt.Printf("\nShutting down after sequence %d...\n", client.LastSequence())
			return nil
		case ev, ok := <-client.Events():
			if !ok {
				return fmt.Errorf("event stream closed")
			}
			if jsonOutput {
				out, _ := json.Marshal(ev)
				fmt.Println(string(out))
				continue
			}
			printEvent(w, ev)
		}
	}
}

func printEvent(w *tabwriter.Writer, ev *websocket.StreamEvent) {
	fmt.Fprintf(w, "[%s] #%d\t%s\tmarket %d\t%s\n",
		ev.Time.Format("15:04:05"), ev.Sequence, ev.Type, ev.MarketID, string(ev.Payload))
	w.Flush()
}

