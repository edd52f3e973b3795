package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/mselser95/bangr-engine/internal/app"
	"github.com/mselser95/bangr-engine/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the market engine",
	Long: `Starts the engine, which will:
1. Serve the HTTP API for markets, orders and balances
2. Stream committed engine events over WebSocket at /ws/events
3. Record every event to the configured storage (console, postgres or redis)
4. Resolve expired markets against the tweet provider

Use --no-resolver to leave expired markets for the oracle.`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("no-resolver", false, "Do not resolve expired markets automatically")
}

func runEngine(cmd *cobra.Command, args []string) error {
	// .env is optional
	_ = godotenv.Load()

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

	noResolver, _ := cmd.Flags().GetBool("no-resolver")

	application, err := app.New(cfg, logger, &app.Options{
		DisableResolver: noResolver,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
