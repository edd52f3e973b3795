package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mselser95/bangr-engine/pkg/wallet"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var signRequestCmd = &cobra.Command{
	Use:   "sign-request <method> <path>",
	Short: "Sign an API request with BANGR_PRIVATE_KEY",
	Long: `Signs a request body read from stdin and prints the headers the engine
expects when REQUIRE_SIGNATURES is on. The signature covers the current time,
so the headers are accepted once and only within SIGNATURE_MAX_AGE.

Example:
  echo '{"outcome":"YES"}' | bangr-engine sign-request POST /api/markets/1/redeem`,
	Args: cobra.ExactArgs(2),
	RunE: runSignRequest,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(signRequestCmd)
	signRequestCmd.Flags().Bool("empty", false, "Sign an empty body instead of reading stdin")
	signRequestCmd.Flags().Int64("timestamp", 0, "Unix millisecond timestamp to sign (default now)")
}

func runSignRequest(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found")
	}

	privateKeyHex := os.Getenv("BANGR_PRIVATE_KEY")
	if privateKeyHex == "" {
		return fmt.Errorf("BANGR_PRIVATE_KEY not set")
	}

	signer, err := wallet.NewSigner(privateKeyHex)
	if err != nil {
		return fmt.Errorf("load signer: %w", err)
	}

	var body []byte
	empty, _ := cmd.Flags().GetBool("empty")
	if !empty {
		body, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
	}

	ts, _ := cmd.Flags().GetInt64("timestamp")
	if ts <= 0 {
		ts = time.Now().UnixMilli()
	}

	method := strings.ToUpper(args[0])
	sig, err := signer.SignRequest(method, args[1], ts, body)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", wallet.HeaderAccount, signer.Address().Hex())
	fmt.Fprintf(out, "%s: %d\n", wallet.HeaderTimestamp, ts)
	fmt.Fprintf(out, "%s: %s\n", wallet.HeaderSignature, sig)
	return nil
}
