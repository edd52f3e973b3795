package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/mselser95/bangr-engine/internal/tweets"
	"github.com/mselser95/bangr-engine/pkg/config"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var fetchTweetCmd = &cobra.Command{
	Use:   "fetch-tweet <tweet-id-or-url>",
	Short: "Fetch a tweet's current counters from the provider",
	Long: `Fetches a tweet through the configured provider and prints the counters
a market would snapshot at creation.

Example:
  bangr-engine fetch-tweet https://x.com/jack/status/20`,
	Args: cobra.ExactArgs(1),
	RunE: runFetchTweet,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(fetchTweetCmd)
	fetchTweetCmd.Flags().BoolP("json", "j", false, "Output raw JSON")
}

func runFetchTweet(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.TwitterAPIKey == "" {
		return fmt.Errorf("TWITTER_API_KEY not set")
	}

	tweetID, err := tweets.ParseTweetID(args[0])
	if err != nil {
		return err
	}

	client, err := tweets.NewClient(&tweets.Config{
		BaseURL: cfg.TwitterAPIURL,
		APIKey:  cfg.TwitterAPIKey,
		Timeout: cfg.TwitterTimeout,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	tweet, err := client.FetchTweet(context.Background(), tweetID)
	if err != nil {
		return fmt.Errorf("fetch tweet: %w", err)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		out, _ := json.MarshalIndent(tweet, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	printTweet(tweet)
	return nil
}

func printTweet(tweet *types.Tweet) {
	fmt.Printf("Tweet %s by @%s\n", tweet.ID, tweet.AuthorHandle)
	if tweet.Text != "" {
		fmt.Printf("%s\n", tweet.Text)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	for _, metric := range []types.Metric{types.MetricViews, types.MetricLikes, types.MetricRetweets, types.MetricComments} {
		value, err := tweet.MetricValue(metric)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\n", metric, value)
	}
	w.Flush()
}
