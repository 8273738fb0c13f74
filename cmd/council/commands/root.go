package commands

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/quorumworks/council/pkg/council"
)

var (
	version string
	commit  string
	date    string
)

// Global flags shared by every subcommand that talks to Redis.
var (
	instanceName string
	redisURL     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "council",
	Short: "Council - Deliberation and consensus engine",
	Long: `Council fans a question out to a roster of weighted advisory personas,
gathers their opinions concurrently under a deadline, and reduces them into
a single decision with an aggregate confidence and an agreement score.

Deliberations run either synchronously ('council deliberate') or through the
councild daemon ('council submit'), with finished sessions persisted to Redis
and live progress streamed over Pub/Sub.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&instanceName, "name", "n", "",
		"Council instance name (default: COUNCIL_INSTANCE_NAME or 'default')")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", "",
		"Redis URL (default: REDIS_URL or redis://localhost:6379)")
}

// effectiveInstanceName resolves the instance name from the flag, the
// environment, or the "default" fallback.
func effectiveInstanceName() string {
	if instanceName != "" {
		return instanceName
	}
	if env := os.Getenv("COUNCIL_INSTANCE_NAME"); env != "" {
		return env
	}
	return "default"
}

// effectiveRedisURL resolves the Redis URL from the flag, the environment, or
// the localhost fallback.
func effectiveRedisURL() string {
	if redisURL != "" {
		return redisURL
	}
	if env := os.Getenv("REDIS_URL"); env != "" {
		return env
	}
	return "redis://localhost:6379"
}

// newClient creates an instance-scoped council client from the global flags.
func newClient() (*council.Client, error) {
	opts, err := redis.ParseURL(effectiveRedisURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client, err := council.NewClient(opts, effectiveInstanceName())
	if err != nil {
		return nil, fmt.Errorf("failed to create council client: %w", err)
	}

	return client, nil
}
