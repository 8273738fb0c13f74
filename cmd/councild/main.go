// Command councild is the deliberation daemon: it subscribes to the
// instance's query channel, runs one session per submitted query, persists
// the finished record, and streams progress over Pub/Sub.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/quorumworks/council/internal/config"
	"github.com/quorumworks/council/internal/persona"
	"github.com/quorumworks/council/internal/session"
	"github.com/quorumworks/council/pkg/council"
)

func main() {
	// 1. Load environment variables
	instanceName := os.Getenv("COUNCIL_INSTANCE_NAME")
	redisURL := os.Getenv("REDIS_URL")
	configPath := os.Getenv("COUNCIL_CONFIG")

	if instanceName == "" {
		instanceName = "default"
	}
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	if configPath == "" {
		configPath = "council.yml"
	}

	// 2. Parse Redis URL
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}

	// 3. Create council client
	client, err := council.NewClient(redisOpts, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create council client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// 4. Verify Redis connectivity
	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 5. Load council.yml and build the roster
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", configPath, err)
		os.Exit(1)
	}

	roster, err := persona.FromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to build persona roster: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Council daemon starting for instance '%s' with %d personas\n", instanceName, roster.Size())

	// 6. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 7. Run the query loop in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(runCtx, client, roster, session.SettingsFromConfig(cfg))
	}()

	// 8. Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil && runErr != context.Canceled {
			fmt.Fprintf(os.Stderr, "Council daemon error: %v\n", runErr)
			os.Exit(1)
		}
	}

	fmt.Println("Council daemon stopped")
}

// run consumes the query channel and deliberates each submission in turn.
// One query at a time: the concurrency lives inside the session's fan-out,
// not across sessions.
func run(ctx context.Context, client *council.Client, roster *persona.Roster, settings session.Settings) error {
	sub, err := client.SubscribeQueries(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to query events: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)

		case q, ok := <-sub.Events():
			if !ok {
				return nil
			}
			deliberate(ctx, client, roster, settings, q)
		}
	}
}

// deliberate runs one session for a submitted query. Faults and persistence
// failures are logged, never fatal: the daemon keeps serving.
func deliberate(ctx context.Context, client *council.Client, roster *persona.Roster, settings session.Settings, q *council.Query) {
	s, err := session.NewFromQuery(q, roster, client, settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Rejected query %s: %v\n", q.ID, err)
		return
	}

	if _, err := s.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Deliberation %s failed: %v\n", s.ID(), err)
		return
	}

	record, err := s.Record()
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to build record for session %s: %v\n", s.ID(), err)
		return
	}

	if err := client.SaveRecord(ctx, record, s.BoardEntries()); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to persist session %s: %v\n", s.ID(), err)
	}
}
