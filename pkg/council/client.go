package council

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the council: persisted
// deliberation records and the progress/query Pub/Sub channels. All keys and
// channels are automatically namespaced with the instance name. The client is
// thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new council client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: Council instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RedisClient exposes the underlying Redis client for SCAN-based listing.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// InstanceName returns the instance this client is scoped to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// SaveRecord persists a finished deliberation: the session record hash, the
// per-persona opinions hash, and the blackboard entries hash. Validates the
// record before writing. Idempotent - saving the same record twice is safe.
func (c *Client) SaveRecord(ctx context.Context, r *SessionRecord, entries []*BlackboardEntry) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid session record: %w", err)
	}

	hash, err := RecordToHash(r)
	if err != nil {
		return fmt.Errorf("failed to serialize session record: %w", err)
	}

	key := SessionKey(c.instanceName, r.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write session record to Redis: %w", err)
	}

	if len(r.Opinions) > 0 {
		opinionsHash, err := OpinionsToHash(r.Opinions)
		if err != nil {
			return fmt.Errorf("failed to serialize opinions: %w", err)
		}
		opinionsKey := SessionOpinionsKey(c.instanceName, r.ID)
		if err := c.rdb.HSet(ctx, opinionsKey, opinionsHash).Err(); err != nil {
			return fmt.Errorf("failed to write opinions to Redis: %w", err)
		}
	}

	if len(entries) > 0 {
		boardHash, err := EntriesToHash(entries)
		if err != nil {
			return fmt.Errorf("failed to serialize board entries: %w", err)
		}
		boardKey := SessionBoardKey(c.instanceName, r.ID)
		if err := c.rdb.HSet(ctx, boardKey, boardHash).Err(); err != nil {
			return fmt.Errorf("failed to write board entries to Redis: %w", err)
		}
	}

	return nil
}

// GetRecord retrieves a session record by ID, including its opinion list.
// Returns (nil, redis.Nil) if the record doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetRecord(ctx context.Context, sessionID string) (*SessionRecord, error) {
	key := SessionKey(c.instanceName, sessionID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session record from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	record, err := HashToRecord(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize session record: %w", err)
	}

	opinionsKey := SessionOpinionsKey(c.instanceName, sessionID)
	opinionsData, err := c.rdb.HGetAll(ctx, opinionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read opinions from Redis: %w", err)
	}

	opinions, err := HashToOpinions(opinionsData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize opinions: %w", err)
	}

	// Deterministic order regardless of Redis hash iteration
	sort.Slice(opinions, func(i, j int) bool {
		return opinions[i].PersonaID < opinions[j].PersonaID
	})
	record.Opinions = opinions

	return record, nil
}

// GetBoardEntries retrieves the blackboard entries persisted for a session,
// sorted by creation time. Returns an empty slice if none were written.
func (c *Client) GetBoardEntries(ctx context.Context, sessionID string) ([]*BlackboardEntry, error) {
	key := SessionBoardKey(c.instanceName, sessionID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read board entries from Redis: %w", err)
	}

	entries, err := HashToEntries(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize board entries: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAtMs != entries[j].CreatedAtMs {
			return entries[i].CreatedAtMs < entries[j].CreatedAtMs
		}
		return entries[i].ID < entries[j].ID
	})

	return entries, nil
}

// ScanSessions returns the IDs of all persisted sessions whose ID starts with
// the given prefix (empty prefix matches all). Uses Redis SCAN to avoid
// blocking the server.
func (c *Client) ScanSessions(ctx context.Context, prefix string) ([]string, error) {
	pattern := fmt.Sprintf("council:%s:session:%s*", c.instanceName, prefix)
	keyPrefix := fmt.Sprintf("council:%s:session:", c.instanceName)

	var ids []string
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), keyPrefix)
		// Skip :opinions and :board subkeys
		if strings.Contains(id, ":") {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// PublishProgress publishes a progress event to the instance's progress
// channel. Events are delivered at-most-once to live subscribers; the
// progress stream is observability, not state, so missed events are not
// recovered.
func (c *Client) PublishProgress(ctx context.Context, ev *ProgressEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid progress event: %w", err)
	}

	eventJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}

	channel := ProgressEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish progress event: %w", err)
	}

	return nil
}

// PublishQuery publishes a query submission for the councild daemon.
// Validates the query before publishing.
func (c *Client) PublishQuery(ctx context.Context, q *Query) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	queryJSON, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	channel := QueryEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, queryJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish query: %w", err)
	}

	return nil
}

// ProgressSubscription represents an active Pub/Sub subscription to progress
// events. Caller must call Close() when done to clean up resources.
type ProgressSubscription struct {
	events <-chan *ProgressEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of progress events. The channel is closed when
// the subscription is closed or the context is cancelled.
func (s *ProgressSubscription) Events() <-chan *ProgressEvent {
	return s.events
}

// Errors returns the channel of subscription errors. Errors include JSON
// unmarshaling failures; the subscription continues after errors and the
// offending messages are skipped.
func (s *ProgressSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times.
func (s *ProgressSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// QuerySubscription represents an active Pub/Sub subscription to query
// submissions. Caller must call Close() when done.
type QuerySubscription struct {
	events <-chan *Query
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of submitted queries.
func (s *QuerySubscription) Events() <-chan *Query {
	return s.events
}

// Errors returns the channel of subscription errors.
func (s *QuerySubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
func (s *QuerySubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeProgress subscribes to progress events for this instance.
// Caller must call subscription.Close() when done. Context cancellation also
// stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func (c *Client) SubscribeProgress(ctx context.Context) (*ProgressSubscription, error) {
	channel := ProgressEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *ProgressEvent, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal progress event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &ProgressSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// SubscribeQueries subscribes to query submissions for this instance.
// Caller must call subscription.Close() when done.
func (c *Client) SubscribeQueries(ctx context.Context) (*QuerySubscription, error) {
	channel := QueryEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *Query, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var q Query
				if err := json.Unmarshal([]byte(msg.Payload), &q); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal query event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &q:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &QuerySubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetRecord returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
