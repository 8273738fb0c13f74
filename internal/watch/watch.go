// Package watch renders the live deliberation progress stream for the CLI:
// subscribe to the instance's progress channel, format each event as one
// line, and stop on the session's terminal event.
package watch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/quorumworks/council/pkg/council"
)

// StreamProgress subscribes to the instance's progress events and writes one
// formatted line per event to w. An optional session ID filters the stream to
// a single deliberation; when filtering, the stream ends after that session's
// terminal event. With no filter it runs until the context is cancelled.
func StreamProgress(ctx context.Context, client *council.Client, sessionID string, w io.Writer) error {
	sub, err := client.SubscribeProgress(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to progress events: %w", err)
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
			fmt.Fprintf(w, "⚠️  %v\n", err)

		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if sessionID != "" && ev.SessionID != sessionID {
				continue
			}

			fmt.Fprintln(w, FormatEvent(ev))

			if sessionID != "" && isTerminal(ev.Stage) {
				return nil
			}
		}
	}
}

// WaitForCompletion consumes the progress stream until the given session
// emits its terminal event, writing formatted lines along the way. Returns an
// error if the timeout elapses first. This is how `council submit --wait`
// blocks on a deliberation run by the daemon.
func WaitForCompletion(ctx context.Context, client *council.Client, sessionID string, timeout time.Duration, w io.Writer) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := StreamProgress(waitCtx, client, sessionID, w)
	if err == context.DeadlineExceeded || waitCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("timeout waiting for session %s to complete after %v", sessionID, timeout)
	}
	return err
}

// FormatEvent renders one progress event as a single human-readable line.
func FormatEvent(ev *council.ProgressEvent) string {
	ts := time.UnixMilli(ev.TimestampMs).Format("15:04:05")

	switch ev.Stage {
	case council.StageStarting:
		return fmt.Sprintf("[%s] %s  starting deliberation with %d personas",
			ts, shortID(ev.SessionID), ev.TotalPersonas)

	case council.StageGatheringResponses:
		confidence := "  -  "
		if ev.CurrentConfidence != nil {
			confidence = fmt.Sprintf("%.2f", *ev.CurrentConfidence)
		}
		return fmt.Sprintf("[%s] %s  %d/%d personas responded (confidence so far: %s)",
			ts, shortID(ev.SessionID), len(ev.PersonasCompleted), ev.TotalPersonas, confidence)

	case council.StageReachingConsensus:
		return fmt.Sprintf("[%s] %s  reducing %d opinions to a decision",
			ts, shortID(ev.SessionID), len(ev.PersonasCompleted))

	case council.StageComplete:
		confidence := "-"
		if ev.CurrentConfidence != nil {
			confidence = fmt.Sprintf("%.2f", *ev.CurrentConfidence)
		}
		return fmt.Sprintf("[%s] %s  ✓ complete (confidence %s)",
			ts, shortID(ev.SessionID), confidence)

	case council.StageError:
		return fmt.Sprintf("[%s] %s  ✗ deliberation failed",
			ts, shortID(ev.SessionID))

	default:
		return fmt.Sprintf("[%s] %s  %s", ts, shortID(ev.SessionID), ev.Stage)
	}
}

func isTerminal(stage council.Stage) bool {
	return stage == council.StageComplete || stage == council.StageError
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
