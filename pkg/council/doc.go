// Package council provides type-safe Go definitions and Redis schema patterns
// for the Council deliberation engine.
//
// # Overview
//
// A deliberation fans one Query out to a roster of independent, weighted
// personas. Each persona produces an Opinion (a recommendation with a
// confidence in [0,1]) or fails, and may leave concern/opportunity notes on a
// shared blackboard. A pure consensus step reduces the completed opinions
// into a single Decision carrying an aggregate confidence, an agreement
// score, and an explicit supporting/dissenting split.
//
// # Core Concepts
//
// Opinions are immutable: one per persona per session, created by the
// persona invocation (or synthesized as a failed/timed_out stub by the
// orchestrator) and never modified afterwards.
//
// Decisions keep confidence and agreement strictly separate. Confidence is
// the weighted mean of completed-opinion confidences; agreement measures the
// spread across those confidences. A 0.45-confidence decision can carry a
// 0.11 agreement - a deeply contested moderate call - and the two numbers
// must never be conflated.
//
// SessionRecords are the persisted shape of a finished deliberation: query,
// roster snapshot, every terminal opinion, statistics, and the decision.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// multiple Council instances can coexist on one Redis server without
// interference.
//
// # Redis Schema
//
// Session records: council:{instance_name}:session:{session_id}
// Opinions:        council:{instance_name}:session:{session_id}:opinions
// Board entries:   council:{instance_name}:session:{session_id}:board
//
// Pub/Sub channels:
//
// Progress events:   council:{instance_name}:progress_events
// Query submissions: council:{instance_name}:query_events
//
// # Design Principles
//
//   - Type Safety: every data structure carries a Validate() method
//   - Immutability: opinions, board entries, and decisions never change
//   - Separation: confidence and agreement are independently computed
//   - Isolation: instance namespacing prevents cross-instance interference
package council
