package council

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple Council instances to safely coexist on a single Redis
// server.
//
// Key pattern: council:{instance_name}:{entity}:{uuid}
// Channel pattern: council:{instance_name}:{event_type}_events

// SessionKey returns the Redis key for a session record hash.
// Pattern: council:{instance_name}:session:{session_id}
func SessionKey(instanceName, sessionID string) string {
	return fmt.Sprintf("council:%s:session:%s", instanceName, sessionID)
}

// SessionOpinionsKey returns the Redis key for a session's opinions hash
// (persona ID -> opinion JSON).
// Pattern: council:{instance_name}:session:{session_id}:opinions
func SessionOpinionsKey(instanceName, sessionID string) string {
	return fmt.Sprintf("council:%s:session:%s:opinions", instanceName, sessionID)
}

// SessionBoardKey returns the Redis key for a session's blackboard hash
// (entry ID -> entry JSON).
// Pattern: council:{instance_name}:session:{session_id}:board
func SessionBoardKey(instanceName, sessionID string) string {
	return fmt.Sprintf("council:%s:session:%s:board", instanceName, sessionID)
}

// ProgressEventsChannel returns the Pub/Sub channel name for deliberation
// progress events. All sessions of an instance share one channel; consumers
// filter by session ID.
// Pattern: council:{instance_name}:progress_events
func ProgressEventsChannel(instanceName string) string {
	return fmt.Sprintf("council:%s:progress_events", instanceName)
}

// QueryEventsChannel returns the Pub/Sub channel name for query submissions.
// The councild daemon subscribes here; `council submit` publishes here.
// Pattern: council:{instance_name}:query_events
func QueryEventsChannel(instanceName string) string {
	return fmt.Sprintf("council:%s:query_events", instanceName)
}
