// Package emit carries the observability events produced while a flow runs and the
// emitters that deliver them.
package emit

// Event messages emitted by the flow engine and its middleware.
const (
	MsgRunStart       = "run_start"
	MsgRunEnd         = "run_end"
	MsgNodeStart      = "node_start"
	MsgNodeEnd        = "node_end"
	MsgNodeError      = "node_error"
	MsgParallelFork   = "parallel_fork"
	MsgParallelJoin   = "parallel_join"
	MsgMergeOverwrite = "merge_overwrite"
	MsgBranchSelected = "branch_selected"
	MsgRetryAttempt   = "retry_attempt"
	MsgNodeTimeout    = "node_timeout"
	MsgCacheHit       = "cache_hit"
	MsgCacheMiss      = "cache_miss"
)

// Event is a single observability record emitted during a run.
type Event struct {
	// RunID identifies the run that emitted this event.
	RunID string

	// Step is the 1-indexed position of the node invocation within the run.
	// Zero for run-level events.
	Step int

	// NodeID identifies the step that emitted this event. Empty for run-level events.
	NodeID string

	// Msg is one of the Msg* constants.
	Msg string

	// Meta contains event specific data. Common keys:
	//   - "duration_ms": invocation duration in milliseconds
	//   - "error": error text
	//   - "code": error code
	//   - "attempt": retry attempt number (1 for the first retry)
	//   - "tag": output tag (merge_overwrite)
	//   - "branch": selected branch (branch_selected)
	Meta map[string]interface{}
}

// IsError reports whether the event carries an error.
func (e Event) IsError() bool {
	_, ok := e.Meta["error"]
	return ok
}
