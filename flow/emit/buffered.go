package emit

import "sync"

// BufferedEmitter keeps every event in memory, grouped by run id, and answers history
// queries over them. It is meant for tests and short-lived tooling; nothing is evicted.
//
//	events := emit.NewBufferedEmitter()
//	f, _ := flow.New(entry, flow.WithEmitter(events))
//	res, _ := f.RunWithID(ctx, "run-001")
//	errs := events.GetHistoryWithFilter("run-001", emit.HistoryFilter{Msg: emit.MsgNodeError})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID -> events
}

// HistoryFilter selects events. Unset fields match everything; set fields are ANDed.
type HistoryFilter struct {
	NodeID  string // exact node id
	Msg     string // exact message
	MinStep *int   // step >= MinStep
	MaxStep *int   // step <= MaxStep
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores event.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// GetHistory returns a copy of every event of runID in emission order. It never returns nil.
func (b *BufferedEmitter) GetHistory(runID string) []Event {
	return b.GetHistoryWithFilter(runID, HistoryFilter{})
}

// GetHistoryWithFilter returns the events of runID matching filter, in emission order.
func (b *BufferedEmitter) GetHistoryWithFilter(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[runID] {
		if filter.matches(event) {
			result = append(result, event)
		}
	}
	return result
}

// Count returns how many events of runID carry msg.
func (b *BufferedEmitter) Count(runID, msg string) int {
	return len(b.GetHistoryWithFilter(runID, HistoryFilter{Msg: msg}))
}

// RunIDs returns the ids of every run with stored events, in no particular order.
func (b *BufferedEmitter) RunIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.events))
	for id := range b.events {
		ids = append(ids, id)
	}
	return ids
}

// Clear drops the events of runID, or of every run when runID is empty.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, runID)
}

func (f HistoryFilter) matches(event Event) bool {
	if f.NodeID != "" && event.NodeID != f.NodeID {
		return false
	}
	if f.Msg != "" && event.Msg != f.Msg {
		return false
	}
	if f.MinStep != nil && event.Step < *f.MinStep {
		return false
	}
	if f.MaxStep != nil && event.Step > *f.MaxStep {
		return false
	}
	return true
}
