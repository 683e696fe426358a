package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter writes events to a writer, either as text lines or as JSON lines.
//
// Text output:
//
//	[node_end] run=7f0c step=3 node=sum meta={"duration_ms":0}
//
// JSON output:
//
//	{"run_id":"7f0c","step":3,"node_id":"sum","msg":"node_end","meta":{"duration_ms":0}}
//
// Writes are serialized so lines from parallel branches never interleave.
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to writer, or to stdout when writer is nil.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
	}
}

// Emit writes one line for event.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonMode {
		l.emitJSON(event)
		return
	}
	l.emitText(event)
}

type jsonEvent struct {
	RunID  string                 `json:"run_id"`
	Step   int                    `json:"step"`
	NodeID string                 `json:"node_id,omitempty"`
	Msg    string                 `json:"msg"`
	Meta   map[string]interface{} `json:"meta,omitempty"`
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(jsonEvent{
		RunID:  event.RunID,
		Step:   event.Step,
		NodeID: event.NodeID,
		Msg:    event.Msg,
		Meta:   event.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"msg\":%q,\"error\":%q}\n", event.Msg, "marshal event: "+err.Error())
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] run=%s step=%d", event.Msg, event.RunID, event.Step)
	if event.NodeID != "" {
		fmt.Fprintf(l.writer, " node=%s", event.NodeID)
	}
	if len(event.Meta) > 0 {
		if meta, err := json.Marshal(event.Meta); err == nil {
			fmt.Fprintf(l.writer, " meta=%s", meta)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	fmt.Fprint(l.writer, "\n")
}
