package emit

// Emitter receives observability events from a run.
//
// Emit may be called concurrently from parallel branches and must not block the run for
// long. Implementations should not panic; delivery failures are their own concern.
type Emitter interface {
	Emit(event Event)
}

// Multi fans every event out to each emitter in order. Nil emitters are skipped.
func Multi(emitters ...Emitter) Emitter {
	out := make(multi, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

type multi []Emitter

func (m multi) Emit(event Event) {
	for _, e := range m {
		e.Emit(event)
	}
}
