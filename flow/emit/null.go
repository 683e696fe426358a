package emit

// NullEmitter discards every event. It is the default emitter of a flow.
type NullEmitter struct{}

// NewNullEmitter returns a NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit does nothing.
func (n *NullEmitter) Emit(Event) {}
