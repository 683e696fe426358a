package flow

import (
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Tag identifies a category of data a node can produce. Tags are the keys of the result
// store's primary index; a later write to the same tag overwrites the earlier one.
type Tag string

// Results is the per-run data carrier. It records every value produced during a run,
// indexed three ways:
//   - by output tag (latest value, in first-insertion order)
//   - by producing node id (every tag that node produced)
//   - by node id, the raw value last returned by that node's body
//
// A Results is owned by the call stack executing a chain. Parallel is the only construct
// that splits ownership, through Fork, and reconciles it, through Merge. Values are never
// mutated in place once published, only replaced.
//
// The zero value is not usable; create stores with NewResults.
type Results struct {
	mu sync.RWMutex

	// values maps Tag -> latest value, insertion ordered
	values *linkedhashmap.Map

	// provenance maps Tag -> id of the node that produced values[tag]
	provenance map[Tag]string

	// byNode maps node id -> insertion ordered Tag -> value
	byNode map[string]*linkedhashmap.Map

	// nodeResult maps node id -> raw body return value
	nodeResult map[string]any

	// seq is bumped on every write; written and nodeWritten record the seq of the last
	// write per tag and per node result. base is the seq at fork time.
	seq         uint64
	base        uint64
	written     map[Tag]uint64
	nodeWritten map[string]uint64
}

// NewResults creates an empty result store.
func NewResults() *Results {
	return &Results{
		values:      linkedhashmap.New(),
		provenance:  make(map[Tag]string),
		byNode:      make(map[string]*linkedhashmap.Map),
		nodeResult:  make(map[string]any),
		written:     make(map[Tag]uint64),
		nodeWritten: make(map[string]uint64),
	}
}

// Set records value under tag. When producer is non-empty it becomes the tag's provenance
// and the value is also filed in the producer's bucket. A write by an unknown producer
// clears any stale provenance for the tag.
func (r *Results) Set(tag Tag, value any, producer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set(tag, value, producer)
}

func (r *Results) set(tag Tag, value any, producer string) {
	r.values.Put(tag, value)
	r.seq++
	r.written[tag] = r.seq

	if producer == "" {
		delete(r.provenance, tag)
		return
	}
	r.provenance[tag] = producer

	bucket, ok := r.byNode[producer]
	if !ok {
		bucket = linkedhashmap.New()
		r.byNode[producer] = bucket
	}
	bucket.Put(tag, value)
}

// SetNodeResult records the raw value returned by a node's body, independent of any
// tag unpacking.
func (r *Results) SetNodeResult(nodeID string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setNodeResult(nodeID, value)
}

func (r *Results) setNodeResult(nodeID string, value any) {
	r.nodeResult[nodeID] = value
	r.seq++
	r.nodeWritten[nodeID] = r.seq
}

// Get returns the latest value recorded under tag.
func (r *Results) Get(tag Tag) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values.Get(tag)
}

// Has reports whether any value is recorded under tag.
func (r *Results) Has(tag Tag) bool {
	_, ok := r.Get(tag)
	return ok
}

// Producer returns the id of the node that produced the current value of tag.
func (r *Results) Producer(tag Tag) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.provenance[tag]
	return id, ok
}

// GetFromNode returns the value nodeID produced under tag. With an empty tag it returns the
// first value that node produced.
func (r *Results) GetFromNode(nodeID string, tag Tag) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, ok := r.byNode[nodeID]
	if !ok || bucket.Empty() {
		return nil, false
	}
	if tag != "" {
		return bucket.Get(tag)
	}
	it := bucket.Iterator()
	if !it.First() {
		return nil, false
	}
	return it.Value(), true
}

// NodeResult returns the raw value last returned by nodeID's body.
func (r *Results) NodeResult(nodeID string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.nodeResult[nodeID]
	return v, ok
}

// Tags returns every recorded tag in first-insertion order.
func (r *Results) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]Tag, 0, r.values.Size())
	for _, k := range r.values.Keys() {
		tags = append(tags, k.(Tag))
	}
	return tags
}

// Len returns the number of recorded tags.
func (r *Results) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values.Size()
}

// Snapshot returns a copy of the tag index as a plain map.
func (r *Results) Snapshot() map[Tag]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[Tag]any, r.values.Size())
	r.values.Each(func(k, v interface{}) {
		out[k.(Tag)] = v
	})
	return out
}

// findByProducer scans values in insertion order for the first tag produced by nodeID.
func (r *Results) findByProducer(nodeID string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it := r.values.Iterator()
	for it.Next() {
		if r.provenance[it.Key().(Tag)] == nodeID {
			return it.Value(), true
		}
	}
	return nil, false
}

// Fork returns a structurally independent copy of the store. No map, bucket or index is
// shared with the receiver, so the fork may be mutated concurrently with its parent and
// its siblings.
func (r *Results) Fork() *Results {
	r.mu.RLock()
	defer r.mu.RUnlock()

	child := NewResults()
	r.values.Each(func(k, v interface{}) {
		child.values.Put(k, v)
	})
	for tag, id := range r.provenance {
		child.provenance[tag] = id
	}
	for id, bucket := range r.byNode {
		copied := linkedhashmap.New()
		bucket.Each(func(k, v interface{}) {
			copied.Put(k, v)
		})
		child.byNode[id] = copied
	}
	for id, v := range r.nodeResult {
		child.nodeResult[id] = v
	}
	for tag, s := range r.written {
		child.written[tag] = s
	}
	for id, s := range r.nodeWritten {
		child.nodeWritten[id] = s
	}
	child.seq = r.seq
	child.base = r.seq
	return child
}

// Touched returns the tags written since the store was forked, in first-insertion order.
// For a store that was not forked it returns every tag.
func (r *Results) Touched() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tags []Tag
	for _, k := range r.values.Keys() {
		tag := k.(Tag)
		if r.written[tag] > r.base {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Merge copies every tag of other into r, keeping other's provenance, and copies every
// node result, overwriting on collision. There is no conflict detection: the last merge
// wins.
func (r *Results) Merge(other *Results) {
	if other == nil || other == r {
		return
	}

	type entry struct {
		tag      Tag
		value    any
		producer string
	}

	other.mu.RLock()
	entries := make([]entry, 0, other.values.Size())
	other.values.Each(func(k, v interface{}) {
		tag := k.(Tag)
		entries = append(entries, entry{tag: tag, value: v, producer: other.provenance[tag]})
	})
	nodeResults := make(map[string]any, len(other.nodeResult))
	for id, v := range other.nodeResult {
		nodeResults[id] = v
	}
	other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.set(e.tag, e.value, e.producer)
	}
	for id, v := range nodeResults {
		r.setNodeResult(id, v)
	}
}

// mergeForked merges only what fork wrote after it was forked from r. Entries the fork
// inherited unchanged are already present in r and are skipped, so a stale inherited
// value never clobbers a write made by an earlier sibling. It returns the merged tags.
func (r *Results) mergeForked(fork *Results) []Tag {
	fork.mu.RLock()
	var (
		tags     []Tag
		values   []any
		sources  []string
		nodeIDs  []string
		nodeVals []any
	)
	it := fork.values.Iterator()
	for it.Next() {
		tag := it.Key().(Tag)
		if fork.written[tag] <= fork.base {
			continue
		}
		tags = append(tags, tag)
		values = append(values, it.Value())
		sources = append(sources, fork.provenance[tag])
	}
	for id, v := range fork.nodeResult {
		if fork.nodeWritten[id] > fork.base {
			nodeIDs = append(nodeIDs, id)
			nodeVals = append(nodeVals, v)
		}
	}
	fork.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, tag := range tags {
		r.set(tag, values[i], sources[i])
	}
	for i, id := range nodeIDs {
		r.setNodeResult(id, nodeVals[i])
	}
	return tags
}
