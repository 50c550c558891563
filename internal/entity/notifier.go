package entity

import (
	"reflect"
	"sync"
	"time"
)

// notifier remembers the last emitted value and forwards only changes.
type notifier struct {
	id   string
	name string
	kind Kind
	sink Sink
	now  func() time.Time

	mu      sync.Mutex
	emitted bool
	last    State
}

func newNotifier(id, name string, kind Kind, deps Options) *notifier {
	return &notifier{
		id:   id,
		name: name,
		kind: kind,
		sink: deps.Sink,
		now:  deps.now(),
	}
}

// emit records value and forwards it when it differs from the last emit.
// The first call always emits.
func (n *notifier) emit(value any) bool {
	n.mu.Lock()
	if n.emitted && valuesEqual(n.last.Value, value) {
		n.mu.Unlock()
		return false
	}
	n.emitted = true
	n.last = State{
		EntityID:  n.id,
		Name:      n.name,
		Kind:      n.kind,
		Value:     value,
		ChangedAt: n.now(),
	}
	st := n.last
	n.mu.Unlock()

	if n.sink != nil {
		n.sink.StateChanged(st)
	}
	return true
}

func (n *notifier) state() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.emitted {
		return State{EntityID: n.id, Name: n.name, Kind: n.kind}
	}
	return n.last
}

// valuesEqual compares derived values, treating nil as equal only to nil.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}
