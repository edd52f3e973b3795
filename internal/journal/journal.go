// Package journal records undo actions and pending events for a single
// engine call so that the call either commits completely or not at all.
package journal

import (
	"github.com/mselser95/bangr-engine/pkg/types"
)

// Journal is the transaction log of one engine call. It is not safe for
// concurrent use; the exchange serializes calls.
type Journal struct {
	undo     []func()
	onCommit []func()
	events   []types.Event
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{}
}

// Record registers an action that reverts a mutation already applied.
func (j *Journal) Record(undo func()) {
	j.undo = append(j.undo, undo)
}

// OnCommit registers a side effect, such as a metric update, that must only
// happen if the call commits. Hooks run in registration order.
func (j *Journal) OnCommit(fn func()) {
	j.onCommit = append(j.onCommit, fn)
}

// Emit buffers an event until commit.
func (j *Journal) Emit(eventType types.EventType, marketID uint64, payload any) {
	j.events = append(j.events, types.Event{
		Version:  types.EventVersion,
		Type:     eventType,
		MarketID: marketID,
		Payload:  payload,
	})
}

// Len returns the number of recorded undo actions.
func (j *Journal) Len() int {
	return len(j.undo)
}

// Rollback reverts every recorded mutation in reverse order and drops the
// buffered events and commit hooks.
func (j *Journal) Rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.Reset()
}

// Commit runs the commit hooks, drops the undo log and returns the buffered
// events.
func (j *Journal) Commit() []types.Event {
	for _, fn := range j.onCommit {
		fn()
	}
	events := j.events
	j.Reset()
	return events
}

// Reset clears the journal for reuse. Dropped closures are released so they
// do not pin the state they captured.
func (j *Journal) Reset() {
	clear(j.undo)
	j.undo = j.undo[:0]
	clear(j.onCommit)
	j.onCommit = j.onCommit[:0]
	j.events = nil
}
