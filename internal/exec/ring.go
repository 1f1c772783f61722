package exec

import (
	"time"

	"github.com/lwa-project/mcs"
)

// taskSlot is one entry in the executive's task ring: the envelope plus
// its progress state. A slot is available iff its state is
// TaskAvailable.
type taskSlot struct {
	state  mcs.Progress
	env    mcs.Envelope
	sentAt time.Time
}

// Ring is the executive's fixed-capacity task queue. Insertion uses a
// first-available scan; dispatch uses a separate circular cursor that
// advances to the next QUEUED slot. Reference numbers are not slot
// indices; responses are correlated by reference match.
type Ring struct {
	slots    []taskSlot
	dispatch int
}

// NewRing creates a ring with the given capacity.
func NewRing(capacity int) *Ring {
	return &Ring{slots: make([]taskSlot, capacity)}
}

// Insert copies env into the first available slot and marks it QUEUED.
// Returns false when the ring is full.
func (r *Ring) Insert(env *mcs.Envelope) bool {
	for i := range r.slots {
		if r.slots[i].state == mcs.TaskAvailable {
			r.slots[i].state = mcs.TaskQueued
			r.slots[i].env = *env
			return true
		}
	}
	return false
}

// Full reports whether no slot is available.
func (r *Ring) Full() bool {
	for i := range r.slots {
		if r.slots[i].state == mcs.TaskAvailable {
			return false
		}
	}
	return true
}

// Busy reports whether any slot is occupied.
func (r *Ring) Busy() bool {
	for i := range r.slots {
		if r.slots[i].state != mcs.TaskAvailable {
			return true
		}
	}
	return false
}

// NextQueued advances the dispatch cursor circularly to the next QUEUED
// slot, checking each slot at most once per call. Returns the slot
// index and a copy of its envelope.
func (r *Ring) NextQueued() (int, *mcs.Envelope, bool) {
	stop := r.dispatch
	for {
		r.dispatch++
		if r.dispatch >= len(r.slots) {
			r.dispatch = 0
		}
		if r.slots[r.dispatch].state == mcs.TaskQueued {
			env := r.slots[r.dispatch].env
			return r.dispatch, &env, true
		}
		if r.dispatch == stop {
			return 0, nil, false
		}
	}
}

// MarkSent transitions a dispatched slot to SENT, recording the
// dispatch time for ageing.
func (r *Ring) MarkSent(i int, now time.Time) {
	r.slots[i].state = mcs.TaskSent
	r.slots[i].sentAt = now
}

// Release frees a slot.
func (r *Ring) Release(i int) {
	r.slots[i].state = mcs.TaskAvailable
	r.slots[i].env = mcs.Envelope{}
}

// Complete frees the slot holding ref, if any. At most one live slot
// carries a given reference.
func (r *Ring) Complete(ref int32) bool {
	if ref == 0 {
		return false
	}
	for i := range r.slots {
		if r.slots[i].state != mcs.TaskAvailable && r.slots[i].env.Ref == ref {
			r.Release(i)
			return true
		}
	}
	return false
}

// Expire frees every SENT slot older than timeout and returns copies of
// their envelopes for logging.
func (r *Ring) Expire(now time.Time, timeout time.Duration) []mcs.Envelope {
	var aged []mcs.Envelope
	for i := range r.slots {
		if r.slots[i].state == mcs.TaskSent && now.Sub(r.slots[i].sentAt) >= timeout {
			aged = append(aged, r.slots[i].env)
			r.Release(i)
		}
	}
	return aged
}
