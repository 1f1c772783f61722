package client

import (
	"time"

	"github.com/lwa-project/mcs"
)

// ptqSlot tracks one in-flight command: its reference, when it was
// sent, and the outbound DATA bytes (so that response handlers which
// need to know what the command asked for can recover it). A slot is
// free iff its reference is 0.
type ptqSlot struct {
	ref     int32
	sentAt  time.Time
	data    [mcs.DataFieldLength]byte
	dataLen int
}

// PTQ is the client's pending task queue: a fixed-capacity slot array
// with a circular claim cursor and per-slot age-out.
type PTQ struct {
	slots   []ptqSlot
	cursor  int
	timeout time.Duration
}

// NewPTQ creates a queue with the given capacity and per-slot timeout.
func NewPTQ(size int, timeout time.Duration) *PTQ {
	return &PTQ{
		slots:   make([]ptqSlot, size),
		timeout: timeout,
	}
}

// Claim records a sent command, scanning circularly from the last
// claimed slot for a free one. Returns false when the queue is full;
// the command has already gone out over UDP in that case, it just
// won't be tracked.
func (q *PTQ) Claim(ref int32, data []byte, now time.Time) bool {
	stop := q.cursor
	for {
		q.cursor++
		if q.cursor >= len(q.slots) {
			q.cursor = 0
		}
		if q.slots[q.cursor].ref == 0 {
			s := &q.slots[q.cursor]
			s.ref = ref
			s.sentAt = now
			s.data = [mcs.DataFieldLength]byte{}
			s.dataLen = copy(s.data[:], data)
			return true
		}
		if q.cursor == stop {
			return false
		}
	}
}

// Match looks up a response's reference. On a hit the slot is freed and
// the stored outbound DATA is returned.
func (q *PTQ) Match(ref int32) ([]byte, bool) {
	if ref == 0 {
		return nil, false
	}
	for i := range q.slots {
		if q.slots[i].ref == ref {
			data := append([]byte(nil), q.slots[i].data[:q.slots[i].dataLen]...)
			q.slots[i].ref = 0
			return data, true
		}
	}
	return nil, false
}

// Expire frees every slot older than the queue timeout and returns
// their references.
func (q *PTQ) Expire(now time.Time) []int32 {
	var expired []int32
	for i := range q.slots {
		if q.slots[i].ref == 0 {
			continue
		}
		if now.Sub(q.slots[i].sentAt) >= q.timeout {
			expired = append(expired, q.slots[i].ref)
			q.slots[i].ref = 0
		}
	}
	return expired
}

// Pending returns the number of occupied slots.
func (q *PTQ) Pending() int {
	n := 0
	for i := range q.slots {
		if q.slots[i].ref != 0 {
			n++
		}
	}
	return n
}
