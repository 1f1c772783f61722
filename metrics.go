package mcs

import (
	"sync/atomic"
	"time"
)

// Metrics tracks operational statistics for the scheduler fabric. The
// executive records injection and ring activity; each subsystem client
// records UDP traffic and pending-queue activity.
type Metrics struct {
	// Executive side
	Injections      atomic.Uint64 // envelopes read from the injection socket
	InjectsRejected atomic.Uint64 // injections refused (bad sid, queue full, shutdown)
	TasksQueued     atomic.Uint64
	TasksSent       atomic.Uint64
	DispatchFailed  atomic.Uint64 // bus post failures
	ExecAgeouts     atomic.Uint64 // SENT slots aged out by the executive

	// Terminal progress counts
	TasksSucceeded atomic.Uint64
	TasksRejected  atomic.Uint64
	TasksUnknown   atomic.Uint64
	TasksFailed    atomic.Uint64 // FAIL_EXEC + FAIL_CLIENT
	TasksTimedOut  atomic.Uint64 // DONE_PTQ_TIMEOUT

	// Client side
	CommandsSent      atomic.Uint64 // UDP sends that succeeded
	SendFailures      atomic.Uint64
	ResponsesMatched  atomic.Uint64
	ResponsesOrphaned atomic.Uint64 // responses with an unknown reference
	PTQTimeouts       atomic.Uint64
	MIBFaults         atomic.Uint64 // responses that raised any MIB error bit

	StartTime atomic.Int64 // UnixNano
}

// NewMetrics creates a metrics instance stamped with the current time.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCompletion counts a terminal progress value.
func (m *Metrics) RecordCompletion(p Progress) {
	switch p {
	case TaskSuccess:
		m.TasksSucceeded.Add(1)
	case TaskFailRejected:
		m.TasksRejected.Add(1)
	case TaskDoneUnknown:
		m.TasksUnknown.Add(1)
	case TaskDonePTQTimeout:
		m.TasksTimedOut.Add(1)
	case TaskFailExec, TaskFailClient:
		m.TasksFailed.Add(1)
	}
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Injections      uint64
	InjectsRejected uint64
	TasksQueued     uint64
	TasksSent       uint64
	DispatchFailed  uint64
	ExecAgeouts     uint64

	TasksSucceeded uint64
	TasksRejected  uint64
	TasksUnknown   uint64
	TasksFailed    uint64
	TasksTimedOut  uint64

	CommandsSent      uint64
	SendFailures      uint64
	ResponsesMatched  uint64
	ResponsesOrphaned uint64
	PTQTimeouts       uint64
	MIBFaults         uint64

	UptimeNs uint64
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Injections:      m.Injections.Load(),
		InjectsRejected: m.InjectsRejected.Load(),
		TasksQueued:     m.TasksQueued.Load(),
		TasksSent:       m.TasksSent.Load(),
		DispatchFailed:  m.DispatchFailed.Load(),
		ExecAgeouts:     m.ExecAgeouts.Load(),

		TasksSucceeded: m.TasksSucceeded.Load(),
		TasksRejected:  m.TasksRejected.Load(),
		TasksUnknown:   m.TasksUnknown.Load(),
		TasksFailed:    m.TasksFailed.Load(),
		TasksTimedOut:  m.TasksTimedOut.Load(),

		CommandsSent:      m.CommandsSent.Load(),
		SendFailures:      m.SendFailures.Load(),
		ResponsesMatched:  m.ResponsesMatched.Load(),
		ResponsesOrphaned: m.ResponsesOrphaned.Load(),
		PTQTimeouts:       m.PTQTimeouts.Load(),
		MIBFaults:         m.MIBFaults.Load(),

		UptimeNs: uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
}

// Observer allows pluggable metrics collection. Components accept an
// Observer in their Config; a nil observer disables collection.
type Observer interface {
	// ObserveInjection is called once per envelope read from the
	// injection socket.
	ObserveInjection(accepted bool)

	// ObserveDispatch is called when a queued task is posted to a
	// client bus.
	ObserveDispatch(ok bool)

	// ObserveCompletion is called for each progress report the executive
	// matches to a ring slot and for each SENT slot it ages out. FAIL_EXEC
	// outcomes (refused injections, failed dispatches) are reported
	// through ObserveInjection and ObserveDispatch instead.
	ObserveCompletion(p Progress)

	// ObserveAgeout is called when the executive ages out a SENT slot.
	ObserveAgeout()

	// ObserveSend is called per UDP command send attempt.
	ObserveSend(ok bool)

	// ObserveResponse is called per parsed subsystem response.
	ObserveResponse(matched bool, mibErr MIBErr)

	// ObservePTQTimeout is called when a pending task ages out.
	ObservePTQTimeout()
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveInjection(bool)           {}
func (NoOpObserver) ObserveDispatch(bool)            {}
func (NoOpObserver) ObserveCompletion(Progress)      {}
func (NoOpObserver) ObserveAgeout()                  {}
func (NoOpObserver) ObserveSend(bool)                {}
func (NoOpObserver) ObserveResponse(bool, MIBErr)    {}
func (NoOpObserver) ObservePTQTimeout()              {}

// MetricsObserver records to the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer backed by m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveInjection(accepted bool) {
	o.metrics.Injections.Add(1)
	if !accepted {
		o.metrics.InjectsRejected.Add(1)
	} else {
		o.metrics.TasksQueued.Add(1)
	}
}

func (o *MetricsObserver) ObserveDispatch(ok bool) {
	if ok {
		o.metrics.TasksSent.Add(1)
	} else {
		o.metrics.DispatchFailed.Add(1)
	}
}

func (o *MetricsObserver) ObserveCompletion(p Progress) {
	o.metrics.RecordCompletion(p)
}

func (o *MetricsObserver) ObserveAgeout() {
	o.metrics.ExecAgeouts.Add(1)
}

func (o *MetricsObserver) ObserveSend(ok bool) {
	if ok {
		o.metrics.CommandsSent.Add(1)
	} else {
		o.metrics.SendFailures.Add(1)
	}
}

func (o *MetricsObserver) ObserveResponse(matched bool, mibErr MIBErr) {
	if matched {
		o.metrics.ResponsesMatched.Add(1)
	} else {
		o.metrics.ResponsesOrphaned.Add(1)
	}
	if mibErr != 0 {
		o.metrics.MIBFaults.Add(1)
	}
}

func (o *MetricsObserver) ObservePTQTimeout() {
	o.metrics.PTQTimeouts.Add(1)
}

// Compile-time interface checks
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
