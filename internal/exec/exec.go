// Package exec implements the executive: the central task-queue server.
// It accepts externally injected commands on a loopback stream socket,
// assigns reference numbers, queues tasks in a fixed-capacity ring,
// dispatches them to the subsystem-client buses, correlates progress
// reports back to ring slots, ages out silent tasks, logs every
// transition, and orchestrates shutdown.
package exec

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/bus"
	"github.com/lwa-project/mcs/internal/logging"
)

// idleSleep is the per-iteration yield that keeps the cooperative loop
// from busy waiting.
const idleSleep = time.Microsecond

// shutdownGrace is how long the executive lingers after its main loop
// so the clients see their terminate commands before the buses go away.
const shutdownGrace = time.Second

// Config holds executive configuration.
type Config struct {
	Addr       string    // injection listen address
	LogPath    string    // task log file; ignored when LogWriter is set
	LogWriter  io.Writer // task log destination for tests
	BusDir     string
	BusKey     int
	QueueLen   int
	Timeout    time.Duration     // SENT slot age-out
	Subsystems []mcs.SubsystemID // registered clients, MCS excluded
	Logger     *logging.Logger
	Observer   mcs.Observer
}

func (c *Config) withDefaults() {
	if c.Addr == "" {
		c.Addr = mcs.ExecAddr
	}
	if c.BusKey == 0 {
		c.BusKey = mcs.BusBaseKey
	}
	if c.QueueLen == 0 {
		c.QueueLen = mcs.TaskQueueLength
	}
	if c.Timeout == 0 {
		c.Timeout = mcs.TaskQueueTimeout
	}
	if c.Observer == nil {
		c.Observer = mcs.NoOpObserver{}
	}
}

// Executive is the central scheduler process.
type Executive struct {
	cfg Config

	listener *net.TCPListener
	inbox    *bus.Bus                        // progress envelopes from clients
	senders  map[mcs.SubsystemID]*bus.Sender // per-client outbound buses

	ring *Ring
	ref  int32 // last issued reference

	summary mcs.Summary // NORMAL until SHT, then SHUTDWN, then NULL

	tlog *Log
	log  *logging.Logger
	obs  mcs.Observer
}

// New sets up the task log, the buses, and the injection listener.
// Every failure here is fatal to the process.
func New(cfg Config) (*Executive, error) {
	cfg.withDefaults()

	var tlog *Log
	var err error
	if cfg.LogWriter != nil {
		tlog = NewLog(cfg.LogWriter)
	} else {
		tlog, err = OpenLog(cfg.LogPath)
		if err != nil {
			return nil, err
		}
	}

	e := &Executive{
		cfg:     cfg,
		ring:    NewRing(cfg.QueueLen),
		summary: mcs.SummaryNormal,
		tlog:    tlog,
		log:     cfg.Logger,
		obs:     cfg.Observer,
	}

	e.tlog.Info("I am ms-exec")
	e.tlog.Info("Added subsystem %s", mcs.SidMCS)
	for _, sid := range cfg.Subsystems {
		e.tlog.Info("Added subsystem %s", sid)
	}

	if len(cfg.Subsystems) > 0 {
		e.inbox, err = bus.Open(cfg.BusDir, cfg.BusKey)
		if err != nil {
			tlog.Info("FATAL: could not attach central bus: %v", err)
			tlog.Close()
			return nil, err
		}
		e.senders = make(map[mcs.SubsystemID]*bus.Sender, len(cfg.Subsystems))
		for _, sid := range cfg.Subsystems {
			s, err := bus.Dial(cfg.BusDir, bus.Key(cfg.BusKey, sid))
			if err != nil {
				tlog.Info("FATAL: could not attach bus for %s: %v", sid, err)
				e.teardownBuses()
				tlog.Close()
				return nil, err
			}
			e.senders[sid] = s
		}
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.Addr)
	if err == nil {
		e.listener, err = net.ListenTCP("tcp", addr)
	}
	if err != nil {
		tlog.Info("FATAL: bind failed: %v", err)
		e.teardownBuses()
		tlog.Close()
		return nil, mcs.WrapError("listen "+cfg.Addr, mcs.ErrCodeBind, err)
	}

	return e, nil
}

// Addr returns the actual injection listen address, useful when the
// configured address used an ephemeral port.
func (e *Executive) Addr() string {
	return e.listener.Addr().String()
}

// Run drives the cooperative loop until an orderly SHT completes or the
// context is cancelled.
func (e *Executive) Run(ctx context.Context) error {
	println("DEBUG: Run loop starting, summary=", int(e.summary))
	for e.summary > mcs.SummaryNull {
		select {
		case <-ctx.Done():
			e.shutdownResources()
			return ctx.Err()
		default:
		}

		e.drainProgress()
		e.acceptInjection()
		e.dispatchOne()
		e.expireSent()

		if e.summary == mcs.SummaryShutdown && !e.ring.Busy() {
			e.summary = mcs.SummaryNull
			break
		}

		time.Sleep(idleSleep)
	}

	e.shutdownResources()
	return nil
}

// drainProgress handles at most one progress envelope from the clients.
func (e *Executive) drainProgress() {
	if e.inbox == nil {
		return
	}
	env, err := e.inbox.Receive()
	if err != nil {
		if err != bus.ErrEmpty {
			e.log.Warnf("central bus receive: %v", err)
		}
		return
	}

	if !e.ring.Complete(env.Ref) {
		e.tlog.Info("client used an unrecognized REF: %d (ignoring it)", env.Ref)
		return
	}

	e.tlog.Task(env.Ref, env.Accept, env.SID, env.CID, env.Data[:], env.DataLen)
	e.obs.ObserveCompletion(env.Accept)

	if env.MIBErr > 0 {
		e.tlog.Info("Previous message: eMIBerror=%d", env.MIBErr)
	}
}

// acceptInjection accepts at most one injector connection, reads one
// envelope, and replies with the outcome.
func (e *Executive) acceptInjection() {
	e.listener.SetDeadline(time.Now())
	conn, err := e.listener.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			e.log.Warnf("accept: %v", err)
		}
		return
	}
	println("DEBUG: accepted connection")
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(time.Second))
	buf := make([]byte, mcs.EnvelopeSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		println("DEBUG: read err", err.Error())
		e.log.Warnf("injection read: %v", err)
		return
	}
	env, err := mcs.UnmarshalEnvelope(buf)
	if err != nil {
		println("DEBUG: decode err", err.Error())
		e.log.Warnf("injection decode: %v", err)
		return
	}
	println("DEBUG: decoded env sid", int(env.SID), "cid", int(env.CID))

	reply := e.handleInjection(env)
	println("DEBUG: reply accept", int(reply.Accept))
	n, err := conn.Write(reply.Marshal())
	println("DEBUG: wrote", n, "err", fmt.Sprint(err))
	if err != nil {
		e.log.Warnf("injection reply: %v", err)
	}
}

// handleInjection validates and enqueues (or immediately executes) one
// injected command, returning the reply envelope.
func (e *Executive) handleInjection(env *mcs.Envelope) *mcs.Envelope {
	valid := env.SID == mcs.SidMCS
	for _, sid := range e.cfg.Subsystems {
		if env.SID == sid {
			valid = true
		}
	}

	if !valid || e.summary == mcs.SummaryShutdown {
		e.obs.ObserveInjection(false)
		env.Ref = 0
		env.Accept = mcs.TaskFailExec
		env.Summary = e.summary
		env.SetString("Invalid sid or we're shutting down")
		e.tlog.Task(0, mcs.TaskFailExec, env.SID, env.CID, env.Data[:], env.DataLen)
		return env
	}

	if env.SID == mcs.SidMCS {
		return e.handleImmediate(env)
	}

	if e.ring.Full() {
		e.obs.ObserveInjection(false)
		env.Ref = 0
		env.Accept = mcs.TaskFailExec
		env.Summary = mcs.SummaryNull
		env.SetString("Task queue full")
		e.tlog.Task(0, mcs.TaskFailExec, env.SID, env.CID, env.Data[:], env.DataLen)
		return env
	}

	env.Ref = e.nextRef()
	task := *env
	task.Accept = mcs.TaskAvailable
	task.Summary = mcs.SummaryNull
	e.ring.Insert(&task)
	e.obs.ObserveInjection(true)
	e.tlog.Task(task.Ref, mcs.TaskQueued, task.SID, task.CID, task.Data[:], task.DataLen)
	if task.Scheduled {
		e.tlog.Info("Scheduled execution not honored; ref %d dispatched as time permits", task.Ref)
	}

	env.Accept = mcs.TaskQueued
	env.Summary = mcs.SummaryNull
	env.SetString("Task has been queued")
	return env
}

// handleImmediate executes a command addressed to the scheduler itself,
// without queuing. The supported command is SHT.
func (e *Executive) handleImmediate(env *mcs.Envelope) *mcs.Envelope {
	env.Ref = 0
	env.When = time.Now()
	env.Accept = mcs.TaskQueued
	env.MIBErr = 0

	switch env.CID {
	case mcs.CmdSHT:
		e.summary = mcs.SummaryShutdown
		e.tlog.Info("Starting shutdown...")

		// One terminate task per live client; the subsystems themselves
		// are assumed to have been told to shut down already.
		for _, sid := range e.cfg.Subsystems {
			task := &mcs.Envelope{
				SID:  sid,
				Ref:  e.nextRef(),
				CID:  mcs.CmdClientExit,
				When: env.When,
			}
			task.SetString("Request ms_mcic shutdown")
			if !e.ring.Insert(task) {
				e.tlog.Info("Task queue full; could not queue shutdown for %s", sid)
				continue
			}
			e.tlog.Task(task.Ref, mcs.TaskQueued, task.SID, task.CID, task.Data[:], task.DataLen)
		}

		env.Summary = e.summary
		env.SetString("Starting shutdown")

	default:
		env.Summary = e.summary
		env.SetString("Unimplemented MCS command")
		e.tlog.Info("Unimplemented MCS command; no action taken")
	}

	return env
}

// dispatchOne advances the dispatch cursor and posts at most one queued
// task to its client's bus.
func (e *Executive) dispatchOne() {
	i, env, ok := e.ring.NextQueued()
	if !ok {
		return
	}

	sender := e.senders[env.SID]
	if sender == nil {
		e.ring.Release(i)
		e.obs.ObserveDispatch(false)
		e.tlog.Task(env.Ref, mcs.TaskFailExec, env.SID, env.CID, env.Data[:], env.DataLen)
		return
	}

	out := *env
	out.Accept = mcs.TaskAvailable
	out.Summary = mcs.SummaryNull
	if err := sender.Send(&out); err != nil {
		e.ring.Release(i)
		e.obs.ObserveDispatch(false)
		e.log.Warnf("bus post for ref %d: %v", env.Ref, err)
		e.tlog.Task(env.Ref, mcs.TaskFailExec, env.SID, env.CID, env.Data[:], env.DataLen)
		return
	}

	e.ring.MarkSent(i, time.Now())
	e.obs.ObserveDispatch(true)
	e.tlog.Task(env.Ref, mcs.TaskSent, env.SID, env.CID, env.Data[:], env.DataLen)
}

// expireSent ages out SENT slots whose client never reported back.
func (e *Executive) expireSent() {
	for _, env := range e.ring.Expire(time.Now(), e.cfg.Timeout) {
		e.obs.ObserveAgeout()
		e.obs.ObserveCompletion(mcs.TaskFailClient)
		e.tlog.Task(env.Ref, mcs.TaskFailClient, env.SID, env.CID, []byte("Timed out at ms_mcic"), -1)
	}
}

// nextRef issues the next reference number, wrapping to 1 past the
// maximum. Reference 0 is reserved for "not assigned".
func (e *Executive) nextRef() int32 {
	e.ref++
	if e.ref > mcs.MaxReference {
		e.ref = 1
	}
	return e.ref
}

// shutdownResources closes the listener, waits briefly so the clients
// see their terminate commands, removes every bus the executive owns,
// and closes the task log.
func (e *Executive) shutdownResources() {
	e.listener.Close()
	time.Sleep(shutdownGrace)
	e.teardownBuses()
	e.tlog.Info("ms-exec shutdown complete")
	e.tlog.Close()
}

func (e *Executive) teardownBuses() {
	if e.inbox != nil {
		e.inbox.Remove()
		e.inbox = nil
	}
	for sid, s := range e.senders {
		s.Close()
		bus.RemovePath(e.cfg.BusDir, bus.Key(e.cfg.BusKey, sid))
		e.tlog.Info("Deleting tx msg queue for %s", sid)
	}
	e.senders = nil
}
