// Package client implements the per-subsystem worker: it owns the UDP
// socket pair to its subsystem, pumps commands from its inbound bus,
// correlates asynchronous responses back to pending tasks, keeps the
// subsystem's MIB current, and reports every task outcome to the
// executive.
package client

import (
	"context"
	"net"
	"time"

	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/bus"
	"github.com/lwa-project/mcs/internal/logging"
	"github.com/lwa-project/mcs/internal/mib"
	"github.com/lwa-project/mcs/internal/wire"
)

// idleSleep is the per-iteration yield that keeps the cooperative loop
// from busy waiting.
const idleSleep = time.Microsecond

// Config holds subsystem client configuration.
type Config struct {
	Code       string // 3-character subsystem code
	MIBPath    string // the subsystem's MIB store
	BusDir     string
	BusKey     int // base key; the client's inbox is BusKey + sid
	PTQSize    int
	PTQTimeout time.Duration
	Logger     *logging.Logger
	Observer   mcs.Observer
}

func (c *Config) withDefaults() {
	if c.BusKey == 0 {
		c.BusKey = mcs.BusBaseKey
	}
	if c.PTQSize == 0 {
		c.PTQSize = mcs.PTQSize
	}
	if c.PTQTimeout == 0 {
		c.PTQTimeout = mcs.PTQTimeout
	}
	if c.Observer == nil {
		c.Observer = mcs.NoOpObserver{}
	}
}

// Client is one subsystem worker.
type Client struct {
	cfg Config
	sid mcs.SubsystemID

	rx *net.UDPConn // responses from the subsystem
	tx *net.UDPConn // commands to the subsystem

	inbox   *bus.Bus    // commands from the executive
	central *bus.Sender // progress reports to the executive

	ptq *PTQ
	log *logging.Logger
	obs mcs.Observer

	rxBuf []byte
}

// New reads the subsystem's endpoint out of its MIB, binds the UDP
// receive socket, connects the send socket, and attaches the buses.
// Every failure here is fatal to the process.
func New(cfg Config) (*Client, error) {
	cfg.withDefaults()

	sid := mcs.LookupSubsystem(cfg.Code)
	if sid == mcs.SidNone || sid == mcs.SidMCS {
		return nil, mcs.NewSubsystemError("client init", cfg.Code, mcs.ErrCodeBadSubsystem, "")
	}

	st, err := mib.Open(cfg.MIBPath)
	if err != nil {
		return nil, err
	}
	ip, txPort, rxPort, err := st.NetConfig()
	st.Close()
	if err != nil {
		return nil, err
	}

	rx, err := net.ListenUDP("udp", &net.UDPAddr{Port: rxPort})
	if err != nil {
		return nil, mcs.WrapError("bind rx socket", mcs.ErrCodeBind, err)
	}
	tx, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP(ip), Port: txPort})
	if err != nil {
		rx.Close()
		return nil, mcs.WrapError("open tx socket", mcs.ErrCodeBind, err)
	}

	inbox, err := bus.Open(cfg.BusDir, bus.Key(cfg.BusKey, sid))
	if err != nil {
		rx.Close()
		tx.Close()
		return nil, err
	}
	inbox.Drain()

	central, err := bus.Dial(cfg.BusDir, cfg.BusKey)
	if err != nil {
		rx.Close()
		tx.Close()
		inbox.Remove()
		return nil, err
	}

	return &Client{
		cfg:     cfg,
		sid:     sid,
		rx:      rx,
		tx:      tx,
		inbox:   inbox,
		central: central,
		ptq:     NewPTQ(cfg.PTQSize, cfg.PTQTimeout),
		log:     cfg.Logger,
		obs:     cfg.Observer,
		rxBuf:   make([]byte, wire.MaxFrameSize),
	}, nil
}

// SID returns the client's subsystem id.
func (c *Client) SID() mcs.SubsystemID { return c.sid }

// Handshake announces liveness to the supervisor: send a hello on the
// central bus, block for the supervisor's PNG on our own bus, and
// acknowledge it. Called once before Run.
func (c *Client) Handshake() error {
	hello := &mcs.Envelope{SID: c.sid, CID: mcs.CmdPNG}
	hello.SetString("I'm up and running")
	if err := c.central.Send(hello); err != nil {
		return mcs.WrapError("handshake hello", mcs.ErrCodeBusAttach, err)
	}

	if _, err := c.inbox.ReceiveBlock(); err != nil {
		return mcs.WrapError("handshake wait", mcs.ErrCodeBusAttach, err)
	}

	ack := &mcs.Envelope{SID: c.sid, CID: mcs.CmdPNG}
	ack.SetString("I saw a PNG")
	if err := c.central.Send(ack); err != nil {
		return mcs.WrapError("handshake ack", mcs.ErrCodeBusAttach, err)
	}
	return nil
}

// Run drives the cooperative loop: dequeue one command, poll the UDP
// socket once, age out pending tasks, yield. Returns nil on a clean
// exit (the internal terminate command) and the context error on
// cancellation.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if done := c.pumpCommand(); done {
			c.log.Infof("%s client directed to shut down", c.cfg.Code)
			return nil
		}
		c.pollResponse()
		c.ageOut(time.Now())

		time.Sleep(idleSleep)
	}
}

// Close releases sockets and the inbox. The executive owns removal of
// the bus socket paths at shutdown.
func (c *Client) Close() {
	c.rx.Close()
	c.tx.Close()
	c.inbox.Close()
	c.central.Close()
}

// pumpCommand takes at most one command off the inbox and sends it to
// the subsystem. Returns true when the command was the internal
// terminate signal.
func (c *Client) pumpCommand() bool {
	env, err := c.inbox.Receive()
	if err != nil {
		if err != bus.ErrEmpty {
			c.log.Warnf("inbox receive: %v", err)
		}
		return false
	}

	if env.CID == mcs.CmdClientExit {
		return true
	}

	frame := wire.EncodeCommand(env, "MCS", time.Now())
	if _, err := c.tx.Write(frame); err != nil {
		c.obs.ObserveSend(false)
		c.log.Warnf("udp send for ref %d: %v", env.Ref, err)
		env.Accept = mcs.TaskFailClient
		env.Summary = mcs.SummaryNull
		env.SetString("udp send failed")
		c.report(env)
		return false
	}
	c.obs.ObserveSend(true)

	if !c.ptq.Claim(env.Ref, env.Payload(), time.Now()) {
		// The command is on the wire but untracked: its response will
		// look like an orphan and the MIB may drift.
		c.log.Errorf("pending task queue full; ref %d untracked", env.Ref)
		env.Accept = mcs.TaskFailClient
		env.Summary = mcs.SummaryNull
		env.MIBErr |= mcs.MIBErrRefUnk
		env.SetString("pending task queue full")
		c.report(env)
	}
	return false
}

// pollResponse performs one non-blocking UDP receive and processes the
// frame if one arrived.
func (c *Client) pollResponse() {
	c.rx.SetReadDeadline(time.Now())
	n, _, err := c.rx.ReadFromUDP(c.rxBuf)
	if err != nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			c.log.Warnf("udp receive: %v", err)
		}
		return
	}

	resp, err := wire.ParseResponse(c.rxBuf[:n])
	if err != nil {
		c.log.Warnf("dropping frame: %v", err)
		return
	}

	env := &mcs.Envelope{
		SID:     c.sid,
		Ref:     int32(resp.Ref),
		CID:     resp.CID,
		When:    mcs.MJDMPMToTime(resp.MJD, resp.MPM),
		Accept:  resp.Progress,
		Summary: resp.Summary,
	}

	cmdata, matched := c.ptq.Match(env.Ref)
	if !matched {
		// Not in response to anything we have pending. The summary is
		// still authoritative, so the MIB update below proceeds.
		env.MIBErr |= mcs.MIBErrRefUnk
		c.log.Infof("response with unrecognized ref %d", env.Ref)
	}

	env.MIBErr |= UpdateMIB(c.cfg.MIBPath, c.sid, env.CID, env.Accept, resp.Token, resp.Comment, string(cmdata))
	c.obs.ObserveResponse(matched, env.MIBErr)

	// DP_ returns raw binary in the comment of an accepted RPT of a
	// non-reserved label. The MIB kept the raw bytes above; the report
	// to the executive carries a printable hex rendering instead.
	if c.sid == mcs.SidDP && env.CID == mcs.CmdRPT &&
		!mcs.IsReservedLabel(string(cmdata)) && env.Accept != mcs.TaskFailRejected {
		n := len(resp.Comment)
		if 2*n > 32 {
			n = 16
		}
		env.SetString(mcs.RawToHex(resp.Comment[:n]))
	} else {
		env.SetString(string(resp.Comment))
	}

	c.report(env)
}

// ageOut expires pending tasks whose response never came and reports
// each as a PTQ timeout.
func (c *Client) ageOut(now time.Time) {
	for _, ref := range c.ptq.Expire(now) {
		c.obs.ObservePTQTimeout()
		env := &mcs.Envelope{
			SID:     c.sid,
			Ref:     ref,
			CID:     mcs.CmdClientExit, // no record of what this was
			When:    now,
			Accept:  mcs.TaskDonePTQTimeout,
			Summary: mcs.SummaryNull,
			MIBErr:  mcs.MIBErrOther,
		}
		env.SetString("Timed out at subsystem")
		c.report(env)
	}
}

func (c *Client) report(env *mcs.Envelope) {
	if err := c.central.Send(env); err != nil {
		c.log.Warnf("progress report for ref %d: %v", env.Ref, err)
	}
}
