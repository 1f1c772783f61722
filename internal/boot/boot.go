// Package boot implements the supervisor: it reads the init script,
// builds each subsystem's MIB, spawns one subsystem client per
// configured subsystem with a liveness handshake, and finally hands off
// to the executive.
package boot

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/bus"
	"github.com/lwa-project/mcs/internal/logging"
)

// Config holds supervisor configuration. The dat2mib, ms-mcic and
// ms-exec binaries are resolved relative to BinDir when set, else via
// PATH.
type Config struct {
	ScriptPath string
	BusDir     string
	BusKey     int
	MIBDir     string // where subsystem stores live
	BinDir     string
	Logger     *logging.Logger
}

func (c *Config) withDefaults() {
	if c.BusKey == 0 {
		c.BusKey = mcs.BusBaseKey
	}
	if c.MIBDir == "" {
		c.MIBDir = "."
	}
}

// Supervisor runs the startup sequence.
type Supervisor struct {
	cfg  Config
	log  *logging.Logger
	sids []mcs.SubsystemID
}

// New creates a supervisor.
func New(cfg Config) *Supervisor {
	cfg.withDefaults()
	return &Supervisor{cfg: cfg, log: cfg.Logger}
}

// Run executes the init script and launches the executive. The
// supervisor exits on its own once the executive is started; the
// spawned processes outlive it.
func (s *Supervisor) Run() error {
	f, err := os.Open(s.cfg.ScriptPath)
	if err != nil {
		return mcs.WrapError("open init script", mcs.ErrCodeBadScript, err)
	}
	directives, err := ParseScript(f)
	f.Close()
	if err != nil {
		return mcs.WrapError("read init script", mcs.ErrCodeBadScript, err)
	}

	// The central bus exists for the duration of the handshakes, then
	// is handed to the executive by closing it here and letting the
	// executive rebind the same key. Nothing is in flight during the
	// gap: clients only speak when spoken to once their handshake is
	// done.
	central, err := bus.Open(s.cfg.BusDir, s.cfg.BusKey)
	if err != nil {
		return err
	}
	central.Drain()

	for _, d := range directives {
		switch d.Name {
		case "mibinit":
			err = s.runMIBInit(d)
		case "mcic":
			err = s.spawnClient(d, central)
		default:
			s.log.Warnf("init script line %d: directive %q not recognized (ignored)", d.Line, d.Name)
		}
		if err != nil {
			central.Remove()
			return err
		}
	}

	central.Close()
	s.log.Infof("completed init script; handing off to ms-exec")

	return s.launchExecutive()
}

// Subsystems returns the ids registered by the script, in order.
func (s *Supervisor) Subsystems() []mcs.SubsystemID {
	return s.sids
}

// runMIBInit builds one subsystem MIB via the external dat2mib builder,
// blocking until it finishes. Building must complete before the
// subsystem's client starts.
func (s *Supervisor) runMIBInit(d Directive) error {
	if len(d.Args) < 4 {
		return mcs.NewError("mibinit", mcs.ErrCodeBadScript,
			fmt.Sprintf("line %d: want <code> <ip> <tx-port> <rx-port>", d.Line))
	}
	cmd := exec.Command(s.binary("dat2mib"), d.Args[0], d.Args[1], d.Args[2], d.Args[3])
	cmd.Dir = s.cfg.MIBDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	s.log.Infof("mibinit %s", d.Args[0])
	if err := cmd.Run(); err != nil {
		return mcs.WrapError("mibinit "+d.Args[0], mcs.ErrCodeSpawn, err)
	}
	return nil
}

// spawnClient starts one subsystem client and performs the liveness
// handshake: wait for its hello on the central bus, open a sender to the
// inbound bus the client has bound, post a PNG, and block for the reply.
func (s *Supervisor) spawnClient(d Directive, central *bus.Bus) error {
	if len(d.Args) < 1 {
		return mcs.NewError("mcic", mcs.ErrCodeBadScript,
			fmt.Sprintf("line %d: want <code>", d.Line))
	}
	code := d.Args[0]
	sid := mcs.LookupSubsystem(code)
	if sid == mcs.SidNone || sid == mcs.SidMCS {
		return mcs.NewSubsystemError("mcic", code, mcs.ErrCodeBadSubsystem, "")
	}

	cmd := exec.Command(s.binary("ms-mcic"),
		"-mib", s.mibPath(code),
		"-bus-dir", s.cfg.BusDir,
		code)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	s.log.Infof("mcic %s", code)
	if err := cmd.Start(); err != nil {
		return mcs.WrapError("spawn ms-mcic "+code, mcs.ErrCodeSpawn, err)
	}
	cmd.Process.Release()

	hello, err := central.ReceiveBlock()
	if err != nil {
		return mcs.WrapError("handshake "+code, mcs.ErrCodeBusAttach, err)
	}
	if hello.SID != sid {
		return mcs.NewSubsystemError("handshake", code, mcs.ErrCodeBadSubsystem,
			fmt.Sprintf("hello came from %s", hello.SID))
	}
	s.log.Infof("from %s: %q", hello.SID, hello.PayloadString())

	// The client has bound its inbox before saying hello; ping it.
	tx, err := bus.Dial(s.cfg.BusDir, bus.Key(s.cfg.BusKey, sid))
	if err != nil {
		return err
	}
	defer tx.Close()
	png := &mcs.Envelope{SID: sid, CID: mcs.CmdPNG}
	png.SetString("ping!")
	if err := tx.Send(png); err != nil {
		return mcs.WrapError("ping "+code, mcs.ErrCodeBusAttach, err)
	}

	ack, err := central.ReceiveBlock()
	if err != nil {
		return mcs.WrapError("handshake ack "+code, mcs.ErrCodeBusAttach, err)
	}
	s.log.Infof("from %s: %q", ack.SID, ack.PayloadString())

	s.sids = append(s.sids, sid)
	return nil
}

// launchExecutive starts ms-exec with the explicit ordered list of
// registered subsystem codes.
func (s *Supervisor) launchExecutive() error {
	args := []string{"-bus-dir", s.cfg.BusDir}
	for _, sid := range s.sids {
		args = append(args, sid.String())
	}
	cmd := exec.Command(s.binary("ms-exec"), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return mcs.WrapError("spawn ms-exec", mcs.ErrCodeSpawn, err)
	}
	cmd.Process.Release()

	// Give the executive a moment to bind before reporting success.
	time.Sleep(time.Second)
	return nil
}

func (s *Supervisor) binary(name string) string {
	if s.cfg.BinDir != "" {
		return s.cfg.BinDir + "/" + name
	}
	return name
}

func (s *Supervisor) mibPath(code string) string {
	return s.cfg.MIBDir + "/" + code + ".mib"
}
