// Package bus is the inter-process message fabric: typed, bounded-size,
// multiplexed queues carrying fixed-size command envelopes. Each bus is
// a unix datagram socket keyed by a small integer; the central bus (the
// executive's inbox) uses the base key, and each subsystem client's
// inbox uses base key plus its subsystem id. A bus has exactly one
// reader and any number of writers, and all steady-state operations are
// non-blocking.
package bus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/lwa-project/mcs"
)

// Sentinel errors for non-blocking queue operations.
var (
	// ErrEmpty is returned by Receive when no message is waiting.
	ErrEmpty = errors.New("bus: no message available")

	// ErrFull is returned by Send when the receiver's queue is full.
	ErrFull = errors.New("bus: queue full")

	// ErrGone is returned by Send when the bus has been removed or its
	// reader is gone.
	ErrGone = errors.New("bus: no such bus")
)

// Key derives a bus key from the base key and a destination subsystem.
func Key(base int, sid mcs.SubsystemID) int {
	return base + int(sid)
}

// Path returns the socket path for a bus key inside dir.
func Path(dir string, key int) string {
	return filepath.Join(dir, fmt.Sprintf("mq-%d.sock", key))
}

// Bus is the receiving end of a message queue. Only one process may
// hold a given bus open.
type Bus struct {
	fd   int
	path string
}

// Open binds the receive socket for the given key, replacing any stale
// socket file left by an earlier run.
func Open(dir string, key int) (*Bus, error) {
	path := Path(dir, key)
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, mcs.WrapError("bus open", mcs.ErrCodeBusAttach, err)
	}
	_ = os.Remove(path)
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, mcs.WrapError("bus bind", mcs.ErrCodeBusAttach, err)
	}
	return &Bus{fd: fd, path: path}, nil
}

// Receive performs a non-blocking read of one envelope. Returns ErrEmpty
// when nothing is queued.
func (b *Bus) Receive() (*mcs.Envelope, error) {
	return b.receive(unix.MSG_DONTWAIT)
}

// ReceiveBlock waits for the next envelope. Used only during the
// supervisor's liveness handshake; the cooperative loops never block.
func (b *Bus) ReceiveBlock() (*mcs.Envelope, error) {
	return b.receive(0)
}

func (b *Bus) receive(flags int) (*mcs.Envelope, error) {
	buf := make([]byte, mcs.EnvelopeSize)
	n, _, err := unix.Recvfrom(b.fd, buf, flags)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, ErrEmpty
		}
		return nil, mcs.WrapError("bus receive", mcs.ErrCodeBusAttach, err)
	}
	return mcs.UnmarshalEnvelope(buf[:n])
}

// Drain discards everything currently queued, returning the count.
// Used at startup to clear messages left over from a previous run.
func (b *Bus) Drain() int {
	n := 0
	for {
		if _, err := b.Receive(); err != nil {
			return n
		}
		n++
	}
}

// Close releases the socket without unlinking the path.
func (b *Bus) Close() error {
	return unix.Close(b.fd)
}

// Remove closes the socket and unlinks the path, destroying the queue.
func (b *Bus) Remove() error {
	unix.Close(b.fd)
	return os.Remove(b.path)
}

// RemovePath unlinks the socket for a key without an open Bus. The
// executive uses this to destroy the per-client buses it owns at
// shutdown.
func RemovePath(dir string, key int) error {
	return os.Remove(Path(dir, key))
}

// Sender is a write handle to a bus. Senders are cheap; each writing
// process keeps one per destination.
type Sender struct {
	fd   int
	addr *unix.SockaddrUnix
}

// Dial creates a sender for the given key. The target bus need not
// exist yet; a missing bus surfaces as ErrGone on Send.
func Dial(dir string, key int) (*Sender, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, mcs.WrapError("bus dial", mcs.ErrCodeBusAttach, err)
	}
	return &Sender{fd: fd, addr: &unix.SockaddrUnix{Name: Path(dir, key)}}, nil
}

// Send posts one envelope without blocking. A full receiver queue is
// ErrFull; a missing or closed bus is ErrGone.
func (s *Sender) Send(env *mcs.Envelope) error {
	err := unix.Sendto(s.fd, env.Marshal(), unix.MSG_DONTWAIT, s.addr)
	switch {
	case err == nil:
		return nil
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.ENOBUFS:
		return ErrFull
	case err == unix.ENOENT || err == unix.ECONNREFUSED:
		return ErrGone
	default:
		return mcs.WrapError("bus send", mcs.ErrCodeBusAttach, err)
	}
}

// Close releases the sender's socket.
func (s *Sender) Close() error {
	return unix.Close(s.fd)
}
