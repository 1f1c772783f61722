package mcs

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse describes what a MockSubsystem sends back for one
// command. A Drop response simulates a dead subsystem for that command.
type MockResponse struct {
	Accept  bool   // true = "A", false = "R"
	Summary string // one of the six summary tokens
	Comment []byte // R-COMMENT payload (printable or raw)
	Drop    bool   // do not reply at all
}

// MockSubsystem is a scripted UDP subsystem for tests. It listens on an
// ephemeral port, parses each inbound command frame, and replies to the
// configured client receive port with a well-formed response frame.
type MockSubsystem struct {
	Code string

	conn    *net.UDPConn
	replyTo *net.UDPAddr

	mu       sync.Mutex
	respond  func(typ string, ref int64, data []byte) MockResponse
	received []string // command TYPEs seen, in order

	done chan struct{}
}

// SetRespond installs the reply script. The default accepts everything
// with a NORMAL summary and an empty comment.
func (m *MockSubsystem) SetRespond(fn func(typ string, ref int64, data []byte) MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = fn
}

// NewMockSubsystem creates a mock with the given 3-character code,
// listening on an ephemeral loopback port. clientRxPort is the port the
// subsystem client receives responses on.
func NewMockSubsystem(code string, clientRxPort int) (*MockSubsystem, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, err
	}
	m := &MockSubsystem{
		Code:    code,
		conn:    conn,
		replyTo: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: clientRxPort},
		done:    make(chan struct{}),
	}
	go m.serve()
	return m, nil
}

// Port returns the UDP port the mock listens on (the subsystem's
// MCH_TX_PORT from the scheduler's point of view).
func (m *MockSubsystem) Port() int {
	return m.conn.LocalAddr().(*net.UDPAddr).Port
}

// Received returns the command TYPEs seen so far, in arrival order.
func (m *MockSubsystem) Received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.received))
	copy(out, m.received)
	return out
}

// Close stops the mock.
func (m *MockSubsystem) Close() error {
	close(m.done)
	return m.conn.Close()
}

func (m *MockSubsystem) serve() {
	buf := make([]byte, 8192)
	for {
		n, _, err := m.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			return
		}
		if n < FrameHeaderLength {
			continue
		}
		frame := buf[:n]

		typ := string(frame[FrameOffType : FrameOffType+3])
		ref, _ := strconv.ParseInt(strings.TrimSpace(string(frame[FrameOffRef:FrameOffRef+FrameRefWidth])), 10, 64)
		dlen, _ := strconv.Atoi(strings.TrimSpace(string(frame[FrameOffDLen : FrameOffDLen+FrameDLenWidth])))
		var data []byte
		if dlen > 0 && FrameBodyOffset+dlen <= n {
			data = append([]byte(nil), frame[FrameBodyOffset:FrameBodyOffset+dlen]...)
		}

		m.mu.Lock()
		m.received = append(m.received, typ)
		respond := m.respond
		m.mu.Unlock()

		resp := MockResponse{Accept: true, Summary: "NORMAL"}
		if respond != nil {
			resp = respond(typ, ref, data)
		}
		if resp.Drop {
			continue
		}

		reply := buildMockResponse(m.Code, typ, ref, resp)
		m.conn.WriteToUDP(reply, m.replyTo)
	}
}

// buildMockResponse assembles a response frame: header, then the 8-byte
// preamble (R-RESPONSE plus right-padded R-SUMMARY), then the comment.
func buildMockResponse(code, typ string, ref int64, resp MockResponse) []byte {
	body := make([]byte, ResponsePreambleLength+len(resp.Comment))
	if resp.Accept {
		body[0] = 'A'
	} else {
		body[0] = 'R'
	}
	copy(body[1:8], fmt.Sprintf("%-7s", resp.Summary))
	copy(body[ResponsePreambleLength:], resp.Comment)

	frame := make([]byte, FrameHeaderLength+len(body))
	for i := range frame[:FrameHeaderLength] {
		frame[i] = ' '
	}
	copy(frame[FrameOffDest:], "MCS")
	copy(frame[FrameOffSrc:], code)
	copy(frame[FrameOffType:], typ)
	copy(frame[FrameOffRef:], fmt.Sprintf("%*d", FrameRefWidth, ref))
	copy(frame[FrameOffDLen:], fmt.Sprintf("%*d", FrameDLenWidth, len(body)))
	mjd, mpm := TimeToMJDMPM(time.Now())
	copy(frame[FrameOffMJD:], fmt.Sprintf("%*d", FrameMJDWidth, mjd))
	copy(frame[FrameOffMPM:], fmt.Sprintf("%*d", FrameMPMWidth, mpm))
	copy(frame[FrameBodyOffset:], body)
	return frame
}
