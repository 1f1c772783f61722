package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/bus"
	"github.com/lwa-project/mcs/internal/mib"
)

// testHarness wires one client to a scripted mock subsystem and plays
// the executive's role on the buses.
type testHarness struct {
	t       *testing.T
	code    string
	mibPath string
	busDir  string
	mock    *mcs.MockSubsystem
	central *bus.Bus    // we receive progress reports here
	tx      *bus.Sender // we send commands here
	client  *Client
	cancel  context.CancelFunc
	done    chan error
	rxPort  int
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

func newHarness(t *testing.T, code string, ptqTimeout time.Duration, extraLabels ...string) *testHarness {
	t.Helper()

	busDir, err := os.MkdirTemp("/tmp", "mq")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(busDir) })

	rxPort := freeUDPPort(t)
	mock, err := mcs.NewMockSubsystem(code, rxPort)
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	mibPath := filepath.Join(t.TempDir(), code+".mib")
	st, err := mib.Create(mibPath)
	require.NoError(t, err)
	put := func(label, value, typeLocal string) {
		rec := &mib.Record{Kind: mib.KindValue, TypeLocal: typeLocal, TypeWire: typeLocal}
		rec.SetText(value)
		require.NoError(t, st.Put(label, rec))
	}
	put("SUMMARY", "UNK", "a7")
	put(mib.LabelIPAddress, "127.0.0.1", "a15")
	put(mib.LabelTxPort, fmt.Sprintf("%d", mock.Port()), "a5")
	put(mib.LabelRxPort, fmt.Sprintf("%d", rxPort), "a5")
	for _, label := range extraLabels {
		put(label, "UNK", "a32")
	}
	require.NoError(t, st.Close())

	central, err := bus.Open(busDir, mcs.BusBaseKey)
	require.NoError(t, err)
	t.Cleanup(func() { central.Remove() })

	c, err := New(Config{
		Code:       code,
		MIBPath:    mibPath,
		BusDir:     busDir,
		PTQTimeout: ptqTimeout,
	})
	require.NoError(t, err)

	tx, err := bus.Dial(busDir, bus.Key(mcs.BusBaseKey, c.SID()))
	require.NoError(t, err)
	t.Cleanup(func() { tx.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(cancel)

	return &testHarness{
		t: t, code: code, mibPath: mibPath, busDir: busDir,
		mock: mock, central: central, tx: tx, client: c,
		cancel: cancel, done: done, rxPort: rxPort,
	}
}

// waitProgress polls the central bus for the next progress envelope.
func (h *testHarness) waitProgress(timeout time.Duration) *mcs.Envelope {
	h.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		env, err := h.central.Receive()
		if err == nil {
			return env
		}
		require.ErrorIs(h.t, err, bus.ErrEmpty)
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("no progress envelope within %v", timeout)
	return nil
}

func (h *testHarness) fetchText(label string) string {
	h.t.Helper()
	st, err := mib.Open(h.mibPath)
	require.NoError(h.t, err)
	defer st.Close()
	rec, err := st.Fetch(label)
	require.NoError(h.t, err)
	return rec.Text()
}

func TestClientHappyPNG(t *testing.T) {
	h := newHarness(t, "SHL", 0)

	cmd := &mcs.Envelope{SID: h.client.SID(), Ref: 101, CID: mcs.CmdPNG}
	cmd.SetString("")
	require.NoError(t, h.tx.Send(cmd))

	prog := h.waitProgress(2 * time.Second)
	assert.Equal(t, int32(101), prog.Ref)
	assert.Equal(t, mcs.TaskSuccess, prog.Accept)
	assert.Equal(t, mcs.SummaryNormal, prog.Summary)
	assert.Equal(t, mcs.MIBErr(0), prog.MIBErr)

	assert.Equal(t, "NORMAL", h.fetchText("SUMMARY"))
	assert.Equal(t, []string{"PNG"}, h.mock.Received())
}

func TestClientRPTRoundTrip(t *testing.T) {
	h := newHarness(t, "SHL", 0, "SET-POINT")
	h.mock.SetRespond(func(typ string, ref int64, data []byte) mcs.MockResponse {
		return mcs.MockResponse{Accept: true, Summary: "NORMAL", Comment: []byte("72.50")}
	})

	cmd := &mcs.Envelope{SID: h.client.SID(), Ref: 102, CID: mcs.CmdRPT}
	cmd.SetString("SET-POINT")
	require.NoError(t, h.tx.Send(cmd))

	prog := h.waitProgress(2 * time.Second)
	assert.Equal(t, mcs.TaskSuccess, prog.Accept)
	assert.Equal(t, "72.50", prog.PayloadString())

	assert.Equal(t, "72.50", h.fetchText("SET-POINT"))
	assert.Equal(t, "NORMAL", h.fetchText("SUMMARY"))
}

func TestClientRejectedCommand(t *testing.T) {
	h := newHarness(t, "ASP", 0, "FILTER_1")
	h.mock.SetRespond(func(typ string, ref int64, data []byte) mcs.MockResponse {
		return mcs.MockResponse{Accept: false, Summary: "WARNING", Comment: []byte("out-of-range")}
	})

	cmd := &mcs.Envelope{SID: h.client.SID(), Ref: 103, CID: mcs.CmdFIL}
	cmd.SetString("00103")
	require.NoError(t, h.tx.Send(cmd))

	prog := h.waitProgress(2 * time.Second)
	assert.Equal(t, mcs.TaskFailRejected, prog.Accept)
	assert.Equal(t, mcs.SummaryWarning, prog.Summary)

	// SUMMARY reflects the response; the rejected command's target does
	// not change.
	assert.Equal(t, "WARNING", h.fetchText("SUMMARY"))
	assert.Equal(t, "UNK", h.fetchText("FILTER_1"))
}

func TestClientPTQTimeout(t *testing.T) {
	h := newHarness(t, "SHL", 150*time.Millisecond)
	h.mock.SetRespond(func(typ string, ref int64, data []byte) mcs.MockResponse {
		return mcs.MockResponse{Drop: true}
	})

	cmd := &mcs.Envelope{SID: h.client.SID(), Ref: 104, CID: mcs.CmdPNG}
	cmd.SetString("")
	require.NoError(t, h.tx.Send(cmd))

	prog := h.waitProgress(2 * time.Second)
	assert.Equal(t, int32(104), prog.Ref)
	assert.Equal(t, mcs.TaskDonePTQTimeout, prog.Accept)
	assert.NotZero(t, prog.MIBErr&mcs.MIBErrOther)
	assert.Equal(t, "Timed out at subsystem", prog.PayloadString())
}

func TestClientTerminate(t *testing.T) {
	h := newHarness(t, "NU1", 0)

	require.NoError(t, h.tx.Send(&mcs.Envelope{SID: h.client.SID(), CID: mcs.CmdClientExit}))

	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit on terminate command")
	}
}

func TestClientOrphanResponse(t *testing.T) {
	h := newHarness(t, "SHL", 0)

	// A response whose reference was never pending: SUMMARY is still
	// authoritative, but the reference is flagged unknown.
	frame := buildOrphanResponse("SHL", "PNG", 999, "BOOTING")
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: h.rxPort})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(frame)
	require.NoError(t, err)

	prog := h.waitProgress(2 * time.Second)
	assert.Equal(t, int32(999), prog.Ref)
	assert.NotZero(t, prog.MIBErr&mcs.MIBErrRefUnk)
	assert.Equal(t, "BOOTING", h.fetchText("SUMMARY"))
}

func TestClientDPRawReport(t *testing.T) {
	h := newHarness(t, "DP_", 0, "TBW_STATUS")
	raw := []byte{0x01, 0x00, 0xab, 0xcd}
	h.mock.SetRespond(func(typ string, ref int64, data []byte) mcs.MockResponse {
		return mcs.MockResponse{Accept: true, Summary: "NORMAL", Comment: raw}
	})

	cmd := &mcs.Envelope{SID: h.client.SID(), Ref: 105, CID: mcs.CmdRPT}
	cmd.SetString("TBW_STATUS")
	require.NoError(t, h.tx.Send(cmd))

	prog := h.waitProgress(2 * time.Second)
	assert.Equal(t, mcs.TaskSuccess, prog.Accept)
	// The executive gets a printable hex rendering of the raw comment.
	assert.Equal(t, "0100ABCD", prog.PayloadString())

	// The MIB keeps the raw bytes untouched.
	st, err := mib.Open(h.mibPath)
	require.NoError(t, err)
	rec, err := st.Fetch("TBW_STATUS")
	st.Close()
	require.NoError(t, err)
	assert.Equal(t, raw, rec.Val[:len(raw)])
}

func buildOrphanResponse(code, typ string, ref int64, summary string) []byte {
	body := make([]byte, mcs.ResponsePreambleLength)
	body[0] = 'A'
	copy(body[1:8], fmt.Sprintf("%-7s", summary))

	frame := make([]byte, mcs.FrameHeaderLength+len(body))
	for i := range frame[:mcs.FrameHeaderLength] {
		frame[i] = ' '
	}
	copy(frame[mcs.FrameOffDest:], "MCS")
	copy(frame[mcs.FrameOffSrc:], code)
	copy(frame[mcs.FrameOffType:], typ)
	copy(frame[mcs.FrameOffRef:], fmt.Sprintf("%*d", mcs.FrameRefWidth, ref))
	copy(frame[mcs.FrameOffDLen:], fmt.Sprintf("%*d", mcs.FrameDLenWidth, len(body)))
	mjd, mpm := mcs.TimeToMJDMPM(time.Now())
	copy(frame[mcs.FrameOffMJD:], fmt.Sprintf("%*d", mcs.FrameMJDWidth, mjd))
	copy(frame[mcs.FrameOffMPM:], fmt.Sprintf("%*d", mcs.FrameMPMWidth, mpm))
	copy(frame[mcs.FrameBodyOffset:], body)
	return frame
}
