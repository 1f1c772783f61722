package wire

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwa-project/mcs"
)

func TestEncodeCommandLayout(t *testing.T) {
	env := &mcs.Envelope{SID: mcs.SidSHL, Ref: 42, CID: mcs.CmdRPT}
	env.SetString("SET-POINT")
	now := time.Date(2009, 8, 25, 14, 2, 33, 0, time.UTC)

	frame := EncodeCommand(env, "MCS", now)
	require.Len(t, frame, mcs.FrameBodyOffset+9)

	assert.Equal(t, "SHL", string(frame[mcs.FrameOffDest:mcs.FrameOffDest+3]))
	assert.Equal(t, "MCS", string(frame[mcs.FrameOffSrc:mcs.FrameOffSrc+3]))
	assert.Equal(t, "RPT", string(frame[mcs.FrameOffType:mcs.FrameOffType+3]))
	assert.Equal(t, "       42", string(frame[mcs.FrameOffRef:mcs.FrameOffRef+mcs.FrameRefWidth]))
	assert.Equal(t, "   9", string(frame[mcs.FrameOffDLen:mcs.FrameOffDLen+mcs.FrameDLenWidth]))
	assert.Equal(t, " 55068", string(frame[mcs.FrameOffMJD:mcs.FrameOffMJD+mcs.FrameMJDWidth]))

	mpm := int64((14*3600 + 2*60 + 33) * 1000)
	assert.Equal(t, fmt.Sprintf("%9d", mpm), string(frame[mcs.FrameOffMPM:mcs.FrameOffMPM+mcs.FrameMPMWidth]))

	// Separator space directly ahead of the body, body at the fixed offset.
	assert.Equal(t, byte(' '), frame[mcs.FrameHeaderLength-1])
	assert.Equal(t, "SET-POINT", string(frame[mcs.FrameBodyOffset:]))
}

func TestEncodeCommandRawBody(t *testing.T) {
	env := &mcs.Envelope{SID: mcs.SidDP, Ref: 7, CID: mcs.CmdTBW}
	raw := []byte{0x01, 0x00, 0x00, 0xde, 0xad}
	env.SetBytes(raw)

	frame := EncodeCommand(env, "MCS", time.Now())
	assert.Equal(t, "   5", string(frame[mcs.FrameOffDLen:mcs.FrameOffDLen+mcs.FrameDLenWidth]))
	assert.Equal(t, raw, frame[mcs.FrameBodyOffset:])
}

// buildResponse assembles a well-formed response frame for parsing
// tests.
func buildResponse(src, typ string, ref int64, accept byte, summary string, comment []byte) []byte {
	body := make([]byte, mcs.ResponsePreambleLength+len(comment))
	body[0] = accept
	copy(body[1:8], fmt.Sprintf("%-7s", summary))
	copy(body[mcs.ResponsePreambleLength:], comment)

	frame := make([]byte, mcs.FrameHeaderLength+len(body))
	for i := range frame[:mcs.FrameHeaderLength] {
		frame[i] = ' '
	}
	copy(frame[mcs.FrameOffDest:], "MCS")
	copy(frame[mcs.FrameOffSrc:], src)
	copy(frame[mcs.FrameOffType:], typ)
	copy(frame[mcs.FrameOffRef:], fmt.Sprintf("%*d", mcs.FrameRefWidth, ref))
	copy(frame[mcs.FrameOffDLen:], fmt.Sprintf("%*d", mcs.FrameDLenWidth, len(body)))
	mjd, mpm := mcs.TimeToMJDMPM(time.Date(2009, 8, 25, 14, 2, 33, 0, time.UTC))
	copy(frame[mcs.FrameOffMJD:], fmt.Sprintf("%*d", mcs.FrameMJDWidth, mjd))
	copy(frame[mcs.FrameOffMPM:], fmt.Sprintf("%*d", mcs.FrameMPMWidth, mpm))
	copy(frame[mcs.FrameBodyOffset:], body)
	return frame
}

func TestParseResponse(t *testing.T) {
	frame := buildResponse("SHL", "RPT", 42, 'A', "NORMAL", []byte("72.50"))

	resp, err := ParseResponse(frame)
	require.NoError(t, err)

	assert.Equal(t, "MCS", resp.Dest)
	assert.Equal(t, "SHL", resp.Src)
	assert.Equal(t, mcs.SidSHL, resp.SID)
	assert.Equal(t, mcs.CmdRPT, resp.CID)
	assert.Equal(t, int64(42), resp.Ref)
	assert.Equal(t, 13, resp.DLen)
	assert.Equal(t, int64(55068), resp.MJD)
	assert.Equal(t, byte('A'), resp.Accept)
	assert.Equal(t, mcs.TaskSuccess, resp.Progress)
	assert.Equal(t, "NORMAL", resp.Token)
	assert.Equal(t, mcs.SummaryNormal, resp.Summary)
	assert.Equal(t, []byte("72.50"), resp.Comment)
}

func TestParseResponseAcceptMapping(t *testing.T) {
	tests := []struct {
		accept byte
		want   mcs.Progress
	}{
		{'A', mcs.TaskSuccess},
		{'R', mcs.TaskFailRejected},
		{'?', mcs.TaskDoneUnknown},
	}
	for _, tt := range tests {
		frame := buildResponse("NU1", "PNG", 1, tt.accept, "NORMAL", nil)
		resp, err := ParseResponse(frame)
		require.NoError(t, err)
		assert.Equal(t, tt.want, resp.Progress, "accept byte %c", tt.accept)
	}
}

func TestParseResponseDataLenMatchesDLEN(t *testing.T) {
	comment := []byte{0x00, 0x01, 0xfe, 0xff}
	frame := buildResponse("DP_", "RPT", 9, 'A', "NORMAL", comment)
	resp, err := ParseResponse(frame)
	require.NoError(t, err)
	// DLEN covers the preamble plus the comment, byte for byte.
	assert.Equal(t, mcs.ResponsePreambleLength+len(comment), resp.DLen)
	assert.Equal(t, comment, resp.Comment)
}

func TestParseResponseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"too short", []byte("SHL")},
		{"header only", make([]byte, mcs.FrameHeaderLength)},
		{
			"frame shorter than DLEN",
			buildResponse("SHL", "PNG", 1, 'A', "NORMAL", []byte("abcdef"))[:mcs.FrameBodyOffset+8],
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.frame)
			require.Error(t, err)
			assert.True(t, mcs.IsCode(err, mcs.ErrCodeFrameParse) || mcs.IsCode(err, mcs.ErrCodeShortMessage))
		})
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	// A command encoded by us and echoed back by a subsystem with a
	// response preamble parses into the original identity fields.
	env := &mcs.Envelope{SID: mcs.SidASP, Ref: 123456789, CID: mcs.CmdFIL}
	env.SetString("00103")
	cmd := EncodeCommand(env, "MCS", time.Now())

	// Echo as a rejection.
	frame := buildResponse("ASP", "FIL", 123456789, 'R', "WARNING", []byte("out-of-range"))
	resp, err := ParseResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, string(cmd[mcs.FrameOffDest:mcs.FrameOffDest+3]), resp.Src)
	assert.Equal(t, int64(env.Ref), resp.Ref)
	assert.Equal(t, mcs.TaskFailRejected, resp.Progress)
	assert.Equal(t, mcs.SummaryWarning, resp.Summary)
}
