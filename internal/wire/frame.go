// Package wire implements the common subsystem frame format: a packed
// ASCII header followed by a variable-length body. Commands travel
// scheduler-to-subsystem; responses travel back with an accept/reject
// preamble ahead of the payload.
package wire

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lwa-project/mcs"
)

// MaxFrameSize bounds a receive buffer: header plus preamble plus the
// largest comment a subsystem may return.
const MaxFrameSize = 8192

// Response holds the parsed fields of an inbound frame.
type Response struct {
	Dest string
	Src  string
	Typ  string
	SID  mcs.SubsystemID // parsed from Src; SidNone if unrecognized
	CID  mcs.CommandID   // parsed from Typ; 0 if unrecognized
	Ref  int64
	DLen int
	MJD  int64
	MPM  int64

	// Response preamble and payload. Accept is the raw R-RESPONSE byte;
	// Progress is its mapping ('A' success, 'R' rejected, else unknown).
	Accept   byte
	Progress mcs.Progress
	Summary  mcs.Summary
	Token    string // R-SUMMARY token, whitespace trimmed
	Comment  []byte // R-COMMENT, exactly DLen-8 bytes
}

// EncodeCommand builds the outbound frame for env, stamping it with the
// MJD/MPM of now. The body is the envelope payload; the header's DLEN
// field records its exact length. Bodies never exceed the fixed data
// field size, so the frame fits a static buffer on both ends.
func EncodeCommand(env *mcs.Envelope, src string, now time.Time) []byte {
	body := env.Payload()

	frame := make([]byte, mcs.FrameHeaderLength+len(body))
	for i := range frame[:mcs.FrameHeaderLength] {
		frame[i] = ' '
	}
	if src == "" {
		src = "MCS"
	}
	copy(frame[mcs.FrameOffDest:], env.SID.String())
	copy(frame[mcs.FrameOffSrc:], src)
	copy(frame[mcs.FrameOffType:], env.CID.String())
	copy(frame[mcs.FrameOffRef:], fmt.Sprintf("%*d", mcs.FrameRefWidth, env.Ref))
	copy(frame[mcs.FrameOffDLen:], fmt.Sprintf("%*d", mcs.FrameDLenWidth, len(body)))
	mjd, mpm := mcs.TimeToMJDMPM(now)
	copy(frame[mcs.FrameOffMJD:], fmt.Sprintf("%*d", mcs.FrameMJDWidth, mjd))
	copy(frame[mcs.FrameOffMPM:], fmt.Sprintf("%*d", mcs.FrameMPMWidth, mpm))
	copy(frame[mcs.FrameBodyOffset:], body)
	return frame
}

// ParseResponse parses an inbound frame. The header must be complete
// and the body must hold at least the 8-byte response preamble; the
// comment is whatever DLEN says remains after it. A frame shorter than
// its declared DLEN is malformed.
func ParseResponse(frame []byte) (*Response, error) {
	if len(frame) < mcs.FrameHeaderLength+mcs.ResponsePreambleLength {
		return nil, mcs.NewError("parse response", mcs.ErrCodeFrameParse, "frame too short")
	}

	r := &Response{
		Dest: string(frame[mcs.FrameOffDest : mcs.FrameOffDest+3]),
		Src:  string(frame[mcs.FrameOffSrc : mcs.FrameOffSrc+3]),
		Typ:  string(frame[mcs.FrameOffType : mcs.FrameOffType+3]),
	}
	r.SID = mcs.LookupSubsystem(r.Src)
	r.CID = mcs.LookupCommand(r.Typ)

	var err error
	r.Ref, err = parseField(frame, mcs.FrameOffRef, mcs.FrameRefWidth)
	if err != nil {
		return nil, mcs.NewError("parse response", mcs.ErrCodeFrameParse, "bad REFERENCE field")
	}
	dlen, err := parseField(frame, mcs.FrameOffDLen, mcs.FrameDLenWidth)
	if err != nil {
		return nil, mcs.NewError("parse response", mcs.ErrCodeFrameParse, "bad DLEN field")
	}
	r.DLen = int(dlen)
	r.MJD, err = parseField(frame, mcs.FrameOffMJD, mcs.FrameMJDWidth)
	if err != nil {
		return nil, mcs.NewError("parse response", mcs.ErrCodeFrameParse, "bad MJD field")
	}
	r.MPM, err = parseField(frame, mcs.FrameOffMPM, mcs.FrameMPMWidth)
	if err != nil {
		return nil, mcs.NewError("parse response", mcs.ErrCodeFrameParse, "bad MPM field")
	}

	if r.DLen < mcs.ResponsePreambleLength {
		return nil, mcs.NewError("parse response", mcs.ErrCodeFrameParse, "DLEN shorter than response preamble")
	}
	if len(frame) < mcs.FrameBodyOffset+r.DLen {
		return nil, mcs.NewError("parse response", mcs.ErrCodeFrameParse, "frame shorter than DLEN")
	}

	body := frame[mcs.FrameBodyOffset : mcs.FrameBodyOffset+r.DLen]
	r.Accept = body[0]
	switch r.Accept {
	case 'A':
		r.Progress = mcs.TaskSuccess
	case 'R':
		r.Progress = mcs.TaskFailRejected
	default:
		r.Progress = mcs.TaskDoneUnknown
	}
	r.Token = strings.TrimSpace(string(body[1:mcs.ResponsePreambleLength]))
	r.Summary = mcs.ParseSummary(r.Token)
	r.Comment = append([]byte(nil), body[mcs.ResponsePreambleLength:]...)

	return r, nil
}

// parseField reads a right-justified decimal field of the given width.
func parseField(frame []byte, off, width int) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(string(frame[off:off+width])), 10, 64)
}
