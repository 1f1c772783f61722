package mcs

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Progress is the lifecycle state of a task, logged at every transition.
// A task ring slot is available iff its progress is TaskAvailable.
type Progress int32

const (
	TaskAvailable      Progress = 0 // no task; slot is free
	TaskQueued         Progress = 1
	TaskSent           Progress = 2
	TaskSuccess        Progress = 3 // subsystem accepted ("A")
	TaskFailExec       Progress = 4
	TaskFailClient     Progress = 5
	TaskFailRejected   Progress = 6 // subsystem rejected ("R")
	TaskDoneUnknown    Progress = 7 // response received but not classifiable
	TaskDonePTQTimeout Progress = 8 // subsystem response timed out
)

// Terminal reports whether the progress value ends a task's lifecycle.
func (p Progress) Terminal() bool {
	return p >= TaskSuccess
}

func (p Progress) String() string {
	switch p {
	case TaskAvailable:
		return "AVAIL"
	case TaskQueued:
		return "QUEUED"
	case TaskSent:
		return "SENT"
	case TaskSuccess:
		return "SUCCESS"
	case TaskFailExec:
		return "FAIL_EXEC"
	case TaskFailClient:
		return "FAIL_CLIENT"
	case TaskFailRejected:
		return "FAIL_REJECTED"
	case TaskDoneUnknown:
		return "DONE_UNKNOWN"
	case TaskDonePTQTimeout:
		return "DONE_PTQ_TIMEOUT"
	}
	return "INVALID"
}

// Summary is the coarse operational state a subsystem reports in every
// response (and keeps in its MIB SUMMARY entry).
type Summary int32

const (
	SummaryNull     Summary = 0
	SummaryNormal   Summary = 1
	SummaryWarning  Summary = 2
	SummaryError    Summary = 3
	SummaryBooting  Summary = 4
	SummaryShutdown Summary = 5
)

var summaryTokens = map[string]Summary{
	"NULL":    SummaryNull,
	"NORMAL":  SummaryNormal,
	"WARNING": SummaryWarning,
	"ERROR":   SummaryError,
	"BOOTING": SummaryBooting,
	"SHUTDWN": SummaryShutdown,
}

// ParseSummary maps an R-SUMMARY token (surrounding whitespace ignored)
// to its Summary value. Anything unrecognized maps to SummaryNull.
func ParseSummary(token string) Summary {
	fields := bytes.Fields([]byte(token))
	if len(fields) == 0 {
		return SummaryNull
	}
	return summaryTokens[string(fields[0])]
}

func (s Summary) String() string {
	switch s {
	case SummaryNormal:
		return "NORMAL"
	case SummaryWarning:
		return "WARNING"
	case SummaryError:
		return "ERROR"
	case SummaryBooting:
		return "BOOTING"
	case SummaryShutdown:
		return "SHUTDWN"
	}
	return "NULL"
}

// MIBErr is an additive bitset of MIB bookkeeping faults a client
// reports alongside a response. Diagnostic only; the executive logs it
// but never branches on it.
type MIBErr uint32

const (
	MIBErrCantOpen  MIBErr = 1  // couldn't open the MIB store
	MIBErrCantStore MIBErr = 2  // couldn't store to the MIB
	MIBErrRefUnk    MIBErr = 4  // reference unrecognized; MIB may be out of sync
	MIBErrCantFetch MIBErr = 8  // couldn't fetch from the MIB
	MIBErrSidUnk    MIBErr = 16 // subsystem id unrecognized
	MIBErrSidCid    MIBErr = 32 // command not supported by this subsystem
	MIBErrOther     MIBErr = 64 // out of sync for another reason (e.g. PTQ timeout)
)

// EnvelopeSize is the fixed wire size of a marshalled envelope, used
// unframed on the injection socket and as the bus datagram payload.
const EnvelopeSize = 44 + DataFieldLength

// Envelope is the unit of work carried end-to-end: injector to
// executive, executive to subsystem client, and (as a progress report)
// client back to executive.
type Envelope struct {
	SID       SubsystemID // destination subsystem
	Ref       int32       // reference number; 0 = not assigned
	CID       CommandID
	Scheduled bool      // carried but not honored by the dispatch pass
	When      time.Time // time the command is to take effect
	Accept    Progress  // progress/outcome on the way back
	Summary   Summary
	MIBErr    MIBErr
	Data      [DataFieldLength]byte // DATA on the way out, R-COMMENT on the way back
	DataLen   int32                 // -1 = printable string; else significant byte count
}

// SetString stores a printable string payload, truncating at the data
// field size, and marks DataLen as string (-1).
func (e *Envelope) SetString(s string) {
	e.Data = [DataFieldLength]byte{}
	copy(e.Data[:], s)
	e.DataLen = -1
}

// SetBytes stores a raw payload of exactly n significant bytes.
func (e *Envelope) SetBytes(p []byte) {
	e.Data = [DataFieldLength]byte{}
	n := copy(e.Data[:], p)
	e.DataLen = int32(n)
}

// Payload returns the significant bytes of the data field: up to the
// first NUL when DataLen is -1, else exactly DataLen bytes.
func (e *Envelope) Payload() []byte {
	if e.DataLen < 0 {
		if i := bytes.IndexByte(e.Data[:], 0); i >= 0 {
			return e.Data[:i]
		}
		return e.Data[:]
	}
	n := e.DataLen
	if n > DataFieldLength {
		n = DataFieldLength
	}
	return e.Data[:n]
}

// PayloadString returns the payload as a string.
func (e *Envelope) PayloadString() string {
	return string(e.Payload())
}

// Marshal encodes the envelope into its fixed EnvelopeSize wire form,
// big-endian throughout.
func (e *Envelope) Marshal() []byte {
	buf := make([]byte, EnvelopeSize)
	e.MarshalTo(buf)
	return buf
}

// MarshalTo encodes into buf, which must hold at least EnvelopeSize
// bytes.
func (e *Envelope) MarshalTo(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(e.SID))
	binary.BigEndian.PutUint32(buf[4:8], uint32(e.Ref))
	binary.BigEndian.PutUint32(buf[8:12], uint32(e.CID))
	var sched uint32
	if e.Scheduled {
		sched = 1
	}
	binary.BigEndian.PutUint32(buf[12:16], sched)
	binary.BigEndian.PutUint64(buf[16:24], uint64(e.When.Unix()))
	binary.BigEndian.PutUint32(buf[24:28], uint32(e.When.Nanosecond()/1000))
	binary.BigEndian.PutUint32(buf[28:32], uint32(e.Accept))
	binary.BigEndian.PutUint32(buf[32:36], uint32(e.Summary))
	binary.BigEndian.PutUint32(buf[36:40], uint32(e.MIBErr))
	binary.BigEndian.PutUint32(buf[40:44], uint32(e.DataLen))
	copy(buf[44:44+DataFieldLength], e.Data[:])
}

// UnmarshalEnvelope decodes a fixed-size envelope. Short input is an
// error; trailing bytes are ignored.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	if len(data) < EnvelopeSize {
		return nil, NewError("unmarshal envelope", ErrCodeShortMessage, "")
	}
	e := &Envelope{
		SID:       SubsystemID(int32(binary.BigEndian.Uint32(data[0:4]))),
		Ref:       int32(binary.BigEndian.Uint32(data[4:8])),
		CID:       CommandID(int32(binary.BigEndian.Uint32(data[8:12]))),
		Scheduled: binary.BigEndian.Uint32(data[12:16]) != 0,
		Accept:    Progress(int32(binary.BigEndian.Uint32(data[28:32]))),
		Summary:   Summary(int32(binary.BigEndian.Uint32(data[32:36]))),
		MIBErr:    MIBErr(binary.BigEndian.Uint32(data[36:40])),
		DataLen:   int32(binary.BigEndian.Uint32(data[40:44])),
	}
	sec := int64(binary.BigEndian.Uint64(data[16:24]))
	usec := int64(int32(binary.BigEndian.Uint32(data[24:28])))
	e.When = time.Unix(sec, usec*1000).UTC()
	copy(e.Data[:], data[44:44+DataFieldLength])
	return e, nil
}
