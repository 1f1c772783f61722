// Package mcs holds the shared vocabulary of the Monitor & Control
// Scheduler: subsystem and command registries, the command envelope that
// travels between processes, task progress codes, the MJD/MPM time
// representation, and operational metrics.
package mcs

import "time"

// Field sizes shared by the envelope, the MIB, and the wire codec.
const (
	// DataFieldLength is the fixed size of the envelope DATA buffer.
	// Outbound it carries the command's DATA field; inbound it carries
	// the R-COMMENT of the subsystem's response.
	DataFieldLength = 256

	// MIBIndexFieldLength is the maximum length of a dotted-numeric MIB index.
	MIBIndexFieldLength = 12

	// MIBLabelFieldLength is the maximum length of a MIB entry label.
	MIBLabelFieldLength = 32

	// MIBValFieldLength is the fixed size of a MIB value buffer.
	MIBValFieldLength = 256
)

// MaxReference is the largest reference number issued before the
// executive's counter wraps back to 1. Reference 0 means "not assigned"
// and is never matched against live tasks.
const MaxReference = 999999999

// Pending task queue (one per subsystem client).
const (
	// PTQSize bounds the number of commands a client can have in flight.
	PTQSize = 500

	// PTQTimeout is how long a client waits for a subsystem response
	// before reporting the task as timed out.
	PTQTimeout = 4 * time.Second
)

// Executive task ring.
const (
	// TaskQueueLength is the fixed capacity of the executive's task ring.
	TaskQueueLength = 740

	// TaskQueueTimeout is how long the executive waits on a SENT slot
	// before ageing it out. Strictly longer than PTQTimeout so the
	// client always reports first.
	TaskQueueTimeout = 6 * time.Second
)

// ExecAddr is the loopback address:port on which the executive accepts
// injected commands.
const ExecAddr = "127.0.0.1:9734"

// BusBaseKey is the key of the central bus (the executive's inbox).
// A subsystem client's inbox uses BusBaseKey + its subsystem id.
const BusBaseKey = 1000

// Wire frame layout. The header occupies bytes 0..FrameHeaderLength-1
// with the single separator space at offset FrameHeaderLength-1; the
// body starts at FrameBodyOffset. DLEN counts the body bytes only.
const (
	FrameOffDest = 0
	FrameOffSrc  = 3
	FrameOffType = 6
	FrameOffRef  = 9
	FrameOffDLen = 18
	FrameOffMJD  = 22
	FrameOffMPM  = 28

	FrameHeaderLength = 47
	FrameBodyOffset   = 47

	FrameRefWidth  = 9
	FrameDLenWidth = 4
	FrameMJDWidth  = 6
	FrameMPMWidth  = 9

	// ResponsePreambleLength covers R-RESPONSE (1) plus R-SUMMARY (7).
	ResponsePreambleLength = 8
)

// LogCommentLength is the width of the comment field in task log lines.
// Longer comments, and hex renderings of binary payloads, are truncated
// to fit.
const LogCommentLength = 90
