package exec

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/lwa-project/mcs"
)

// Log writes the executive's task log: one line per task transition and
// per informational event, in a fixed plain-text format consumed by
// operators and tooling.
//
//	YYMMDD HH:MM:SS <MJD> <MPM> T <REF,9> <progress> <DEST,3> <TYPE,3> <comment>|
//	YYMMDD HH:MM:SS <MJD> <MPM> N <text>
type Log struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// OpenLog creates (clobbering) the log file at path.
func OpenLog(path string) (*Log, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, mcs.WrapError("open task log", mcs.ErrCodeBadConfig, err)
	}
	return &Log{w: f, c: f}, nil
}

// NewLog writes to an arbitrary writer; used by tests.
func NewLog(w io.Writer) *Log {
	return &Log{w: w}
}

// Task logs one task transition. Binary payloads (dataLen >= 0) are
// rendered as uppercase hex; everything is truncated to the fixed
// comment width.
func (l *Log) Task(ref int32, p mcs.Progress, sid mcs.SubsystemID, cid mcs.CommandID, data []byte, dataLen int32) {
	comment := renderComment(data, dataLen)
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	mjd, mpm := mcs.TimeToMJDMPM(now)
	fmt.Fprintf(l.w, "%s %*d %*d T %*d %d %3s %3s %s|\n",
		mcs.FormatStamp(now), mcs.FrameMJDWidth, mjd, mcs.FrameMPMWidth, mpm,
		mcs.FrameRefWidth, ref, int(p), sid, cid, comment)
}

// Info logs a free-form informational line.
func (l *Log) Info(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	mjd, mpm := mcs.TimeToMJDMPM(now)
	fmt.Fprintf(l.w, "%s %*d %*d N %s\n",
		mcs.FormatStamp(now), mcs.FrameMJDWidth, mjd, mcs.FrameMPMWidth, mpm,
		fmt.Sprintf(format, args...))
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	if l.c != nil {
		return l.c.Close()
	}
	return nil
}

func renderComment(data []byte, dataLen int32) string {
	var comment string
	if dataLen >= 0 {
		n := int(dataLen)
		if n > len(data) {
			n = len(data)
		}
		// Hex doubles the width; cap the source so the rendering fits.
		if 2*n > mcs.LogCommentLength {
			n = mcs.LogCommentLength / 2
		}
		comment = mcs.RawToHex(data[:n])
	} else {
		comment = string(data)
		for i := 0; i < len(comment); i++ {
			if comment[i] == 0 {
				comment = comment[:i]
				break
			}
		}
	}
	if len(comment) > mcs.LogCommentLength {
		comment = comment[:mcs.LogCommentLength]
	}
	return comment
}
