package exec

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwa-project/mcs"
)

var taskLineRe = regexp.MustCompile(
	`^\d{6} \d{2}:\d{2}:\d{2} +\d+ +\d+ T +\d+ \d [A-Z_0-9]{3} [A-Z]{3} .*\|$`)

var infoLineRe = regexp.MustCompile(
	`^\d{6} \d{2}:\d{2}:\d{2} +\d+ +\d+ N .*$`)

func TestTaskLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)

	l.Task(42, mcs.TaskQueued, mcs.SidSHL, mcs.CmdPNG, []byte("Task has been queued"), -1)

	line := strings.TrimRight(buf.String(), "\n")
	assert.Regexp(t, taskLineRe, line)
	assert.Contains(t, line, " T ")
	assert.Contains(t, line, " 1 SHL PNG ")
	assert.True(t, strings.HasSuffix(line, "Task has been queued|"))
}

func TestInfoLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)

	l.Info("Starting shutdown...")

	line := strings.TrimRight(buf.String(), "\n")
	assert.Regexp(t, infoLineRe, line)
	assert.True(t, strings.HasSuffix(line, "N Starting shutdown..."))
}

func TestBinaryCommentRendersAsHex(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)

	l.Task(7, mcs.TaskSuccess, mcs.SidDP, mcs.CmdTBW, []byte{0x01, 0xab, 0xff}, 3)

	assert.Contains(t, buf.String(), "01ABFF|")
}

func TestLongCommentTruncated(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)

	long := strings.Repeat("x", 300)
	l.Task(7, mcs.TaskSuccess, mcs.SidSHL, mcs.CmdRPT, []byte(long), -1)

	line := strings.TrimRight(buf.String(), "\n")
	require.True(t, strings.HasSuffix(line, "|"))
	comment := line[strings.LastIndex(line, " RPT ")+5 : len(line)-1]
	assert.Len(t, comment, mcs.LogCommentLength)
}

func TestLongBinaryCommentFitsWidth(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)

	raw := bytes.Repeat([]byte{0xaa}, 200)
	l.Task(7, mcs.TaskSuccess, mcs.SidDP, mcs.CmdRPT, raw, int32(len(raw)))

	line := strings.TrimRight(buf.String(), "\n")
	comment := line[strings.LastIndex(line, " RPT ")+5 : len(line)-1]
	assert.LessOrEqual(t, len(comment), mcs.LogCommentLength)
	assert.True(t, strings.HasPrefix(comment, "AAAA"))
}

func TestStringCommentStopsAtNUL(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)

	data := make([]byte, 64)
	copy(data, "queued")
	l.Task(1, mcs.TaskQueued, mcs.SidSHL, mcs.CmdPNG, data, -1)

	assert.Contains(t, buf.String(), "queued|")
	assert.NotContains(t, buf.String(), "queued\x00")
}
