package mcs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	when := time.Date(2009, 8, 25, 14, 2, 33, 123000000, time.UTC)
	env := &Envelope{
		SID:       SidSHL,
		Ref:       42,
		CID:       CmdRPT,
		Scheduled: true,
		When:      when,
		Accept:    TaskSuccess,
		Summary:   SummaryNormal,
		MIBErr:    MIBErrRefUnk | MIBErrOther,
	}
	env.SetString("SET-POINT")

	buf := env.Marshal()
	require.Len(t, buf, EnvelopeSize)

	got, err := UnmarshalEnvelope(buf)
	require.NoError(t, err)

	assert.Equal(t, env.SID, got.SID)
	assert.Equal(t, env.Ref, got.Ref)
	assert.Equal(t, env.CID, got.CID)
	assert.Equal(t, env.Scheduled, got.Scheduled)
	assert.True(t, when.Equal(got.When), "want %v, got %v", when, got.When)
	assert.Equal(t, env.Accept, got.Accept)
	assert.Equal(t, env.Summary, got.Summary)
	assert.Equal(t, env.MIBErr, got.MIBErr)
	assert.Equal(t, int32(-1), got.DataLen)
	assert.Equal(t, "SET-POINT", got.PayloadString())
}

func TestEnvelopeRawPayload(t *testing.T) {
	env := &Envelope{SID: SidDP, CID: CmdTBW}
	raw := []byte{0x01, 0x00, 0xff, 0x80, 0x00}
	env.SetBytes(raw)

	require.Equal(t, int32(5), env.DataLen)
	assert.Equal(t, raw, env.Payload())

	got, err := UnmarshalEnvelope(env.Marshal())
	require.NoError(t, err)
	assert.Equal(t, raw, got.Payload())
	assert.Equal(t, int32(5), got.DataLen)
}

func TestEnvelopeShortInput(t *testing.T) {
	_, err := UnmarshalEnvelope(make([]byte, EnvelopeSize-1))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeShortMessage))
}

func TestPayloadStringStopsAtNUL(t *testing.T) {
	env := &Envelope{}
	env.SetString("hello")
	// DataLen -1 means "printable string": payload ends at the first NUL.
	assert.Equal(t, "hello", env.PayloadString())
	assert.Len(t, env.Payload(), 5)
}

func TestProgressTerminal(t *testing.T) {
	for _, p := range []Progress{TaskAvailable, TaskQueued, TaskSent} {
		assert.False(t, p.Terminal(), p.String())
	}
	for _, p := range []Progress{TaskSuccess, TaskFailExec, TaskFailClient, TaskFailRejected, TaskDoneUnknown, TaskDonePTQTimeout} {
		assert.True(t, p.Terminal(), p.String())
	}
}

func TestParseSummary(t *testing.T) {
	tests := []struct {
		token string
		want  Summary
	}{
		{"NORMAL", SummaryNormal},
		{"NORMAL ", SummaryNormal},
		{"  WARNING", SummaryWarning},
		{"ERROR", SummaryError},
		{"BOOTING", SummaryBooting},
		{"SHUTDWN", SummaryShutdown},
		{"NULL", SummaryNull},
		{"", SummaryNull},
		{"GARBAGE", SummaryNull},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSummary(tt.token), "token %q", tt.token)
	}
}
