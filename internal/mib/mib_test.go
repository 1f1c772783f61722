package mib

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwa-project/mcs"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	st, err := Create(filepath.Join(t.TempDir(), "SHL.mib"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStoreFetchRoundTrip(t *testing.T) {
	st := newStore(t)

	rec := &Record{Kind: KindValue, Index: "2.1", TypeLocal: "a5", TypeWire: "a5"}
	rec.SetText("70.00")
	require.NoError(t, st.Put("SET-POINT", rec))

	got, err := st.Fetch("SET-POINT")
	require.NoError(t, err)
	assert.Equal(t, KindValue, got.Kind)
	assert.Equal(t, "2.1", got.Index)
	assert.Equal(t, "70.00", got.Text())
	assert.Equal(t, "a5", got.TypeLocal)
	assert.Equal(t, "a5", got.TypeWire)
	assert.False(t, got.LastChange.IsZero())
}

func TestFetchMissingLabel(t *testing.T) {
	st := newStore(t)
	_, err := st.Fetch("NO-SUCH-LABEL")
	require.Error(t, err)
	assert.True(t, mcs.IsCode(err, mcs.ErrCodeStoreFetch))
}

func TestPutUpdatesLastChange(t *testing.T) {
	st := newStore(t)

	rec := &Record{Kind: KindValue, TypeLocal: "a7", TypeWire: "a7"}
	rec.SetText("NORMAL")
	require.NoError(t, st.Put("SUMMARY", rec))
	first, err := st.Fetch("SUMMARY")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	rec.SetText("WARNING")
	require.NoError(t, st.Put("SUMMARY", rec))
	second, err := st.Fetch("SUMMARY")
	require.NoError(t, err)

	assert.True(t, second.LastChange.After(first.LastChange),
		"last_change must advance on every store: %v !> %v", second.LastChange, first.LastChange)
	assert.Equal(t, "WARNING", second.Text())
}

func TestRawValueSurvivesRoundTrip(t *testing.T) {
	st := newStore(t)

	raw := []byte{0x00, 0x01, 0xfe, 0x00, 0xff}
	rec := &Record{Kind: KindValue, TypeLocal: "r5", TypeWire: "r5"}
	rec.SetRaw(raw)
	require.NoError(t, st.Put("RAW-ENTRY", rec))

	got, err := st.Fetch("RAW-ENTRY")
	require.NoError(t, err)
	assert.Equal(t, raw, got.Val[:5])
}

func TestIterateVisitsEverything(t *testing.T) {
	st := newStore(t)

	labels := []string{"SUMMARY", "INFO", "SET-POINT", "DIFFERENTIAL"}
	for _, label := range labels {
		rec := &Record{Kind: KindValue, TypeLocal: "a8", TypeWire: "a8"}
		rec.SetText("UNK")
		require.NoError(t, st.Put(label, rec))
	}

	seen := map[string]bool{}
	err := st.Iterate(func(label string, rec *Record) error {
		seen[label] = true
		return nil
	})
	require.NoError(t, err)
	for _, label := range labels {
		assert.True(t, seen[label], label)
	}
	assert.Len(t, seen, len(labels))
}

func TestCreateTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NU1.mib")

	st, err := Create(path)
	require.NoError(t, err)
	rec := &Record{Kind: KindValue, TypeLocal: "a3", TypeWire: "a3"}
	rec.SetText("old")
	require.NoError(t, st.Put("STALE", rec))
	st.Close()

	st, err = Create(path)
	require.NoError(t, err)
	defer st.Close()
	_, err = st.Fetch("STALE")
	assert.Error(t, err)
}

func TestSingleWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ASP.mib")
	st, err := Create(path)
	require.NoError(t, err)
	defer st.Close()

	_, err = Open(path)
	require.Error(t, err)
	assert.True(t, mcs.IsCode(err, mcs.ErrCodeStoreOpen))
}

func TestNetConfig(t *testing.T) {
	st := newStore(t)

	put := func(label, value, typeLocal string) {
		rec := &Record{Kind: KindValue, TypeLocal: typeLocal, TypeWire: "NUL"}
		rec.SetText(value)
		require.NoError(t, st.Put(label, rec))
	}
	put(LabelIPAddress, "127.0.0.1", "a15")
	put(LabelTxPort, "5010", "a5")
	put(LabelRxPort, "5011", "a5")

	ip, tx, rx, err := st.NetConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)
	assert.Equal(t, 5010, tx)
	assert.Equal(t, 5011, rx)
}

func TestNetConfigMissingEntry(t *testing.T) {
	st := newStore(t)
	_, _, _, err := st.NetConfig()
	require.Error(t, err)
	assert.True(t, mcs.IsCode(err, mcs.ErrCodeStoreFetch))
}
