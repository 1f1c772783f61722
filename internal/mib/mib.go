// Package mib implements the per-subsystem Management Information Base:
// a single-writer, multi-reader keyed store of operational state, one
// store per subsystem, keyed by ASCII label. The backing store is
// goleveldb; its process lock enforces the single-writer rule.
package mib

import (
	"encoding/binary"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/lwa-project/mcs"
)

// RecordKind distinguishes branch heads from value entries.
type RecordKind int32

const (
	KindBranch RecordKind = 0
	KindValue  RecordKind = 1
)

// Record is one MIB entry. The value buffer is fixed-size; its
// interpretation is controlled by TypeLocal (see EncodeValue). TypeWire
// is advisory metadata for external readers and is preserved untouched.
type Record struct {
	Kind       RecordKind
	Index      string // dotted-numeric, at most MIBIndexFieldLength chars
	Val        [mcs.MIBValFieldLength]byte
	TypeLocal  string // at most 6 chars
	TypeWire   string // at most 6 chars
	LastChange time.Time
}

// recordSize is the fixed marshalled size of a Record.
const recordSize = 4 + mcs.MIBIndexFieldLength + mcs.MIBValFieldLength + 6 + 6 + 8 + 4

// SetText replaces the value buffer with a printable string, truncated
// to the buffer size.
func (r *Record) SetText(s string) {
	r.Val = [mcs.MIBValFieldLength]byte{}
	copy(r.Val[:], s)
}

// SetRaw replaces the value buffer with raw bytes, truncated to the
// buffer size.
func (r *Record) SetRaw(p []byte) {
	r.Val = [mcs.MIBValFieldLength]byte{}
	copy(r.Val[:], p)
}

// Text returns the value buffer up to the first NUL.
func (r *Record) Text() string {
	for i, b := range r.Val {
		if b == 0 {
			return string(r.Val[:i])
		}
	}
	return string(r.Val[:])
}

func marshalRecord(r *Record) []byte {
	buf := make([]byte, recordSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(r.Kind))
	copy(buf[4:4+mcs.MIBIndexFieldLength], r.Index)
	off := 4 + mcs.MIBIndexFieldLength
	copy(buf[off:off+mcs.MIBValFieldLength], r.Val[:])
	off += mcs.MIBValFieldLength
	copy(buf[off:off+6], r.TypeLocal)
	off += 6
	copy(buf[off:off+6], r.TypeWire)
	off += 6
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.LastChange.Unix()))
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(r.LastChange.Nanosecond()/1000))
	return buf
}

func unmarshalRecord(data []byte) (*Record, error) {
	if len(data) < recordSize {
		return nil, mcs.NewError("unmarshal mib record", mcs.ErrCodeShortMessage, "")
	}
	r := &Record{Kind: RecordKind(int32(binary.BigEndian.Uint32(data[0:4])))}
	r.Index = cString(data[4 : 4+mcs.MIBIndexFieldLength])
	off := 4 + mcs.MIBIndexFieldLength
	copy(r.Val[:], data[off:off+mcs.MIBValFieldLength])
	off += mcs.MIBValFieldLength
	r.TypeLocal = cString(data[off : off+6])
	off += 6
	r.TypeWire = cString(data[off : off+6])
	off += 6
	sec := int64(binary.BigEndian.Uint64(data[off : off+8]))
	off += 8
	usec := int64(binary.BigEndian.Uint32(data[off : off+4]))
	r.LastChange = time.Unix(sec, usec*1000).UTC()
	return r, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Store is an open MIB.
type Store struct {
	db   *leveldb.DB
	path string
}

// Open opens an existing MIB read-write. The caller must be the
// subsystem's single writer; a second opener gets ErrCodeStoreOpen.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ErrorIfMissing: true})
	if err != nil {
		return nil, mcs.WrapError("open mib", mcs.ErrCodeStoreOpen, err)
	}
	return &Store{db: db, path: path}, nil
}

// OpenRead opens an existing MIB read-only, for external viewers.
func OpenRead(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ErrorIfMissing: true, ReadOnly: true})
	if err != nil {
		return nil, mcs.WrapError("open mib", mcs.ErrCodeStoreOpen, err)
	}
	return &Store{db: db, path: path}, nil
}

// Create creates (or truncates) a MIB. Used by the external initializer
// before any client starts.
func Create(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, mcs.WrapError("create mib", mcs.ErrCodeStoreOpen, err)
	}
	st := &Store{db: db, path: path}
	// Truncate: drop anything left from an earlier run.
	iter := db.NewIterator(nil, nil)
	for iter.Next() {
		if err := db.Delete(iter.Key(), nil); err != nil {
			iter.Release()
			st.Close()
			return nil, mcs.WrapError("create mib", mcs.ErrCodeStoreWrite, err)
		}
	}
	iter.Release()
	return st, nil
}

// Fetch looks up a label.
func (s *Store) Fetch(label string) (*Record, error) {
	data, err := s.db.Get([]byte(label), nil)
	if err != nil {
		return nil, mcs.WrapError("fetch "+label, mcs.ErrCodeStoreFetch, err)
	}
	return unmarshalRecord(data)
}

// Put stores a record under label, stamping LastChange with the current
// wall clock.
func (s *Store) Put(label string, rec *Record) error {
	rec.LastChange = time.Now().UTC()
	if err := s.db.Put([]byte(label), marshalRecord(rec), nil); err != nil {
		return mcs.WrapError("store "+label, mcs.ErrCodeStoreWrite, err)
	}
	return nil
}

// Iterate visits every (label, record) pair in unspecified order. A
// non-nil error from fn stops the walk and is returned.
func (s *Store) Iterate(fn func(label string, rec *Record) error) error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		rec, err := unmarshalRecord(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(string(iter.Key()), rec); err != nil {
			return err
		}
	}
	return mcs.WrapError("iterate mib", mcs.ErrCodeStoreFetch, iter.Error())
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reserved network-configuration labels inserted by the initializer.
const (
	LabelIPAddress = "MCH_IP_ADDRESS"
	LabelTxPort    = "MCH_TX_PORT"
	LabelRxPort    = "MCH_RX_PORT"
)

// NetConfig reads the subsystem's UDP endpoint out of the reserved
// entries.
func (s *Store) NetConfig() (ip string, txPort, rxPort int, err error) {
	ipRec, err := s.Fetch(LabelIPAddress)
	if err != nil {
		return "", 0, 0, err
	}
	txRec, err := s.Fetch(LabelTxPort)
	if err != nil {
		return "", 0, 0, err
	}
	rxRec, err := s.Fetch(LabelRxPort)
	if err != nil {
		return "", 0, 0, err
	}
	tx, err := parsePort(txRec.Text())
	if err != nil {
		return "", 0, 0, mcs.WrapError("parse "+LabelTxPort, mcs.ErrCodeBadConfig, err)
	}
	rx, err := parsePort(rxRec.Text())
	if err != nil {
		return "", 0, 0, mcs.WrapError("parse "+LabelRxPort, mcs.ErrCodeBadConfig, err)
	}
	return ipRec.Text(), tx, rx, nil
}
