package client

import (
	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/mib"
)

// UpdateMIB applies a subsystem response to the MIB. SUMMARY is written
// for every parseable response, because its value reflects the
// subsystem's current operational state independent of whether this
// particular command was accepted. Other entries are touched only for
// accepted or unclassifiable responses, via the per-command handlers.
//
// The store is opened and closed per response; the returned mask is the
// accumulated MIB bookkeeping state for the progress envelope.
func UpdateMIB(path string, sid mcs.SubsystemID, cid mcs.CommandID, accept mcs.Progress, token string, comment []byte, cmdata string) mcs.MIBErr {
	st, err := mib.Open(path)
	if err != nil {
		return mcs.MIBErrCantOpen
	}
	defer st.Close()

	mask := storeEntry(st, "SUMMARY", []byte(token))

	if accept != mcs.TaskSuccess && accept != mcs.TaskDoneUnknown {
		return mask
	}

	switch cid {
	case mcs.CmdPNG, mcs.CmdSHT:
		// nothing beyond SUMMARY

	case mcs.CmdRPT:
		// The outbound DATA named the label; the comment is its new
		// value, stored byte-for-byte so raw values survive intact.
		mask |= storeEntry(st, cmdata, comment)

	default:
		h, ok := handlers[handlerKey{sid, cid}]
		if !ok {
			if !sid.Valid() {
				mask |= mcs.MIBErrSidUnk
			} else {
				mask |= mcs.MIBErrSidCid
			}
			break
		}
		mask |= h(st, cmdata, comment)
	}

	return mask
}

// storeEntry overwrites one entry's value buffer, preserving its type
// metadata. A missing entry is recreated rather than dropped on the
// floor, with the fetch failure reported in the mask.
func storeEntry(st *mib.Store, label string, value []byte) mcs.MIBErr {
	var mask mcs.MIBErr
	rec, err := st.Fetch(label)
	if err != nil {
		mask |= mcs.MIBErrCantFetch
		rec = &mib.Record{Kind: mib.KindValue}
	}
	rec.SetRaw(value)
	if err := st.Put(label, rec); err != nil {
		mask |= mcs.MIBErrCantStore
	}
	return mask
}
