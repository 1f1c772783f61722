package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/mib"
)

// Shelter controller (SHL) handlers.
//
// INI updates SET-POINT and DIFFERENTIAL in the local MIB but not the
// rack availability flags: only SHL knows how many ports each rack has,
// so there is nothing local to record for them.

// shlINI parses "SET-POINT&DIFFERENTIAL&rrrrrr" (rack flags).
func shlINI(st *mib.Store, cmdata string, _ []byte) mcs.MIBErr {
	parts := strings.SplitN(cmdata, "&", 3)
	if len(parts) < 2 {
		return mcs.MIBErrOther
	}
	mask := storeEntry(st, "SET-POINT", []byte(clip(parts[0], 5)))
	mask |= storeEntry(st, "DIFFERENTIAL", []byte(clip(parts[1], 3)))
	return mask
}

// shlTMP records a new set-point.
func shlTMP(st *mib.Store, cmdata string, _ []byte) mcs.MIBErr {
	return storeEntry(st, "SET-POINT", []byte(clip(firstToken(cmdata), 5)))
}

// shlDIF records a new differential.
func shlDIF(st *mib.Store, cmdata string, _ []byte) mcs.MIBErr {
	return storeEntry(st, "DIFFERENTIAL", []byte(clip(firstToken(cmdata), 3)))
}

// shlPWR parses "RPPSSS": one-digit rack, two-digit port, 3-char state,
// and records the state under PWR-R{rack}-{port}.
func shlPWR(st *mib.Store, cmdata string, _ []byte) mcs.MIBErr {
	if len(cmdata) < 4 {
		return mcs.MIBErrOther
	}
	rack, err1 := strconv.Atoi(cmdata[0:1])
	port, err2 := strconv.Atoi(cmdata[1:3])
	if err1 != nil || err2 != nil {
		return mcs.MIBErrOther
	}
	state := firstToken(cmdata[3:])
	label := fmt.Sprintf("PWR-R%d-%d", rack, port)
	return storeEntry(st, label, []byte(clip(state, 3)))
}

// firstToken returns the first whitespace-delimited token of s.
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// clip truncates s to at most n characters.
func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
