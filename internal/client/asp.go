package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/mib"
)

// Analog signal processor (ASP) handlers. Per-stand commands carry a
// 3-digit stand number where stand 0 means "apply to all stands".

// nStands is the number of antenna stands the per-stand commands fan
// out over.
const nStands = 260

// aspINI records the board count from the INI argument.
func aspINI(st *mib.Store, cmdata string, _ []byte) mcs.MIBErr {
	n, err := strconv.Atoi(strings.TrimSpace(cmdata))
	if err != nil {
		return mcs.MIBErrOther
	}
	return storeEntry(st, "N-BOARDS", []byte(fmt.Sprintf("%02d", n)))
}

// perStand builds the handler for a "SSSVV" command (3-digit stand,
// 2-digit setting) updating prefix_{stand}.
func perStand(prefix string) HandlerFunc {
	return func(st *mib.Store, cmdata string, _ []byte) mcs.MIBErr {
		stand, set, ok := parseStandSetting(cmdata)
		if !ok {
			return mcs.MIBErrOther
		}
		value := []byte(fmt.Sprintf("%02d", set))
		if stand == 0 {
			var mask mcs.MIBErr
			for i := 1; i <= nStands; i++ {
				mask |= storeEntry(st, fmt.Sprintf("%s%d", prefix, i), value)
			}
			return mask
		}
		return storeEntry(st, fmt.Sprintf("%s%d", prefix, stand), value)
	}
}

// aspFPW parses "SSSPVV" (stand, polarization, on/off) and updates
// FEEPOL{pol}PWR_{stand}.
func aspFPW(st *mib.Store, cmdata string, _ []byte) mcs.MIBErr {
	if len(cmdata) < 6 {
		return mcs.MIBErrOther
	}
	stand, err1 := strconv.Atoi(strings.TrimSpace(cmdata[0:3]))
	pol, err2 := strconv.Atoi(cmdata[3:4])
	set, err3 := strconv.Atoi(strings.TrimSpace(cmdata[4:6]))
	if err1 != nil || err2 != nil || err3 != nil {
		return mcs.MIBErrOther
	}
	value := []byte(onOff(set))
	if stand == 0 {
		var mask mcs.MIBErr
		for i := 1; i <= nStands; i++ {
			mask |= storeEntry(st, fmt.Sprintf("FEEPOL%dPWR_%d", pol, i), value)
		}
		return mask
	}
	return storeEntry(st, fmt.Sprintf("FEEPOL%dPWR_%d", pol, stand), value)
}

// supplySwitch builds the handler for the 2-digit on/off supply
// commands (RXP, FEP).
func supplySwitch(label string) HandlerFunc {
	return func(st *mib.Store, cmdata string, _ []byte) mcs.MIBErr {
		set, err := strconv.Atoi(strings.TrimSpace(cmdata))
		if err != nil {
			return mcs.MIBErrOther
		}
		return storeEntry(st, label, []byte(onOff(set)))
	}
}

func onOff(set int) string {
	if set == 0 {
		return "OFF"
	}
	return "ON "
}

// parseStandSetting splits a "SSSVV" argument.
func parseStandSetting(cmdata string) (stand, set int, ok bool) {
	if len(cmdata) < 5 {
		return 0, 0, false
	}
	stand, err1 := strconv.Atoi(strings.TrimSpace(cmdata[0:3]))
	set, err2 := strconv.Atoi(strings.TrimSpace(cmdata[3:5]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return stand, set, true
}
