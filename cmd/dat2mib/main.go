// dat2mib builds a subsystem MIB store from its text initialization
// file.
//
//	dat2mib <code> <ip-address> <tx-port> <rx-port>
//
// The init file is <code>_MIB_init.dat: one entry per line,
// KIND INDEX LABEL VALUE TYPE_LOCAL TYPE_WIRE, whitespace-separated.
// The store is written to <code>.mib (clobbering any existing store),
// with the three reserved network entries appended from the arguments.
// Exits 0 on success, 1 on operational failure.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lwa-project/mcs/internal/mib"
)

func main() {
	if len(os.Args) < 5 {
		fmt.Fprintln(os.Stderr, "usage: dat2mib <code> <ip-address> <tx-port> <rx-port>")
		os.Exit(1)
	}
	code, ip := os.Args[1], os.Args[2]
	if _, err := strconv.Atoi(os.Args[3]); err != nil {
		fatal("bad tx-port %q", os.Args[3])
	}
	if _, err := strconv.Atoi(os.Args[4]); err != nil {
		fatal("bad rx-port %q", os.Args[4])
	}
	txPort, rxPort := os.Args[3], os.Args[4]

	datPath := code + "_MIB_init.dat"
	f, err := os.Open(datPath)
	if err != nil {
		fatal("cannot read %s: %v", datPath, err)
	}
	defer f.Close()

	// The store takes its name from the subsystem code prefix.
	storePath := code
	if len(storePath) > 3 {
		storePath = storePath[:3]
	}
	storePath += ".mib"

	st, err := mib.Create(storePath)
	if err != nil {
		fatal("%v", err)
	}
	defer st.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 6 {
			fatal("%s line %d: want KIND INDEX LABEL VALUE TYPE_LOCAL TYPE_WIRE", datPath, line)
		}
		kind := mib.KindValue
		if fields[0] == "B" {
			kind = mib.KindBranch
		}
		val, err := mib.EncodeValue(fields[4], fields[3])
		if err != nil {
			fatal("%s line %d: %v", datPath, line, err)
		}
		rec := &mib.Record{
			Kind:      kind,
			Index:     fields[1],
			Val:       val,
			TypeLocal: fields[4],
			TypeWire:  fields[5],
		}
		if err := st.Put(fields[2], rec); err != nil {
			fatal("%s line %d: %v", datPath, line, err)
		}
	}
	if err := sc.Err(); err != nil {
		fatal("reading %s: %v", datPath, err)
	}

	// Reserved network entries, from the command line.
	reserved := []struct {
		index, label, value, typeLocal string
	}{
		{"0.1", mib.LabelIPAddress, ip, "a15"},
		{"0.2", mib.LabelTxPort, txPort, "a5"},
		{"0.3", mib.LabelRxPort, rxPort, "a5"},
	}
	for _, r := range reserved {
		rec := &mib.Record{Kind: mib.KindValue, Index: r.index, TypeLocal: r.typeLocal, TypeWire: "NUL"}
		rec.SetText(r.value)
		if err := st.Put(r.label, rec); err != nil {
			fatal("storing %s: %v", r.label, err)
		}
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "dat2mib: "+format+"\n", args...)
	os.Exit(1)
}
