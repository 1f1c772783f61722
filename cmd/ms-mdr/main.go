// ms-mdr dumps an entire subsystem MIB, one entry per line: label,
// kind, index, value (rendered per its local type code), both type
// codes, and the last-change time.
package main

import (
	"fmt"
	"os"

	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/mib"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ms-mdr <mib-store>")
		os.Exit(1)
	}

	st, err := mib.OpenRead(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ms-mdr: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	err = st.Iterate(func(label string, rec *mib.Record) error {
		fmt.Printf("%-32s %-1d %-12s %-32s %-6s %-6s |%s\n",
			label, rec.Kind,
			clip(rec.Index, 12), clip(mib.DisplayValue(rec), 32),
			rec.TypeLocal, rec.TypeWire,
			mcs.FormatStamp(rec.LastChange))
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ms-mdr: %v\n", err)
		os.Exit(1)
	}
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
