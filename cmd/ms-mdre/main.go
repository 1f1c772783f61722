// ms-mdre prints one MIB entry: its value rendered per its local type
// code, then its last-change time.
package main

import (
	"fmt"
	"os"

	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/mib"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: ms-mdre <mib-store> <label>")
		os.Exit(1)
	}

	st, err := mib.OpenRead(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ms-mdre: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	rec, err := st.Fetch(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ms-mdre: label %q not found\n", os.Args[2])
		os.Exit(1)
	}

	fmt.Println(mib.DisplayValue(rec))
	fmt.Println(mcs.FormatStamp(rec.LastChange))
}
