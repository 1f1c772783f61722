// ms-init is the supervisor: it reads an init script, builds each
// subsystem's MIB, spawns the subsystem clients with a liveness
// handshake, launches the executive, and exits. The spawned processes
// run until an orderly SHT.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lwa-project/mcs/internal/boot"
	"github.com/lwa-project/mcs/internal/logging"
)

func main() {
	var (
		busDir  = flag.String("bus-dir", "/tmp/mcs", "message bus directory")
		mibDir  = flag.String("mib-dir", ".", "directory holding MIB stores and init files")
		binDir  = flag.String("bin-dir", "", "directory holding the scheduler binaries (default: PATH)")
		verbose = flag.Bool("v", false, "verbose diagnostics")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: ms-init [flags] <init-script>")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig()
	logConfig.Prefix = "ms-init "
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if err := os.MkdirAll(*busDir, 0o777); err != nil {
		logger.Errorf("bus directory: %v", err)
		os.Exit(1)
	}

	sup := boot.New(boot.Config{
		ScriptPath: flag.Arg(0),
		BusDir:     *busDir,
		MIBDir:     *mibDir,
		BinDir:     *binDir,
		Logger:     logger,
	})
	if err := sup.Run(); err != nil {
		logger.Errorf("startup aborted: %v", err)
		os.Exit(1)
	}
}
