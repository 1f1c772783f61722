// ms-exec is the executive: the central task-queue server of the
// scheduler. It is normally launched by ms-init with the ordered list
// of registered subsystem codes as arguments.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/exec"
	"github.com/lwa-project/mcs/internal/logging"
)

func main() {
	var (
		addr    = flag.String("addr", mcs.ExecAddr, "injection listen address")
		logPath = flag.String("log", "mselog.txt", "task log file")
		busDir  = flag.String("bus-dir", "/tmp/mcs", "message bus directory")
		verbose = flag.Bool("v", false, "verbose diagnostics")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	logConfig.Prefix = "ms-exec "
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	var sids []mcs.SubsystemID
	for _, code := range flag.Args() {
		sid := mcs.LookupSubsystem(code)
		if sid == mcs.SidNone || sid == mcs.SidMCS {
			logger.Errorf("subsystem %q not recognized", code)
			os.Exit(1)
		}
		sids = append(sids, sid)
	}

	if err := os.MkdirAll(*busDir, 0o777); err != nil {
		logger.Errorf("bus directory: %v", err)
		os.Exit(1)
	}

	e, err := exec.New(exec.Config{
		Addr:       *addr,
		LogPath:    *logPath,
		BusDir:     *busDir,
		Subsystems: sids,
		Logger:     logger,
	})
	if err != nil {
		logger.Errorf("startup: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infof("signal received; shutting down")
		cancel()
	}()

	if err := e.Run(ctx); err != nil && err != context.Canceled {
		logger.Errorf("run: %v", err)
		os.Exit(1)
	}
}
