// ms-mcic is one subsystem client. It is normally launched by ms-init,
// which blocks on the liveness handshake before starting the next
// client.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lwa-project/mcs/internal/client"
	"github.com/lwa-project/mcs/internal/logging"
)

func main() {
	var (
		mibPath = flag.String("mib", "", "path to the subsystem's MIB store")
		busDir  = flag.String("bus-dir", "/tmp/mcs", "message bus directory")
		verbose = flag.Bool("v", false, "verbose diagnostics")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: ms-mcic [flags] <subsystem>")
		os.Exit(1)
	}
	code := flag.Arg(0)
	if *mibPath == "" {
		*mibPath = code + ".mib"
	}

	logConfig := logging.DefaultConfig()
	logConfig.Prefix = fmt.Sprintf("ms-mcic[%s] ", code)
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	c, err := client.New(client.Config{
		Code:    code,
		MIBPath: *mibPath,
		BusDir:  *busDir,
		Logger:  logger,
	})
	if err != nil {
		logger.Errorf("startup: %v", err)
		os.Exit(1)
	}

	if err := c.Handshake(); err != nil {
		logger.Errorf("handshake: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := c.Run(ctx); err != nil && err != context.Canceled {
		logger.Errorf("run: %v", err)
		os.Exit(1)
	}
}
