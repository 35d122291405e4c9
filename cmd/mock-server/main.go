// mock-server runs the workbench detection backend: the detect-object
// endpoint plus the LED and solenoid control surfaces.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/bumpbox/go-bumpbox/internal/log"
	"github.com/bumpbox/go-bumpbox/pkg/backend"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	level := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*level)

	srv := backend.NewServer(backend.WithLogger(log.Component("backend")))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		srv.Shutdown()
	}()

	if err := srv.Listen(*addr); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
