// Package main provides the standalone DeepMSI UI server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ulle78/DeepMSI/internal/app"
	"github.com/ulle78/DeepMSI/internal/config"
	"github.com/ulle78/DeepMSI/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Config file (default: deepmsi.yaml in ., ./config, /etc/deepmsi)")
	port := flag.Int("port", 0, "Server port (overrides server.port)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
