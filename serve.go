package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ulle78/DeepMSI/internal/app"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web UI",
	RunE:  serve,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default: server.port)")
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig("")
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "DeepMSI: http://%s\n", cfg.Server.Addr())
	return app.Serve(ctx, cfg, log)
}
