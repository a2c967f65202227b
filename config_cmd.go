package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ulle78/DeepMSI/internal/browser"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig("")
		if err != nil {
			return err
		}
		return cfg.WriteYAML(os.Stdout)
	},
}

var installBrowserCmd = &cobra.Command{
	Use:   "install-browser",
	Short: "Install the Chromium build used for snapshot exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		stop := startSpinner(os.Stderr, " Installing Chromium")
		err := browser.Install()
		stop()
		if err != nil {
			return fmt.Errorf("failed to install browser: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Chromium installed")
		return nil
	},
}
