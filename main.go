package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ulle78/DeepMSI/internal/config"
	"github.com/ulle78/DeepMSI/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	logLevel   string
	predictURL string
)

var rootCmd = &cobra.Command{
	Use:   "deepmsi",
	Short: "MSI/MSS prediction for histopathology images",
	Long: `DeepMSI classifies colorectal histopathology tiles as microsatellite
instable (MSIMUT) or stable (MSS) using a remote inference endpoint, and
produces patient reports as PDF.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deepmsi %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: deepmsi.yaml in ., ./config, /etc/deepmsi)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&predictURL, "predict-url", "", "Inference endpoint override")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(installBrowserCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if rootCmd.Execute() != nil {
		os.Exit(1)
	}
}

// loadConfig applies command-line overrides on top of the loaded config.
// CLI commands log at warn unless told otherwise.
func loadConfig(cliDefaultLevel string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if predictURL != "" {
		cfg.Predict.URL = predictURL
	}
	switch {
	case logLevel != "":
		cfg.Logging.Level = logLevel
	case cliDefaultLevel != "":
		cfg.Logging.Level = cliDefaultLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
