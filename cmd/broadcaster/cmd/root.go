package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/whatsapp-automation/broadcaster/internal/config"
	"github.com/whatsapp-automation/broadcaster/internal/logging"
)

var (
	configFile string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:           "broadcaster",
	Short:         "broadcaster sends one WhatsApp message per contact of a CSV and never messages anyone twice.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Prepare(v, configFile); err != nil {
			return err
		}
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
		logging.Setup(v.GetString("log-level"), v.GetString("log-format"))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "optional config file (yaml, json or toml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("report-dir", ".", "directory holding delivered_report_*.csv files")
	pf.String("ledger", "", "optional SQL ledger DSN (sqlite path, sqlite://path or postgres://...)")
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command's context so a
// send run can finish its bookkeeping.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
