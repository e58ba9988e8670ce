package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whatsapp-automation/broadcaster/internal/coverage"
	"github.com/whatsapp-automation/broadcaster/internal/ledger"
)

var deliveredCmd = &cobra.Command{
	Use:   "delivered",
	Short: "Count unique phones across all delivery reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := ledger.Open(cmd.Context(), v.GetString("report-dir"), v.GetString("ledger"))
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer l.Close()

		coverage.RenderSources(os.Stdout, l.Sources(), len(l.Phones()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deliveredCmd)
}
