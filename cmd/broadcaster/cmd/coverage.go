package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/whatsapp-automation/broadcaster/internal/contacts"
	"github.com/whatsapp-automation/broadcaster/internal/coverage"
	"github.com/whatsapp-automation/broadcaster/internal/ledger"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Count, per group, how many contacts were already reached",
	Long: `Coverage reads a contact CSV with a group column (a city, a school, a
department) and counts for every group how many of its contacts appear in the
delivery reports. Groups come from --groups, from the first column of
--groups-file, or else from every distinct value of the group column.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input := v.GetString("csv")
		groupCol := v.GetString("group-col")
		if input == "" || groupCol == "" {
			return fmt.Errorf("--csv and --group-col are required")
		}

		table, err := contacts.Load(input, v.GetString("phone-col"), "")
		if err != nil {
			return err
		}

		groups := v.GetStringSlice("groups")
		if path := v.GetString("groups-file"); path != "" {
			fromFile, err := readGroups(path)
			if err != nil {
				return err
			}
			groups = append(groups, fromFile...)
		}

		l, err := ledger.Open(cmd.Context(), v.GetString("report-dir"), v.GetString("ledger"))
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer l.Close()

		rows, err := coverage.Compute(table, groupCol, groups, l)
		if err != nil {
			return err
		}
		coverage.Render(os.Stdout, rows)

		if out := v.GetString("out"); out != "" {
			if err := coverage.WriteCSV(out, rows); err != nil {
				return err
			}
			logrus.Infof("[Coverage] Report written to %s", out)
		}
		return nil
	},
}

func init() {
	f := coverageCmd.Flags()
	f.String("csv", "", "contact CSV")
	f.String("phone-col", "phone", "phone column name")
	f.String("group-col", "", "group column name")
	f.StringSlice("groups", nil, "groups to report, comma separated")
	f.String("groups-file", "", "headerless CSV whose first column lists the groups")
	f.String("out", "", "also write the report as CSV (group,total,delivered)")

	rootCmd.AddCommand(coverageCmd)
}

func readGroups(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open groups: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse groups %s: %w", path, err)
	}

	var groups []string
	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		if g := strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff")); g != "" {
			groups = append(groups, g)
		}
	}
	return groups, nil
}
