package coverage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/whatsapp-automation/broadcaster/internal/ledger"
)

// CSVHeader is the column order of a written coverage report.
var CSVHeader = []string{"group", "total", "delivered"}

// Render prints rows as a table with a totals footer.
func Render(w io.Writer, rows []Row) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Group", "Total", "Delivered", "Pending", "%"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Group, r.Total, r.Delivered, r.Pending(), fmt.Sprintf("%.1f", r.Percent())})
	}
	tot := Totals(rows)
	t.AppendFooter(table.Row{tot.Group, tot.Total, tot.Delivered, tot.Pending(), fmt.Sprintf("%.1f", tot.Percent())})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// WriteCSV writes rows to path.
func WriteCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodeCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeCSV writes the header and rows as CSV.
func EncodeCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Group, strconv.Itoa(r.Total), strconv.Itoa(r.Delivered)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderSources prints what the ledger is made of and the unique total.
func RenderSources(w io.Writer, sources []ledger.Source, unique int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Source", "Phones"})
	for _, s := range sources {
		t.AppendRow(table.Row{s.Name, humanize.Comma(int64(s.Phones))})
	}
	t.AppendFooter(table.Row{"Unique delivered", humanize.Comma(int64(unique))})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
