// Package coverage answers "how many contacts of each group got the
// message", from a contact table and the delivery ledger.
package coverage

import (
	"sort"
	"strings"

	"github.com/whatsapp-automation/broadcaster/internal/contacts"
	"github.com/whatsapp-automation/broadcaster/internal/phone"
)

// Row is the delivery count of one group.
type Row struct {
	Group     string
	Total     int
	Delivered int
}

// Pending is how many contacts of the group were not reached.
func (r Row) Pending() int { return r.Total - r.Delivered }

// Percent is the delivered share, 0 for an empty group.
func (r Row) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.Delivered) / float64(r.Total)
}

// Delivered is the lookup side of a ledger.
type Delivered interface {
	Has(phone string) bool
}

// Compute counts, for every group, the contacts whose phone is in the
// ledger. With no groups given, every distinct value of groupCol is a group.
// A group name matches cells after trimming; a group with no exact match
// falls back to a case-insensitive comparison.
func Compute(table *contacts.Table, groupCol string, groups []string, delivered Delivered) ([]Row, error) {
	cells, err := table.Column(groupCol)
	if err != nil {
		return nil, err
	}
	list := table.Contacts()

	if len(groups) == 0 {
		groups = distinct(cells)
	}

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		g = strings.TrimSpace(g)
		idx := match(cells, func(c string) bool { return c == g })
		if len(idx) == 0 {
			idx = match(cells, func(c string) bool { return strings.EqualFold(c, g) })
		}

		row := Row{Group: g, Total: len(idx)}
		for _, i := range idx {
			if delivered.Has(phone.Canonical(list[i].Phone)) {
				row.Delivered++
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func match(cells []string, eq func(string) bool) []int {
	var out []int
	for i, c := range cells {
		if eq(c) {
			out = append(out, i)
		}
	}
	return out
}

func distinct(cells []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cells {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Totals sums every row.
func Totals(rows []Row) Row {
	t := Row{Group: "TOTAL"}
	for _, r := range rows {
		t.Total += r.Total
		t.Delivered += r.Delivered
	}
	return t
}
