package coverage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsapp-automation/broadcaster/internal/contacts"
	"github.com/whatsapp-automation/broadcaster/internal/ledger"
)

type phoneSet map[string]bool

func (s phoneSet) Has(p string) bool { return s[p] }

const roster = `name,phone,secretaria
Ana,11987654321,Campinas
Bia,11911112222, Campinas
Caio,21999998888,NITEROI
Duda,5521988887777,Niteroi
Eva,,Santos
`

func load(t *testing.T) *contacts.Table {
	t.Helper()
	tbl, err := contacts.Read(strings.NewReader(roster), "phone", "name")
	require.NoError(t, err)
	return tbl
}

var delivered = phoneSet{
	"5511987654321": true,
	"5521999998888": true,
	"5521988887777": true,
}

func TestComputeNamedGroups(t *testing.T) {
	rows, err := Compute(load(t), "secretaria", []string{"Campinas ", "niteroi", "Recife"}, delivered)
	require.NoError(t, err)

	want := []Row{
		{Group: "Campinas", Total: 2, Delivered: 1},
		{Group: "niteroi", Total: 2, Delivered: 2},
		{Group: "Recife", Total: 0, Delivered: 0},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeExactMatchWins(t *testing.T) {
	rows, err := Compute(load(t), "secretaria", []string{"Niteroi"}, delivered)
	require.NoError(t, err)
	assert.Equal(t, []Row{{Group: "Niteroi", Total: 1, Delivered: 1}}, rows)
}

func TestComputeDistinctGroups(t *testing.T) {
	rows, err := Compute(load(t), "secretaria", nil, delivered)
	require.NoError(t, err)

	var groups []string
	for _, r := range rows {
		groups = append(groups, r.Group)
	}
	assert.Equal(t, []string{"Campinas", "NITEROI", "Niteroi", "Santos"}, groups)
	assert.Equal(t, Row{Group: "TOTAL", Total: 5, Delivered: 3}, Totals(rows))
}

func TestComputeMissingColumn(t *testing.T) {
	_, err := Compute(load(t), "municipio", nil, delivered)
	assert.ErrorIs(t, err, contacts.ErrMissingColumn)
}

func TestRowMath(t *testing.T) {
	r := Row{Total: 4, Delivered: 1}
	assert.Equal(t, 3, r.Pending())
	assert.InDelta(t, 25.0, r.Percent(), 0.001)
	assert.Zero(t, Row{}.Percent())
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, []Row{{Group: "Campinas", Total: 2, Delivered: 1}}))
	assert.Equal(t, "group,total,delivered\nCampinas,2,1\n", buf.String())
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, []Row{{Group: "Campinas", Total: 2, Delivered: 1}})
	out := buf.String()
	assert.Contains(t, out, "Campinas")
	assert.Contains(t, out, "50.0")
	assert.Contains(t, out, "TOTAL")
}

func TestRenderSources(t *testing.T) {
	var buf bytes.Buffer
	RenderSources(&buf, []ledger.Source{{Name: "delivered_report_20240101_090000.csv", Phones: 1200}}, 1200)
	out := buf.String()
	assert.Contains(t, out, "delivered_report_20240101_090000.csv")
	assert.Contains(t, out, "1,200")
}
