package runtime

import (
	"fmt"
	"io"
	"strings"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

// ResultList collects the rows of a statement.
type ResultList struct {
	columns []string
	rows    [][]catalog.Value
}

// NewResultList creates an empty result list.
func NewResultList() *ResultList {
	return &ResultList{}
}

// Columns returns the column names.
func (r *ResultList) Columns() []string {
	return r.columns
}

// SetColumns sets the column names.
func (r *ResultList) SetColumns(columns []string) {
	r.columns = append([]string(nil), columns...)
}

// NumRows returns the number of rows.
func (r *ResultList) NumRows() int {
	return len(r.rows)
}

// Row returns row i rendered as strings.
func (r *ResultList) Row(i int) []string {
	row := r.rows[i]
	out := make([]string, len(row))
	for j, v := range row {
		out[j] = v.String()
	}
	return out
}

// Values returns the typed values of row i.
func (r *ResultList) Values(i int) []catalog.Value {
	return r.rows[i]
}

// AddRow appends a row.
func (r *ResultList) AddRow(values ...catalog.Value) {
	r.rows = append(r.rows, append([]catalog.Value(nil), values...))
}

func (r *ResultList) commit(columns []string, rows [][]catalog.Value) {
	r.SetColumns(columns)
	r.rows = append(r.rows, rows...)
}

// DebugPrint writes the result as an ASCII table.
func (r *ResultList) DebugPrint(w io.Writer) error {
	widths := make([]int, len(r.columns))
	for i, c := range r.columns {
		widths[i] = len(c)
	}
	rows := make([][]string, len(r.rows))
	for i := range r.rows {
		rows[i] = r.Row(i)
		for j, s := range rows[i] {
			if j < len(widths) && len(s) > widths[j] {
				widths[j] = len(s)
			}
		}
	}

	var b strings.Builder
	sep := func() {
		b.WriteByte('+')
		for _, wd := range widths {
			b.WriteString(strings.Repeat("-", wd+2))
			b.WriteByte('+')
		}
		b.WriteByte('\n')
	}
	line := func(cells []string) {
		b.WriteByte('|')
		for j, wd := range widths {
			cell := ""
			if j < len(cells) {
				cell = cells[j]
			}
			fmt.Fprintf(&b, " %-*s |", wd, cell)
		}
		b.WriteByte('\n')
	}

	sep()
	line(r.columns)
	sep()
	for _, row := range rows {
		line(row)
	}
	sep()
	fmt.Fprintf(&b, "%d row(s)\n", len(rows))

	_, err := io.WriteString(w, b.String())
	return err
}
