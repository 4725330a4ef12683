package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

// CSVOptions controls how a CSV file is read.
type CSVOptions struct {
	// Delimiter defaults to ','.
	Delimiter rune
	// Columns declares column types by name. Undeclared columns are
	// inferred from the data.
	Columns map[string]catalog.DataType
	// Description is shown by SHOW TABLES.
	Description string
}

// NewCSVTable loads a flat CSV file with a header row into a MemTable.
// Files ending in .gz or .zst are decompressed. Empty cells are NULL.
func NewCSVTable(name, path string, opts CSVOptions) (*MemTable, error) {
	rc, _, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t, err := ReadCSVTable(name, rc, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadCSVTable reads CSV data with a header row into a MemTable.
func ReadCSVTable(name string, r io.Reader, opts CSVOptions) (*MemTable, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("missing CSV header")
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	columns := make([]catalog.ColumnInfo, len(header))
	for i, h := range header {
		typ, declared := opts.Columns[h]
		if !declared {
			typ = inferColumnType(records, i)
		}
		columns[i] = catalog.ColumnInfo{Name: h, Type: typ}
	}

	t := newFlatMemTable(name, columns)
	t.SetDescription(opts.Description)
	row := make([]catalog.Value, len(columns))
	for n, rec := range records {
		if len(rec) != len(columns) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", n+2, len(columns), len(rec))
		}
		for i, cellText := range rec {
			v, err := toValue(cellText, columns[i].Type)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", n+2, columns[i].Name, err)
			}
			row[i] = v
		}
		if err := t.AddRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// inferColumnType picks the narrowest type every non-empty cell parses as.
func inferColumnType(records [][]string, col int) catalog.DataType {
	typ := catalog.TypeNull
	for _, rec := range records {
		if col >= len(rec) {
			continue
		}
		typ = widenType(typ, catalog.ParseValue(strings.TrimSpace(rec[col])).Type)
	}
	if typ == catalog.TypeNull {
		return catalog.TypeString
	}
	return typ
}

// widenType returns a type that can hold values of both a and b.
func widenType(a, b catalog.DataType) catalog.DataType {
	switch {
	case a == catalog.TypeNull:
		return b
	case b == catalog.TypeNull || a == b:
		return a
	case (a == catalog.TypeInteger && b == catalog.TypeFloat) || (a == catalog.TypeFloat && b == catalog.TypeInteger):
		return catalog.TypeFloat
	default:
		return catalog.TypeString
	}
}
