package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

const parquetReadBatch = 256

// NewParquetTable loads a parquet file into a MemTable. Leaf columns keep the
// repetition and definition levels stored in the file, so nested and
// repeated fields are scanned natively.
func NewParquetTable(name, path, description string) (*MemTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	t, err := readParquet(name, f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.SetDescription(description)
	return t, nil
}

type parquetLeaf struct {
	column *memColumn
	kind   parquet.Kind
	scale  int64 // multiplier to microseconds for timestamps, 0 otherwise
	div    int64
}

func readParquet(name string, r io.ReaderAt, size int64) (*MemTable, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, err
	}
	reader := parquet.NewReader(pf)
	defer reader.Close()

	schema := reader.Schema()
	t := &MemTable{name: name}
	leaves := make(map[int]*parquetLeaf)
	for _, path := range schema.Columns() {
		leaf, ok := schema.Lookup(path...)
		if !ok {
			continue
		}
		col := &memColumn{info: catalog.ColumnInfo{
			Name:               strings.Join(path, "."),
			Nullable:           leaf.MaxDefinitionLevel > 0,
			Repeated:           leaf.MaxRepetitionLevel > 0,
			MaxRepetitionLevel: leaf.MaxRepetitionLevel,
			MaxDefinitionLevel: leaf.MaxDefinitionLevel,
		}}
		pl := &parquetLeaf{column: col, kind: leaf.Node.Type().Kind()}
		col.info.Type = parquetType(pl, leaf.Node.Type().LogicalType())
		leaves[leaf.ColumnIndex] = pl
		t.columns = append(t.columns, col)
	}

	rows := make([]parquet.Row, parquetReadBatch)
	for {
		n, err := reader.ReadRows(rows)
		for _, row := range rows[:n] {
			for _, v := range row {
				pl, ok := leaves[v.Column()]
				if !ok {
					continue
				}
				d := v.DefinitionLevel()
				val := catalog.Null()
				if d >= pl.column.info.MaxDefinitionLevel && !v.IsNull() {
					val = pl.convert(v)
				}
				pl.column.cells = append(pl.column.cells, cell{r: v.RepetitionLevel(), d: d, v: val})
			}
			t.numRecords++
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parquetType(pl *parquetLeaf, lt *format.LogicalType) catalog.DataType {
	if lt != nil && lt.Timestamp != nil {
		pl.scale, pl.div = 1, 1
		switch {
		case lt.Timestamp.Unit.Millis != nil:
			pl.scale = 1000
		case lt.Timestamp.Unit.Nanos != nil:
			pl.div = 1000
		}
		return catalog.TypeTimestamp
	}
	switch pl.kind {
	case parquet.Boolean:
		return catalog.TypeBool
	case parquet.Int32, parquet.Int64, parquet.Int96:
		return catalog.TypeInteger
	case parquet.Float, parquet.Double:
		return catalog.TypeFloat
	default:
		return catalog.TypeString
	}
}

func (pl *parquetLeaf) convert(v parquet.Value) catalog.Value {
	if pl.scale != 0 {
		return catalog.NewTimestamp(v.Int64() * pl.scale / pl.div)
	}
	switch pl.kind {
	case parquet.Boolean:
		return catalog.NewBool(v.Boolean())
	case parquet.Int32:
		return catalog.NewInteger(int64(v.Int32()))
	case parquet.Int64:
		return catalog.NewInteger(v.Int64())
	case parquet.Float:
		return catalog.NewFloat(float64(v.Float()))
	case parquet.Double:
		return catalog.NewFloat(v.Double())
	case parquet.Int96:
		return catalog.NewInteger(v.Int96().Int64())
	default:
		return catalog.NewString(string(v.ByteArray()))
	}
}
