package config

import (
	"fmt"
	"strings"

	"github.com/eventql/eventql-sub000/internal/logger"
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

// LoadTables reads every configured table and registers it in repo.
func LoadTables(repo *storage.TableRepository, tables []TableConfig, log *logger.Logger) error {
	if log == nil {
		log = logger.NewNop()
	}
	for _, tc := range tables {
		tbl, err := openTable(tc)
		if err != nil {
			return fmt.Errorf("failed to load table %s: %w", tc.Name, err)
		}
		repo.AddTable(tbl)
		log.Info("table registered",
			"table", tc.Name,
			"format", tc.Format,
			"records", tbl.NumRecords())
	}
	return nil
}

func openTable(tc TableConfig) (*storage.MemTable, error) {
	switch strings.ToLower(tc.Format) {
	case "csv":
		opts := storage.CSVOptions{Description: tc.Description}
		if tc.Delimiter != "" {
			opts.Delimiter = []rune(tc.Delimiter)[0]
		}
		if len(tc.Columns) > 0 {
			opts.Columns = make(map[string]catalog.DataType, len(tc.Columns))
			for _, c := range tc.Columns {
				typ, err := catalog.ParseDataType(c.Type)
				if err != nil {
					return nil, fmt.Errorf("column %s: %w", c.Name, err)
				}
				opts.Columns[c.Name] = typ
			}
		}
		return storage.NewCSVTable(tc.Name, tc.Path, opts)

	case "parquet":
		return storage.NewParquetTable(tc.Name, tc.Path, tc.Description)

	case "yaml", "json":
		fields, err := buildFields(tc.Columns)
		if err != nil {
			return nil, err
		}
		return storage.NewDocumentTable(tc.Name, tc.Path, storage.DocumentOptions{
			Fields:      fields,
			Description: tc.Description,
		})
	}
	return nil, fmt.Errorf("unsupported format %q", tc.Format)
}

func buildFields(cols []ColumnConfig) ([]storage.Field, error) {
	var fields []storage.Field
	for _, c := range cols {
		f := storage.Field{
			Name:        c.Name,
			Repeated:    c.Repeated,
			Required:    c.Required,
			Description: c.Description,
		}
		if len(c.Fields) > 0 {
			children, err := buildFields(c.Fields)
			if err != nil {
				return nil, err
			}
			f.Fields = children
		} else {
			typ, err := catalog.ParseDataType(c.Type)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			f.Type = typ
		}
		fields = append(fields, f)
	}
	return fields, nil
}
