package storage

import (
	"context"
	"testing"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/qtree"
)

// documentSchema is the nested Document schema from the Dremel paper.
func documentSchema() []Field {
	return []Field{
		{Name: "DocId", Type: catalog.TypeInteger, Required: true},
		{Name: "Links", Fields: []Field{
			{Name: "Backward", Type: catalog.TypeInteger, Repeated: true},
			{Name: "Forward", Type: catalog.TypeInteger, Repeated: true},
		}},
		{Name: "Name", Repeated: true, Fields: []Field{
			{Name: "Language", Repeated: true, Fields: []Field{
				{Name: "Code", Type: catalog.TypeString, Required: true},
				{Name: "Country", Type: catalog.TypeString},
			}},
			{Name: "Url", Type: catalog.TypeString},
		}},
	}
}

func documentTable(t *testing.T) *MemTable {
	t.Helper()
	tbl := NewMemTable("docs", documentSchema())
	records := []map[string]any{
		{
			"DocId": 10,
			"Links": map[string]any{"Forward": []any{20, 40, 60}},
			"Name": []any{
				map[string]any{
					"Language": []any{
						map[string]any{"Code": "en-us", "Country": "us"},
						map[string]any{"Code": "en"},
					},
					"Url": "http://A",
				},
				map[string]any{"Url": "http://B"},
				map[string]any{
					"Language": []any{map[string]any{"Code": "en-gb", "Country": "gb"}},
				},
			},
		},
		{
			"DocId": 20,
			"Links": map[string]any{"Backward": []any{10, 30}, "Forward": []any{80}},
			"Name":  []any{map[string]any{"Url": "http://C"}},
		},
	}
	for _, r := range records {
		if err := tbl.AddRecord(r); err != nil {
			t.Fatalf("AddRecord: %v", err)
		}
	}
	return tbl
}

type triple struct {
	r, d int
	v    string
}

func readAll(t *testing.T, scan TableScan, column string) []triple {
	t.Helper()
	cur, ok := scan.Cursor(column)
	if !ok {
		t.Fatalf("no cursor for %s", column)
	}
	var out []triple
	for i := 0; i < 32; i++ {
		r, d, v, err := cur.Next()
		if err != nil {
			break
		}
		out = append(out, triple{r, d, v.String()})
	}
	return out
}

func TestMemTableShredding(t *testing.T) {
	tbl := documentTable(t)
	scan, err := tbl.Open(context.Background(), ScanRequest{})
	if err != nil {
		t.Fatal(err)
	}
	defer scan.Close()

	if scan.NumRecords() != 2 {
		t.Fatalf("NumRecords = %d", scan.NumRecords())
	}

	tests := []struct {
		column string
		want   []triple
	}{
		{"DocId", []triple{{0, 0, "10"}, {0, 0, "20"}}},
		{"Links.Backward", []triple{{0, 1, "NULL"}, {0, 2, "10"}, {1, 2, "30"}}},
		{"Links.Forward", []triple{{0, 2, "20"}, {1, 2, "40"}, {1, 2, "60"}, {0, 2, "80"}}},
		{"Name.Url", []triple{{0, 2, "http://A"}, {1, 2, "http://B"}, {1, 1, "NULL"}, {0, 2, "http://C"}}},
		{"Name.Language.Code", []triple{
			{0, 2, "en-us"}, {2, 2, "en"}, {1, 1, "NULL"}, {1, 2, "en-gb"}, {0, 1, "NULL"},
		}},
		{"Name.Language.Country", []triple{
			{0, 3, "us"}, {2, 2, "NULL"}, {1, 1, "NULL"}, {1, 3, "gb"}, {0, 1, "NULL"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got := readAll(t, scan, tt.column)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("triple %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMemTableColumnLevels(t *testing.T) {
	info := documentTable(t).Info()
	tests := []struct {
		column string
		maxR   int
		maxD   int
	}{
		{"DocId", 0, 0},
		{"Links.Forward", 1, 2},
		{"Name.Url", 1, 2},
		{"Name.Language.Code", 2, 2},
		{"Name.Language.Country", 2, 3},
	}
	for _, tt := range tests {
		col, _ := info.ColumnByName(tt.column)
		if col == nil {
			t.Fatalf("missing column %s", tt.column)
		}
		if col.MaxRepetitionLevel != tt.maxR || col.MaxDefinitionLevel != tt.maxD {
			t.Errorf("%s levels = (%d, %d), want (%d, %d)", tt.column,
				col.MaxRepetitionLevel, col.MaxDefinitionLevel, tt.maxR, tt.maxD)
		}
	}
}

func TestMemTableRejectsBadRecord(t *testing.T) {
	tbl := documentTable(t)
	if err := tbl.AddRecord(map[string]any{"Links": map[string]any{}}); err == nil {
		t.Fatal("expected error for missing required DocId")
	}
	if tbl.NumRecords() != 2 {
		t.Errorf("NumRecords = %d after failed insert", tbl.NumRecords())
	}
	scan, _ := tbl.Open(context.Background(), ScanRequest{})
	if got := readAll(t, scan, "Links.Forward"); len(got) != 4 {
		t.Errorf("failed insert left %d cells", len(got))
	}
}

func TestMemTableUnknownColumn(t *testing.T) {
	_, err := documentTable(t).Open(context.Background(), ScanRequest{Columns: []string{"nope"}})
	if catalog.KindOf(err) != catalog.KindColumnNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestMemTableRecordFilter(t *testing.T) {
	tbl := newFlatMemTable("t", []catalog.ColumnInfo{
		{Name: "time", Type: catalog.TypeInteger},
		{Name: "name", Type: catalog.TypeString},
	})
	for i := int64(0); i < 5; i++ {
		if err := tbl.AddRow([]catalog.Value{catalog.NewInteger(i), catalog.NewString("x")}); err != nil {
			t.Fatal(err)
		}
	}
	scan, err := tbl.Open(context.Background(), ScanRequest{
		Columns: []string{"time"},
		Constraints: []qtree.ScanConstraint{
			{Column: "time", Kind: qtree.GreaterThanOrEqualTo, Value: catalog.NewInteger(3)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	filter := scan.RecordFilter()
	if filter == nil {
		t.Fatal("expected a record filter")
	}
	var matched []uint64
	for i := uint64(0); i < scan.NumRecords(); i++ {
		if filter(i) {
			matched = append(matched, i)
		}
	}
	if len(matched) != 2 || matched[0] != 3 || matched[1] != 4 {
		t.Errorf("matched = %v", matched)
	}
}

func TestTableRepository(t *testing.T) {
	repo := NewTableRepository()
	first := NewMemTable("my.table", []Field{{Name: "a", Type: catalog.TypeInteger}})
	first.SetDescription("first")
	second := NewMemTable("my.table", []Field{{Name: "b", Type: catalog.TypeInteger}})
	repo.AddTable(first)
	repo.AddTable(second)

	info, ok := repo.Describe("`my.table`")
	if !ok || info.Description != "first" {
		t.Fatalf("Describe = %+v, %v", info, ok)
	}
	if tables := repo.ListTables(); len(tables) != 1 {
		t.Errorf("ListTables = %d entries", len(tables))
	}
	if _, err := repo.Open(context.Background(), "missing", ScanRequest{}); catalog.KindOf(err) != catalog.KindTableNotFound {
		t.Errorf("Open(missing) err = %v", err)
	} else if err.Error() != "table not found: 'missing'" {
		t.Errorf("message = %q", err.Error())
	}
}
