package engine

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/eventql/eventql-sub000/internal/logger"
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/function"
	"github.com/eventql/eventql-sub000/pkg/qtree"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

type testEnv struct{}

func (testEnv) Now() time.Time { return time.Date(2016, 1, 4, 12, 0, 0, 0, time.UTC) }

var symbols = function.NewDefaultSymbolTable()

func documentTable(t *testing.T) *storage.MemTable {
	t.Helper()
	tbl := storage.NewMemTable("docs", []storage.Field{
		{Name: "DocId", Type: catalog.TypeInteger, Required: true},
		{Name: "Links", Fields: []storage.Field{
			{Name: "Backward", Type: catalog.TypeInteger, Repeated: true},
			{Name: "Forward", Type: catalog.TypeInteger, Repeated: true},
		}},
		{Name: "Name", Repeated: true, Fields: []storage.Field{
			{Name: "Language", Repeated: true, Fields: []storage.Field{
				{Name: "Code", Type: catalog.TypeString, Required: true},
				{Name: "Country", Type: catalog.TypeString},
			}},
			{Name: "Url", Type: catalog.TypeString},
		}},
	})
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

func flatTable(t *testing.T, name string, fields []storage.Field, rows [][]catalog.Value) *storage.MemTable {
	t.Helper()
	tbl := storage.NewMemTable(name, fields)
	for _, r := range rows {
		if err := tbl.AddRow(r); err != nil {
			t.Fatalf("AddRow: %v", err)
		}
	}
	return tbl
}

func citiesTable(t *testing.T) *storage.MemTable {
	return flatTable(t, "cities", []storage.Field{
		{Name: "id", Type: catalog.TypeInteger},
		{Name: "city", Type: catalog.TypeString},
		{Name: "population", Type: catalog.TypeInteger},
	}, [][]catalog.Value{
		{catalog.NewInteger(1), catalog.NewString("berlin"), catalog.NewInteger(3500)},
		{catalog.NewInteger(2), catalog.NewString("paris"), catalog.NewInteger(2100)},
		{catalog.NewInteger(3), catalog.NewString("berlin"), catalog.NewInteger(100)},
		{catalog.NewInteger(4), catalog.NewString("tokyo"), catalog.NewInteger(9000)},
	})
}

func newTestExecutor(tables ...storage.Table) *Executor {
	repo := storage.NewTableRepository()
	for _, tbl := range tables {
		repo.AddTable(tbl)
	}
	return NewExecutor(context.Background(), testEnv{}, repo, logger.NewNop())
}

func newScan(tbl *storage.MemTable, alias string) *qtree.SequentialScanNode {
	info := tbl.Info()
	return &qtree.SequentialScanNode{TableName: info.Name, TableAlias: alias, Table: info}
}

func scanCol(t *testing.T, n *qtree.SequentialScanNode, name string) *qtree.ColumnReference {
	t.Helper()
	idx := n.InputColumnIndex(name)
	if idx < 0 {
		t.Fatalf("unknown column %s", name)
	}
	return qtree.NewResolvedColumnReference(name, idx)
}

func mustCall(t *testing.T, name string, args ...qtree.ValueExpression) *qtree.CallExpression {
	t.Helper()
	c, err := qtree.NewCall(symbols, name, args...)
	if err != nil {
		t.Fatalf("NewCall(%s): %v", name, err)
	}
	return c
}

func lit(v catalog.Value) *qtree.LiteralExpression { return qtree.NewLiteral(v) }

func sel(expr qtree.ValueExpression, alias string) *qtree.SelectListNode {
	return &qtree.SelectListNode{Expression: expr, Alias: alias}
}

func run(t *testing.T, e *Executor, n qtree.Node) [][]string {
	t.Helper()
	it, err := e.Execute(n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rows, err := Collect(it)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = make([]string, len(r))
		for j, v := range r {
			out[i][j] = v.String()
		}
	}
	return out
}

func expectRows(t *testing.T, got, want [][]string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestScanRepeatedExpansion(t *testing.T) {
	tbl := documentTable(t)
	scan := newScan(tbl, "")
	scan.SelectList = []*qtree.SelectListNode{
		sel(scanCol(t, scan, "DocId"), "DocId"),
		sel(scanCol(t, scan, "Name.Url"), "Name.Url"),
	}

	got := run(t, newTestExecutor(tbl), scan)
	expectRows(t, got, [][]string{
		{"10", "http://A"},
		{"10", "http://B"},
		{"10", "NULL"},
		{"20", "http://C"},
	})
}

func TestScanWithinRecordFlat(t *testing.T) {
	tbl := documentTable(t)
	scan := newScan(tbl, "")
	code := scanCol(t, scan, "Name.Language.Code")
	cnt, err := qtree.NewWithinRecordCall(symbols, "count", code)
	if err != nil {
		t.Fatal(err)
	}
	scan.SelectList = []*qtree.SelectListNode{
		sel(scanCol(t, scan, "DocId"), "DocId"),
		sel(cnt, "cnt"),
	}
	scan.Strategy = qtree.AggregateWithinRecordFlat

	got := run(t, newTestExecutor(tbl), scan)
	expectRows(t, got, [][]string{{"10", "3"}, {"20", "NULL"}})
}

func TestScanWithinRecordFlatWhere(t *testing.T) {
	tbl := documentTable(t)
	scan := newScan(tbl, "")
	fwd := scanCol(t, scan, "Links.Forward")
	cnt, err := qtree.NewWithinRecordCall(symbols, "count", fwd)
	if err != nil {
		t.Fatal(err)
	}
	scan.SelectList = []*qtree.SelectListNode{
		sel(scanCol(t, scan, "DocId"), "DocId"),
		sel(cnt, "cnt"),
	}
	scan.Where = mustCall(t, "gt", fwd, lit(catalog.NewInteger(30)))
	scan.Strategy = qtree.AggregateWithinRecordFlat

	got := run(t, newTestExecutor(tbl), scan)
	expectRows(t, got, [][]string{{"10", "2"}, {"20", "1"}})
}

func TestScanAggregateAll(t *testing.T) {
	tbl := documentTable(t)
	scan := newScan(tbl, "")
	scan.SelectList = []*qtree.SelectListNode{
		sel(mustCall(t, "count", scanCol(t, scan, "Links.Forward")), "cnt"),
		sel(mustCall(t, "sum", scanCol(t, scan, "DocId")), "total"),
	}
	scan.Strategy = qtree.AggregateAll

	got := run(t, newTestExecutor(tbl), scan)
	expectRows(t, got, [][]string{{"4", "30"}})
}

func TestScanAggregateAllEmptyTable(t *testing.T) {
	tbl := flatTable(t, "empty", []storage.Field{{Name: "x", Type: catalog.TypeInteger}}, nil)
	scan := newScan(tbl, "")
	scan.SelectList = []*qtree.SelectListNode{
		sel(mustCall(t, "count", scanCol(t, scan, "x")), "cnt"),
		sel(mustCall(t, "sum", scanCol(t, scan, "x")), "total"),
	}
	scan.Strategy = qtree.AggregateAll

	got := run(t, newTestExecutor(tbl), scan)
	expectRows(t, got, [][]string{{"0", "NULL"}})
}

func TestScanWhere(t *testing.T) {
	tbl := citiesTable(t)
	scan := newScan(tbl, "")
	scan.SelectList = []*qtree.SelectListNode{sel(scanCol(t, scan, "id"), "id")}
	scan.Where = mustCall(t, "eq", scanCol(t, scan, "city"), lit(catalog.NewString("berlin")))

	got := run(t, newTestExecutor(tbl), scan)
	expectRows(t, got, [][]string{{"1"}, {"3"}})
}

func TestScanConstraintsFilterRecords(t *testing.T) {
	tbl := citiesTable(t)
	scan := newScan(tbl, "")
	scan.SelectList = []*qtree.SelectListNode{sel(scanCol(t, scan, "id"), "id")}
	scan.Constraints = []qtree.ScanConstraint{
		{Column: "population", Kind: qtree.GreaterThan, Value: catalog.NewInteger(2000)},
	}

	got := run(t, newTestExecutor(tbl), scan)
	expectRows(t, got, [][]string{{"1"}, {"2"}, {"4"}})
}

func TestScanWithoutColumns(t *testing.T) {
	tbl := citiesTable(t)

	t.Run("per record", func(t *testing.T) {
		scan := newScan(tbl, "")
		scan.SelectList = []*qtree.SelectListNode{sel(lit(catalog.NewInteger(1)), "one")}
		got := run(t, newTestExecutor(tbl), scan)
		expectRows(t, got, [][]string{{"1"}, {"1"}, {"1"}, {"1"}})
	})

	t.Run("aggregate", func(t *testing.T) {
		scan := newScan(tbl, "")
		scan.SelectList = []*qtree.SelectListNode{sel(mustCall(t, "count", lit(catalog.NewInteger(1))), "cnt")}
		scan.Strategy = qtree.AggregateAll
		got := run(t, newTestExecutor(tbl), scan)
		expectRows(t, got, [][]string{{"4"}})
	})
}

func TestScanUnknownTable(t *testing.T) {
	scan := &qtree.SequentialScanNode{TableName: "nope"}
	_, err := newTestExecutor().Execute(scan)
	if !errors.Is(err, catalog.ErrTableNotFound) {
		t.Fatalf("expected table not found, got %v", err)
	}
}

func TestScanCancelled(t *testing.T) {
	tbl := flatTable(t, "big", []storage.Field{{Name: "x", Type: catalog.TypeInteger}}, nil)
	for i := 0; i < 3*cancelCheckInterval; i++ {
		if err := tbl.AddRow([]catalog.Value{catalog.NewInteger(int64(i))}); err != nil {
			t.Fatal(err)
		}
	}
	scan := newScan(tbl, "")
	scan.SelectList = []*qtree.SelectListNode{sel(scanCol(t, scan, "x"), "x")}

	repo := storage.NewTableRepository()
	repo.AddTable(tbl)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	it, err := NewExecutor(ctx, testEnv{}, repo, nil).Execute(scan)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Collect(it); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGroupBy(t *testing.T) {
	tbl := citiesTable(t)
	scan := newScan(tbl, "")
	scan.SelectList = []*qtree.SelectListNode{
		sel(scanCol(t, scan, "city"), "city"),
		sel(scanCol(t, scan, "population"), "population"),
	}
	group := &qtree.GroupByNode{
		Input:      scan,
		GroupExprs: []qtree.ValueExpression{qtree.NewResolvedColumnReference("city", 0)},
		SelectList: []*qtree.SelectListNode{
			sel(qtree.NewResolvedColumnReference("city", 0), "city"),
			sel(mustCall(t, "count", qtree.NewResolvedColumnReference("population", 1)), "cnt"),
			sel(mustCall(t, "sum", qtree.NewResolvedColumnReference("population", 1)), "total"),
		},
	}

	got := run(t, newTestExecutor(tbl), group)
	expectRows(t, got, [][]string{
		{"berlin", "2", "3600"},
		{"paris", "1", "2100"},
		{"tokyo", "1", "9000"},
	})
}

func TestGroupKeysDoNotCollide(t *testing.T) {
	str := catalog.NewString
	tests := []struct {
		name string
		a, b []catalog.Value
	}{
		{"separator in value", []catalog.Value{str("p\x003:q"), str("r")}, []catalog.Value{str("p"), str("q\x003:r")}},
		{"shifted boundary", []catalog.Value{str("ab"), str("c")}, []catalog.Value{str("a"), str("bc")}},
		{"length digits in value", []catalog.Value{str("1:x"), str("")}, []catalog.Value{str(""), str("1:x")}},
		{"type differs", []catalog.Value{catalog.NewInteger(1)}, []catalog.Value{str("1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ka, kb strings.Builder
			for _, v := range tt.a {
				writeGroupKey(&ka, v)
			}
			for _, v := range tt.b {
				writeGroupKey(&kb, v)
			}
			if ka.String() == kb.String() {
				t.Errorf("%v and %v share key %q", tt.a, tt.b, ka.String())
			}
		})
	}
}

func TestGroupByStringsWithNUL(t *testing.T) {
	tbl := flatTable(t, "pairs", []storage.Field{
		{Name: "a", Type: catalog.TypeString},
		{Name: "b", Type: catalog.TypeString},
	}, [][]catalog.Value{
		{catalog.NewString("p\x003:q"), catalog.NewString("r")},
		{catalog.NewString("p"), catalog.NewString("q\x003:r")},
	})
	scan := newScan(tbl, "")
	scan.SelectList = []*qtree.SelectListNode{
		sel(scanCol(t, scan, "a"), "a"),
		sel(scanCol(t, scan, "b"), "b"),
	}
	group := &qtree.GroupByNode{
		Input: scan,
		GroupExprs: []qtree.ValueExpression{
			qtree.NewResolvedColumnReference("a", 0),
			qtree.NewResolvedColumnReference("b", 1),
		},
		SelectList: []*qtree.SelectListNode{
			sel(qtree.NewResolvedColumnReference("a", 0), "a"),
			sel(mustCall(t, "count", qtree.NewResolvedColumnReference("b", 1)), "cnt"),
		},
	}

	got := run(t, newTestExecutor(tbl), group)
	expectRows(t, got, [][]string{{"p\x003:q", "1"}, {"p", "1"}})
}

func TestGroupByWithoutKeysOnEmptyInput(t *testing.T) {
	tbl := flatTable(t, "empty", []storage.Field{{Name: "x", Type: catalog.TypeInteger}}, nil)
	scan := newScan(tbl, "")
	scan.SelectList = []*qtree.SelectListNode{sel(scanCol(t, scan, "x"), "x")}
	group := &qtree.GroupByNode{
		Input: scan,
		SelectList: []*qtree.SelectListNode{
			sel(mustCall(t, "count", qtree.NewResolvedColumnReference("x", 0)), "cnt"),
		},
	}

	got := run(t, newTestExecutor(tbl), group)
	expectRows(t, got, [][]string{{"0"}})
}

func TestWithinRecordCountSumsToGlobalCount(t *testing.T) {
	tbl := documentTable(t)

	global := newScan(tbl, "")
	global.SelectList = []*qtree.SelectListNode{
		sel(mustCall(t, "count", scanCol(t, global, "Name.Language.Code")), "cnt"),
	}
	global.Strategy = qtree.AggregateAll

	inner := newScan(tbl, "")
	wr, err := qtree.NewWithinRecordCall(symbols, "count", scanCol(t, inner, "Name.Language.Code"))
	if err != nil {
		t.Fatal(err)
	}
	inner.SelectList = []*qtree.SelectListNode{sel(wr, "c")}
	inner.Strategy = qtree.AggregateWithinRecordFlat
	outer := &qtree.GroupByNode{
		Input: inner,
		SelectList: []*qtree.SelectListNode{
			sel(mustCall(t, "sum", qtree.NewResolvedColumnReference("c", 0)), "cnt"),
		},
	}

	e := newTestExecutor(tbl)
	expectRows(t, run(t, e, outer), run(t, e, global))
	expectRows(t, run(t, e, global), [][]string{{"3"}})
}

func joinTables(t *testing.T) (*storage.MemTable, *storage.MemTable) {
	users := flatTable(t, "users", []storage.Field{
		{Name: "id", Type: catalog.TypeInteger},
		{Name: "name", Type: catalog.TypeString},
	}, [][]catalog.Value{
		{catalog.NewInteger(1), catalog.NewString("alice")},
		{catalog.NewInteger(2), catalog.NewString("bob")},
		{catalog.NewInteger(3), catalog.NewString("carol")},
	})
	orders := flatTable(t, "orders", []storage.Field{
		{Name: "user_id", Type: catalog.TypeInteger},
		{Name: "amount", Type: catalog.TypeInteger},
	}, [][]catalog.Value{
		{catalog.NewInteger(1), catalog.NewInteger(10)},
		{catalog.NewInteger(3), catalog.NewInteger(30)},
		{catalog.NewInteger(1), catalog.NewInteger(15)},
	})
	return users, orders
}

func newJoin(t *testing.T, typ qtree.JoinType, users, orders *storage.MemTable, on bool) *qtree.JoinNode {
	t.Helper()
	j := &qtree.JoinNode{
		Type:        typ,
		Base:        newScan(users, "u"),
		BaseAlias:   "u",
		Joined:      newScan(orders, "o"),
		JoinedAlias: "o",
	}
	ref := func(name string) *qtree.ColumnReference {
		idx := j.InputColumnIndex(name)
		if idx < 0 {
			t.Fatalf("unknown join column %s", name)
		}
		return qtree.NewResolvedColumnReference(name, idx)
	}
	if on {
		j.Condition = mustCall(t, "eq", ref("u.id"), ref("o.user_id"))
	}
	j.SelectList = []*qtree.SelectListNode{
		sel(ref("u.name"), "name"),
		sel(ref("o.amount"), "amount"),
	}
	return j
}

func TestJoin(t *testing.T) {
	users, orders := joinTables(t)
	e := newTestExecutor(users, orders)

	tests := []struct {
		name string
		typ  qtree.JoinType
		on   bool
		want [][]string
	}{
		{
			name: "inner",
			typ:  qtree.JoinInner,
			on:   true,
			want: [][]string{{"alice", "10"}, {"alice", "15"}, {"carol", "30"}},
		},
		{
			name: "outer",
			typ:  qtree.JoinOuter,
			on:   true,
			want: [][]string{{"alice", "10"}, {"alice", "15"}, {"bob", "NULL"}, {"carol", "30"}},
		},
		{
			name: "cartesian",
			typ:  qtree.JoinCartesian,
			want: [][]string{
				{"alice", "10"}, {"alice", "30"}, {"alice", "15"},
				{"bob", "10"}, {"bob", "30"}, {"bob", "15"},
				{"carol", "10"}, {"carol", "30"}, {"carol", "15"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(t, e, newJoin(t, tt.typ, users, orders, tt.on))
			expectRows(t, got, tt.want)
		})
	}
}

func TestJoinWhereMatchesOn(t *testing.T) {
	users, orders := joinTables(t)
	e := newTestExecutor(users, orders)

	withOn := run(t, e, newJoin(t, qtree.JoinInner, users, orders, true))

	cross := newJoin(t, qtree.JoinCartesian, users, orders, false)
	cross.Where = mustCall(t, "eq",
		qtree.NewResolvedColumnReference("u.id", cross.InputColumnIndex("u.id")),
		qtree.NewResolvedColumnReference("o.user_id", cross.InputColumnIndex("o.user_id")))
	withWhere := run(t, e, cross)

	expectRows(t, withWhere, withOn)
}

func TestOuterJoinWithEmptyJoinedSide(t *testing.T) {
	users, _ := joinTables(t)
	empty := flatTable(t, "orders", []storage.Field{
		{Name: "user_id", Type: catalog.TypeInteger},
		{Name: "amount", Type: catalog.TypeInteger},
	}, nil)

	got := run(t, newTestExecutor(users, empty), newJoin(t, qtree.JoinOuter, users, empty, true))
	expectRows(t, got, [][]string{{"alice", "NULL"}, {"bob", "NULL"}, {"carol", "NULL"}})
}

func TestOrderByAndLimit(t *testing.T) {
	tbl := citiesTable(t)
	newInput := func() *qtree.SequentialScanNode {
		scan := newScan(tbl, "")
		scan.SelectList = []*qtree.SelectListNode{
			sel(scanCol(t, scan, "city"), "city"),
			sel(scanCol(t, scan, "population"), "population"),
		}
		return scan
	}
	order := func() *qtree.OrderByNode {
		return &qtree.OrderByNode{
			Input: newInput(),
			Specs: []qtree.SortSpec{
				{Expr: qtree.NewResolvedColumnReference("population", 1), Descending: true},
			},
			NumVisible: 1,
		}
	}
	e := newTestExecutor(tbl)

	tests := []struct {
		name string
		node qtree.Node
		want [][]string
	}{
		{"order desc", order(), [][]string{{"tokyo"}, {"berlin"}, {"paris"}, {"berlin"}}},
		{"limit", &qtree.LimitNode{Input: order(), Limit: 2}, [][]string{{"tokyo"}, {"berlin"}}},
		{"limit offset", &qtree.LimitNode{Input: order(), Limit: 2, Offset: 1}, [][]string{{"berlin"}, {"paris"}}},
		{"offset only", &qtree.LimitNode{Input: order(), Limit: -1, Offset: 3}, [][]string{{"berlin"}}},
		{"offset past end", &qtree.LimitNode{Input: order(), Limit: 5, Offset: 10}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectRows(t, run(t, e, tt.node), tt.want)
		})
	}
}

func TestOrderByIsStable(t *testing.T) {
	tbl := citiesTable(t)
	scan := newScan(tbl, "")
	scan.SelectList = []*qtree.SelectListNode{
		sel(scanCol(t, scan, "id"), "id"),
		sel(scanCol(t, scan, "city"), "city"),
	}
	order := &qtree.OrderByNode{
		Input:      scan,
		Specs:      []qtree.SortSpec{{Expr: qtree.NewResolvedColumnReference("city", 1)}},
		NumVisible: 2,
	}

	got := run(t, newTestExecutor(tbl), order)
	expectRows(t, got, [][]string{{"1", "berlin"}, {"3", "berlin"}, {"2", "paris"}, {"4", "tokyo"}})
}

func TestSubquery(t *testing.T) {
	tbl := citiesTable(t)
	inner := newScan(tbl, "")
	inner.SelectList = []*qtree.SelectListNode{
		sel(scanCol(t, inner, "city"), "city"),
		sel(scanCol(t, inner, "population"), "population"),
	}
	sub := &qtree.SubqueryNode{Subquery: inner, Alias: "t"}
	pop := qtree.NewResolvedColumnReference("t.population", sub.InputColumnIndex("t.population"))
	sub.SelectList = []*qtree.SelectListNode{
		sel(qtree.NewResolvedColumnReference("city", sub.InputColumnIndex("city")), "city"),
	}
	sub.Where = mustCall(t, "lt", pop, lit(catalog.NewInteger(3000)))

	got := run(t, newTestExecutor(tbl), sub)
	expectRows(t, got, [][]string{{"paris"}, {"berlin"}})
}

func TestUnion(t *testing.T) {
	row := func(v int64) qtree.Node {
		return &qtree.SelectExpressionNode{SelectList: []*qtree.SelectListNode{sel(lit(catalog.NewInteger(v)), "x")}}
	}
	e := newTestExecutor()

	got := run(t, e, &qtree.UnionNode{Inputs: []qtree.Node{row(1), row(2), row(3)}})
	expectRows(t, got, [][]string{{"1"}, {"2"}, {"3"}})

	wide := &qtree.SelectExpressionNode{SelectList: []*qtree.SelectListNode{
		sel(lit(catalog.NewInteger(1)), "a"),
		sel(lit(catalog.NewInteger(2)), "b"),
	}}
	if _, err := e.Execute(&qtree.UnionNode{Inputs: []qtree.Node{row(1), wide}}); err == nil {
		t.Fatal("expected error for union of different widths")
	}
}

func TestSelectExpression(t *testing.T) {
	n := &qtree.SelectExpressionNode{SelectList: []*qtree.SelectListNode{
		sel(mustCall(t, "add", lit(catalog.NewInteger(1)), lit(catalog.NewInteger(2))), "sum"),
		sel(mustCall(t, "div", lit(catalog.NewInteger(1)), lit(catalog.NewInteger(0))), "div"),
	}}
	got := run(t, newTestExecutor(), n)
	expectRows(t, got, [][]string{{"3", "NULL"}})

	agg := &qtree.SelectExpressionNode{SelectList: []*qtree.SelectListNode{
		sel(mustCall(t, "count", lit(catalog.NewInteger(1))), "cnt"),
	}}
	if _, err := newTestExecutor().Execute(agg); err == nil {
		t.Fatal("expected error for aggregate without tables")
	}
}

func TestShowTablesAndDescribe(t *testing.T) {
	cities := citiesTable(t)
	cities.SetDescription("city populations")
	e := newTestExecutor(cities, documentTable(t))

	expectRows(t, run(t, e, &qtree.ShowTablesNode{}), [][]string{
		{"cities", "city populations"},
		{"docs", "NULL"},
	})

	expectRows(t, run(t, e, &qtree.DescribeTableNode{TableName: "cities"}), [][]string{
		{"id", "INTEGER", "true", "NULL"},
		{"city", "STRING", "true", "NULL"},
		{"population", "INTEGER", "true", "NULL"},
	})

	if _, err := e.Execute(&qtree.DescribeTableNode{TableName: "missing"}); !errors.Is(err, catalog.ErrTableNotFound) {
		t.Fatalf("expected table not found, got %v", err)
	}
}
