package runtime

import (
	"strings"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/function"
	"github.com/eventql/eventql-sub000/pkg/qtree"
	"github.com/eventql/eventql-sub000/pkg/sql"
)

// binaryOperators maps infix operators to the functions implementing them.
var binaryOperators = map[sql.TokenType]string{
	sql.TOKEN_EQ:      "eq",
	sql.TOKEN_NE:      "neq",
	sql.TOKEN_LT:      "lt",
	sql.TOKEN_LE:      "lte",
	sql.TOKEN_GT:      "gt",
	sql.TOKEN_GE:      "gte",
	sql.TOKEN_AND:     "logical_and",
	sql.TOKEN_OR:      "logical_or",
	sql.TOKEN_PLUS:    "add",
	sql.TOKEN_MINUS:   "sub",
	sql.TOKEN_STAR:    "mul",
	sql.TOKEN_SLASH:   "div",
	sql.TOKEN_PERCENT: "mod",
	sql.TOKEN_CARET:   "pow",
	sql.TOKEN_LIKE:    "like",
	sql.TOKEN_REGEXP:  "regex",
}

// havingColumn names the hidden column that carries the HAVING predicate.
const havingColumn = "__having"

// planBuilder turns parsed statements into query trees.
type planBuilder struct {
	txn     *Transaction
	symbols *function.SymbolTable
	fold    bool
}

func newPlanBuilder(txn *Transaction) *planBuilder {
	return &planBuilder{
		txn:     txn,
		symbols: txn.runtime.symbols,
		fold:    txn.runtime.constantFolding,
	}
}

// selectItem is one output column before it is bound to a node.
type selectItem struct {
	expr  qtree.ValueExpression
	alias string
}

// starColumn is one column a "*" expands to. ref resolves the column
// against the FROM clause; name is the output column name.
type starColumn struct {
	ref       string
	name      string
	qualifier string
}

// build plans a single statement.
func (b *planBuilder) build(stmt sql.Statement) (qtree.Node, error) {
	switch s := stmt.(type) {
	case *sql.SelectStmt:
		return b.buildSelect(s)
	case *sql.ExplainStmt:
		return b.buildSelect(s.Statement)
	case *sql.ShowTablesStmt:
		return &qtree.ShowTablesNode{}, nil
	case *sql.DescribeStmt:
		info, ok := b.describe(s.TableName)
		if !ok {
			return nil, catalog.TableNotFound(s.TableName)
		}
		return &qtree.DescribeTableNode{TableName: info.Name}, nil
	default:
		return nil, catalog.NewError(catalog.KindRuntimeError, "unsupported statement %T", stmt)
	}
}

func (b *planBuilder) describe(name string) (catalog.TableInfo, bool) {
	if b.txn.tables == nil {
		return catalog.TableInfo{}, false
	}
	return b.txn.tables.Describe(name)
}

func (b *planBuilder) buildSelect(stmt *sql.SelectStmt) (qtree.Node, error) {
	var (
		node qtree.Node
		err  error
	)
	if stmt.From == nil {
		node, err = b.buildSelectExpression(stmt)
	} else {
		node, err = b.buildTableSelect(stmt)
	}
	if err != nil {
		return nil, err
	}

	if stmt.Limit != nil || stmt.Offset != nil {
		limit := &qtree.LimitNode{Input: node, Limit: -1}
		if stmt.Limit != nil {
			limit.Limit = *stmt.Limit
		}
		if stmt.Offset != nil {
			limit.Offset = *stmt.Offset
		}
		node = limit
	}
	return node, nil
}

func (b *planBuilder) buildTableSelect(stmt *sql.SelectStmt) (qtree.Node, error) {
	src, star, err := b.buildSource(stmt.From)
	if err != nil {
		return nil, err
	}
	items, err := b.buildSelectList(stmt.Columns, star)
	if err != nil {
		return nil, err
	}

	numVisible := len(items)
	var specs []qtree.SortSpec
	for _, o := range stmt.OrderBy {
		name := sql.ColumnNameForExpression(o.Expr)
		idx := -1
		for i, it := range items {
			if it.alias == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			expr, err := b.buildValueExpression(o.Expr)
			if err != nil {
				return nil, err
			}
			items = append(items, selectItem{expr: expr, alias: name})
			idx = len(items) - 1
		}
		specs = append(specs, qtree.SortSpec{
			Expr:       qtree.NewResolvedColumnReference(name, idx),
			Descending: o.Desc,
		})
	}

	node, err := b.buildQuery(stmt, src, items)
	if err != nil {
		return nil, err
	}
	if len(specs) > 0 {
		node = &qtree.OrderByNode{Input: node, Specs: specs, NumVisible: numVisible}
	}
	return node, nil
}

// buildQuery picks the aggregation strategy and binds the select list to
// the FROM clause.
func (b *planBuilder) buildQuery(stmt *sql.SelectStmt, src qtree.Node, items []selectItem) (qtree.Node, error) {
	where, err := b.buildWhere(stmt.Where)
	if err != nil {
		return nil, err
	}
	var having qtree.ValueExpression
	if stmt.Having != nil {
		if having, err = b.buildValueExpression(stmt.Having); err != nil {
			return nil, err
		}
	}

	hasGlobal, hasWithin := false, false
	for _, it := range items {
		hasGlobal = hasGlobal || qtree.HasGlobalAggregation(it.expr)
		hasWithin = hasWithin || qtree.HasWithinRecordAggregation(it.expr)
	}
	if having != nil {
		hasWithin = hasWithin || qtree.HasWithinRecordAggregation(having)
	}

	if hasWithin {
		switch src.(type) {
		case *qtree.JoinNode:
			return nil, catalog.NewError(catalog.KindRuntimeError,
				"WITHIN RECORD can't be used together with JOIN in the same SELECT statement. "+
					"consider moving the WITHIN RECORD expression into a subquery")
		case *qtree.SubqueryNode:
			return nil, catalog.NewError(catalog.KindRuntimeError,
				"WITHIN RECORD can only be used on a table, not on a subquery")
		}
	}

	scan, isScan := src.(*qtree.SequentialScanNode)
	grouped := len(stmt.GroupBy) > 0 || having != nil
	if grouped || (hasGlobal && (hasWithin || !isScan)) {
		return b.buildGroupBy(stmt, src, items, where, having, hasWithin)
	}

	switch n := src.(type) {
	case *qtree.SequentialScanNode:
		if err := b.setScanWhere(n, where); err != nil {
			return nil, err
		}
		for _, it := range items {
			if err := b.bindScan(n, it.expr); err != nil {
				return nil, err
			}
			n.SelectList = append(n.SelectList, &qtree.SelectListNode{Expression: it.expr, Alias: it.alias})
		}
		switch {
		case hasGlobal:
			n.Strategy = qtree.AggregateAll
		case hasWithin && readsRepeatedColumns(scan, items):
			n.Strategy = qtree.AggregateWithinRecordDeep
		case hasWithin:
			n.Strategy = qtree.AggregateWithinRecordFlat
		}
		return n, nil

	case *qtree.JoinNode:
		if where != nil {
			if err := bindJoin(n, where); err != nil {
				return nil, err
			}
			n.Where = where
		}
		for _, it := range items {
			if err := bindJoin(n, it.expr); err != nil {
				return nil, err
			}
			n.SelectList = append(n.SelectList, &qtree.SelectListNode{Expression: it.expr, Alias: it.alias})
		}
		return n, nil

	case *qtree.SubqueryNode:
		if where != nil {
			if err := bindSubquery(n, where); err != nil {
				return nil, err
			}
			n.Where = where
		}
		for _, it := range items {
			if err := bindSubquery(n, it.expr); err != nil {
				return nil, err
			}
			n.SelectList = append(n.SelectList, &qtree.SelectListNode{Expression: it.expr, Alias: it.alias})
		}
		return n, nil
	}
	return nil, catalog.NewError(catalog.KindRuntimeError, "can't select from %T", src)
}

// buildGroupBy plans a GROUP BY node over the FROM clause. Record-scoped
// aggregates are computed by a flat scan below the group node and read as
// plain columns above it.
func (b *planBuilder) buildGroupBy(
	stmt *sql.SelectStmt,
	src qtree.Node,
	items []selectItem,
	where, having qtree.ValueExpression,
	hasWithin bool,
) (qtree.Node, error) {
	scan, _ := src.(*qtree.SequentialScanNode)
	switch n := src.(type) {
	case *qtree.SequentialScanNode:
		if err := b.setScanWhere(n, where); err != nil {
			return nil, err
		}
		if hasWithin {
			n.Strategy = qtree.AggregateWithinRecordFlat
		}
	case *qtree.JoinNode:
		if where != nil {
			if err := bindJoin(n, where); err != nil {
				return nil, err
			}
			n.Where = where
		}
	case *qtree.SubqueryNode:
		exposeSubqueryColumns(n)
		if where != nil {
			if err := bindSubquery(n, where); err != nil {
				return nil, err
			}
			n.Where = where
		}
	}

	group := &qtree.GroupByNode{Input: src}
	for _, g := range stmt.GroupBy {
		expr, err := b.buildValueExpression(g)
		if err != nil {
			return nil, err
		}
		if qtree.HasAggregation(expr) {
			return nil, catalog.NewError(catalog.KindRuntimeError, "GROUP clause can only contain pure functions")
		}
		if err := bindComputed(src, expr); err != nil {
			return nil, err
		}
		group.GroupExprs = append(group.GroupExprs, expr)
	}

	addColumn := func(expr qtree.ValueExpression, alias string) error {
		if scan != nil {
			var err error
			if expr, err = b.hoistWithinRecord(scan, expr); err != nil {
				return err
			}
		}
		if err := bindComputed(src, expr); err != nil {
			return err
		}
		group.SelectList = append(group.SelectList, &qtree.SelectListNode{Expression: expr, Alias: alias})
		return nil
	}
	for _, it := range items {
		if err := addColumn(it.expr, it.alias); err != nil {
			return nil, err
		}
	}
	if having == nil {
		return group, nil
	}

	if err := addColumn(having, havingColumn); err != nil {
		return nil, err
	}
	filter := &qtree.SubqueryNode{
		Subquery: group,
		Where:    qtree.NewResolvedColumnReference(havingColumn, len(items)),
	}
	for i, it := range items {
		filter.SelectList = append(filter.SelectList, &qtree.SelectListNode{
			Expression: qtree.NewResolvedColumnReference(it.alias, i),
			Alias:      it.alias,
		})
	}
	return filter, nil
}

// hoistWithinRecord moves every WITHIN RECORD call of expr into the select
// list of scan and replaces it with a reference to that column.
func (b *planBuilder) hoistWithinRecord(scan *qtree.SequentialScanNode, expr qtree.ValueExpression) (qtree.ValueExpression, error) {
	call, ok := expr.(*qtree.CallExpression)
	if !ok {
		return expr, nil
	}
	if !call.WithinRecord {
		for i, a := range call.Args {
			hoisted, err := b.hoistWithinRecord(scan, a)
			if err != nil {
				return nil, err
			}
			call.Args[i] = hoisted
		}
		return call, nil
	}

	alias := call.ToSQL()
	for i, s := range scan.SelectList {
		if s.Alias == alias {
			return qtree.NewResolvedColumnReference(alias, i), nil
		}
	}
	if err := b.bindScan(scan, call); err != nil {
		return nil, err
	}
	scan.SelectList = append(scan.SelectList, &qtree.SelectListNode{Expression: call, Alias: alias})
	return qtree.NewResolvedColumnReference(alias, len(scan.SelectList)-1), nil
}

// readsRepeatedColumns reports whether a select list reads a repeated
// column outside of a WITHIN RECORD aggregate.
func readsRepeatedColumns(scan *qtree.SequentialScanNode, items []selectItem) bool {
	found := false
	for _, it := range items {
		qtree.Walk(it.expr, func(e qtree.ValueExpression) bool {
			switch t := e.(type) {
			case *qtree.CallExpression:
				return !t.WithinRecord && !found
			case *qtree.ColumnReference:
				if col, _ := scan.Table.ColumnByName(t.Name); col != nil && col.MaxRepetitionLevel > 0 {
					found = true
				}
			}
			return !found
		})
	}
	return found
}

func (b *planBuilder) buildWhere(expr sql.Expression) (qtree.ValueExpression, error) {
	if expr == nil {
		return nil, nil
	}
	where, err := b.buildValueExpression(expr)
	if err != nil {
		return nil, err
	}
	if qtree.HasAggregation(where) {
		return nil, catalog.NewError(catalog.KindRuntimeError, "where expressions can only contain pure functions")
	}
	return where, nil
}

func (b *planBuilder) setScanWhere(scan *qtree.SequentialScanNode, where qtree.ValueExpression) error {
	if where == nil {
		return nil
	}
	if err := b.bindScan(scan, where); err != nil {
		return err
	}
	scan.Where = where
	scan.Constraints = qtree.FindConstraints(b.txn, where)
	return nil
}

func (b *planBuilder) buildSelectExpression(stmt *sql.SelectStmt) (qtree.Node, error) {
	node := &qtree.SelectExpressionNode{}
	for _, col := range stmt.Columns {
		if col.Star {
			return nil, catalog.NewError(catalog.KindRuntimeError, "can't use * in a SELECT without any tables")
		}
		expr, err := b.buildValueExpression(col.Expr)
		if err != nil {
			return nil, err
		}
		if qtree.HasAggregation(expr) {
			return nil, catalog.NewError(catalog.KindRuntimeError,
				"a SELECT without any tables can only contain pure functions")
		}
		if cols := qtree.ReferencedColumns(expr); len(cols) > 0 {
			return nil, catalog.ColumnNotFound(cols[0])
		}
		alias := col.Alias
		if alias == "" {
			alias = sql.ColumnNameForExpression(col.Expr)
		}
		node.SelectList = append(node.SelectList, &qtree.SelectListNode{Expression: expr, Alias: alias})
	}
	return node, nil
}

func (b *planBuilder) buildSelectList(cols []sql.SelectColumn, star []starColumn) ([]selectItem, error) {
	var items []selectItem
	for _, col := range cols {
		if col.Star {
			matched := false
			for _, s := range star {
				if col.StarTable != "" && s.qualifier != col.StarTable {
					continue
				}
				matched = true
				items = append(items, selectItem{expr: qtree.NewColumnReference(s.ref), alias: s.name})
			}
			if col.StarTable != "" && !matched {
				return nil, catalog.TableNotFound(col.StarTable)
			}
			continue
		}

		expr, err := b.buildValueExpression(col.Expr)
		if err != nil {
			return nil, err
		}
		alias := col.Alias
		if alias == "" {
			alias = sql.ColumnNameForExpression(col.Expr)
		}
		items = append(items, selectItem{expr: expr, alias: alias})
	}
	return items, nil
}

// buildSource plans the FROM clause of a top level SELECT.
func (b *planBuilder) buildSource(from sql.TableExpr) (qtree.Node, []starColumn, error) {
	switch t := from.(type) {
	case *sql.TableName:
		scan, err := b.buildScan(t)
		if err != nil {
			return nil, nil, err
		}
		return scan, starColumns(scan), nil
	case *sql.SubqueryTable:
		child, err := b.buildSelect(t.Select)
		if err != nil {
			return nil, nil, err
		}
		sub := &qtree.SubqueryNode{Subquery: child, Alias: t.Alias}
		return sub, starColumns(sub), nil
	case *sql.JoinExpr:
		return b.buildJoin(t)
	}
	return nil, nil, catalog.NewError(catalog.KindRuntimeError, "unsupported table expression %T", from)
}

func (b *planBuilder) buildScan(t *sql.TableName) (*qtree.SequentialScanNode, error) {
	info, ok := b.describe(t.Name)
	if !ok {
		return nil, catalog.TableNotFound(t.Name)
	}
	return &qtree.SequentialScanNode{
		TableName:  info.Name,
		TableAlias: t.Alias,
		Table:      info,
		Strategy:   qtree.NoAggregation,
	}, nil
}

// buildJoinInput plans one side of a join. Derived tables expose all of
// their columns so the join can reference them by name.
func (b *planBuilder) buildJoinInput(te sql.TableExpr) (qtree.Node, []starColumn, error) {
	switch t := te.(type) {
	case *sql.SubqueryTable:
		child, err := b.buildSelect(t.Select)
		if err != nil {
			return nil, nil, err
		}
		sub := &qtree.SubqueryNode{Subquery: child, Alias: t.Alias}
		exposeSubqueryColumns(sub)
		return sub, starColumns(sub), nil
	default:
		return b.buildSource(te)
	}
}

func (b *planBuilder) buildJoin(j *sql.JoinExpr) (qtree.Node, []starColumn, error) {
	left, leftStar, err := b.buildJoinInput(j.Left)
	if err != nil {
		return nil, nil, err
	}
	right, rightStar, err := b.buildJoinInput(j.Right)
	if err != nil {
		return nil, nil, err
	}

	typ := qtree.JoinInner
	base, joined := left, right
	switch j.Type {
	case sql.JoinCross:
		typ = qtree.JoinCartesian
	case sql.JoinLeft:
		typ = qtree.JoinOuter
	case sql.JoinRight:
		typ = qtree.JoinOuter
		base, joined = right, left
	}
	if typ == qtree.JoinInner && j.On == nil && !j.Natural {
		typ = qtree.JoinCartesian
	}

	node := &qtree.JoinNode{
		Type:        typ,
		Base:        base,
		BaseAlias:   qualifier(base),
		Joined:      joined,
		JoinedAlias: qualifier(joined),
	}

	star := append(append([]starColumn{}, leftStar...), rightStar...)
	switch {
	case j.Natural:
		var cond qtree.ValueExpression
		star, cond, err = b.naturalJoin(leftStar, rightStar, j.Type == sql.JoinRight)
		if err != nil {
			return nil, nil, err
		}
		if cond == nil {
			if node.Type == qtree.JoinInner {
				node.Type = qtree.JoinCartesian
			}
			break
		}
		if node.Type == qtree.JoinCartesian {
			node.Type = qtree.JoinInner
		}
		if err := bindJoin(node, cond); err != nil {
			return nil, nil, err
		}
		node.Condition = cond

	case j.On != nil:
		cond, err := b.buildValueExpression(j.On)
		if err != nil {
			return nil, nil, err
		}
		if qtree.HasAggregation(cond) {
			return nil, nil, catalog.NewError(catalog.KindRuntimeError, "JOIN conditions can only contain pure functions")
		}
		if err := bindJoin(node, cond); err != nil {
			return nil, nil, err
		}
		node.Condition = cond
	}
	return node, star, nil
}

// naturalJoin computes the output columns and the equality predicate of a
// NATURAL JOIN. Shared columns come first and are read from the side that
// is never NULL padded.
func (b *planBuilder) naturalJoin(leftStar, rightStar []starColumn, rightIsBase bool) ([]starColumn, qtree.ValueExpression, error) {
	rightByName := make(map[string]starColumn, len(rightStar))
	for _, r := range rightStar {
		if _, dup := rightByName[r.name]; !dup {
			rightByName[r.name] = r
		}
	}

	var (
		common, rest []starColumn
		cond         qtree.ValueExpression
		shared       = make(map[string]bool)
	)
	for _, l := range leftStar {
		r, ok := rightByName[l.name]
		if !ok || shared[l.name] {
			rest = append(rest, l)
			continue
		}
		shared[l.name] = true

		col := l
		if rightIsBase {
			col = r
		}
		common = append(common, col)

		eq, err := b.newCall("eq", qtree.NewColumnReference(l.ref), qtree.NewColumnReference(r.ref))
		if err != nil {
			return nil, nil, err
		}
		if cond == nil {
			cond = eq
		} else if cond, err = b.newCall("logical_and", cond, eq); err != nil {
			return nil, nil, err
		}
	}
	for _, r := range rightStar {
		if !shared[r.name] {
			rest = append(rest, r)
		}
	}
	return append(common, rest...), cond, nil
}

func (b *planBuilder) buildValueExpression(expr sql.Expression) (qtree.ValueExpression, error) {
	e, err := b.buildUnoptimizedValueExpression(expr)
	if err != nil {
		return nil, err
	}
	if !b.fold {
		return e, nil
	}
	return qtree.FoldConstants(b.txn, e)
}

func (b *planBuilder) buildUnoptimizedValueExpression(expr sql.Expression) (qtree.ValueExpression, error) {
	switch e := expr.(type) {
	case *sql.LiteralExpr:
		return qtree.NewLiteral(e.Value), nil

	case *sql.ColumnRef:
		return qtree.NewColumnReference(e.Name), nil

	case *sql.BinaryExpr:
		name, ok := binaryOperators[e.Op]
		if !ok {
			return nil, catalog.NewError(catalog.KindRuntimeError, "unsupported operator %s", e.Op)
		}
		left, err := b.buildUnoptimizedValueExpression(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.buildUnoptimizedValueExpression(e.Right)
		if err != nil {
			return nil, err
		}
		return b.newCall(name, left, right)

	case *sql.UnaryExpr:
		arg, err := b.buildUnoptimizedValueExpression(e.Expr)
		if err != nil {
			return nil, err
		}
		return b.newCall("neg", arg)

	case *sql.FunctionCall:
		if e.Star && !strings.EqualFold(e.Name, "count") {
			return nil, catalog.NewError(catalog.KindRuntimeError, "%s(*) is not supported", e.Name)
		}
		args := make([]qtree.ValueExpression, 0, len(e.Args))
		for _, a := range e.Args {
			arg, err := b.buildUnoptimizedValueExpression(a)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		if e.WithinRecord {
			call, err := qtree.NewWithinRecordCall(b.symbols, e.Name, args...)
			if err != nil {
				return nil, err
			}
			return call, nil
		}
		return b.newCall(e.Name, args...)

	case *sql.StarExpr:
		return nil, catalog.NewError(catalog.KindRuntimeError, "* can only be used in the select list")
	}
	return nil, catalog.NewError(catalog.KindRuntimeError, "unsupported expression %T", expr)
}

func (b *planBuilder) newCall(name string, args ...qtree.ValueExpression) (qtree.ValueExpression, error) {
	call, err := qtree.NewCall(b.symbols, name, args...)
	if err != nil {
		return nil, err
	}
	return call, nil
}

// bindScan resolves column references against the table of scan and
// registers the columns the scan has to fetch.
func (b *planBuilder) bindScan(scan *qtree.SequentialScanNode, expr qtree.ValueExpression) error {
	var err error
	qtree.Walk(expr, func(e qtree.ValueExpression) bool {
		c, ok := e.(*qtree.ColumnReference)
		if !ok || c.Index >= 0 {
			return err == nil
		}
		col := scan.NormalizeColumnName(c.Name)
		if col == "" {
			err = catalog.ColumnNotFound(c.Name)
			return false
		}
		c.Name = col
		c.Index = scan.InputColumnIndex(col)
		return true
	})
	return err
}

func bindJoin(join *qtree.JoinNode, expr qtree.ValueExpression) error {
	return qtree.ResolveColumns(expr, func(name string) (int, error) {
		if idx := join.InputColumnIndex(name); idx >= 0 {
			return idx, nil
		}
		return -1, catalog.ColumnNotFound(name)
	})
}

func bindSubquery(sub *qtree.SubqueryNode, expr qtree.ValueExpression) error {
	return qtree.ResolveColumns(expr, func(name string) (int, error) {
		if idx := sub.InputColumnIndex(name); idx >= 0 {
			return idx, nil
		}
		return -1, catalog.ColumnNotFound(name)
	})
}

// bindComputed resolves column references against the output of node,
// letting the node add columns it can compute. References that are already
// bound are left alone.
func bindComputed(node qtree.Node, expr qtree.ValueExpression) error {
	var err error
	qtree.Walk(expr, func(e qtree.ValueExpression) bool {
		c, ok := e.(*qtree.ColumnReference)
		if !ok || c.Index >= 0 {
			return err == nil
		}
		if c.Index = node.ComputedColumnIndex(c.Name, true); c.Index < 0 {
			err = catalog.ColumnNotFound(c.Name)
		}
		return err == nil
	})
	return err
}

// exposeSubqueryColumns projects every column of the nested query.
func exposeSubqueryColumns(sub *qtree.SubqueryNode) {
	if len(sub.SelectList) > 0 {
		return
	}
	for i, c := range sub.Subquery.Columns() {
		sub.SelectList = append(sub.SelectList, &qtree.SelectListNode{
			Expression: qtree.NewResolvedColumnReference(c, i),
			Alias:      c,
		})
	}
}

func qualifier(n qtree.Node) string {
	switch t := n.(type) {
	case *qtree.SequentialScanNode:
		if t.TableAlias != "" {
			return t.TableAlias
		}
		return t.TableName
	case *qtree.SubqueryNode:
		return t.Alias
	}
	return ""
}

// starColumns lists what "*" expands to for a table or derived table.
func starColumns(n qtree.Node) []starColumn {
	var names []string
	switch t := n.(type) {
	case *qtree.SequentialScanNode:
		names = t.Table.ColumnNames()
	case *qtree.SubqueryNode:
		names = t.Subquery.Columns()
	}
	q := qualifier(n)
	out := make([]starColumn, len(names))
	for i, name := range names {
		ref := name
		if q != "" {
			ref = q + "." + name
		}
		out[i] = starColumn{ref: ref, name: name, qualifier: q}
	}
	return out
}
