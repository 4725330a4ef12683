package runtime

import (
	"context"
	"strings"
	"time"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/engine"
	"github.com/eventql/eventql-sub000/pkg/qtree"
	"github.com/eventql/eventql-sub000/pkg/sql"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

// explainColumn is the single output column of an EXPLAIN statement.
const explainColumn = "explain"

type plannedStatement struct {
	node    qtree.Node
	explain bool
}

// QueryPlan holds one query tree per statement of a query string.
type QueryPlan struct {
	txn        *Transaction
	statements []plannedStatement
}

// BuildQueryPlan parses query and plans every statement in it.
func BuildQueryPlan(txn *Transaction, query string) (*QueryPlan, error) {
	stmts, err := sql.ParseStatements(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	b := newPlanBuilder(txn)
	plan := &QueryPlan{txn: txn}
	for _, stmt := range stmts {
		node, err := b.build(stmt)
		if err != nil {
			return nil, err
		}
		_, explain := stmt.(*sql.ExplainStmt)
		plan.statements = append(plan.statements, plannedStatement{node: node, explain: explain})
	}

	txn.runtime.log.Debug("query plan built",
		"statements", len(plan.statements),
		"duration", time.Since(start))
	return plan, nil
}

// NumStatements returns the number of planned statements.
func (p *QueryPlan) NumStatements() int {
	return len(p.statements)
}

// Statement returns the query tree of statement i.
func (p *QueryPlan) Statement(i int) qtree.Node {
	return p.statements[i].node
}

// Columns returns the output column names of statement i.
func (p *QueryPlan) Columns(i int) []string {
	if p.statements[i].explain {
		return []string{explainColumn}
	}
	return p.statements[i].node.Columns()
}

// Execute runs statement i and appends its rows to result.
func (p *QueryPlan) Execute(i int, result *ResultList) error {
	return ExecuteStatement(p.txn, p, i, result)
}

// ExecuteStatement runs statement i of plan. Rows are buffered and only
// handed to result once the statement succeeded.
func ExecuteStatement(txn *Transaction, plan *QueryPlan, i int, result *ResultList) error {
	if i < 0 || i >= len(plan.statements) {
		return catalog.NewError(catalog.KindRuntimeError, "invalid statement index %d", i)
	}
	stmt := plan.statements[i]
	start := time.Now()

	var rows [][]catalog.Value
	if stmt.explain {
		for _, line := range strings.Split(strings.TrimRight(qtree.Explain(stmt.node), "\n"), "\n") {
			rows = append(rows, []catalog.Value{catalog.NewString(line)})
		}
	} else {
		exec := engine.NewExecutor(txn.ctx, txn, txn.tables, txn.runtime.log)
		it, err := exec.Execute(stmt.node)
		if err != nil {
			return err
		}
		for it.Next() {
			rows = append(rows, append([]catalog.Value(nil), it.Row()...))
		}
		err = it.Err()
		if cerr := it.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			txn.runtime.log.Debug("statement failed", "statement", i, "error", err)
			return err
		}
	}

	result.commit(plan.Columns(i), rows)
	txn.runtime.log.Debug("statement executed",
		"statement", i,
		"rows", len(rows),
		"duration", time.Since(start))
	return nil
}

// EvaluateConstExpression evaluates an expression that references no
// columns, e.g. "1 + 2" or "from_timestamp(1441408424)".
func EvaluateConstExpression(txn *Transaction, expr string) (catalog.Value, error) {
	ast, err := sql.ParseExpression(expr)
	if err != nil {
		return catalog.Null(), err
	}
	e, err := newPlanBuilder(txn).buildValueExpression(ast)
	if err != nil {
		return catalog.Null(), err
	}
	if cols := qtree.ReferencedColumns(e); len(cols) > 0 {
		return catalog.Null(), catalog.NewError(catalog.KindNotConstant,
			"expression is not constant: references column %s", cols[0])
	}
	if qtree.HasAggregation(e) {
		return catalog.Null(), catalog.NewError(catalog.KindNotConstant,
			"expression is not constant: contains an aggregate function")
	}
	folded, err := qtree.FoldConstants(txn, e)
	if err != nil {
		return catalog.Null(), err
	}
	if lit, ok := folded.(*qtree.LiteralExpression); ok {
		return lit.Value, nil
	}
	// non-deterministic calls such as now() are left unfolded
	return qtree.Evaluate(txn, folded, nil)
}

// Execute plans and runs every statement of query in a new transaction and
// returns one result per statement. Execution stops at the first failing
// statement.
func (rt *Runtime) Execute(ctx context.Context, tables storage.TableProvider, query string) ([]*ResultList, error) {
	txn := rt.NewTransaction(ctx, tables)
	plan, err := BuildQueryPlan(txn, query)
	if err != nil {
		return nil, err
	}
	results := make([]*ResultList, 0, plan.NumStatements())
	for i := 0; i < plan.NumStatements(); i++ {
		r := NewResultList()
		if err := plan.Execute(i, r); err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}
