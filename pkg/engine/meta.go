package engine

import (
	"strconv"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/qtree"
)

func (e *Executor) executeShowTables(n *qtree.ShowTablesNode) (RowIterator, error) {
	var rows [][]catalog.Value
	for _, t := range e.tables.ListTables() {
		rows = append(rows, []catalog.Value{
			catalog.NewString(t.Name),
			descriptionValue(t.Description),
		})
	}
	return newSliceIterator(rows), nil
}

func (e *Executor) executeDescribe(n *qtree.DescribeTableNode) (RowIterator, error) {
	info, ok := e.tables.Describe(n.TableName)
	if !ok {
		return nil, catalog.TableNotFound(n.TableName)
	}
	rows := make([][]catalog.Value, 0, len(info.Columns))
	for _, c := range info.Columns {
		rows = append(rows, []catalog.Value{
			catalog.NewString(c.Name),
			catalog.NewString(c.Type.String()),
			catalog.NewString(strconv.FormatBool(c.Nullable)),
			descriptionValue(c.Description),
		})
	}
	return newSliceIterator(rows), nil
}

func descriptionValue(s string) catalog.Value {
	if s == "" {
		return catalog.Null()
	}
	return catalog.NewString(s)
}
