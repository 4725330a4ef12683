package engine

import (
	"strconv"
	"strings"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/qtree"
)

type group struct {
	instances []*instance
}

// groupByIterator drains its input on the first call to Next and then
// returns one row per group, in the order groups were first seen.
type groupByIterator struct {
	e          *Executor
	node       *qtree.GroupByNode
	input      RowIterator
	groupExprs []*program
	selectList []*program

	groups []*group
	pos    int
	row    []catalog.Value
	loaded bool
	err    error
}

func (e *Executor) executeGroupBy(n *qtree.GroupByNode) (RowIterator, error) {
	groupExprs := make([]*program, len(n.GroupExprs))
	for i, g := range n.GroupExprs {
		p, err := compile(e.env, g)
		if err != nil {
			return nil, err
		}
		if p.hasAggregates() {
			return nil, catalog.NewError(catalog.KindRuntimeError,
				"GROUP clause can only contain pure functions")
		}
		groupExprs[i] = p
	}
	selectList, err := compileSelectList(e.env, n.SelectList)
	if err != nil {
		return nil, err
	}

	input, err := e.Execute(n.Input)
	if err != nil {
		return nil, err
	}
	return &groupByIterator{
		e:          e,
		node:       n,
		input:      input,
		groupExprs: groupExprs,
		selectList: selectList,
		pos:        -1,
		row:        make([]catalog.Value, len(selectList)),
	}, nil
}

func (it *groupByIterator) newGroup() *group {
	g := &group{instances: make([]*instance, len(it.selectList))}
	for i, p := range it.selectList {
		g.instances[i] = p.newInstance()
	}
	return g
}

func (it *groupByIterator) load() error {
	index := make(map[string]*group)
	var key strings.Builder
	rows := 0

	for it.input.Next() {
		row := it.input.Row()
		rows++
		if rows%cancelCheckInterval == 0 {
			if err := it.e.cancelled(); err != nil {
				return err
			}
		}

		key.Reset()
		for _, p := range it.groupExprs {
			v, err := p.evaluate(row)
			if err != nil {
				return err
			}
			writeGroupKey(&key, v)
		}

		g, ok := index[key.String()]
		if !ok {
			g = it.newGroup()
			index[key.String()] = g
			it.groups = append(it.groups, g)
		}
		for i, p := range it.selectList {
			if err := p.accumulate(g.instances[i], row); err != nil {
				return err
			}
		}
	}
	if err := it.input.Err(); err != nil {
		return err
	}

	// without grouping expressions the whole input is one group, even if
	// it is empty
	if len(it.groupExprs) == 0 && len(it.groups) == 0 {
		it.groups = append(it.groups, it.newGroup())
	}

	it.e.log.Debug("grouped rows", "rows", rows, "groups", len(it.groups))
	return nil
}

func (it *groupByIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.loaded {
		it.loaded = true
		if err := it.load(); err != nil {
			it.err = err
			return false
		}
	}
	if it.pos+1 >= len(it.groups) {
		return false
	}
	it.pos++
	g := it.groups[it.pos]
	for i, p := range it.selectList {
		v, err := p.result(g.instances[i])
		if err != nil {
			it.err = err
			return false
		}
		it.row[i] = v
	}
	return true
}

func (it *groupByIterator) Row() []catalog.Value { return it.row }
func (it *groupByIterator) Err() error           { return it.err }
func (it *groupByIterator) Close() error         { return it.input.Close() }

// writeGroupKey appends v to a composite group key. Each component is length
// prefixed so no string value can spill into its neighbour.
func writeGroupKey(b *strings.Builder, v catalog.Value) {
	k := v.Key()
	b.WriteString(strconv.Itoa(len(k)))
	b.WriteByte(':')
	b.WriteString(k)
}
