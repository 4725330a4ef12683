package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

// DocumentOptions controls how YAML or JSON records are loaded.
type DocumentOptions struct {
	// Fields declares the schema. When empty it is inferred from the records.
	Fields []Field
	// JSONLines reads one JSON object per line.
	JSONLines   bool
	Description string
}

// NewDocumentTable loads nested records from a YAML or JSON file. A document
// holding a sequence contributes one record per item; a mapping is a single
// record. Files ending in .jsonl or .ndjson are read line by line.
func NewDocumentTable(name, path string, opts DocumentOptions) (*MemTable, error) {
	rc, plain, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if strings.HasSuffix(plain, ".jsonl") || strings.HasSuffix(plain, ".ndjson") {
		opts.JSONLines = true
	}
	t, err := ReadDocumentTable(name, rc, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadDocumentTable reads nested records from r into a MemTable.
func ReadDocumentTable(name string, r io.Reader, opts DocumentOptions) (*MemTable, error) {
	records, err := readRecordNodes(r, opts.JSONLines)
	if err != nil {
		return nil, err
	}

	fields := opts.Fields
	if len(fields) == 0 {
		fields = InferFields(records)
	}

	t := NewMemTable(name, fields)
	t.SetDescription(opts.Description)
	for i, n := range records {
		v, err := nodeValue(n)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d: expected an object, got %T", i+1, v)
		}
		if err := t.AddRecord(rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
	}
	return t, nil
}

func readRecordNodes(r io.Reader, jsonLines bool) ([]*yaml.Node, error) {
	var docs []*yaml.Node
	if jsonLines {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
		line := 0
		for sc.Scan() {
			line++
			text := bytes.TrimSpace(sc.Bytes())
			if len(text) == 0 {
				continue
			}
			var doc yaml.Node
			if err := yaml.Unmarshal(text, &doc); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			docs = append(docs, &doc)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	} else {
		dec := yaml.NewDecoder(r)
		for {
			var doc yaml.Node
			err := dec.Decode(&doc)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			docs = append(docs, &doc)
		}
	}

	var records []*yaml.Node
	for _, doc := range docs {
		n := resolveNode(doc)
		switch n.Kind {
		case yaml.SequenceNode:
			for _, item := range n.Content {
				records = append(records, resolveNode(item))
			}
		case yaml.MappingNode:
			records = append(records, n)
		default:
			return nil, fmt.Errorf("line %d: expected a record or a list of records", n.Line)
		}
	}
	return records, nil
}

func resolveNode(n *yaml.Node) *yaml.Node {
	for {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) > 0:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		default:
			return n
		}
	}
}

// nodeValue converts a node to map[string]any, []any or a scalar.
func nodeValue(n *yaml.Node) (any, error) {
	n = resolveNode(n)
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported node", n.Line)
	}
}

// InferFields derives a nested schema from mapping nodes. Fields keep the
// order in which their keys first appear.
func InferFields(records []*yaml.Node) []Field {
	var fields []Field
	for _, r := range records {
		mergeMapping(&fields, r)
	}
	finishFields(fields)
	return fields
}

func mergeMapping(fields *[]Field, n *yaml.Node) {
	n = resolveNode(n)
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		idx := -1
		for j := range *fields {
			if (*fields)[j].Name == name {
				idx = j
				break
			}
		}
		if idx < 0 {
			*fields = append(*fields, Field{Name: name})
			idx = len(*fields) - 1
		}
		f := &(*fields)[idx]

		value := resolveNode(n.Content[i+1])
		if value.Kind == yaml.SequenceNode {
			f.Repeated = true
			for _, item := range value.Content {
				mergeElement(f, resolveNode(item))
			}
			continue
		}
		mergeElement(f, value)
	}
}

func mergeElement(f *Field, n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode:
		mergeMapping(&f.Fields, n)
	case yaml.ScalarNode:
		f.Type = widenType(f.Type, scalarType(n))
	}
}

func scalarType(n *yaml.Node) catalog.DataType {
	switch n.ShortTag() {
	case "!!int":
		return catalog.TypeInteger
	case "!!float":
		return catalog.TypeFloat
	case "!!bool":
		return catalog.TypeBool
	case "!!timestamp":
		return catalog.TypeTimestamp
	case "!!null":
		return catalog.TypeNull
	default:
		return catalog.TypeString
	}
}

func finishFields(fields []Field) {
	for i := range fields {
		if len(fields[i].Fields) > 0 {
			finishFields(fields[i].Fields)
			continue
		}
		if fields[i].Type == catalog.TypeNull {
			fields[i].Type = catalog.TypeString
		}
	}
}
