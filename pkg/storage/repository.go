package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

// TableRepository is an ordered registry of tables and nested providers.
// When two sources know the same name the first registered one wins.
type TableRepository struct {
	mu        sync.RWMutex
	tables    []Table
	providers []TableProvider
}

// NewTableRepository creates an empty repository.
func NewTableRepository() *TableRepository {
	return &TableRepository{}
}

// AddTable registers a table.
func (r *TableRepository) AddTable(t Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = append(r.tables, t)
}

// AddProvider registers a nested provider, consulted after all tables.
func (r *TableRepository) AddProvider(p TableProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// normalizeTableName strips backticks, so `my.table` and my.table match.
func normalizeTableName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "`", "")
}

func (r *TableRepository) find(name string) (Table, bool) {
	name = normalizeTableName(name)
	for _, t := range r.tables {
		if t.Info().Name == name {
			return t, true
		}
	}
	for _, t := range r.tables {
		if strings.EqualFold(t.Info().Name, name) {
			return t, true
		}
	}
	return nil, false
}

// ListTables returns every known table in registration order.
func (r *TableRepository) ListTables() []catalog.TableInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []catalog.TableInfo
	seen := make(map[string]bool)
	for _, t := range r.tables {
		info := t.Info()
		if !seen[info.Name] {
			seen[info.Name] = true
			out = append(out, info)
		}
	}
	for _, p := range r.providers {
		for _, info := range p.ListTables() {
			if !seen[info.Name] {
				seen[info.Name] = true
				out = append(out, info)
			}
		}
	}
	return out
}

// Describe returns the schema of a table.
func (r *TableRepository) Describe(name string) (catalog.TableInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.find(name); ok {
		return t.Info(), true
	}
	for _, p := range r.providers {
		if info, ok := p.Describe(normalizeTableName(name)); ok {
			return info, true
		}
	}
	return catalog.TableInfo{}, false
}

// Open starts a scan on the named table.
func (r *TableRepository) Open(ctx context.Context, name string, req ScanRequest) (TableScan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.find(name); ok {
		return t.Open(ctx, req)
	}
	for _, p := range r.providers {
		if _, ok := p.Describe(normalizeTableName(name)); ok {
			return p.Open(ctx, normalizeTableName(name), req)
		}
	}
	return nil, catalog.TableNotFound(name)
}
