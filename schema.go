package smklog

import (
	"fmt"
	"sort"
	"sync"
)

// TableAllowList is the set of table names a SchemaProbe may touch.
type TableAllowList struct {
	mu     sync.RWMutex
	tables map[string]struct{}
}

// NewTableAllowList creates an allow list. Invalid identifiers are rejected.
func NewTableAllowList(tables ...string) (*TableAllowList, error) {
	l := &TableAllowList{tables: make(map[string]struct{}, len(tables))}
	for _, t := range tables {
		if err := l.Add(t); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// MustTableAllowList is NewTableAllowList for static table names.
func MustTableAllowList(tables ...string) *TableAllowList {
	l, err := NewTableAllowList(tables...)
	if err != nil {
		panic(err)
	}
	return l
}

// Add registers a table name.
func (l *TableAllowList) Add(table string) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tables[table] = struct{}{}
	return nil
}

// Allowed reports whether table is on the list.
func (l *TableAllowList) Allowed(table string) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.tables[table]
	return ok
}

// Check returns ErrorTypeInvalidArgument unless table is allowed and column
// is a valid identifier.
func (l *TableAllowList) Check(table, column string) error {
	if !l.Allowed(table) {
		return InvalidArgument("table", fmt.Sprintf("%q is not a known table", table))
	}
	return ValidateIdentifier(column)
}

// Tables returns the allowed names in sorted order.
func (l *TableAllowList) Tables() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.tables))
	for t := range l.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
