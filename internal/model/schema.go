package model

import (
	"fmt"
	"slices"
)

// Schema maps records of type T onto a table.
type Schema[T any] struct {
	Table   string
	Columns []string // all columns, in value order
	Key     []string // key columns, a subset of Columns

	values  func(T) ([]any, error)
	keyIdx  []int
	dataIdx []int
}

func newSchema[T any](table string, columns, key []string, values func(T) ([]any, error)) (*Schema[T], error) {
	t, err := NormalizeIdent(table)
	if err != nil {
		return nil, fmt.Errorf("schema: table: %w", err)
	}
	cols, err := normalizeAll(columns)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", t, err)
	}
	keys, err := normalizeAll(key)
	if err != nil {
		return nil, fmt.Errorf("schema %s: key: %w", t, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("schema %s: no columns", t)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("schema %s: no key columns", t)
	}

	s := &Schema[T]{Table: t, Columns: cols, Key: keys, values: values}
	for _, k := range keys {
		idx := slices.Index(cols, k)
		if idx < 0 {
			return nil, fmt.Errorf("schema %s: key column %q is not a column", t, k)
		}
		s.keyIdx = append(s.keyIdx, idx)
	}
	for i, c := range cols {
		if !slices.Contains(keys, c) {
			s.dataIdx = append(s.dataIdx, i)
		}
	}
	return s, nil
}

// Values returns the record's column values in Columns order.
func (s *Schema[T]) Values(rec T) ([]any, error) {
	vals, err := s.values(rec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Table, err)
	}
	if len(vals) != len(s.Columns) {
		return nil, fmt.Errorf("%s: got %d values for %d columns", s.Table, len(vals), len(s.Columns))
	}
	return vals, nil
}

// KeyValues returns the record's key values in Key order.
func (s *Schema[T]) KeyValues(rec T) ([]any, error) {
	vals, err := s.Values(rec)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(s.keyIdx))
	for i, idx := range s.keyIdx {
		out[i] = vals[idx]
	}
	return out, nil
}

// DataColumns returns the non-key columns in Columns order.
func (s *Schema[T]) DataColumns() []string {
	out := make([]string, len(s.dataIdx))
	for i, idx := range s.dataIdx {
		out[i] = s.Columns[idx]
	}
	return out
}

// ToMap returns the record as a column -> value map.
func (s *Schema[T]) ToMap(rec T) (map[string]any, error) {
	vals, err := s.Values(rec)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any, len(vals))
	for i, c := range s.Columns {
		m[c] = vals[i]
	}
	return m, nil
}
