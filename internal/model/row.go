package model

import (
	"fmt"
	"strings"
)

// Row is a record whose columns are only known at runtime.
type Row struct {
	Table  string
	Key    []string
	Values map[string]any
}

// Identity renders the row as table:key1|key2.
func (r Row) Identity() string {
	parts := make([]string, len(r.Key))
	for i, k := range r.Key {
		parts[i] = fmt.Sprint(r.Values[k])
	}
	return r.Table + ":" + strings.Join(parts, "|")
}

// Dynamic builds a schema for Rows of one table.
// Columns absent from a row's Values map are written as NULL.
func Dynamic(table string, columns, key []string) (*Schema[Row], error) {
	var cols []string
	values := func(r Row) ([]any, error) {
		out := make([]any, len(cols))
		for i, c := range cols {
			out[i] = r.Values[c]
		}
		return out, nil
	}
	s, err := newSchema(table, columns, key, values)
	if err != nil {
		return nil, err
	}
	cols = s.Columns
	return s, nil
}

// NewRow creates a Row bound to the schema's table and key.
func (s *Schema[T]) NewRow(values map[string]any) Row {
	return Row{Table: s.Table, Key: s.Key, Values: values}
}
