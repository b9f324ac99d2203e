package model

import (
	"fmt"
	"reflect"
	"strings"
)

// Reflect builds a schema from T's `db` struct tags.
//
// T must be a struct or a pointer to a struct. A field tagged `db:"name"`
// maps to column name, `db:"name,pk"` also marks it as a key column and
// `db:"-"` skips it. Untagged exported fields use their lowercased name.
// Embedded structs are not flattened.
func Reflect[T any](table string) (*Schema[T], error) {
	typ := reflect.TypeFor[T]()
	ptr := false
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
		ptr = true
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("reflect %s: %s is not a struct", table, typ)
	}

	var (
		columns []string
		key     []string
		fields  []int
	)
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("db"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		columns = append(columns, name)
		fields = append(fields, i)
		if opts == "pk" {
			key = append(key, name)
		}
	}

	values := func(rec T) ([]any, error) {
		v := reflect.ValueOf(rec)
		if ptr {
			if v.IsNil() {
				return nil, fmt.Errorf("nil record")
			}
			v = v.Elem()
		}
		out := make([]any, len(fields))
		for i, idx := range fields {
			out[i] = v.Field(idx).Interface()
		}
		return out, nil
	}

	return newSchema(table, columns, key, values)
}

// MustReflect is like Reflect but panics on error.
// Intended for package-level schema variables.
func MustReflect[T any](table string) *Schema[T] {
	s, err := Reflect[T](table)
	if err != nil {
		panic(err)
	}
	return s
}
