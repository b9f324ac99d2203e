package changeset

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/changeset/internal/model"
)

// Validation error codes (E200-E299)
const (
	ErrSchemaShape   = "E200" // document does not match #Changeset
	ErrInvalidSchema = "E201" // table, columns or key rejected
	ErrUnknownColumn = "E202" // row names a column not in columns
	ErrMissingKey    = "E203" // row lacks a key column
	ErrNullKey       = "E204" // key column is null
	ErrDeleteNonKey  = "E205" // delete row carries a non-key column
)

// ValidationError describes one problem in a changeset file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in a file.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "\n")
}

// Repeat notes a row whose key already appeared earlier in the same
// section. Repeats are applied in file order, so the later row wins.
type Repeat struct {
	Section  string
	Index    int
	First    int
	Identity string
}

func (r Repeat) String() string {
	return fmt.Sprintf("%s[%d] repeats key %s from %s[%d]", r.Section, r.Index, r.Identity, r.Section, r.First)
}

// validate checks the decoded changeset and builds its schema.
func (c *Changeset) validate() ValidationErrors {
	schema, err := model.Dynamic(c.Table, c.Columns, c.Key)
	if err != nil {
		return ValidationErrors{{Field: "table", Message: err.Error(), Code: ErrInvalidSchema}}
	}
	c.schema = schema

	var errs ValidationErrors
	errs = append(errs, c.checkRows("inserts", c.Inserts, false)...)
	errs = append(errs, c.checkRows("updates", c.Updates, false)...)
	errs = append(errs, c.checkRows("deletes", c.Deletes, true)...)
	return errs
}

func (c *Changeset) checkRows(section string, rows []map[string]any, keyOnly bool) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]int, len(rows))

	for i, row := range rows {
		field := fmt.Sprintf("%s[%d]", section, i)

		cols := make([]string, 0, len(row))
		for col := range row {
			cols = append(cols, col)
		}
		slices.Sort(cols)
		for _, col := range cols {
			switch {
			case !slices.Contains(c.schema.Columns, col):
				errs = append(errs, ValidationError{
					Field: field + "." + col, Message: "unknown column", Code: ErrUnknownColumn,
				})
			case keyOnly && !slices.Contains(c.schema.Key, col):
				errs = append(errs, ValidationError{
					Field: field + "." + col, Message: "delete rows may only name key columns", Code: ErrDeleteNonKey,
				})
			}
		}

		complete := true
		for _, k := range c.schema.Key {
			v, ok := row[k]
			switch {
			case !ok:
				errs = append(errs, ValidationError{
					Field: field, Message: fmt.Sprintf("missing key column %q", k), Code: ErrMissingKey,
				})
				complete = false
			case v == nil:
				errs = append(errs, ValidationError{
					Field: field + "." + k, Message: "key column is null", Code: ErrNullKey,
				})
				complete = false
			}
		}
		if !complete {
			continue
		}

		id := c.schema.NewRow(row).Identity()
		if first, dup := seen[id]; dup {
			c.repeats = append(c.repeats, Repeat{Section: section, Index: i, First: first, Identity: id})
			continue
		}
		seen[id] = i
	}
	return errs
}
