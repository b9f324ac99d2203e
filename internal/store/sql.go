package store

import (
	"fmt"
	"strings"

	"github.com/roach88/changeset/internal/model"
)

// upsertSQL builds the merge-or-insert statement for a schema.
// When every column is a key column there is nothing to overwrite and
// conflicts are ignored.
func upsertSQL[T any](d Dialect, s *model.Schema[T]) string {
	marks := make([]string, len(s.Columns))
	for i := range s.Columns {
		marks[i] = d.placeholder(i + 1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		quoteIdent(s.Table),
		strings.Join(quoteAll(s.Columns), ", "),
		strings.Join(marks, ", "),
		strings.Join(quoteAll(s.Key), ", "),
	)

	data := s.DataColumns()
	if len(data) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}

	sets := make([]string, len(data))
	for i, c := range data {
		sets[i] = fmt.Sprintf("%s = excluded.%s", quoteIdent(c), quoteIdent(c))
	}
	b.WriteString(" DO UPDATE SET ")
	b.WriteString(strings.Join(sets, ", "))
	return b.String()
}

// deleteSQL builds the delete-by-key statement for a schema.
func deleteSQL[T any](d Dialect, s *model.Schema[T]) string {
	conds := make([]string, len(s.Key))
	for i, k := range s.Key {
		conds[i] = fmt.Sprintf("%s = %s", quoteIdent(k), d.placeholder(i+1))
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(s.Table), strings.Join(conds, " AND "))
}

// countSQL builds a row count query for a table.
func countSQL(table string) string {
	return "SELECT COUNT(*) FROM " + quoteIdent(table)
}
