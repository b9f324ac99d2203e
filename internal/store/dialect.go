package store

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	// Database drivers. Each registers itself with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Dialect captures the SQL differences between supported drivers.
type Dialect struct {
	// Driver is the database/sql driver name.
	Driver string

	// SQLite enables the pragma setup and single-connection pool.
	SQLite bool

	// Savepoints reports whether deletes run inside savepoints.
	Savepoints bool

	// Numbered selects $1, $2, ... placeholders instead of ?.
	Numbered bool
}

var dialects = map[string]Dialect{
	"sqlite3": {Driver: "sqlite3", SQLite: true, Savepoints: true},
	"sqlite":  {Driver: "sqlite", SQLite: true, Savepoints: true},
	"pgx":     {Driver: "pgx", Savepoints: true, Numbered: true},
}

// Drivers returns the supported driver names, sorted.
func Drivers() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupDialect returns the dialect for a driver name.
func LookupDialect(driver string) (Dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported driver %q: must be one of %v", driver, Drivers())
	}
	return d, nil
}

// placeholder returns the bind marker for the n-th argument (1-based).
func (d Dialect) placeholder(n int) string {
	if d.Numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// quoteIdent quotes a table or column name. Valid in SQLite and PostgreSQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}
