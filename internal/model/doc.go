// Package model describes how records map onto store tables.
//
// A Schema names a table, its columns in a fixed order and the key columns
// that give a record its identity. Schemas come from struct tags via Reflect,
// or are declared at runtime for dynamic Rows via Dynamic.
//
//	type User struct {
//	    ID    int64  `db:"id,pk"`
//	    Name  string `db:"name"`
//	    Email string `db:"email"`
//	    cache string // unexported: ignored
//	    Notes string `db:"-"`
//	}
//
//	schema, err := model.Reflect[User]("users")
//
// Identifiers are NFC-normalized and must match [A-Za-z_][A-Za-z0-9_]*.
package model
