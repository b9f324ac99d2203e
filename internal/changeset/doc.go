// Package changeset reads changeset files and stages them for apply.
//
// A changeset file is YAML describing one table and the rows to write to it:
//
//	table: widgets
//	key: [id]
//	columns: [id, name, color]
//	inserts:
//	  - {id: 1, name: bolt, color: grey}
//	updates:
//	  - {id: 2, name: nut}
//	deletes:
//	  - {id: 3}
//
// Files are checked in two passes. The document shape is validated against
// the embedded CUE definition #Changeset; the structure is then checked for
// consistency (key columns exist, rows only name known columns, every row
// carries its key, deletes carry nothing but the key). All problems of the
// second pass are reported together.
package changeset
