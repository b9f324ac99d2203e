package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID    int64  `db:"id,pk"`
	Name  string `db:"name"`
	Email string
	Notes string `db:"-"`
	cache string
}

type membership struct {
	UserID  int64  `db:"user_id,pk"`
	GroupID string `db:"group_id,pk"`
	Role    string `db:"role"`
}

func TestReflect_Struct(t *testing.T) {
	s, err := Reflect[user]("users")
	require.NoError(t, err)

	assert.Equal(t, "users", s.Table)
	assert.Equal(t, []string{"id", "name", "email"}, s.Columns)
	assert.Equal(t, []string{"id"}, s.Key)
	assert.Equal(t, []string{"name", "email"}, s.DataColumns())

	u := user{ID: 7, Name: "ada", Email: "ada@example.com", Notes: "x", cache: "y"}
	vals, err := s.Values(u)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7), "ada", "ada@example.com"}, vals)

	keys, err := s.KeyValues(u)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7)}, keys)

	m, err := s.ToMap(u)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(7), "name": "ada", "email": "ada@example.com"}, m)
}

func TestReflect_PointerAndCompositeKey(t *testing.T) {
	s, err := Reflect[*membership]("memberships")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "group_id"}, s.Key)
	assert.Equal(t, []string{"role"}, s.DataColumns())

	keys, err := s.KeyValues(&membership{UserID: 1, GroupID: "admins", Role: "owner"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "admins"}, keys)

	_, err = s.Values(nil)
	assert.ErrorContains(t, err, "nil record")
}

func TestReflect_Errors(t *testing.T) {
	type noKey struct {
		Name string `db:"name"`
	}
	type badColumn struct {
		ID int `db:"1id,pk"`
	}
	type duplicate struct {
		A int `db:"id,pk"`
		B int `db:"id"`
	}

	_, err := Reflect[noKey]("t")
	assert.ErrorContains(t, err, "no key columns")

	_, err = Reflect[badColumn]("t")
	assert.ErrorContains(t, err, "invalid identifier")

	_, err = Reflect[duplicate]("t")
	assert.ErrorContains(t, err, "duplicate column")

	_, err = Reflect[int]("t")
	assert.ErrorContains(t, err, "not a struct")

	_, err = Reflect[user]("bad table")
	assert.ErrorContains(t, err, "invalid identifier")

	assert.Panics(t, func() { MustReflect[noKey]("t") })
}

func TestDynamic_RowValues(t *testing.T) {
	s, err := Dynamic("items", []string{"id", "name", "qty"}, []string{"id"})
	require.NoError(t, err)

	row := s.NewRow(map[string]any{"id": 1, "name": "widget"})
	vals, err := s.Values(row)
	require.NoError(t, err)
	assert.Equal(t, []any{1, "widget", nil}, vals)
	assert.Equal(t, "items:1", row.Identity())
}

func TestDynamic_KeyMustBeColumn(t *testing.T) {
	_, err := Dynamic("items", []string{"id", "name"}, []string{"sku"})
	assert.ErrorContains(t, err, `key column "sku" is not a column`)

	_, err = Dynamic("items", nil, []string{"id"})
	assert.Error(t, err)
}

func TestRow_CompositeIdentity(t *testing.T) {
	r := Row{Table: "m", Key: []string{"a", "b"}, Values: map[string]any{"a": 1, "b": "x"}}
	assert.Equal(t, "m:1|x", r.Identity())
}

func TestNormalizeIdent(t *testing.T) {
	// Decomposed "e" + U+0301 composes to a non-ASCII letter under NFC and is rejected.
	_, err := NormalizeIdent("cafe\u0301")
	assert.Error(t, err)

	n, err := NormalizeIdent("order_items")
	require.NoError(t, err)
	assert.Equal(t, "order_items", n)

	_, err = NormalizeIdent(`x"; DROP TABLE t; --`)
	assert.Error(t, err)
}
