package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/editorial-notify/internal/query"
)

type record struct {
	fields map[string]string
	meta   map[string][]string
}

func (r record) FieldValue(name string) string  { return r.fields[name] }
func (r record) MetaValues(key string) []string { return r.meta[key] }

func TestMatch_UnsetBranchIsWildcard(t *testing.T) {
	cond := query.UnlessSet("from", query.MetaIn{Key: "from", Values: []string{"pending"}})

	cases := map[string]map[string][]string{
		"absent key":   {},
		"empty string": {"from": {""}},
		"explicit 0":   {"from": {"0"}},
	}
	for name, meta := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, query.Match(cond, record{meta: meta}))
		})
	}

	assert.False(t, query.Match(cond, record{meta: map[string][]string{"from": {"draft"}}}))
	assert.True(t, query.Match(cond, record{meta: map[string][]string{"from": {"draft", "pending"}}}))
}

func TestMatch_Composites(t *testing.T) {
	r := record{
		fields: map[string]string{"status": "publish"},
		meta:   map[string][]string{"event.x": {"1"}},
	}

	assert.True(t, query.Match(query.And{}, r), "empty And matches")
	assert.False(t, query.Match(query.Or{}, r), "empty Or matches nothing")
	assert.True(t, query.Match(nil, r))

	cond := query.And{
		query.FieldEquals{Field: "status", Value: "publish"},
		query.MetaEquals{Key: "event.x", Value: "1"},
	}
	assert.True(t, query.Match(cond, r))

	cond = append(cond, query.MetaIn{Key: "event.x"})
	assert.False(t, query.Match(cond, r), "MetaIn with no values never matches")
}

func TestCompile_Postgres(t *testing.T) {
	cond := query.And{
		query.FieldEquals{Field: "status", Value: "publish"},
		query.UnlessSet("to", query.MetaIn{Key: "to", Values: []string{"publish"}}),
	}

	sql, args, err := query.Compile(cond, query.Postgres, query.DefaultSchema)
	require.NoError(t, err)

	assert.Contains(t, sql, "w.status = $1")
	assert.Contains(t, sql, "NOT EXISTS")
	assert.Contains(t, sql, "m.meta_value IN ($")
	// status, then scope/key for NOT EXISTS, scope/key/''/'0' for blank, scope/key/value for IN.
	assert.Len(t, args, 1+2+4+3)
	assert.Equal(t, "publish", args[0])
	assert.Equal(t, "publish", args[len(args)-1])
}

func TestCompile_SQLitePlaceholders(t *testing.T) {
	sql, args, err := query.Compile(query.MetaEquals{Key: "k", Value: "v"}, query.SQLite, query.DefaultSchema)
	require.NoError(t, err)
	assert.NotContains(t, sql, "$")
	assert.Equal(t, []any{"workflow", "k", "v"}, args)
}

func TestCompile_RejectsUnknownField(t *testing.T) {
	_, _, err := query.Compile(query.FieldEquals{Field: "password", Value: "x"}, query.Postgres, query.DefaultSchema)
	require.Error(t, err)
}

func TestCompile_EmptyInIsFalse(t *testing.T) {
	sql, args, err := query.Compile(query.MetaIn{Key: "k"}, query.Postgres, query.DefaultSchema)
	require.NoError(t, err)
	assert.Equal(t, "1=0", sql)
	assert.Empty(t, args)
}
