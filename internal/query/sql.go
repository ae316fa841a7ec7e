package query

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Dialect controls placeholder syntax of compiled SQL.
type Dialect int

const (
	// Postgres uses $1, $2, ... placeholders.
	Postgres Dialect = iota
	// SQLite uses ? placeholders.
	SQLite
)

// Schema names the tables and columns Compile targets. Workflow rows are
// aliased as Alias; metadata rows live in MetaTable keyed by entity id.
type Schema struct {
	Alias       string
	MetaTable   string
	MetaScope   string
	AllowedCols map[string]string
}

// DefaultSchema matches migrations/ and the SQLite schema.
var DefaultSchema = Schema{
	Alias:     "w",
	MetaTable: "entity_meta",
	MetaScope: "workflow",
	AllowedCols: map[string]string{
		"status": "status",
		"type":   "type",
	},
}

// Compile renders c as a boolean SQL expression plus its arguments, in the
// order they appear in the text.
func Compile(c Condition, d Dialect, s Schema) (string, []any, error) {
	b := &builder{dialect: d, schema: s}
	sql, err := b.build(c)
	if err != nil {
		return "", nil, err
	}
	return sql, b.args, nil
}

type builder struct {
	dialect Dialect
	schema  Schema
	args    []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	if b.dialect == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) metaExists(key string, valueClause func() string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "EXISTS (SELECT 1 FROM %s m WHERE m.scope = %s AND m.entity_id = %s.id AND m.meta_key = %s",
		b.schema.MetaTable, b.arg(b.schema.MetaScope), b.schema.Alias, b.arg(key))
	if valueClause != nil {
		sb.WriteString(" AND ")
		sb.WriteString(valueClause())
	}
	sb.WriteString(")")
	return sb.String()
}

func (b *builder) build(c Condition) (string, error) {
	switch c := c.(type) {
	case nil:
		return "1=1", nil
	case And:
		return b.join(c, " AND ", "1=1")
	case Or:
		return b.join(c, " OR ", "1=0")
	case FieldEquals:
		col, ok := b.schema.AllowedCols[c.Field]
		if !ok {
			return "", errors.Newf("unknown workflow field %q", c.Field)
		}
		return fmt.Sprintf("%s.%s = %s", b.schema.Alias, col, b.arg(c.Value)), nil
	case MetaEquals:
		return b.metaExists(c.Key, func() string {
			return "m.meta_value = " + b.arg(c.Value)
		}), nil
	case MetaIn:
		if len(c.Values) == 0 {
			return "1=0", nil
		}
		return b.metaExists(c.Key, func() string {
			marks := make([]string, len(c.Values))
			for i, v := range c.Values {
				marks[i] = b.arg(v)
			}
			return "m.meta_value IN (" + strings.Join(marks, ", ") + ")"
		}), nil
	case MetaUnset:
		absent := "NOT " + b.metaExists(c.Key, nil)
		blank := b.metaExists(c.Key, func() string {
			return "m.meta_value IN (" + b.arg("") + ", " + b.arg("0") + ")"
		})
		return "(" + absent + " OR " + blank + ")", nil
	}
	return "", errors.Newf("unsupported condition %T", c)
}

func (b *builder) join(children []Condition, op, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		p, err := b.build(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	return "(" + strings.Join(parts, op) + ")", nil
}
