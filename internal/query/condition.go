// Package query models the condition tree used to select workflows.
//
// Filters never evaluate workflows themselves; they contribute condition
// fragments that the workflow repository either pushes into SQL (Compile)
// or evaluates against loaded records (Match).
package query

// Condition is a node in the condition tree.
type Condition interface {
	isCondition()
}

// Record is what Match evaluates conditions against.
type Record interface {
	FieldValue(name string) string
	MetaValues(key string) []string
}

// And matches when every child matches. An empty And matches everything.
type And []Condition

// Or matches when any child matches. An empty Or matches nothing.
type Or []Condition

// FieldEquals compares a column of the workflow record.
type FieldEquals struct {
	Field string
	Value string
}

// MetaEquals matches when any stored value under Key equals Value.
type MetaEquals struct {
	Key   string
	Value string
}

// MetaIn matches when any stored value under Key is in Values.
// An empty Values never matches.
type MetaIn struct {
	Key    string
	Values []string
}

// MetaUnset matches when Key is absent or holds "" or "0".
type MetaUnset struct {
	Key string
}

func (And) isCondition()         {}
func (Or) isCondition()          {}
func (FieldEquals) isCondition() {}
func (MetaEquals) isCondition()  {}
func (MetaIn) isCondition()      {}
func (MetaUnset) isCondition()   {}

// UnlessSet wraps match so a filter that was never configured under key
// does not restrict the result.
func UnlessSet(key string, match Condition) Condition {
	return Or{MetaUnset{Key: key}, match}
}

// Match evaluates c against r in process.
func Match(c Condition, r Record) bool {
	switch c := c.(type) {
	case nil:
		return true
	case And:
		for _, child := range c {
			if !Match(child, r) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range c {
			if Match(child, r) {
				return true
			}
		}
		return false
	case FieldEquals:
		return r.FieldValue(c.Field) == c.Value
	case MetaEquals:
		for _, v := range r.MetaValues(c.Key) {
			if v == c.Value {
				return true
			}
		}
		return false
	case MetaIn:
		for _, v := range r.MetaValues(c.Key) {
			for _, want := range c.Values {
				if v == want {
					return true
				}
			}
		}
		return false
	case MetaUnset:
		values := r.MetaValues(c.Key)
		if len(values) == 0 {
			return true
		}
		for _, v := range values {
			if v == "" || v == "0" {
				return true
			}
		}
		return false
	}
	return false
}
