package storage

import (
	"fmt"
	"sort"
	"strings"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpIn  Op = "in"
)

// Filter compares the value at a dotted field path against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts results by a dotted field path.
type Order struct {
	Field string
	Desc  bool
}

// Query selects records from one collection. A zero Limit means no limit.
type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

// Where builds a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// validate checks operators and field paths and normalises filter values
// so every backend compares like with like.
func (q Query) validate() (Query, error) {
	out := Query{Limit: q.Limit, OrderBy: q.OrderBy}
	if q.Limit < 0 {
		return Query{}, fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	for _, o := range q.OrderBy {
		if !validPath(o.Field) {
			return Query{}, fmt.Errorf("%w: order field %q", ErrInvalidQuery, o.Field)
		}
	}
	for _, f := range q.Filters {
		if !validPath(f.Field) {
			return Query{}, fmt.Errorf("%w: filter field %q", ErrInvalidQuery, f.Field)
		}
		v, err := normalizeValue(f.Value)
		if err != nil {
			return Query{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		switch f.Op {
		case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		case OpIn:
			if _, ok := v.([]any); !ok {
				return Query{}, fmt.Errorf("%w: %q requires a list value", ErrInvalidQuery, f.Op)
			}
		default:
			return Query{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, f.Op)
		}
		out.Filters = append(out.Filters, Filter{Field: f.Field, Op: f.Op, Value: v})
	}
	return out, nil
}

// validPath accepts dotted identifiers such as "metadata.platform".
func validPath(p string) bool {
	if p == "" {
		return false
	}
	for _, seg := range strings.Split(p, ".") {
		if seg == "" {
			return false
		}
		for i, r := range seg {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}

// lookup resolves a dotted path inside doc. The record ID is exposed as "id".
func lookup(rec Record, path string) (any, bool) {
	if path == "id" {
		return rec.ID, true
	}
	var cur any = map[string]any(rec.Data)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// compare orders two normalised values. ok is false when the values are
// of different kinds and cannot be ordered.
func compare(a, b any) (cmp int, ok bool) {
	switch av := a.(type) {
	case float64:
		bv, isNum := b.(float64)
		if !isNum {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, isStr := b.(string)
		if !isStr {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, isBool := b.(bool)
		if !isBool {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	case nil:
		if b == nil {
			return 0, true
		}
		return 0, false
	}
	return 0, false
}

func matches(rec Record, f Filter) bool {
	v, present := lookup(rec, f.Field)
	switch f.Op {
	case OpEq:
		if !present {
			return f.Value == nil
		}
		c, ok := compare(v, f.Value)
		return ok && c == 0
	case OpNe:
		if !present {
			return f.Value != nil
		}
		c, ok := compare(v, f.Value)
		return !ok || c != 0
	case OpIn:
		if !present {
			return false
		}
		for _, candidate := range f.Value.([]any) {
			if c, ok := compare(v, candidate); ok && c == 0 {
				return true
			}
		}
		return false
	}
	if !present {
		return false
	}
	c, ok := compare(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	}
	return false
}

// applyQuery filters, sorts and limits records in memory. Used by the
// memory and file backends. Missing or incomparable values sort last.
func applyQuery(records []Record, q Query) []Record {
	out := make([]Record, 0, len(records))
next:
	for _, rec := range records {
		for _, f := range q.Filters {
			if !matches(rec, f) {
				continue next
			}
		}
		out = append(out, rec)
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				a, aok := lookup(out[i], o.Field)
				b, bok := lookup(out[j], o.Field)
				if !aok || !bok {
					if aok != bok {
						return aok
					}
					continue
				}
				c, ok := compare(a, b)
				if !ok || c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
