package stable

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// maxNestDepth bounds Export and Populate recursion. Reference cycles
// between tables hit it instead of recursing forever.
const maxNestDepth = 16

var (
	jsonMarshal   = json.Marshal
	jsonUnmarshal = json.Unmarshal
)

// SetDefaultJSONMarshal sets the default JSON serialization and deserialization functions.
// If not set, the standard library is used by default.
func SetDefaultJSONMarshal(marshal func(v any) ([]byte, error), unmarshal func(data []byte, v any) error) {
	jsonMarshal, jsonUnmarshal = marshal, unmarshal
}

// Export converts a snapshot of t into plain Go values: numbers become
// float64, booleans bool, ids uint64, strings string and nested tables
// recursively []any or map[string]any.
//
// A table with only integer keys becomes a []any (holes are nil); any
// other table becomes a map[string]any whose integer keys are formatted
// in decimal. A string key that reads like an index wins over the index.
func (t *Table) Export() (any, error) {
	return t.export(0)
}

func (t *Table) export(depth int) (any, error) {
	if depth >= maxNestDepth {
		return nil, ErrTooDeep
	}
	entries := t.Keys()
	named, last := false, -1
	for _, e := range entries {
		if e.Key.named {
			named = true
		} else {
			last = max(last, e.Key.index)
		}
	}

	if !named && last >= 0 {
		out := make([]any, last+1)
		for _, e := range entries {
			v, err := exportValue(t.search(e.Key), depth)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Key, err)
			}
			out[e.Key.index] = v
		}
		return out, nil
	}

	out := make(map[string]any, len(entries))
	for _, e := range entries {
		v, err := exportValue(t.search(e.Key), depth)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Key, err)
		}
		if e.Key.named {
			out[e.Key.name] = v
		} else if _, ok := out[strconv.Itoa(e.Key.index)]; !ok {
			out[strconv.Itoa(e.Key.index)] = v
		}
	}
	return out, nil
}

func exportValue(v Value, depth int) (any, error) {
	switch v.kind {
	case KindNumber:
		return v.Number(), nil
	case KindBoolean:
		return v.Boolean(), nil
	case KindID:
		return v.ID(), nil
	case KindString:
		return v.Text(), nil
	case KindTable:
		return v.Table().export(depth + 1)
	default:
		return nil, nil
	}
}

// Populate stores a tree of plain Go values into t: map[string]any and
// map[any]any entries under string (or non-negative integer) keys, []any
// elements under their 0-based index, nested maps and slices as nested
// tables. Numbers become numbers, except uint64 which becomes an id, the
// inverse of Export. Nil values are skipped; *Table values are retained
// and stored. Existing nested tables are filled in place.
func (t *Table) Populate(v any) error {
	return t.populate(v, 0)
}

func (t *Table) populate(v any, depth int) error {
	if depth >= maxNestDepth {
		return ErrTooDeep
	}
	switch v := v.(type) {
	case map[string]any:
		for k, x := range v {
			if err := t.populateKey(Name(k), x, depth); err != nil {
				return err
			}
		}
	case map[any]any:
		for k, x := range v {
			var key Key
			switch k := k.(type) {
			case string:
				key = Name(k)
			case int:
				if k < 0 {
					return &UnsupportedValueError{Key: Name(strconv.Itoa(k)), Value: k}
				}
				key = Index(k)
			default:
				return &UnsupportedValueError{Key: Name(fmt.Sprint(k)), Value: k}
			}
			if err := t.populateKey(key, x, depth); err != nil {
				return err
			}
		}
	case []any:
		for i, x := range v {
			if err := t.populateKey(Index(i), x, depth); err != nil {
				return err
			}
		}
	default:
		return &UnsupportedValueError{Value: v}
	}
	return nil
}

func (t *Table) populateKey(k Key, x any, depth int) error {
	var err error
	switch x := x.(type) {
	case nil:
	case float64:
		err = t.SetNumber(k, x)
	case float32:
		err = t.SetNumber(k, float64(x))
	case int:
		err = t.SetNumber(k, float64(x))
	case int64:
		err = t.SetNumber(k, float64(x))
	case int32:
		err = t.SetNumber(k, float64(x))
	case uint32:
		err = t.SetNumber(k, float64(x))
	case json.Number:
		var f float64
		if f, err = x.Float64(); err == nil {
			err = t.SetNumber(k, f)
		}
	case uint64:
		err = t.SetID(k, x)
	case bool:
		err = t.SetBoolean(k, x)
	case string:
		err = t.SetString(k, x)
	case []byte:
		err = t.SetBytes(k, x)
	case *Table:
		x.Retain()
		if err = t.SetTable(k, x); err != nil {
			x.Release()
		}
	case map[string]any, map[any]any, []any:
		if prev := t.search(k); prev.kind == KindTable {
			err = prev.Table().populate(x, depth+1)
			break
		}
		sub := New()
		if err = sub.populate(x, depth+1); err == nil {
			err = t.SetTable(k, sub)
		}
		if err != nil {
			sub.Release()
		}
	default:
		return &UnsupportedValueError{Key: k, Value: x}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", k, err)
	}
	return nil
}

// MarshalJSON JSON serialization of Export.
func (t *Table) MarshalJSON() ([]byte, error) {
	v, err := t.Export()
	if err != nil {
		return nil, err
	}
	return jsonMarshal(v)
}

// UnmarshalJSON JSON deserialization through Populate. The document must
// be an object or an array.
func (t *Table) UnmarshalJSON(data []byte) error {
	var v any
	if err := jsonUnmarshal(data, &v); err != nil {
		return err
	}
	return t.Populate(v)
}

// String implement the formatting output interface fmt.Stringer
func (t *Table) String() string {
	v, err := t.Export()
	if err != nil {
		return "Table[" + err.Error() + "]"
	}
	if _, ok := v.([]any); ok {
		return "Table" + fmt.Sprint(v)
	}
	return strings.Replace(fmt.Sprint(v), "map[", "Table[", 1)
}
