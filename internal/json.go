package internal

import "sort"

// ToJSONLike projects a Value into the JSON-like structure spec.md §6
// defines: Int -> number, Bool -> boolean, Str -> string, List -> array,
// Record -> an ordered list of key/value pairs (rendered as a JSON object
// by the host, keys ascending), Fun -> the placeholder string. The core
// intentionally returns a plain Go value (not a json.RawMessage or
// map[string]any) so it never imports encoding/json itself; hosts choose
// their own serialization library (SPEC_FULL.md §6).
func ToJSONLike(v Value) interface{} {
	switch val := v.(type) {
	case IntValue:
		return val.Value
	case BoolValue:
		return val.Value
	case StrValue:
		return val.Value
	case UnitValue:
		return nil
	case ListValue:
		out := make([]interface{}, len(val.Elems))
		for i, elem := range val.Elems {
			out[i] = ToJSONLike(elem)
		}
		return out
	case RecordValue:
		return orderedRecordJSON(val)
	case FunValue:
		return FunctionPlaceholder
	default:
		return nil
	}
}

// OrderedField is one key/value pair of a Record's JSON-like projection, in
// ascending key order (spec.md §6: "Record -> object with keys in
// ascending order").
type OrderedField struct {
	Key   string
	Value interface{}
}

func orderedRecordJSON(r RecordValue) []OrderedField {
	keys := make([]string, 0, r.Fields.Len())
	for pair := r.Fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	sort.Strings(keys)

	out := make([]OrderedField, 0, len(keys))
	for _, k := range keys {
		v, _ := r.Fields.Get(k)
		out = append(out, OrderedField{Key: k, Value: ToJSONLike(v)})
	}
	return out
}
