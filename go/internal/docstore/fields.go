package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Fields is the field map of a document. Values are JSON compatible scalars
// (string, bool, numbers, time.Time) or one of the write sentinels below.
type Fields map[string]any

type serverTimestamp struct{}

type increment struct {
	by float64
}

// ServerTimestamp is a write sentinel replaced by the store's current time
// when the write is applied.
func ServerTimestamp() any { return serverTimestamp{} }

// Increment is a write sentinel that atomically adds n to the stored number.
// A missing or non-numeric field is treated as zero.
func Increment(n float64) any { return increment{by: n} }

// Precondition must hold on the stored document for an Update to apply.
type Precondition struct {
	Field  string
	Equals any
}

// FieldEquals builds a Precondition.
func FieldEquals(field string, value any) Precondition {
	return Precondition{Field: field, Equals: value}
}

// Clone returns a shallow copy of the map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// mergeFields applies changes on top of current and returns the new field set.
// Sentinels are resolved against current and now. current is not modified.
func mergeFields(current, changes Fields, now time.Time) Fields {
	out := current.Clone()
	for k, v := range changes {
		switch t := v.(type) {
		case serverTimestamp:
			out[k] = now.UTC()
		case increment:
			base, _ := toFloat(out[k])
			out[k] = base + t.by
		default:
			out[k] = normalize(v)
		}
	}
	return out
}

// checkPreconditions returns ErrPreconditionFailed when any precondition does
// not hold on fields.
func checkPreconditions(fields Fields, preconds []Precondition) error {
	for _, p := range preconds {
		if !valuesEqual(fields[p.Field], p.Equals) {
			return fmt.Errorf("%w: %s", ErrPreconditionFailed, p.Field)
		}
	}
	return nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func valuesEqual(stored, want any) bool {
	stored, want = normalize(stored), normalize(want)
	if st, ok := stored.(time.Time); ok {
		if wt, ok := want.(time.Time); ok {
			return st.Equal(wt)
		}
	}
	return reflect.DeepEqual(stored, want)
}

// encodeFields serialises fields for the JSON backed adapters. Times are
// written as RFC 3339 strings.
func encodeFields(f Fields) ([]byte, error) {
	if f == nil {
		f = Fields{}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return data, nil
}

func decodeFields(data []byte) (Fields, error) {
	f := Fields{}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return f, nil
}
