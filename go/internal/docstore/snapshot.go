package docstore

import (
	"math"
	"time"
)

// Snapshot is a read of one document.
type Snapshot struct {
	Ref        DocumentRef
	Fields     Fields
	CreateTime time.Time
	UpdateTime time.Time
}

// ID returns the document id.
func (s Snapshot) ID() string { return s.Ref.ID() }

// String returns a string field, or "" when missing or of another type.
func (s Snapshot) String(field string) string {
	v, _ := s.Fields[field].(string)
	return v
}

// Bool returns a bool field, or false when missing.
func (s Snapshot) Bool(field string) bool {
	v, _ := s.Fields[field].(bool)
	return v
}

// Float returns a numeric field as float64.
func (s Snapshot) Float(field string) float64 {
	v, _ := toFloat(s.Fields[field])
	return v
}

// Int returns a numeric field rounded to the nearest integer.
func (s Snapshot) Int(field string) int64 {
	return int64(math.Round(s.Float(field)))
}

// Time returns a timestamp field. JSON backed stores hold timestamps as
// RFC 3339 strings, the memory store as time.Time.
func (s Snapshot) Time(field string) time.Time {
	switch v := s.Fields[field].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}
