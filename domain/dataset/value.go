package dataset

import (
	"strconv"
	"strings"
	"time"
)

// ValueType defines the storage type for cell values
type ValueType string

const (
	ValueTypeString    ValueType = "string"
	ValueTypeNumeric   ValueType = "numeric"
	ValueTypeBoolean   ValueType = "boolean"
	ValueTypeTimestamp ValueType = "timestamp"
	ValueTypeMissing   ValueType = "missing"
)

// Value represents a typed cell value with deterministic coercion
type Value struct {
	Type ValueType
	Str  string
	Num  float64
	Bool bool
	TS   time.Time
}

// NewStringValue creates a string value; empty strings become missing
func NewStringValue(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{Type: ValueTypeMissing}
	}
	return Value{Type: ValueTypeString, Str: s}
}

// NewNumericValue creates a numeric value
func NewNumericValue(n float64) Value {
	return Value{Type: ValueTypeNumeric, Num: n}
}

// NewBooleanValue creates a boolean value
func NewBooleanValue(b bool) Value {
	return Value{Type: ValueTypeBoolean, Bool: b}
}

// NewTimestampValue creates a timestamp value
func NewTimestampValue(ts time.Time) Value {
	return Value{Type: ValueTypeTimestamp, TS: ts}
}

// NewMissingValue creates a missing value
func NewMissingValue() Value {
	return Value{Type: ValueTypeMissing}
}

// IsMissing reports whether the value is absent
func (v Value) IsMissing() bool {
	return v.Type == ValueTypeMissing
}

// AsFloat coerces the value to a float64. The second return is false when the
// value cannot be treated as numeric (missing, timestamps, unparsable strings).
func (v Value) AsFloat() (float64, bool) {
	switch v.Type {
	case ValueTypeNumeric:
		return v.Num, true
	case ValueTypeBoolean:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case ValueTypeString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String returns the natural display representation of the value, used for
// group keys and filter comparison
func (v Value) String() string {
	switch v.Type {
	case ValueTypeString:
		return v.Str
	case ValueTypeNumeric:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueTypeBoolean:
		return strconv.FormatBool(v.Bool)
	case ValueTypeTimestamp:
		return v.TS.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// CoerceValue converts a raw cell (as read from a file or database) into a
// typed Value: numeric first, then boolean, then the raw string
func CoerceValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NewMissingValue()
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return NewNumericValue(f)
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return NewBooleanValue(true)
	case "false":
		return NewBooleanValue(false)
	}
	return Value{Type: ValueTypeString, Str: trimmed}
}

// timestampLayouts are the formats tried when normalizing time-like columns
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// ParseTimestamp attempts to interpret a value as a point in time, returning a
// missing value when it cannot be parsed rather than an error
func ParseTimestamp(v Value) Value {
	switch v.Type {
	case ValueTypeTimestamp:
		return v
	case ValueTypeString:
		s := strings.TrimSpace(v.Str)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return NewTimestampValue(ts)
			}
		}
		return NewMissingValue()
	case ValueTypeNumeric:
		// Treat large numbers as unix seconds
		if v.Num > 1e9 && v.Num < 1e11 {
			return NewTimestampValue(time.Unix(int64(v.Num), 0).UTC())
		}
		return NewMissingValue()
	default:
		return NewMissingValue()
	}
}
