// Package catalog provides the value type system and table/column descriptors
// shared by the query engine.
package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DataType represents the runtime type of a value or column.
type DataType int

const (
	TypeNull DataType = iota
	TypeInteger
	TypeFloat
	TypeBool
	TypeString
	TypeTimestamp
)

// TimestampFormat is the display layout for timestamp values.
const TimestampFormat = "2006-01-02 15:04:05"

// String returns the SQL name of the type.
func (t DataType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeBool:
		return "BOOL"
	case TypeString:
		return "STRING"
	case TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "UNKNOWN"
	}
}

// ParseDataType converts a type name to DataType.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INT", "INT32", "INT64", "INTEGER", "BIGINT", "UINT64":
		return TypeInteger, nil
	case "FLOAT", "FLOAT64", "DOUBLE", "REAL":
		return TypeFloat, nil
	case "BOOL", "BOOLEAN":
		return TypeBool, nil
	case "STRING", "TEXT", "VARCHAR":
		return TypeString, nil
	case "TIMESTAMP", "DATETIME", "TIMESTAMP64":
		return TypeTimestamp, nil
	case "NULL", "NIL":
		return TypeNull, nil
	default:
		return TypeNull, fmt.Errorf("unknown data type: %s", s)
	}
}

// IsNumeric reports whether values of this type take part in arithmetic as numbers.
func (t DataType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeTimestamp, TypeBool:
		return true
	default:
		return false
	}
}

// Value is a tagged runtime value. Timestamps are stored as microseconds since
// the unix epoch in Int.
type Value struct {
	Type  DataType
	Int   int64
	Float float64
	Bool  bool
	Text  string
}

// NewInteger creates an INTEGER value.
func NewInteger(v int64) Value {
	return Value{Type: TypeInteger, Int: v}
}

// NewFloat creates a FLOAT value.
func NewFloat(v float64) Value {
	return Value{Type: TypeFloat, Float: v}
}

// NewBool creates a BOOL value.
func NewBool(v bool) Value {
	return Value{Type: TypeBool, Bool: v}
}

// NewString creates a STRING value.
func NewString(v string) Value {
	return Value{Type: TypeString, Text: v}
}

// NewTimestamp creates a TIMESTAMP value from unix microseconds.
func NewTimestamp(micros int64) Value {
	return Value{Type: TypeTimestamp, Int: micros}
}

// NewTime creates a TIMESTAMP value from a time.Time.
func NewTime(t time.Time) Value {
	return NewTimestamp(t.UnixMicro())
}

// Null returns the NULL value.
func Null() Value {
	return Value{Type: TypeNull}
}

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool {
	return v.Type == TypeNull
}

// Time returns the timestamp as a UTC time.Time.
func (v Value) Time() time.Time {
	return time.UnixMicro(v.Int).UTC()
}

// String returns the display representation of the value.
func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return strconv.FormatInt(v.Int, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'f', 6, 64)
	case TypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case TypeString:
		return v.Text
	case TypeTimestamp:
		return v.Time().Format(TimestampFormat)
	default:
		return "?"
	}
}

// Key returns a string that is equal for two values iff they are the same
// type and hold the same data. Used for grouping.
func (v Value) Key() string {
	switch v.Type {
	case TypeFloat:
		return "f:" + strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TypeTimestamp:
		return "t:" + strconv.FormatInt(v.Int, 10)
	default:
		return strconv.Itoa(int(v.Type)) + ":" + v.String()
	}
}

// IsConvertibleToNumeric reports whether v can be read as a number.
func (v Value) IsConvertibleToNumeric() bool {
	switch v.Type {
	case TypeInteger, TypeFloat, TypeTimestamp, TypeBool:
		return true
	case TypeString:
		_, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		return err == nil
	default:
		return false
	}
}

// ToInteger converts v to an int64. Text is parsed best-effort; fractional
// text is truncated ("123.5" -> 123).
func (v Value) ToInteger() (int64, error) {
	switch v.Type {
	case TypeNull:
		return 0, nil
	case TypeInteger, TypeTimestamp:
		return v.Int, nil
	case TypeFloat:
		return floatToInteger(v.Float)
	case TypeBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case TypeString:
		s := strings.TrimSpace(v.Text)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInteger(f)
		}
		return 0, NewError(KindTypeError, "can't convert %q to INTEGER", v.Text)
	default:
		return 0, NewError(KindTypeError, "can't convert %s to INTEGER", v.Type)
	}
}

// floatToInteger truncates f, rejecting values an int64 can't hold.
func floatToInteger(f float64) (int64, error) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, NewError(KindTypeError, "%g is out of INTEGER range", f)
	}
	return int64(f), nil
}

// ToFloat converts v to a float64.
func (v Value) ToFloat() (float64, error) {
	switch v.Type {
	case TypeNull:
		return 0, nil
	case TypeInteger, TypeTimestamp:
		return float64(v.Int), nil
	case TypeFloat:
		return v.Float, nil
	case TypeBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case TypeString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0, NewError(KindTypeError, "can't convert %q to FLOAT", v.Text)
		}
		return f, nil
	default:
		return 0, NewError(KindTypeError, "can't convert %s to FLOAT", v.Type)
	}
}

// ToBool converts v to a bool. NULL is false.
func (v Value) ToBool() (bool, error) {
	switch v.Type {
	case TypeNull:
		return false, nil
	case TypeBool:
		return v.Bool, nil
	case TypeInteger, TypeTimestamp:
		return v.Int != 0, nil
	case TypeFloat:
		return v.Float != 0, nil
	case TypeString:
		switch strings.ToLower(strings.TrimSpace(v.Text)) {
		case "true":
			return true, nil
		case "false", "":
			return false, nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64); err == nil {
			return f != 0, nil
		}
		return false, NewError(KindTypeError, "can't convert %q to BOOL", v.Text)
	default:
		return false, NewError(KindTypeError, "can't convert %s to BOOL", v.Type)
	}
}

// ToTimestamp converts v to unix microseconds. Numbers are read as
// microseconds; text may be a number or a "2006-01-02 15:04:05" date.
func (v Value) ToTimestamp() (int64, error) {
	switch v.Type {
	case TypeTimestamp, TypeInteger:
		return v.Int, nil
	case TypeFloat:
		return int64(v.Float), nil
	case TypeString:
		s := strings.TrimSpace(v.Text)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		for _, layout := range []string{TimestampFormat, time.RFC3339, "2006-01-02"} {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t.UnixMicro(), nil
			}
		}
		return 0, NewError(KindTypeError, "can't convert %q to TIMESTAMP", v.Text)
	default:
		return 0, NewError(KindTypeError, "can't convert %s to TIMESTAMP", v.Type)
	}
}

// ToStringValue returns v converted to a STRING value (NULL stays NULL).
func (v Value) ToStringValue() Value {
	if v.IsNull() {
		return v
	}
	return NewString(v.String())
}

// CastTo converts v to the given type.
func (v Value) CastTo(t DataType) (Value, error) {
	if v.IsNull() || v.Type == t {
		return v, nil
	}
	switch t {
	case TypeInteger:
		i, err := v.ToInteger()
		return NewInteger(i), err
	case TypeFloat:
		f, err := v.ToFloat()
		return NewFloat(f), err
	case TypeBool:
		b, err := v.ToBool()
		return NewBool(b), err
	case TypeString:
		return NewString(v.String()), nil
	case TypeTimestamp:
		ts, err := v.ToTimestamp()
		return NewTimestamp(ts), err
	case TypeNull:
		return Null(), nil
	default:
		return v, NewError(KindTypeError, "can't convert %s to %s", v.Type, t)
	}
}

// ParseValue reads untyped text (CSV cells, shell input) into the narrowest
// matching value. Empty text is NULL.
func ParseValue(s string) Value {
	if s == "" {
		return Null()
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewInteger(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
		return NewFloat(f)
	}
	switch strings.ToLower(s) {
	case "true":
		return NewBool(true)
	case "false":
		return NewBool(false)
	}
	return NewString(s)
}
