package catalog

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"
)

// numericPair classifies an arithmetic operand pair. Timestamps and bools take
// part as their integer representation.
func numericPair(a, b Value) (isFloat bool, err error) {
	for _, v := range []Value{a, b} {
		switch v.Type {
		case TypeInteger, TypeTimestamp, TypeBool:
		case TypeFloat:
			isFloat = true
		case TypeString:
			if !v.IsConvertibleToNumeric() {
				return false, NewError(KindTypeError, "can't convert %q to a number", v.Text)
			}
			if _, ierr := v.ToIntegerStrict(); ierr != nil {
				isFloat = true
			}
		default:
			return false, NewError(KindTypeError, "invalid operand type %s", v.Type)
		}
	}
	return isFloat, nil
}

// ToIntegerStrict converts text that holds an integer literal; fractional text
// and integers outside the int64 range are rejected.
func (v Value) ToIntegerStrict() (int64, error) {
	if v.Type != TypeString {
		return v.ToInteger()
	}
	s := strings.TrimSpace(v.Text)
	if len(s) == 0 {
		return 0, NewError(KindTypeError, "empty integer")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, NewError(KindTypeError, "integer out of range %q", v.Text)
	}
	if err != nil {
		return 0, NewError(KindTypeError, "invalid integer %q", v.Text)
	}
	return n, nil
}

func arith(a, b Value, intOp func(x, y int64) int64, floatOp func(x, y float64) float64) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	isFloat, err := numericPair(a, b)
	if err != nil {
		return Null(), err
	}
	if isFloat {
		x, err := a.ToFloat()
		if err != nil {
			return Null(), err
		}
		y, err := b.ToFloat()
		if err != nil {
			return Null(), err
		}
		return NewFloat(floatOp(x, y)), nil
	}
	x, err := a.ToInteger()
	if err != nil {
		return Null(), err
	}
	y, err := b.ToInteger()
	if err != nil {
		return Null(), err
	}
	return NewInteger(intOp(x, y)), nil
}

// Add returns a + b. Two strings concatenate; otherwise integer arithmetic is
// kept unless either side is a float.
func Add(a, b Value) (Value, error) {
	if a.Type == TypeString && b.Type == TypeString {
		return NewString(a.Text + b.Text), nil
	}
	if (a.Type == TypeString && !a.IsConvertibleToNumeric()) ||
		(b.Type == TypeString && !b.IsConvertibleToNumeric()) {
		if a.IsNull() || b.IsNull() {
			return Null(), nil
		}
		return NewString(a.String() + b.String()), nil
	}
	return arith(a, b,
		func(x, y int64) int64 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub returns a - b.
func Sub(a, b Value) (Value, error) {
	return arith(a, b,
		func(x, y int64) int64 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul returns a * b.
func Mul(a, b Value) (Value, error) {
	return arith(a, b,
		func(x, y int64) int64 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div returns a / b as a float. Division by zero yields NULL.
func Div(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	if _, err := numericPair(a, b); err != nil {
		return Null(), err
	}
	x, err := a.ToFloat()
	if err != nil {
		return Null(), err
	}
	y, err := b.ToFloat()
	if err != nil {
		return Null(), err
	}
	if y == 0 {
		return Null(), nil
	}
	return NewFloat(x / y), nil
}

// Mod returns a % b. Modulo by zero yields NULL.
func Mod(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	isFloat, err := numericPair(a, b)
	if err != nil {
		return Null(), err
	}
	if isFloat {
		x, _ := a.ToFloat()
		y, _ := b.ToFloat()
		if y == 0 {
			return Null(), nil
		}
		return NewFloat(math.Mod(x, y)), nil
	}
	x, _ := a.ToInteger()
	y, _ := b.ToInteger()
	if y == 0 {
		return Null(), nil
	}
	return NewInteger(x % y), nil
}

// Pow returns a raised to b. Integer operands with a non-negative exponent stay
// integers.
func Pow(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	isFloat, err := numericPair(a, b)
	if err != nil {
		return Null(), err
	}
	x, _ := a.ToFloat()
	y, _ := b.ToFloat()
	if !isFloat && y >= 0 {
		return NewInteger(int64(math.Pow(x, y))), nil
	}
	return NewFloat(math.Pow(x, y)), nil
}

// Negate returns -v for numbers and the logical negation for bools.
func Negate(v Value) (Value, error) {
	switch v.Type {
	case TypeNull:
		return v, nil
	case TypeInteger:
		return NewInteger(-v.Int), nil
	case TypeFloat:
		return NewFloat(-v.Float), nil
	case TypeBool:
		return NewBool(!v.Bool), nil
	default:
		b, err := v.ToBool()
		if err != nil {
			return Null(), err
		}
		return NewBool(!b), nil
	}
}

// Compare orders two non-NULL values. Strings compare byte-wise; a string
// compared with a number must hold numeric text.
func Compare(a, b Value) (int, error) {
	if a.IsNull() || b.IsNull() {
		return 0, NewError(KindTypeError, "can't compare NULL")
	}
	if a.Type == TypeString && b.Type == TypeString {
		return bytes.Compare([]byte(a.Text), []byte(b.Text)), nil
	}
	if (a.Type == TypeString && !a.IsConvertibleToNumeric()) ||
		(b.Type == TypeString && !b.IsConvertibleToNumeric()) {
		return 0, NewError(KindTypeError, "can't compare %s '%s' with %s '%s'",
			a.Type, a.String(), b.Type, b.String())
	}
	isFloat, err := numericPair(a, b)
	if err != nil {
		return 0, err
	}
	if isFloat {
		x, _ := a.ToFloat()
		y, _ := b.ToFloat()
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	}
	x, _ := a.ToInteger()
	y, _ := b.ToInteger()
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equal reports SQL equality. NULL is unequal to everything, itself included.
// Values of incomparable types are unequal rather than an error.
func Equal(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return false
	}
	if a.Type == TypeString || b.Type == TypeString {
		if a.Type == b.Type {
			return a.Text == b.Text
		}
		if !a.IsConvertibleToNumeric() || !b.IsConvertibleToNumeric() {
			return a.String() == b.String()
		}
	}
	c, err := Compare(a, b)
	return err == nil && c == 0
}

// SortCompare orders any two values for ORDER BY: NULLs first, then by
// Compare, falling back to the display string for incomparable types.
func SortCompare(a, b Value) int {
	switch {
	case a.IsNull() && b.IsNull():
		return 0
	case a.IsNull():
		return -1
	case b.IsNull():
		return 1
	}
	if c, err := Compare(a, b); err == nil {
		return c
	}
	return bytes.Compare([]byte(a.String()), []byte(b.String()))
}
