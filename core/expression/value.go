// Package expression evaluates the restricted boolean-expression
// language of SAGE rules over tabular row-sets. Expressions are
// parsed into a typed AST over a closed operator set and evaluated by
// structural recursion, never by dynamic code execution.
package expression

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind represents the type of a value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindTime

	// KindInvalid marks a per-row coercion failure (e.g. astype(float)
	// over non-numeric text). It propagates like null and materializes
	// as rule-violated for that row rather than aborting the rule.
	KindInvalid
)

// String returns the kind name
func (k ValueKind) String() string {
	names := []string{"null", "bool", "number", "string", "time", "invalid"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Value is one typed cell-level value
type Value struct {
	kind      ValueKind
	boolVal   bool
	numberVal decimal.Decimal
	stringVal string
	timeVal   time.Time
}

// Null creates a null value
func Null() Value {
	return Value{kind: KindNull}
}

// Invalid creates a coercion-failure marker
func Invalid() Value {
	return Value{kind: KindInvalid}
}

// Bool creates a boolean value
func Bool(v bool) Value {
	return Value{kind: KindBool, boolVal: v}
}

// Number creates a numeric value
func Number(v decimal.Decimal) Value {
	return Value{kind: KindNumber, numberVal: v}
}

// NumberFromInt creates a numeric value from an integer
func NumberFromInt(v int64) Value {
	return Value{kind: KindNumber, numberVal: decimal.NewFromInt(v)}
}

// String creates a string value
func String(v string) Value {
	return Value{kind: KindString, stringVal: v}
}

// Time creates a time value
func Time(v time.Time) Value {
	return Value{kind: KindTime, timeVal: v}
}

// Kind returns the value kind
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull returns true for null values
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsVoid returns true for values that cannot satisfy a rule: null and
// coercion failures
func (v Value) IsVoid() bool {
	return v.kind == KindNull || v.kind == KindInvalid
}

// AsBool returns the boolean value
func (v Value) AsBool() (bool, bool) {
	return v.boolVal, v.kind == KindBool
}

// AsNumber returns the numeric value
func (v Value) AsNumber() (decimal.Decimal, bool) {
	return v.numberVal, v.kind == KindNumber
}

// AsString returns the string value
func (v Value) AsString() (string, bool) {
	return v.stringVal, v.kind == KindString
}

// AsTime returns the time value
func (v Value) AsTime() (time.Time, bool) {
	return v.timeVal, v.kind == KindTime
}

// Equals compares two values. Void operands yield a void result;
// mismatched kinds compare unequal.
func (v Value) Equals(other Value) Value {
	if v.IsVoid() || other.IsVoid() {
		return Null()
	}
	if v.kind != other.kind {
		return Bool(false)
	}
	switch v.kind {
	case KindBool:
		return Bool(v.boolVal == other.boolVal)
	case KindNumber:
		return Bool(v.numberVal.Equal(other.numberVal))
	case KindString:
		return Bool(v.stringVal == other.stringVal)
	case KindTime:
		return Bool(v.timeVal.Equal(other.timeVal))
	default:
		return Bool(false)
	}
}

// Compare orders two values: -1, 0, or 1. Ordering is defined for
// numbers against numbers and times against times only; anything else
// is a type mismatch surfaced to the rule as an ExpressionError.
func (v Value) Compare(other Value) (int, error) {
	if v.kind == KindNumber && other.kind == KindNumber {
		return v.numberVal.Cmp(other.numberVal), nil
	}
	if v.kind == KindTime && other.kind == KindTime {
		switch {
		case v.timeVal.Before(other.timeVal):
			return -1, nil
		case v.timeVal.After(other.timeVal):
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, fmt.Errorf("cannot order %s against %s", v.kind, other.kind)
}

// GoString returns a diagnostic representation
func (v Value) GoString() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInvalid:
		return "(invalid)"
	case KindBool:
		return fmt.Sprintf("%t", v.boolVal)
	case KindNumber:
		return v.numberVal.String()
	case KindString:
		return fmt.Sprintf("%q", v.stringVal)
	case KindTime:
		return v.timeVal.Format(time.RFC3339)
	default:
		return "(unknown)"
	}
}
