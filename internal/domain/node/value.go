package node

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	appErrors "typegraph-backend/internal/errors"
)

// Value is a property value: exactly one of string, bool or calendar date.
type Value struct {
	kind PrimitiveType
	str  string
	b    bool
	date Date
}

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: TypeString, str: s} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{kind: TypeBoolean, b: b} }

// DateValue wraps d.
func DateValue(d Date) Value { return Value{kind: TypeDate, date: d} }

// Kind returns the primitive type held. The zero Value holds an empty string.
func (v Value) Kind() PrimitiveType {
	if v.kind == 0 {
		return TypeString
	}
	return v.kind
}

// Bool returns the boolean and whether v holds one.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == TypeBoolean }

// Date returns the date and whether v holds one.
func (v Value) Date() (Date, bool) { return v.date, v.kind == TypeDate }

// Text returns the string and whether v holds one.
func (v Value) Text() (string, bool) { return v.str, v.Kind() == TypeString }

// String renders the value for display. Dates use DateLayout.
func (v Value) String() string {
	switch v.Kind() {
	case TypeBoolean:
		if v.b {
			return "true"
		}
		return "false"
	case TypeDate:
		return v.date.String()
	default:
		return v.str
	}
}

// Wire returns the value handed to the store as a bound parameter.
func (v Value) Wire() any {
	switch v.Kind() {
	case TypeBoolean:
		return v.b
	case TypeDate:
		return v.date
	default:
		return v.str
	}
}

// Equal compares kind and payload.
func (v Value) Equal(other Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	switch v.Kind() {
	case TypeBoolean:
		return v.b == other.b
	case TypeDate:
		return v.date == other.date
	default:
		return v.str == other.str
	}
}

// MarshalJSON emits a JSON string, bool, or a DateLayout string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Wire())
}

// ZeroValue is the type default used for backfills and missing inputs.
func ZeroValue(t PrimitiveType) Value {
	switch t {
	case TypeBoolean:
		return BoolValue(false)
	case TypeDate:
		return DateValue(SentinelDate)
	default:
		return StringValue("")
	}
}

// Marshal converts raw input for property into a Value of type t.
//
//	Boolean: native bool, or "true"/"false" in any case.
//	Date:    Date, time.Time, or a string ParseDate accepts.
//	String:  anything; nil becomes "".
func Marshal(property string, t PrimitiveType, raw any) (Value, error) {
	switch t {
	case TypeBoolean:
		return marshalBool(property, raw)
	case TypeDate:
		return marshalDate(property, raw)
	case TypeString:
		return StringValue(stringify(raw)), nil
	default:
		return Value{}, appErrors.Validation(appErrors.CodeUnknownPrimitiveType,
			fmt.Sprintf("property %q has unknown primitive type", property)).
			WithResource(property).
			WithDetails(t.String()).
			Build()
	}
}

func marshalBool(property string, raw any) (Value, error) {
	switch v := raw.(type) {
	case bool:
		return BoolValue(v), nil
	case Value:
		if b, ok := v.Bool(); ok {
			return BoolValue(b), nil
		}
		return marshalBool(property, v.String())
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		}
	}
	return Value{}, appErrors.InvalidValue(property, raw, "true or false")
}

func marshalDate(property string, raw any) (Value, error) {
	switch v := raw.(type) {
	case Date:
		return DateValue(v), nil
	case *Date:
		if v != nil {
			return DateValue(*v), nil
		}
	case time.Time:
		return DateValue(DateOf(v)), nil
	case Value:
		if d, ok := v.Date(); ok {
			return DateValue(d), nil
		}
		return marshalDate(property, v.String())
	case string:
		if d, err := ParseDate(v); err == nil {
			return DateValue(d), nil
		}
	}
	return Value{}, appErrors.InvalidValue(property, raw, "a calendar date")
}

func stringify(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case Value:
		return v.String()
	case Date:
		return v.String()
	case time.Time:
		return DateOf(v).String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// FromWire converts a value read back from the store into a Value without a
// schema: bools and dates keep their kind, timestamps become dates and
// everything else is rendered as a string.
func FromWire(raw any) Value {
	switch v := raw.(type) {
	case bool:
		return BoolValue(v)
	case Date:
		return DateValue(v)
	case time.Time:
		return DateValue(DateOf(v))
	case Value:
		return v
	default:
		return StringValue(stringify(raw))
	}
}

// Unmarshal reads a stored value for a property declared as t. Unlike Marshal
// it never fails: dates fall back to SentinelDate so legacy data always renders.
func Unmarshal(t PrimitiveType, raw any) Value {
	switch t {
	case TypeDate:
		return NormalizeDate(raw)
	case TypeBoolean:
		if v, err := marshalBool("", raw); err == nil {
			return v
		}
		return FromWire(raw)
	default:
		return StringValue(stringify(raw))
	}
}

// NormalizeDate tries, in order, a native date, a timestamp and a string
// parse, and substitutes SentinelDate when all of them fail.
func NormalizeDate(raw any) Value {
	switch v := raw.(type) {
	case Date:
		return DateValue(v)
	case time.Time:
		return DateValue(DateOf(v))
	case Value:
		if d, ok := v.Date(); ok {
			return DateValue(d)
		}
		return NormalizeDate(v.String())
	case string:
		if d, err := ParseDate(v); err == nil {
			return DateValue(d)
		}
	}
	return DateValue(SentinelDate)
}
