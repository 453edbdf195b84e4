package node

import (
	"fmt"
	"strings"
)

// PrimitiveType is the closed set of property types a schema may declare.
// The text tags are part of the persisted registry format and must not change.
type PrimitiveType int

const (
	TypeString PrimitiveType = iota + 1
	TypeBoolean
	TypeDate
)

// Tags are the stable serialisation names.
const (
	tagString  = "string"
	tagBoolean = "boolean"
	tagDate    = "date"
)

// PrimitiveTypes lists every valid primitive type in declaration order.
func PrimitiveTypes() []PrimitiveType {
	return []PrimitiveType{TypeString, TypeBoolean, TypeDate}
}

// Valid reports whether t is one of the declared types.
func (t PrimitiveType) Valid() bool {
	switch t {
	case TypeString, TypeBoolean, TypeDate:
		return true
	}
	return false
}

func (t PrimitiveType) String() string {
	switch t {
	case TypeString:
		return tagString
	case TypeBoolean:
		return tagBoolean
	case TypeDate:
		return tagDate
	default:
		return fmt.Sprintf("primitive(%d)", int(t))
	}
}

// ParsePrimitiveType resolves a serialisation tag, case-insensitively.
func ParsePrimitiveType(tag string) (PrimitiveType, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case tagString:
		return TypeString, nil
	case tagBoolean, "bool":
		return TypeBoolean, nil
	case tagDate:
		return TypeDate, nil
	}
	return 0, fmt.Errorf("unknown primitive type %q", tag)
}

// MarshalText implements encoding.TextMarshaler.
func (t PrimitiveType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown primitive type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PrimitiveType) UnmarshalText(text []byte) error {
	parsed, err := ParsePrimitiveType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
