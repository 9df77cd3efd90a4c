package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Type parses and checks one slot value. Slot values arrive as strings from
// the recognizer; a Type turns them into the Go value a response renders.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "string", "int").
	Name() string
	// Parse converts a raw slot value, or explains why it does not fit.
	Parse(raw string) (any, error)
}

// --- Built-in Type Implementations ---

// StringType accepts any non-empty value.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Parse(raw string) (any, error) {
	if raw == "" {
		return nil, fmt.Errorf("expected a value")
	}
	return raw, nil
}

// IntType parses base-10 integers.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Parse(raw string) (any, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("expected int, got %q", raw)
	}
	return v, nil
}

// FloatType parses floating-point numbers.
type FloatType struct{}

func (t *FloatType) Name() string { return "float" }

func (t *FloatType) Parse(raw string) (any, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("expected float, got %q", raw)
	}
	return v, nil
}

// BoolType parses yes/no style answers as well as Go boolean literals.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Parse(raw string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("expected bool, got %q", raw)
	}
	return v, nil
}

// SliceType parses comma-separated lists of a specific element type.
type SliceType struct {
	elemType Type
}

func (t *SliceType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

func (t *SliceType) Parse(raw string) (any, error) {
	parts := strings.Split(raw, ",")
	out := make([]any, 0, len(parts))
	for i, p := range parts {
		v, err := t.elemType.Parse(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// CustomType applies a user-defined parse function.
type CustomType struct {
	name  string
	parse func(string) (any, error)
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Parse(raw string) (any, error) {
	return t.parse(raw)
}

// --- Factory Functions ---

// String creates a string type.
func String() Type { return &StringType{} }

// Int creates an integer type.
func Int() Type { return &IntType{} }

// Float creates a float type.
func Float() Type { return &FloatType{} }

// Bool creates a boolean type.
func Bool() Type { return &BoolType{} }

// Slice creates a list type for elements of the given type.
func Slice(elemType Type) Type {
	return &SliceType{elemType: elemType}
}

// Custom creates a type with a user-defined parser.
func Custom(name string, parse func(string) (any, error)) Type {
	return &CustomType{name: name, parse: parse}
}

// ParseType converts a string type name to a Type.
// Supports basic types: "string", "int", "float", "bool", "[string]", "[int]", etc.
func ParseType(typeStr string) (Type, error) {
	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elemType, err := ParseType(typeStr[1 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elemType), nil
	}

	switch typeStr {
	case "string", "":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}

// ParseTypeMap converts a map of slot names to type strings into a Schema.
// Example: {"party_size": "int", "date": "string"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}
