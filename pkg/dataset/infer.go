package dataset

import (
	"encoding/json"
	"strconv"
	"strings"
)

// schemaBuilder accumulates field names in first-seen order and widens
// their types as values are observed
type schemaBuilder struct {
	order []string
	types map[string]FieldType
	nulls map[string]bool
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{
		types: make(map[string]FieldType),
		nulls: make(map[string]bool),
	}
}

func (b *schemaBuilder) declare(name string) {
	if _, ok := b.types[name]; ok {
		return
	}
	b.order = append(b.order, name)
	b.types[name] = ""
}

func (b *schemaBuilder) observe(name string, v any) {
	b.declare(name)
	if v == nil {
		b.nulls[name] = true
		return
	}
	b.types[name] = widen(b.types[name], typeOfValue(v))
}

func (b *schemaBuilder) fields() []FieldSpec {
	fields := make([]FieldSpec, len(b.order))
	for i, name := range b.order {
		t := b.types[name]
		if t == "" {
			t = FieldString
		}
		fields[i] = FieldSpec{Name: name, Type: t, Nullable: true}
	}
	return fields
}

func typeOfValue(v any) FieldType {
	switch v.(type) {
	case int64:
		return FieldInteger
	case float64:
		return FieldDouble
	case bool:
		return FieldBoolean
	case string:
		return FieldString
	case []byte:
		return FieldBlob
	default:
		return FieldUnknown
	}
}

// widen returns the narrowest type that can represent both a and b
func widen(a, b FieldType) FieldType {
	switch {
	case a == "" || a == b:
		return b
	case (a == FieldInteger && b == FieldDouble) || (a == FieldDouble && b == FieldInteger):
		return FieldDouble
	case a == FieldUnknown || b == FieldUnknown:
		return FieldUnknown
	default:
		return FieldString
	}
}

// parseCell interprets a text cell. Empty cells are null.
func parseCell(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

// convertCell converts a text cell to the column's inferred type
func convertCell(raw string, t FieldType) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	switch t {
	case FieldString, FieldUnknown, "":
		return raw
	case FieldDouble:
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return f
		}
	}
	return parseCell(raw)
}

// jsonValue normalizes a value decoded with json.Decoder.UseNumber
func jsonValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		s := val.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := val.Int64(); err == nil {
				return i
			}
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return s
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(data)
	default:
		return val
	}
}
