package tool

import (
	"reflect"
	"strings"
)

// GenerateSchema derives a JSON Schema object from a struct value.
//
// Property names come from the json tag and fall back to the field name.
// A "description" tag becomes the property description and a comma separated
// "enum" tag becomes its allowed values. Fields without omitempty are required.
// Non-struct input yields an empty object schema.
func GenerateSchema(v any) map[string]any {
	return objectSchema(reflect.TypeOf(v))
}

func objectSchema(t reflect.Type) map[string]any {
	t = deref(t)
	properties := map[string]any{}
	schema := map[string]any{"type": "object", "properties": properties}
	if t == nil || t.Kind() != reflect.Struct {
		return schema
	}

	var required []string
	for i := range t.NumField() {
		field := t.Field(i)
		name, omitEmpty, ok := jsonName(field)
		if !ok {
			continue
		}

		properties[name] = propertySchema(field)
		if !omitEmpty {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func propertySchema(field reflect.StructField) map[string]any {
	ft := deref(field.Type)
	var prop map[string]any
	if ft.Kind() == reflect.Struct {
		prop = objectSchema(ft)
	} else {
		prop = map[string]any{"type": jsonType(ft)}
	}
	if desc := field.Tag.Get("description"); desc != "" {
		prop["description"] = desc
	}
	if enum := field.Tag.Get("enum"); enum != "" {
		prop["enum"] = strings.Split(enum, ",")
	}
	return prop
}

// jsonName reports the wire name of an exported field and whether it is optional.
func jsonName(field reflect.StructField) (name string, omitEmpty, ok bool) {
	if !field.IsExported() {
		return "", false, false
	}
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	return name, strings.Contains(opts, "omitempty"), true
}

func deref(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}
