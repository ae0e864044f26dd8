// Package jsonschema derives JSON Schema documents for tool inputs from Go
// struct types. Schemas are what providers advertise to the model, so they
// only need the subset of the standard that tool parameters use: objects,
// arrays, primitives, enums and required markers.
//
// Struct fields are customized with the `jsonschema` tag:
//
//	type Input struct {
//	    City string `json:"city" jsonschema:"description=City name,required"`
//	    Unit string `json:"unit" jsonschema:"enum=celsius,enum=fahrenheit"`
//	}
package jsonschema

import (
	"fmt"
	"reflect"
	"strings"
)

// maxDepth bounds nesting while walking field types. Tool inputs are flat
// request structs; hitting the bound means a recursive type was registered.
const maxDepth = 16

// Schema is a JSON Schema fragment.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
}

// For derives the schema for type T. T must flatten to a JSON object within
// maxDepth levels; recursive types are rejected.
func For[T any]() (*Schema, error) {
	return fromType(reflect.TypeFor[T](), 0)
}

func fromType(t reflect.Type, depth int) (*Schema, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("jsonschema: type nests deeper than %d levels (recursive type?)", maxDepth)
	}

	switch t.Kind() {
	case reflect.Pointer:
		return fromType(t.Elem(), depth)

	case reflect.String:
		return &Schema{Type: "string"}, nil

	case reflect.Bool:
		return &Schema{Type: "boolean"}, nil

	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}, nil

	case reflect.Slice, reflect.Array:
		items, err := fromType(t.Elem(), depth+1)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items}, nil

	case reflect.Map:
		values, err := fromType(t.Elem(), depth+1)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", AdditionalProperties: values}, nil

	case reflect.Struct:
		return fromStruct(t, depth)

	default:
		return &Schema{Type: "object"}, nil
	}
}

func fromStruct(t reflect.Type, depth int) (*Schema, error) {
	schema := &Schema{Type: "object", Properties: map[string]*Schema{}}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, omitEmpty, skip := jsonName(field)
		if skip {
			continue
		}

		fieldSchema, err := fromType(field.Type, depth+1)
		if err != nil {
			return nil, fmt.Errorf("jsonschema: field %s: %w", field.Name, err)
		}

		requiredByTag := applyTag(field.Tag.Get("jsonschema"), fieldSchema)
		schema.Properties[name] = fieldSchema

		// A plain value field without omitempty is required; pointers and
		// omitempty fields are optional unless the tag says otherwise.
		if requiredByTag || (field.Type.Kind() != reflect.Pointer && !omitEmpty) {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema, nil
}

func jsonName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = field.Name
	if tag != "" {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			name = parts[0]
		}
		for _, option := range parts[1:] {
			if option == "omitempty" {
				omitEmpty = true
			}
		}
	}
	return name, omitEmpty, false
}

// applyTag folds a `jsonschema` struct tag into the field schema and reports
// whether the field was explicitly marked required.
func applyTag(tag string, schema *Schema) bool {
	if tag == "" {
		return false
	}

	required := false
	for _, item := range strings.Split(tag, ",") {
		key, value, hasValue := strings.Cut(item, "=")
		switch {
		case key == "required" && !hasValue:
			required = true
		case key == "description":
			schema.Description = value
		case key == "enum":
			schema.Enum = append(schema.Enum, value)
		}
	}
	return required
}
