// Package serialize converts typed resource structs into CloudFormation
// property maps.
package serialize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
)

// Properties serializes a resource to its CloudFormation Properties map.
func Properties(r codebuild_cfn.Resource) (map[string]any, error) {
	if r == nil {
		return nil, fmt.Errorf("nil resource")
	}
	props, err := Struct(r)
	if err != nil {
		return nil, fmt.Errorf("serializing %s: %w", r.ResourceType(), err)
	}
	return props, nil
}

// Struct serializes a Go struct to a property map.
//
// Field names come from the json tag (or the Go name when untagged).
// Fields tagged "-", unexported fields and zero values are omitted.
// Values implementing json.Marshaler (intrinsics, policy principals,
// AttrRef) are normalized through their JSON form, so the result holds
// only maps, slices, strings, numbers and booleans.
func Struct(v any) (map[string]any, error) {
	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected struct, got %s", val.Kind())
	}

	result := make(map[string]any)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		name := fieldName(field)
		if name == "-" {
			continue
		}

		fieldVal := val.Field(i)
		if isZero(fieldVal) {
			continue
		}

		serialized, err := value(fieldVal)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if serialized != nil {
			result[name] = serialized
		}
	}

	return result, nil
}

func fieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" {
		return field.Name
	}
	return name
}

func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Struct:
		if zeroer, ok := v.Interface().(interface{ IsZero() bool }); ok {
			return zeroer.IsZero()
		}
		return false
	default:
		return v.IsZero()
	}
}

func value(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		// A pointer may carry the Marshaler; check before dereferencing.
		if v.Kind() == reflect.Ptr {
			if m, ok := v.Interface().(json.Marshaler); ok {
				return viaJSON(m)
			}
		}
		return value(v.Elem())
	}

	if m, ok := v.Interface().(json.Marshaler); ok {
		return viaJSON(m)
	}

	switch v.Kind() {
	case reflect.Struct:
		return Struct(v.Interface())

	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return nil, nil
		}
		result := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := value(v.Index(i))
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			result[i] = elem
		}
		return result, nil

	case reflect.Map:
		if v.Len() == 0 {
			return nil, nil
		}
		result := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			elem, err := value(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			result[key] = elem
		}
		return result, nil

	case reflect.String:
		return v.String(), nil

	case reflect.Bool:
		return v.Bool(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil

	case reflect.Float32, reflect.Float64:
		return v.Float(), nil

	default:
		return nil, fmt.Errorf("unsupported kind %s", v.Kind())
	}
}

func viaJSON(m json.Marshaler) (any, error) {
	data, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}
