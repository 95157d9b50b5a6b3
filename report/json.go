package report

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Finite returns v with every NaN or infinite float replaced by its name
// ("NaN", "+Inf", "-Inf"), which encoding/json would otherwise reject.
// Containers holding such a float are rebuilt as []any or map[string]any;
// everything else is returned as is.
func Finite(v any) any {
	out, _ := finite(reflect.ValueOf(v))
	return out
}

func finite(v reflect.Value) (any, bool) {
	if !v.IsValid() {
		return nil, false
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		switch f := v.Float(); {
		case math.IsNaN(f):
			return "NaN", true
		case math.IsInf(f, 1):
			return "+Inf", true
		case math.IsInf(f, -1):
			return "-Inf", true
		}

	case reflect.Interface, reflect.Pointer:
		if !v.IsNil() {
			if out, changed := finite(v.Elem()); changed {
				return out, true
			}
		}

	case reflect.Slice, reflect.Array:
		var out []any
		for i := range v.Len() {
			elem, changed := finite(v.Index(i))
			if changed && out == nil {
				out = make([]any, v.Len())
				for j := range i {
					out[j] = v.Index(j).Interface()
				}
			}
			if out != nil {
				out[i] = elem
			}
		}
		if out != nil {
			return out, true
		}

	case reflect.Map:
		changed := false
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			elem, c := finite(iter.Value())
			changed = changed || c
			out[mapKey(iter.Key())] = elem
		}
		if changed {
			return out, true
		}

	case reflect.Struct:
		changed := false
		out := make(map[string]any, v.NumField())
		for i := range v.NumField() {
			field := v.Type().Field(i)
			name, skip := jsonName(field)
			if skip {
				continue
			}
			elem, c := finite(v.Field(i))
			changed = changed || c
			out[name] = elem
		}
		if changed {
			return out, true
		}
	}
	return v.Interface(), false
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

func jsonName(field reflect.StructField) (string, bool) {
	if !field.IsExported() {
		return "", true
	}
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return field.Name, false
}
