package utils

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// ColumnValues maps every db-tagged field of a struct (or pointer to struct) to its value.
// Nil pointers map to nil, non-nil pointers are dereferenced.
func ColumnValues(v any) map[string]any {
	rv := reflect.Indirect(reflect.ValueOf(v))
	out := make(map[string]any, rv.NumField())
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		col := dbTag(rt.Field(i))
		if col == "" {
			continue
		}
		fv := rv.Field(i)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				out[col] = nil
				continue
			}
			fv = fv.Elem()
		}
		out[col] = fv.Interface()
	}
	return out
}

// ColumnNames lists the db tags of a struct type in declaration order.
func ColumnNames(v any) []string {
	rt := reflect.Indirect(reflect.ValueOf(v)).Type()
	names := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		if col := dbTag(rt.Field(i)); col != "" {
			names = append(names, col)
		}
	}
	return names
}

// SetColumn assigns a raw payload cell to the pointer field tagged db:"column" on target,
// coercing it to the field's type. A blank cell clears the field.
func SetColumn(target any, column string, value any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("SetColumn: target must be a pointer to a struct, got %T", target)
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if dbTag(rt.Field(i)) != column {
			continue
		}
		field := rv.Field(i)
		if field.Kind() != reflect.Ptr {
			return fmt.Errorf("column %s is not nullable", column)
		}
		coerced, err := coerceTo(field.Type().Elem(), value)
		if err != nil {
			return err
		}
		if coerced == nil {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		ptr := reflect.New(field.Type().Elem())
		ptr.Elem().Set(reflect.ValueOf(coerced).Convert(field.Type().Elem()))
		field.Set(ptr)
		return nil
	}
	return fmt.Errorf("unknown column %s", column)
}

func coerceTo(t reflect.Type, value any) (any, error) {
	switch {
	case t == timeType:
		v, err := ToTime(value)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case t.Kind() == reflect.Float64:
		v, err := ToFloat(value)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case t.Kind() == reflect.Int64:
		v, err := ToInt64(value)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case t.Kind() == reflect.String:
		v, err := ToString(value)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	}
	return nil, fmt.Errorf("unsupported column type %s", t)
}

func dbTag(f reflect.StructField) string {
	tag := f.Tag.Get("db")
	if tag == "" || tag == "-" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

// fieldName returns the json name of a struct field, falling back to the Go name.
func fieldName(v any, structField string) string {
	rt := reflect.Indirect(reflect.ValueOf(v)).Type()
	if rt.Kind() != reflect.Struct {
		return structField
	}
	f, ok := rt.FieldByName(structField)
	if !ok {
		return structField
	}
	if tag := strings.Split(f.Tag.Get("json"), ",")[0]; tag != "" && tag != "-" {
		return tag
	}
	return structField
}

func derefValue(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}
