package utils

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

func AnyToType[T any](input any) (T, error) {
	var zero T
	if input == nil {
		return zero, nil
	}

	if result, ok := input.(T); ok {
		return result, nil
	}

	targetType := reflect.TypeOf(zero)
	if targetType == nil {
		return zero, fmt.Errorf("type mismatch: expected %T, got %T", zero, input)
	}

	inputValue := reflect.ValueOf(input)

	// Numeric conversions only (avoid surprising conversions like int -> string (rune)).
	if isNumericKind(inputValue.Kind()) && isNumericKind(targetType.Kind()) && inputValue.Type().ConvertibleTo(targetType) {
		converted := inputValue.Convert(targetType)
		if result, ok := converted.Interface().(T); ok {
			return result, nil
		}
	}

	return zero, fmt.Errorf("type mismatch: expected %T, got %T", zero, input)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// IsBlank reports values that an upload row uses to mean "no cell": nil, empty strings and NaN.
func IsBlank(input any) bool {
	switch v := input.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(v)
		return s == "" || strings.EqualFold(s, "nan")
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	}
	return false
}

// ToFloat coerces a payload cell to a float. Blank cells give (nil, nil).
func ToFloat(input any) (*float64, error) {
	if IsBlank(input) {
		return nil, nil
	}
	switch v := input.(type) {
	case *float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("'%s' is not a number", v)
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("'%s' is not a finite number", v)
		}
		return &f, nil
	case bool:
		return nil, fmt.Errorf("boolean %v is not a number", v)
	}
	f, err := AnyToType[float64](input)
	if err != nil {
		return nil, err
	}
	if math.IsInf(f, 0) {
		return nil, fmt.Errorf("%v is not a finite number", input)
	}
	return &f, nil
}

// ToInt64 coerces a payload cell to an integer. Floats must be whole.
func ToInt64(input any) (*int64, error) {
	f, err := ToFloat(input)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, fmt.Errorf("%v is not a whole number", input)
	}
	i := int64(*f)
	return &i, nil
}

// ToString coerces a payload cell to a trimmed string. Blank cells give (nil, nil).
func ToString(input any) (*string, error) {
	if IsBlank(input) {
		return nil, nil
	}
	switch v := input.(type) {
	case string:
		s := strings.TrimSpace(v)
		return &s, nil
	case *string:
		return v, nil
	case fmt.Stringer:
		s := v.String()
		return &s, nil
	}
	if isNumericKind(reflect.ValueOf(input).Kind()) {
		s := fmt.Sprintf("%v", input)
		return &s, nil
	}
	return nil, fmt.Errorf("%T is not a string", input)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ToTime coerces a payload cell to a timestamp. Strings are tried against ISO and US date layouts.
func ToTime(input any) (*time.Time, error) {
	if IsBlank(input) {
		return nil, nil
	}
	switch v := input.(type) {
	case time.Time:
		return &v, nil
	case *time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t, nil
			}
		}
		return nil, fmt.Errorf("'%s' is not a recognized date", v)
	}
	return nil, fmt.Errorf("%T is not a date", input)
}

// ToBool accepts booleans and the usual truthy strings.
func ToBool(input any) bool {
	switch v := input.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	}
	f, err := ToFloat(input)
	return err == nil && f != nil && *f != 0
}
