package jinja

import (
	"fmt"
	"iter"
	"reflect"
	"sort"
)

// Iterable is implemented by values that can drive a for loop without
// reflection.
type Iterable interface {
	Items() iter.Seq[any]
}

// toString formats a value for output. nil renders as the empty string.
func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	case error:
		return s.Error()
	}
	return fmt.Sprint(v)
}

// IsTruthy reports whether a value counts as true in an if tag: nil, false,
// numeric zero and empty strings, slices, arrays and maps are false.
func IsTruthy(val any) bool {
	switch v := val.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Complex64, reflect.Complex128:
		return rv.Complex() != 0
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	}
	return true
}

// iterate returns the items a for loop visits in val. Maps yield their keys
// in sorted order so that rendering stays deterministic. nil is empty.
func iterate(val any) (iter.Seq[any], error) {
	switch v := val.(type) {
	case nil:
		return func(func(any) bool) {}, nil
	case Iterable:
		return v.Items(), nil
	case iter.Seq[any]:
		return v, nil
	case func(func(any) bool):
		return v, nil
	case []any:
		return func(yield func(any) bool) {
			for _, item := range v {
				if !yield(item) {
					return
				}
			}
		}, nil
	case string:
		return func(yield func(any) bool) {
			for _, r := range v {
				if !yield(string(r)) {
					return
				}
			}
		}, nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return func(yield func(any) bool) {
			for i := 0; i < rv.Len(); i++ {
				if !yield(rv.Index(i).Interface()) {
					return
				}
			}
		}, nil
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
		return func(yield func(any) bool) {
			for _, k := range keys {
				if !yield(k.Interface()) {
					return
				}
			}
		}, nil
	case reflect.String:
		return iterate(rv.String())
	case reflect.Pointer:
		if !rv.IsNil() && rv.Elem().Kind() == reflect.Array {
			return iterate(rv.Elem().Interface())
		}
	}
	return nil, fmt.Errorf("%T is not iterable", val)
}

func keyLess(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.String:
		return a.String() < b.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() < b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() < b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() < b.Float()
	}
	return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
}
