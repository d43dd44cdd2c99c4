package jinja

import (
	"fmt"
	"html"
	"maps"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// defaultFilters are the built-in one-argument filters. They are ordinary
// context values: a template reaches them through {{ x|upper }} once they
// are supplied as a base context or an environment global.
var defaultFilters = map[string]any{
	"upper":      FilterFunc(upperFilter),
	"lower":      FilterFunc(lowerFilter),
	"capitalize": FilterFunc(capitalizeFilter),
	"title":      FilterFunc(titleFilter),
	"trim":       FilterFunc(trimFilter),
	"escape":     FilterFunc(escapeFilter),
	"sanitize":   FilterFunc(sanitizeFilter),
	"length":     FilterFunc(lengthFilter),
	"join":       FilterFunc(joinFilter),
	"first":      FilterFunc(firstFilter),
	"last":       FilterFunc(lastFilter),
	"list":       FilterFunc(listFilter),
	"string":     FilterFunc(stringFilter),
}

// DefaultFilters returns a fresh copy of the built-in filters, suitable as a
// base context or for WithGlobals.
func DefaultFilters() map[string]any {
	return maps.Clone(defaultFilters)
}

// upperFilter converts a value to uppercase.
// Usage: {{ name|upper }} -> "HELLO"
func upperFilter(input any) (any, error) {
	return strings.ToUpper(toString(input)), nil
}

// lowerFilter converts a value to lowercase.
func lowerFilter(input any) (any, error) {
	return strings.ToLower(toString(input)), nil
}

// capitalizeFilter uppercases the first character and lowercases the rest.
// Usage: {{ s|capitalize }} with s = "hello WORLD" -> "Hello world"
func capitalizeFilter(input any) (any, error) {
	str := toString(input)
	if str == "" {
		return "", nil
	}
	r, size := utf8.DecodeRuneInString(str)
	return string(unicode.ToUpper(r)) + strings.ToLower(str[size:]), nil
}

// titleFilter capitalizes every whitespace-separated word.
func titleFilter(input any) (any, error) {
	words := strings.Fields(toString(input))
	for i, w := range words {
		c, _ := capitalizeFilter(w)
		words[i] = c.(string)
	}
	return strings.Join(words, " "), nil
}

// trimFilter removes leading and trailing whitespace.
func trimFilter(input any) (any, error) {
	return strings.TrimSpace(toString(input)), nil
}

// escapeFilter escapes &, <, >, " and ' for HTML.
// Usage: {{ s|escape }} with s = "<div>" -> "&lt;div&gt;"
func escapeFilter(input any) (any, error) {
	return html.EscapeString(toString(input)), nil
}

var ugcPolicy = bluemonday.UGCPolicy()

// sanitizeFilter strips markup that is unsafe in user generated content,
// keeping formatting tags such as <b> and <a href>.
func sanitizeFilter(input any) (any, error) {
	return ugcPolicy.Sanitize(toString(input)), nil
}

// lengthFilter returns the number of items in a sequence or map, or the
// number of characters in a string.
func lengthFilter(input any) (any, error) {
	if input == nil {
		return 0, nil
	}
	if s, ok := input.(string); ok {
		return utf8.RuneCountInString(s), nil
	}
	val := reflect.ValueOf(input)
	switch val.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return val.Len(), nil
	}
	return nil, fmt.Errorf("length of %T is undefined", input)
}

// joinFilter joins the elements of a sequence with ", ".
// Usage: {{ topics|join }} -> "Python, Geometry"
func joinFilter(input any) (any, error) {
	if input == nil {
		return "", nil
	}
	if s, ok := input.(string); ok {
		return s, nil
	}
	val := reflect.ValueOf(input)
	switch val.Kind() {
	case reflect.Slice, reflect.Array:
		elements := make([]string, val.Len())
		for i := range elements {
			elements[i] = toString(val.Index(i).Interface())
		}
		return strings.Join(elements, ", "), nil
	}
	return nil, fmt.Errorf("join filter requires a sequence, got %T", input)
}

// firstFilter returns the first item of a sequence or the first character
// of a string.
func firstFilter(input any) (any, error) {
	items, err := listFilter(input)
	if err != nil {
		return nil, err
	}
	l := items.([]any)
	if len(l) == 0 {
		return nil, nil
	}
	return l[0], nil
}

// lastFilter returns the last item of a sequence or the last character of
// a string.
func lastFilter(input any) (any, error) {
	items, err := listFilter(input)
	if err != nil {
		return nil, err
	}
	l := items.([]any)
	if len(l) == 0 {
		return nil, nil
	}
	return l[len(l)-1], nil
}

// listFilter converts a value to a []any. Strings become a list of
// characters, maps a list of their sorted keys, anything else a one-item
// list.
func listFilter(input any) (any, error) {
	if input == nil {
		return []any{}, nil
	}
	val := reflect.ValueOf(input)
	switch val.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		seq, err := iterate(input)
		if err != nil {
			return nil, err
		}
		result := []any{}
		for item := range seq {
			result = append(result, item)
		}
		return result, nil
	}
	return []any{input}, nil
}

// stringFilter formats a value the way an output tag would.
func stringFilter(input any) (any, error) {
	return toString(input), nil
}
