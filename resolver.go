package jinja

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Resolver walks a dotted path from a starting value. The compiled routine
// calls it for every a.b.c expression.
type Resolver interface {
	Resolve(value any, path []string) (any, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(value any, path []string) (any, error)

func (fn ResolverFunc) Resolve(value any, path []string) (any, error) { return fn(value, path) }

// FieldGetter is implemented by values exposing named attributes without
// reflection. It is tried before key access.
type FieldGetter interface {
	GetField(name string) (any, bool)
}

// KeyGetter is implemented by values exposing keyed entries without
// reflection. It is tried when attribute access fails.
type KeyGetter interface {
	GetKey(name string) (any, bool)
}

// Invoker is implemented by values that compute their result lazily. The
// resolver invokes them whenever a path segment yields one.
type Invoker interface {
	Invoke() (any, error)
}

// DefaultResolver is the resolver used when none is configured.
var DefaultResolver Resolver = NewDotResolver()

// DotResolver resolves each segment by attribute, then by key, and invokes
// zero-argument callables found along the way. Struct field and method
// lookups are cached per type.
type DotResolver struct {
	cache *fieldCache
}

// NewDotResolver returns a DotResolver with an empty lookup cache.
func NewDotResolver() *DotResolver {
	return &DotResolver{cache: newFieldCache()}
}

// Resolve implements Resolver. A segment found by neither lookup yields a
// *LookupError with Segment set.
func (r *DotResolver) Resolve(value any, path []string) (any, error) {
	cur := value
	for _, seg := range path {
		next, ok := r.attr(cur, seg)
		if !ok {
			next, ok = r.key(cur, seg)
		}
		if !ok {
			return nil, &LookupError{Segment: seg}
		}
		v, err := invoke(next)
		if err != nil {
			return nil, &LookupError{Segment: seg, Err: err}
		}
		cur = v
	}
	return cur, nil
}

func (r *DotResolver) attr(cur any, name string) (any, bool) {
	switch c := cur.(type) {
	case FieldGetter:
		return c.GetField(name)
	case map[string]any, []any, string, nil:
		return nil, false
	}
	rv := reflect.ValueOf(cur)
	if !rv.IsValid() {
		return nil, false
	}
	if info := r.cache.lookup(rv.Type(), name); info.method >= 0 {
		return rv.Method(info.method).Interface(), true
	}

	rv = indirect(rv)
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil, false
	}
	info := r.cache.lookup(rv.Type(), name)
	if info.method >= 0 {
		return rv.Method(info.method).Interface(), true
	}
	if info.index == nil {
		return nil, false
	}
	fv, err := rv.FieldByIndexErr(info.index)
	if err != nil {
		return nil, false
	}
	return fv.Interface(), true
}

func (r *DotResolver) key(cur any, name string) (any, bool) {
	if g, ok := cur.(KeyGetter); ok {
		return g.GetKey(name)
	}
	if m, ok := cur.(map[string]any); ok {
		v, ok := m[name]
		return v, ok
	}

	rv := indirect(reflect.ValueOf(cur))
	if !rv.IsValid() {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Map:
		k, ok := mapKey(rv.Type().Key(), name)
		if !ok {
			return nil, false
		}
		mv := rv.MapIndex(k)
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(name)
		if err != nil {
			return nil, false
		}
		if i < 0 {
			i += rv.Len()
		}
		if i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}
	return nil, false
}

func mapKey(typ reflect.Type, name string) (reflect.Value, bool) {
	switch typ.Kind() {
	case reflect.String:
		return reflect.ValueOf(name).Convert(typ), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(name, 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(i).Convert(typ), true
	case reflect.Interface:
		if typ.NumMethod() == 0 {
			return reflect.ValueOf(name), true
		}
	}
	return reflect.Value{}, false
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

// ----------------------------- invocation -----------------------------------

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// invoke calls v when it takes no arguments and returns the result;
// anything else is returned unchanged.
func invoke(v any) (any, error) {
	switch fn := v.(type) {
	case Invoker:
		return fn.Invoke()
	case func() any:
		return fn(), nil
	case func() (any, error):
		return fn()
	case func() string:
		return fn(), nil
	case func() bool:
		return fn(), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return v, nil
	}
	typ := rv.Type()
	if typ.NumIn() != 0 || !validResults(typ) {
		return v, nil
	}
	return results(rv.Call(nil))
}

// FilterFunc is the native shape of a filter: a one-argument callable.
type FilterFunc func(input any) (any, error)

// callFilter applies fn to arg. fn may be a FilterFunc or any function with
// one parameter returning a value and optionally an error.
func callFilter(fn any, arg any) (any, error) {
	switch f := fn.(type) {
	case FilterFunc:
		return f(arg)
	case func(any) (any, error):
		return f(arg)
	case func(any) any:
		return f(arg), nil
	case func(string) string:
		return f(toString(arg)), nil
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("%T is not callable", fn)
	}
	typ := rv.Type()
	if typ.NumIn() != 1 || typ.IsVariadic() || !validResults(typ) {
		return nil, fmt.Errorf("%s is not a one-argument function", typ)
	}
	in, err := convertArg(arg, typ.In(0))
	if err != nil {
		return nil, err
	}
	return results(rv.Call([]reflect.Value{in}))
}

func convertArg(arg any, typ reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(typ), nil
	}
	av := reflect.ValueOf(arg)
	switch {
	case av.Type().AssignableTo(typ):
		return av, nil
	case typ.Kind() == reflect.String:
		// int -> string conversion would yield a rune, format instead.
		return reflect.ValueOf(toString(arg)).Convert(typ), nil
	case av.Type().ConvertibleTo(typ) && av.Kind() != reflect.String:
		return av.Convert(typ), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, typ)
}

func validResults(typ reflect.Type) bool {
	switch typ.NumOut() {
	case 0, 1:
		return true
	case 2:
		return typ.Out(1).Implements(errorType)
	}
	return false
}

func results(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	if !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// ----------------------------- field cache ----------------------------------

type fieldCacheKey struct {
	typ  reflect.Type
	name string
}

type fieldInfo struct {
	index  []int // struct field path, nil when not a field
	method int   // method index, -1 when not a method
}

type fieldCache struct {
	mu    sync.RWMutex
	cache map[fieldCacheKey]fieldInfo
}

func newFieldCache() *fieldCache {
	return &fieldCache{cache: make(map[fieldCacheKey]fieldInfo)}
}

func (c *fieldCache) lookup(typ reflect.Type, name string) fieldInfo {
	key := fieldCacheKey{typ: typ, name: name}
	c.mu.RLock()
	info, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return info
	}

	info = computeFieldInfo(typ, name)
	c.mu.Lock()
	c.cache[key] = info
	c.mu.Unlock()
	return info
}

// computeFieldInfo finds an exported method or field by exact name, falling
// back to a case-insensitive match so that user.name reaches User.Name.
// Only structs get the fallback: on maps and slices a lower-case segment is
// a key, not a method.
func computeFieldInfo(typ reflect.Type, name string) fieldInfo {
	info := fieldInfo{method: -1}
	if m, ok := typ.MethodByName(name); ok {
		info.method = m.Index
		return info
	}
	if !isStructLike(typ) {
		return info
	}
	for i := 0; i < typ.NumMethod(); i++ {
		if strings.EqualFold(typ.Method(i).Name, name) {
			info.method = i
			return info
		}
	}
	if typ.Kind() != reflect.Struct {
		return info
	}
	var fold []int
	for _, f := range reflect.VisibleFields(typ) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if f.Name == name {
			info.index = f.Index
			return info
		}
		if fold == nil && strings.EqualFold(f.Name, name) {
			fold = f.Index
		}
	}
	info.index = fold
	return info
}

func isStructLike(typ reflect.Type) bool {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ.Kind() == reflect.Struct
}

// unwrapLookup fills in the root name of a LookupError raised by a
// resolver that only knew the failing segment.
func unwrapLookup(err error, root string) error {
	var le *LookupError
	if errors.As(err, &le) && le.Name == "" {
		le.Name = root
	}
	return err
}
