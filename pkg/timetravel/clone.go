package timetravel

import "reflect"

// Clone returns a deep copy of v. Maps, slices, arrays, pointers and the
// exported fields of structs are copied recursively; shared and cyclic
// pointers of the same type keep their shape in the copy. A pointer into
// another value, such as &s.A next to &s, gets its own copy. Channels, funcs and unexported
// struct fields are copied by value.
func Clone[T any](v T) T {
	src := reflect.ValueOf(&v).Elem()
	dst := reflect.New(src.Type()).Elem()
	c := cloner{seen: make(map[pointerKey]reflect.Value)}
	c.copy(dst, src)
	out, _ := dst.Interface().(T)
	return out
}

// pointerKey identifies a pointer by address and type. A struct and its
// first field share an address.
type pointerKey struct {
	addr uintptr
	typ  reflect.Type
}

type cloner struct {
	seen map[pointerKey]reflect.Value
}

func (c *cloner) copy(dst, src reflect.Value) {
	switch src.Kind() {
	case reflect.Interface:
		if src.IsNil() {
			return
		}
		elem := src.Elem()
		cp := reflect.New(elem.Type()).Elem()
		c.copy(cp, elem)
		dst.Set(cp)

	case reflect.Pointer:
		if src.IsNil() {
			return
		}
		key := pointerKey{addr: src.Pointer(), typ: src.Type()}
		if prev, ok := c.seen[key]; ok {
			dst.Set(prev)
			return
		}
		cp := reflect.New(src.Elem().Type())
		c.seen[key] = cp
		c.copy(cp.Elem(), src.Elem())
		dst.Set(cp)

	case reflect.Map:
		if src.IsNil() {
			return
		}
		cp := reflect.MakeMapWithSize(src.Type(), src.Len())
		iter := src.MapRange()
		for iter.Next() {
			k := reflect.New(iter.Key().Type()).Elem()
			c.copy(k, iter.Key())
			v := reflect.New(iter.Value().Type()).Elem()
			c.copy(v, iter.Value())
			cp.SetMapIndex(k, v)
		}
		dst.Set(cp)

	case reflect.Slice:
		if src.IsNil() {
			return
		}
		cp := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			c.copy(cp.Index(i), src.Index(i))
		}
		dst.Set(cp)

	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			c.copy(dst.Index(i), src.Index(i))
		}

	case reflect.Struct:
		dst.Set(src)
		for i := 0; i < src.NumField(); i++ {
			if !dst.Field(i).CanSet() {
				continue
			}
			c.copy(dst.Field(i), src.Field(i))
		}

	default:
		dst.Set(src)
	}
}
