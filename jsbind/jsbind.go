// Package jsbind exposes stable tables to JavaScript running in a goja
// runtime.
//
// A bound table behaves like a plain object: t.name reads and writes a
// string key, t[1] reads and writes integer key 0. Indices start at 1 on
// the script side, and 0 or negative indices throw a TypeError. Writing a
// value of another kind than the key holds throws a TypeError too, as
// does every other refused write in strict mode.
//
// Each bound object holds one reference to its table, dropped when the
// object is garbage collected. Two reads of the same nested key return
// distinct objects bound to the same table.
package jsbind

import (
	"runtime"
	"strconv"

	"github.com/dop251/goja"

	"github.com/llxisdsh/stable"
)

// tableObject implements goja.DynamicObject over a *stable.Table.
type tableObject struct {
	vm *goja.Runtime
	t  *stable.Table
	// retains counts stable.retain calls on this object not yet matched
	// by stable.release. The runtime is single-threaded.
	retains int
}

// Wrap binds t to vm. The returned object retains t.
func Wrap(vm *goja.Runtime, t *stable.Table) *goja.Object {
	t.Retain()
	return adopt(vm, t)
}

// adopt binds t taking over one of the caller's references.
func adopt(vm *goja.Runtime, t *stable.Table) *goja.Object {
	o := &tableObject{vm: vm, t: t}
	runtime.AddCleanup(o, func(t *stable.Table) { t.Release() }, t)
	return vm.NewDynamicObject(o)
}

// Unwrap returns the table bound to v, if any. The table is borrowed from
// the binding: retain it to keep it beyond the life of v.
func Unwrap(v goja.Value) (*stable.Table, bool) {
	if v == nil {
		return nil, false
	}
	o, ok := v.Export().(*tableObject)
	if !ok {
		return nil, false
	}
	return o.t, true
}

// key converts a property name: canonical positive integers are 1-based
// indices, everything else is a name.
func (o *tableObject) key(name string) stable.Key {
	n, err := strconv.Atoi(name)
	if err != nil || strconv.Itoa(n) != name {
		return stable.Name(name)
	}
	if n <= 0 {
		panic(o.vm.NewTypeError("invalid index %d, indices start at 1", n))
	}
	return stable.Index(n - 1)
}

func (o *tableObject) Get(name string) goja.Value {
	v := o.t.Get(o.key(name))
	switch v.Kind() {
	case stable.KindNumber:
		return o.vm.ToValue(v.Number())
	case stable.KindBoolean:
		return o.vm.ToValue(v.Boolean())
	case stable.KindID:
		return o.vm.ToValue(v.ID())
	case stable.KindString:
		return o.vm.ToValue(v.Text())
	case stable.KindTable:
		return Wrap(o.vm, v.Table())
	default:
		return goja.Undefined()
	}
}

func (o *tableObject) Set(name string, val goja.Value) bool {
	k := o.key(name)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return false
	}
	var err error
	switch x := val.Export().(type) {
	case int64:
		err = o.t.SetNumber(k, float64(x))
	case float64:
		err = o.t.SetNumber(k, x)
	case bool:
		err = o.t.SetBoolean(k, x)
	case string:
		err = o.t.SetString(k, x)
	case *tableObject:
		x.t.Retain()
		if err = o.t.SetTable(k, x.t); err != nil {
			x.t.Release()
		}
	case map[string]any, []any:
		sub := stable.New()
		if err = sub.Populate(unwrapTables(x)); err == nil {
			err = o.t.SetTable(k, sub)
		}
		if err != nil {
			sub.Release()
		}
	default:
		return false
	}
	if err != nil {
		panic(o.vm.NewTypeError("%s", err))
	}
	return true
}

// unwrapTables replaces bound objects inside an exported object or array
// with their tables, which Populate stores as nested tables. The exported
// values are fresh copies and are modified in place.
func unwrapTables(x any) any {
	switch x := x.(type) {
	case *tableObject:
		return x.t
	case map[string]any:
		for k, v := range x {
			x[k] = unwrapTables(v)
		}
	case []any:
		for i, v := range x {
			x[i] = unwrapTables(v)
		}
	}
	return x
}

func (o *tableObject) Has(name string) bool {
	return o.t.Type(o.key(name)) != stable.KindNil
}

// Delete always fails: keys can't be removed from a table.
func (o *tableObject) Delete(string) bool {
	return false
}

func (o *tableObject) Keys() []string {
	entries := o.t.Keys()
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Key.IsIndex() {
			keys = append(keys, strconv.Itoa(e.Key.Index()+1))
		} else {
			keys = append(keys, e.Key.Name())
		}
	}
	return keys
}

// Register installs the global object "stable" in vm:
//
//	stable.create()     returns a new empty table
//	stable.retain(t)    adds a reference to t's table
//	stable.release(t)   drops a reference added by retain on the same object
//	stable.refs(t)      returns the reference count
//	stable.json(t)      returns the JSON snapshot of t
//
// A value that isn't a bound table throws a TypeError, and so does a
// release with no outstanding retain on that object. References from
// stable.retain are not dropped when the object is collected.
func Register(vm *goja.Runtime) error {
	obj := vm.NewObject()
	object := func(call goja.FunctionCall) *tableObject {
		o, ok := call.Argument(0).Export().(*tableObject)
		if !ok {
			panic(vm.NewTypeError("not a table: %s", call.Argument(0)))
		}
		return o
	}
	table := func(call goja.FunctionCall) *stable.Table {
		return object(call).t
	}
	funcs := map[string]func(goja.FunctionCall) goja.Value{
		"create": func(goja.FunctionCall) goja.Value {
			return adopt(vm, stable.New())
		},
		"retain": func(call goja.FunctionCall) goja.Value {
			o := object(call)
			o.t.Retain()
			o.retains++
			return goja.Undefined()
		},
		"release": func(call goja.FunctionCall) goja.Value {
			o := object(call)
			// the object's own reference is dropped by the collector
			if o.retains == 0 {
				panic(vm.NewTypeError("release without a matching retain"))
			}
			o.retains--
			o.t.Release()
			return goja.Undefined()
		},
		"refs": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(table(call).Refs())
		},
		"json": func(call goja.FunctionCall) goja.Value {
			b, err := table(call).MarshalJSON()
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(string(b))
		},
	}
	for name, fn := range funcs {
		if err := obj.Set(name, fn); err != nil {
			return err
		}
	}
	return vm.Set("stable", obj)
}
