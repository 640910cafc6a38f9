package jsbind

import (
	"testing"

	"github.com/dop251/goja"

	"github.com/llxisdsh/stable"
)

func newRuntime(t *testing.T) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	if err := Register(vm); err != nil {
		t.Fatal(err)
	}
	return vm
}

func run(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	if err != nil {
		t.Fatalf("%s: %v", src, err)
	}
	return v
}

func TestReadWrite(t *testing.T) {
	vm := newRuntime(t)
	root := stable.New()
	defer root.Release()
	_ = root.SetString(stable.Name("name"), "root")
	_ = root.SetNumber(stable.Index(0), 5)
	_ = root.SetID(stable.Name("id"), 7)
	if err := vm.Set("root", Wrap(vm, root)); err != nil {
		t.Fatal(err)
	}

	if got := run(t, vm, `root.name + ":" + root[1] + ":" + root.id`).String(); got != "root:5:7" {
		t.Fatalf("got %q", got)
	}
	if !goja.IsUndefined(run(t, vm, `root.missing`)) {
		t.Fatal("missing key must read as undefined")
	}

	run(t, vm, `
		root.flag = true;
		root[2] = "two";
		root.sub = {a: 1, list: [1, 2.5]};
		root.sub.b = "bee";
	`)
	if !root.Boolean(stable.Name("flag")) || root.Text(stable.Index(1)) != "two" {
		t.Fatalf("writes not visible: %s", root)
	}
	sub := root.Table(stable.Name("sub"))
	if sub.Number(stable.Name("a")) != 1 || sub.Text(stable.Name("b")) != "bee" {
		t.Fatalf("unexpected sub table: %s", sub)
	}
	if sub.Table(stable.Name("list")).Number(stable.Index(1)) != 2.5 {
		t.Fatalf("unexpected list: %s", sub)
	}

	if !run(t, vm, `"name" in root && !("missing" in root)`).ToBoolean() {
		t.Fatal("in operator mismatch")
	}
	if run(t, vm, `delete root.name`).ToBoolean() {
		t.Fatal("delete must fail")
	}
}

func TestErrors(t *testing.T) {
	vm := newRuntime(t)
	root := stable.New()
	defer root.Release()
	_ = root.SetString(stable.Name("name"), "root")
	_ = vm.Set("root", Wrap(vm, root))

	cases := []string{
		`root.name = 1`,
		`root[0]`,
		`root[-1] = 2`,
		`stable.refs(42)`,
	}
	for _, src := range cases {
		got := run(t, vm, `try { `+src+`; "no error" } catch (e) { e instanceof TypeError ? "type error" : String(e) }`)
		if got.String() != "type error" {
			t.Errorf("%s: %s", src, got)
		}
	}
	if root.Text(stable.Name("name")) != "root" {
		t.Fatal("refused write changed the value")
	}
}

func TestKeys(t *testing.T) {
	vm := newRuntime(t)
	got := run(t, vm, `
		var t = stable.create();
		t[2] = "b";
		t[1] = "a";
		t.x = true;
		Object.keys(t).join(",");
	`).String()
	if got != "1,2,x" {
		t.Fatalf("keys: %q", got)
	}
}

func TestRegister(t *testing.T) {
	vm := newRuntime(t)
	got := run(t, vm, `
		var t = stable.create();
		t.x = 1;
		stable.json(t) + " " + stable.refs(t);
	`).String()
	if got != `{"x":1} 1` {
		t.Fatalf("got %q", got)
	}

	got = run(t, vm, `
		var a = stable.create();
		t.a = a;
		t.b = t.a;
		t.a.v = 3;
		stable.retain(a);
		var refs = stable.refs(a);
		stable.release(a);
		// every read of t.a or t.b binds a new object holding a
		// reference until it is collected, so compare before reading
		var released = refs - stable.refs(a);
		t.b.v + " " + released;
	`).String()
	if got != "3 1" {
		t.Fatalf("got %q", got)
	}

	tb, ok := Unwrap(run(t, vm, `t`))
	if !ok || tb.Table(stable.Name("a")) != tb.Table(stable.Name("b")) {
		t.Fatal("unwrap failed or nested tables differ")
	}
	if _, ok := Unwrap(vm.ToValue(1)); ok {
		t.Fatal("unwrapped a number")
	}
	if _, ok := Unwrap(nil); ok {
		t.Fatal("unwrapped nil")
	}
}

func TestRetainRelease(t *testing.T) {
	vm := newRuntime(t)
	root := stable.New()
	defer root.Release()
	_ = vm.Set("root", Wrap(vm, root))

	got := run(t, vm, `
		var a = stable.create();
		root.a = a;
		var before = stable.refs(a);
		var unmatched;
		try { stable.release(a); unmatched = "released" } catch (e) { unmatched = e instanceof TypeError ? "refused" : String(e) }
		var after = stable.refs(a);
		unmatched + " " + (before - after);
	`).String()
	if got != "refused 0" {
		t.Fatalf("got %q", got)
	}

	got = run(t, vm, `
		var b = stable.create();
		stable.retain(b);
		stable.retain(b);
		var refs = stable.refs(b);
		stable.release(b);
		stable.release(b);
		var extra;
		try { stable.release(b); extra = "released" } catch (e) { extra = e instanceof TypeError ? "refused" : String(e) }
		refs + " " + stable.refs(b) + " " + extra;
	`).String()
	if got != "3 1 refused" {
		t.Fatalf("got %q", got)
	}

	// a retain on one object is not released through another object
	got = run(t, vm, `
		stable.retain(root.a);
		var other;
		try { stable.release(root.a); other = "released" } catch (e) { other = e instanceof TypeError ? "refused" : String(e) }
		other;
	`).String()
	if got != "refused" {
		t.Fatalf("got %q", got)
	}
}

func TestSetObjectHoldingTables(t *testing.T) {
	vm := newRuntime(t)
	root := stable.New()
	defer root.Release()
	_ = vm.Set("root", Wrap(vm, root))

	run(t, vm, `
		root.y = stable.create();
		root.y.n = 1;
		root.x = {a: root.y, list: [root.y, 2]};
	`)
	y := root.Table(stable.Name("y"))
	x := root.Table(stable.Name("x"))
	if x == nil || x.Table(stable.Name("a")) != y {
		t.Fatalf("nested binding not stored as its table: %s", root)
	}
	list := x.Table(stable.Name("list"))
	if list.Table(stable.Index(0)) != y || list.Number(stable.Index(1)) != 2 {
		t.Fatalf("unexpected list: %s", list)
	}
	if y.Number(stable.Name("n")) != 1 {
		t.Fatalf("unexpected y: %s", y)
	}
}
