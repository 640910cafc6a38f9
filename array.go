package stable

import "sync/atomic"

// minArrayCap is the capacity of a freshly created array part.
const minArrayCap = 4

// arrayPart is the dense storage for integer keys. Its capacity is a
// power of two and never shrinks; growing builds a new part and swaps it
// into the table. A superseded part is never written again.
type arrayPart struct {
	ref   atomic.Int32
	slots []slot
}

func newArrayPart(capacity int) *arrayPart {
	a := &arrayPart{slots: make([]slot, capacity)}
	a.ref.Store(1)
	return a
}

// arrayCapFor returns the capacity of the first part that holds idx.
func arrayCapFor(idx int) int {
	size := minArrayCap
	for idx >= size {
		size <<= 1
	}
	return size
}

// growArrayCap doubles size until idx fits.
func growArrayCap(size, idx int) int {
	for size <= idx {
		size <<= 1
	}
	return size
}

// release drops one reference. Nothing is freed explicitly: a part that
// reaches zero is unreachable from its table and the collector takes it.
func (a *arrayPart) release() {
	if a.ref.Add(-1) < 0 {
		panic(contractViolation("array part released more times than grabbed"))
	}
}

// grabArray returns the live array part with its refcount bumped, or nil.
func (t *Table) grabArray() *arrayPart {
	t.arrayMu.Lock()
	a := t.array.Load()
	if a != nil && a.ref.Add(1) <= 1 {
		t.arrayMu.Unlock()
		panic(contractViolation("array part grabbed during teardown"))
	}
	t.arrayMu.Unlock()
	return a
}

// swapArray installs a as the live part and releases the table's
// reference to the previous one.
func (t *Table) swapArray(a *arrayPart) {
	t.arrayMu.Lock()
	old := t.array.Swap(a)
	t.arrayMu.Unlock()
	if old != nil {
		old.release()
		t.arrayGrowths.Add(1)
	}
}

// searchArray returns the value at idx. The read happens outside every
// lock, so it's retried if the part was swapped meanwhile: the result
// always comes from a part that was live at some point during the call.
func (t *Table) searchArray(idx int) Value {
	for {
		a := t.grabArray()
		if a == nil {
			return Value{}
		}
		var v Value
		if idx < len(a.slots) {
			v = a.slots[idx].load()
		}
		a.release()
		if a == t.array.Load() {
			return v
		}
	}
}

// insertArray stores v at idx unless the slot holds another kind, and
// returns the previous value. The caller holds the structural lock.
func (t *Table) insertArray(idx int, v Value) Value {
	a := t.array.Load()
	if a == nil {
		a = newArrayPart(arrayCapFor(idx))
		a.slots[idx].store(v)
		t.swapArray(a)
		return Value{}
	}
	if idx >= len(a.slots) {
		na := newArrayPart(growArrayCap(len(a.slots), idx))
		for i := range a.slots {
			na.slots[i].store(a.slots[i].load())
		}
		na.slots[idx].store(v)
		t.swapArray(na)
		return Value{}
	}
	s := &a.slots[idx]
	prev := s.load()
	if compatible(prev.kind, v.kind) {
		s.store(v)
	}
	return prev
}
