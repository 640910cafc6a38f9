package stable

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Table is one level of a shared hierarchical container. It is safe for
// concurrent use: any number of goroutines may read while others write.
//
// Integer keys live in an array part, string keys in a map part. Each
// part is replaced whole when it grows, and readers never take the
// table's structural lock: they pin the live part for the duration of one
// read and retry if it was swapped in the meantime.
//
// Writers of one table are serialized by its structural lock. Overwriting
// an existing key without growing a part is not synchronized with readers
// of that key: a reader may observe a mix of the old and the new payload.
// Callers that need more than that must add their own synchronization.
//
// A key's kind is fixed by its first value. Setting a value of another
// kind fails with ErrTypeConflict and leaves the key unchanged.
//
// Tables are reference counted. New returns a table holding one
// reference; a table stored into another hands one reference to its
// parent. Cycles between tables are never collected.
//
// A Table must not be copied after first use.
type Table struct {
	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(struct {
		ref          atomic.Int32
		mu           spinLock
		arrayMu      spinLock
		mapMu        spinLock
		array        atomic.Pointer[arrayPart]
		hash         atomic.Pointer[mapPart]
		arrayGrowths atomic.Uint32
		mapGrowths   atomic.Uint32
	}{})%CacheLineSize) % CacheLineSize]byte

	_            noCopy
	ref          atomic.Int32
	mu           spinLock // structural lock, held by writers
	arrayMu      spinLock // guards grabbing and swapping array
	mapMu        spinLock // guards grabbing and swapping hash
	array        atomic.Pointer[arrayPart]
	hash         atomic.Pointer[mapPart]
	arrayGrowths atomic.Uint32
	mapGrowths   atomic.Uint32
}

// New creates an empty table holding one reference. Parts are allocated
// on first insert.
func New() *Table {
	t := &Table{}
	t.ref.Store(1)
	return t
}

// Retain adds a reference. Retaining a table that was already released
// to zero is a contract violation and panics.
func (t *Table) Retain() {
	for {
		r := t.ref.Load()
		if r <= 0 {
			panic(contractViolation("retain of a released table"))
		}
		if t.ref.CompareAndSwap(r, r+1) {
			return
		}
	}
}

// Release drops a reference. The last release tears the table down
// synchronously, releasing every nested table and string it owns; no
// reader may be using the table at that point.
func (t *Table) Release() {
	switch r := t.ref.Add(-1); {
	case r == 0:
		t.teardown()
	case r < 0:
		panic(contractViolation("table released more times than retained"))
	}
}

// Refs returns the current reference count. It's for diagnostics only.
func (t *Table) Refs() int {
	return int(t.ref.Load())
}

func (t *Table) teardown() {
	t.mu.Lock()
	t.arrayMu.Lock()
	a := t.array.Swap(nil)
	t.arrayMu.Unlock()
	t.mapMu.Lock()
	m := t.hash.Swap(nil)
	t.mapMu.Unlock()
	t.mu.Unlock()

	if a != nil {
		if a.ref.Load() != 1 {
			panic(contractViolation("table released while its array part is being read"))
		}
		for i := range a.slots {
			releaseValue(a.slots[i].load())
		}
		a.release()
	}
	if m != nil {
		if m.ref.Load() != 1 {
			panic(contractViolation("table released while its map part is being read"))
		}
		for i := range m.buckets {
			for n := (*node)(m.buckets[i]); n != nil; n = n.next {
				releaseValue(n.val.load())
				n.key.release()
			}
		}
		m.release()
	}
}

// releaseValue drops the container's ownership of v's payload.
func releaseValue(v Value) {
	switch v.kind {
	case KindString:
		v.cell().release()
	case KindTable:
		(*Table)(v.ref).Release()
	}
}

func (t *Table) search(k Key) Value {
	if k.named {
		return t.searchMap(k.name)
	}
	return t.searchArray(k.index)
}

// insertLocked stores v under k when the kinds are compatible and returns
// the previous value. The caller holds t.mu.
func (t *Table) insertLocked(k Key, v Value) Value {
	if k.named {
		return t.insertMap(k.name, v)
	}
	return t.insertArray(k.index, v)
}

func (t *Table) insert(k Key, v Value) Value {
	t.mu.Lock()
	prev := t.insertLocked(k, v)
	t.mu.Unlock()
	return prev
}

// Get returns the value stored under k, or a nil Value.
func (t *Table) Get(k Key) Value {
	return t.search(k)
}

// Type returns the kind of the value stored under k.
func (t *Table) Type(k Key) Kind {
	return t.search(k).kind
}

// Number returns the number under k, 0 if absent. It panics if k holds
// another kind.
func (t *Table) Number(k Key) float64 {
	return t.search(k).Number()
}

// Boolean returns the boolean under k, false if absent. It panics if k
// holds another kind.
func (t *Table) Boolean(k Key) bool {
	return t.search(k).Boolean()
}

// ID returns the opaque handle under k, 0 if absent. It panics if k holds
// another kind.
func (t *Table) ID(k Key) uint64 {
	return t.search(k).ID()
}

// ReadString calls visit with the bytes of the string under k, or with
// an empty slice if absent. It panics if k holds another kind.
func (t *Table) ReadString(k Key, visit func(b []byte)) {
	t.search(k).ReadString(visit)
}

// Text returns a copy of the string under k.
func (t *Table) Text(k Key) string {
	return t.search(k).Text()
}

// Table returns the nested table under k, or nil if absent. The result is
// borrowed: Retain it before it can outlive a change to k or the release
// of t. It panics if k holds another kind.
func (t *Table) Table(k Key) *Table {
	return t.search(k).Table()
}

func (t *Table) set(k Key, v Value) error {
	if prev := t.insert(k, v); !compatible(prev.kind, v.kind) {
		return &ConflictError{Key: k, Have: prev.kind, Want: v.kind}
	}
	return nil
}

// SetNumber stores n under k.
func (t *Table) SetNumber(k Key, n float64) error {
	return t.set(k, numberValue(n))
}

// SetBoolean stores b under k.
func (t *Table) SetBoolean(k Key, b bool) error {
	return t.set(k, booleanValue(b))
}

// SetID stores the opaque handle id under k.
func (t *Table) SetID(k Key, id uint64) error {
	return t.set(k, idValue(id))
}

// SetString stores a copy of s under k. If k already holds a string its
// cell is updated in place: readers in the middle of ReadString keep
// seeing the old bytes.
func (t *Table) SetString(k Key, s string) error {
	t.mu.Lock()
	prev := t.search(k)
	switch prev.kind {
	case KindString:
		prev.cell().update(s)
	case KindNil:
		t.insertLocked(k, stringValue(newStringCell(s)))
	default:
		t.mu.Unlock()
		return &ConflictError{Key: k, Have: prev.kind, Want: KindString}
	}
	t.mu.Unlock()
	return nil
}

// SetBytes is SetString for a byte slice. b is copied.
func (t *Table) SetBytes(k Key, b []byte) error {
	return t.SetString(k, string(b))
}

// SetTable stores sub under k and takes over one of the caller's
// references to it: a caller that wants to keep using sub afterwards must
// have retained it. The table previously stored under k, if any, loses
// the parent's reference. On a type conflict the caller keeps its
// reference.
func (t *Table) SetTable(k Key, sub *Table) error {
	if sub == nil {
		panic(contractViolation(fmt.Sprintf("nil table stored under %s", k)))
	}
	prev := t.insert(k, tableValue(sub))
	if !compatible(prev.kind, KindTable) {
		return &ConflictError{Key: k, Have: prev.kind, Want: KindTable}
	}
	if prev.kind == KindTable {
		prev.Table().Release()
	}
	return nil
}
