package stable

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"unsafe"
)

// Kind is the type tag of a stored value.
type Kind uint32

const (
	KindNil Kind = iota
	KindNumber
	KindBoolean
	KindID
	KindString
	KindTable
)

var kindNames = [...]string{
	KindNil:     "nil",
	KindNumber:  "number",
	KindBoolean: "boolean",
	KindID:      "id",
	KindString:  "string",
	KindTable:   "table",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// compatible reports whether a key holding have may be overwritten
// with a value of kind want.
func compatible(have, want Kind) bool {
	return have == KindNil || have == want
}

// slot is the stored form of a value: a tagged union split into
// word-sized fields so that in-place overwrites need no lock.
//
// Writers (holding the table's structural lock) store the payload first
// and the kind last; readers load the kind first. A reader racing an
// in-place overwrite of the same key may combine the old and the new
// payload, which is accepted. It can't observe a reference kind without
// its reference: a nil reference reads as nil.
type slot struct {
	bits atomic.Uint64 // number bits, boolean, id; accessed through raw()
	ref  unsafe.Pointer
	kind Kind
}

//go:nosplit
func (s *slot) raw() *uint64 {
	return (*uint64)(unsafe.Pointer(&s.bits))
}

func (s *slot) load() Value {
	kind := loadKind(&s.kind)
	if kind == KindNil {
		return Value{}
	}
	v := Value{kind: kind, bits: loadBits(s.raw())}
	if kind >= KindString {
		if v.ref = loadPtr(&s.ref); v.ref == nil {
			return Value{}
		}
	}
	return v
}

func (s *slot) store(v Value) {
	storePtr(&s.ref, v.ref)
	storeBits(s.raw(), v.bits)
	storeKind(&s.kind, v.kind)
}

// Value is a snapshot of one stored value, as returned by Table.Get.
//
// A table-typed Value carries a borrowed *Table: the parent holds the only
// guaranteed retain unit, so the pointer may go stale once the parent
// overwrites the key or is released. Call Retain on it to keep it.
type Value struct {
	kind Kind
	bits uint64
	ref  unsafe.Pointer // *stringCell or *Table
}

func numberValue(n float64) Value {
	return Value{kind: KindNumber, bits: math.Float64bits(n)}
}

func booleanValue(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.bits = 1
	}
	return v
}

func idValue(id uint64) Value {
	return Value{kind: KindID, bits: id}
}

func stringValue(c *stringCell) Value {
	return Value{kind: KindString, ref: unsafe.Pointer(c)}
}

func tableValue(t *Table) Value {
	return Value{kind: KindTable, ref: unsafe.Pointer(t)}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNil() bool {
	return v.kind == KindNil
}

func (v Value) expect(kind Kind) {
	if v.kind != KindNil && v.kind != kind {
		panic(contractViolation(fmt.Sprintf("read %s from a %s value", kind, v.kind)))
	}
}

// Number returns the number payload, 0 for nil. It panics on other kinds.
func (v Value) Number() float64 {
	v.expect(KindNumber)
	return math.Float64frombits(v.bits)
}

// Boolean returns the boolean payload, false for nil. It panics on other kinds.
func (v Value) Boolean() bool {
	v.expect(KindBoolean)
	return v.bits != 0
}

// ID returns the opaque handle payload, 0 for nil. It panics on other kinds.
func (v Value) ID() uint64 {
	v.expect(KindID)
	return v.bits
}

// Table returns the borrowed nested table, nil for nil. It panics on other kinds.
func (v Value) Table() *Table {
	v.expect(KindTable)
	return (*Table)(v.ref)
}

func (v Value) cell() *stringCell {
	return (*stringCell)(v.ref)
}

// ReadString calls visit with the string bytes, or with an empty slice for
// nil. visit must not retain or modify the slice. A concurrent SetString
// does not affect bytes already handed to visit.
func (v Value) ReadString(visit func(b []byte)) {
	v.expect(KindString)
	if v.kind == KindNil {
		visit(nil)
		return
	}
	v.cell().read(visit)
}

// Text returns a copy of the string payload, "" for nil.
func (v Value) Text() (s string) {
	v.ReadString(func(b []byte) {
		s = string(b)
	})
	return
}

// String implement the formatting output interface fmt.Stringer
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number(), 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.Boolean())
	case KindID:
		return strconv.FormatUint(v.bits, 10)
	case KindString:
		return v.Text()
	case KindTable:
		return fmt.Sprintf("table: %p", v.ref)
	default:
		return "nil"
	}
}
