package stable

import "strconv"

// Key addresses one entry of a Table: either a non-negative integer index
// stored in the array part, or a byte-string name stored in the map part.
//
// The zero Key is Index(0).
type Key struct {
	name  string
	index int
	named bool
}

// Index returns the integer key i. Negative indices are a contract
// violation and panic.
func Index(i int) Key {
	if i < 0 {
		panic(contractViolation("negative index " + strconv.Itoa(i)))
	}
	return Key{index: i}
}

// Name returns the string key s. The empty string is a valid key.
func Name(s string) Key {
	return Key{name: s, named: true}
}

// IsIndex reports whether k addresses the array part.
func (k Key) IsIndex() bool {
	return !k.named
}

// Index returns the integer index of k, or -1 for a string key.
func (k Key) Index() int {
	if k.named {
		return -1
	}
	return k.index
}

// Name returns the string key, or "" for an index. Names returned in an
// Entry borrow the table's immutable key bytes.
func (k Key) Name() string {
	return k.name
}

// String formats k as `[i]` for indices and as the raw name otherwise,
// the way dumps print them.
func (k Key) String() string {
	if k.named {
		return k.name
	}
	return "[" + strconv.Itoa(k.index) + "]"
}
