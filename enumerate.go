package stable

// Entry describes one live key of a table, as listed by Enumerate.
type Entry struct {
	Key  Key
	Kind Kind
}

// CapacityUpperBound returns a size for an Enumerate buffer: the array
// capacity plus maxHashDepth entries per map bucket. Chains longer than
// that are possible after a rehash, so it's a hint, not a guarantee.
func (t *Table) CapacityUpperBound() int {
	n := 0
	if a := t.grabArray(); a != nil {
		n += len(a.slots)
		a.release()
	}
	if m := t.grabMap(); m != nil {
		n += len(m.buckets) * maxHashDepth
		m.release()
	}
	return n
}

// Enumerate fills dst with the live keys of t and returns how many it
// wrote: non-nil array entries in index order, then map entries in
// bucket order, newest first within a bucket. It stops when dst is full.
//
// Notes:
//   - The listing is best-effort. Keys inserted while Enumerate runs may
//     or may not appear, and a table that grew since CapacityUpperBound
//     may not fit in dst.
func (t *Table) Enumerate(dst []Entry) int {
	count := 0
	if a := t.grabArray(); a != nil {
		for i := range a.slots {
			if count >= len(dst) {
				a.release()
				return count
			}
			v := a.slots[i].load()
			if v.kind == KindNil {
				continue
			}
			dst[count] = Entry{Key: Key{index: i}, Kind: v.kind}
			count++
		}
		a.release()
	}
	if m := t.grabMap(); m != nil {
		for i := range m.buckets {
			for n := (*node)(loadPtr(&m.buckets[i])); n != nil; n = n.next {
				if count >= len(dst) {
					m.release()
					return count
				}
				dst[count] = Entry{
					Key:  Key{name: n.key.borrow(), named: true},
					Kind: n.val.load().kind,
				}
				count++
			}
		}
		m.release()
	}
	return count
}

// Keys returns a snapshot of the live keys, sized so that none is cut off
// for lack of room.
func (t *Table) Keys() []Entry {
	size := t.CapacityUpperBound()
	for {
		dst := make([]Entry, size+1)
		if n := t.Enumerate(dst); n < len(dst) {
			return dst[:n]
		}
		size = max(size<<1, t.CapacityUpperBound())
	}
}

// Range calls yield for each key of a Keys snapshot with its current
// value, skipping keys whose value is nil. If yield returns false, Range
// stops the iteration.
func (t *Table) Range(yield func(k Key, v Value) bool) {
	for _, e := range t.Keys() {
		v := t.search(e.Key)
		if v.kind == KindNil {
			continue
		}
		if !yield(e.Key, v) {
			return
		}
	}
}

// All returns Range in iterator form, for use with range-over-func.
func (t *Table) All() func(yield func(Key, Value) bool) {
	return t.Range
}
