package stable

import (
	"sync/atomic"
	"unsafe"
)

const (
	// minMapBuckets is the bucket count of a freshly created map part.
	minMapBuckets = 4
	// maxHashDepth is the longest chain an insert leaves behind before
	// the map part is rehashed into twice as many buckets.
	maxHashDepth = 3
)

// hashKey is a length-seeded shift-add-xor hash. It is not seeded per
// process and not stable across versions.
func hashKey(key string) uint32 {
	h := uint32(len(key))
	for i := 0; i < len(key); i++ {
		h ^= (h << 5) + (h >> 2) + uint32(key[i])
	}
	return h
}

// node is one chain entry. key is immutable; val is overwritten in place.
// next is set before the node is published and never changes afterwards.
type node struct {
	next *node
	key  *stringSlot
	hash uint32
	val  slot
}

// mapPart is the hash storage for string keys: a power-of-two array of
// chain heads. Like arrayPart it never shrinks and is replaced whole.
type mapPart struct {
	ref     atomic.Int32
	mask    uint32
	buckets []unsafe.Pointer // *node
}

func newMapPart(buckets int) *mapPart {
	m := &mapPart{
		mask:    uint32(buckets - 1),
		buckets: make([]unsafe.Pointer, buckets),
	}
	m.ref.Store(1)
	return m
}

func (m *mapPart) release() {
	if m.ref.Add(-1) < 0 {
		panic(contractViolation("map part released more times than grabbed"))
	}
}

//go:nosplit
func (m *mapPart) head(hash uint32) *unsafe.Pointer {
	return &m.buckets[hash&m.mask]
}

func (m *mapPart) find(key string, hash uint32) *node {
	for n := (*node)(loadPtr(m.head(hash))); n != nil; n = n.next {
		if n.hash == hash && n.key.equal(key) {
			return n
		}
	}
	return nil
}

func (t *Table) grabMap() *mapPart {
	t.mapMu.Lock()
	m := t.hash.Load()
	if m != nil && m.ref.Add(1) <= 1 {
		t.mapMu.Unlock()
		panic(contractViolation("map part grabbed during teardown"))
	}
	t.mapMu.Unlock()
	return m
}

func (t *Table) swapMap(m *mapPart) {
	t.mapMu.Lock()
	old := t.hash.Swap(m)
	t.mapMu.Unlock()
	if old != nil {
		old.release()
		t.mapGrowths.Add(1)
	}
}

// searchMap follows the same grab, read, release, retry-on-swap protocol
// as searchArray.
func (t *Table) searchMap(key string) Value {
	hash := hashKey(key)
	for {
		m := t.grabMap()
		if m == nil {
			return Value{}
		}
		var v Value
		if n := m.find(key, hash); n != nil {
			v = n.val.load()
		}
		m.release()
		if m == t.hash.Load() {
			return v
		}
	}
}

// insertMap stores v under key unless the node holds another kind, and
// returns the previous value. New nodes are prepended; a chain that grows
// past maxHashDepth triggers a rehash. The caller holds the structural lock.
func (t *Table) insertMap(key string, v Value) Value {
	m := t.hash.Load()
	if m == nil {
		m = newMapPart(minMapBuckets)
		t.swapMap(m)
	}
	hash := hashKey(key)
	head := m.head(hash)
	first := (*node)(*head)
	depth := 0
	for n := first; n != nil; n = n.next {
		if n.hash == hash && n.key.equal(key) {
			prev := n.val.load()
			if compatible(prev.kind, v.kind) {
				n.val.store(v)
			}
			return prev
		}
		depth++
	}

	n := &node{next: first, key: newStringSlot(key), hash: hash}
	n.val.store(v)
	storePtr(head, unsafe.Pointer(n))

	if depth+1 > maxHashDepth {
		t.rehash(m)
	}
	return Value{}
}

// rehash builds a part with twice the buckets from fresh nodes that share
// the key slots and copy the values, then swaps it in. Chains keep their
// relative order, so the newest key of a bucket stays first.
func (t *Table) rehash(old *mapPart) {
	m := newMapPart(len(old.buckets) << 1)
	tails := make([]*node, len(m.buckets))
	for i := range old.buckets {
		for n := (*node)(old.buckets[i]); n != nil; n = n.next {
			nn := &node{key: n.key, hash: n.hash}
			nn.val.store(n.val.load())
			bidx := n.hash & m.mask
			if tail := tails[bidx]; tail != nil {
				tail.next = nn
			} else {
				m.buckets[bidx] = unsafe.Pointer(nn)
			}
			tails[bidx] = nn
		}
	}
	t.swapMap(m)
}
