package stable

import (
	"sync/atomic"
	"unsafe"
)

// stringSlot is an immutable, reference-counted byte buffer. Slots back
// both string values (through a stringCell) and map keys.
type stringSlot struct {
	ref atomic.Int32
	buf []byte
}

func newStringSlot(b string) *stringSlot {
	s := &stringSlot{buf: []byte(b)}
	s.ref.Store(1)
	return s
}

func (s *stringSlot) grab() {
	if s.ref.Add(1) <= 1 {
		panic(contractViolation("grab of a released string"))
	}
}

// release drops one holder. The last holder detaches the buffer; the
// collector reclaims it once no borrowed key string points into it.
func (s *stringSlot) release() {
	switch r := s.ref.Add(-1); {
	case r == 0:
		s.buf = nil
	case r < 0:
		panic(contractViolation("string released more times than grabbed"))
	}
}

func (s *stringSlot) equal(key string) bool {
	return string(s.buf) == key
}

// borrow returns the slot bytes as a string without copying.
func (s *stringSlot) borrow() string {
	return unsafe.String(unsafe.SliceData(s.buf), len(s.buf))
}

// stringCell is the mutable holder stored under KindString. Updates
// install a new slot, so readers that already grabbed the old one keep
// an unmodified view.
type stringCell struct {
	mu   spinLock
	slot *stringSlot
}

func newStringCell(b string) *stringCell {
	return &stringCell{slot: newStringSlot(b)}
}

func (c *stringCell) grab() *stringSlot {
	c.mu.Lock()
	s := c.slot
	if s != nil {
		s.grab()
	}
	c.mu.Unlock()
	return s
}

func (c *stringCell) read(visit func(b []byte)) {
	s := c.grab()
	if s == nil {
		// cell torn down under the reader
		visit(nil)
		return
	}
	visit(s.buf)
	s.release()
}

func (c *stringCell) update(b string) {
	ns := newStringSlot(b)
	c.mu.Lock()
	old := c.slot
	c.slot = ns
	c.mu.Unlock()
	if old != nil {
		old.release()
	}
}

func (c *stringCell) release() {
	c.mu.Lock()
	s := c.slot
	c.slot = nil
	c.mu.Unlock()
	if s != nil {
		s.release()
	}
}
