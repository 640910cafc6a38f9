package stable

import (
	"sync/atomic"
	"time"
	_ "unsafe"
)

// enableSpin controls whether waiting on a contended spinLock calls
// runtime_doSpin() (the CPU's PAUSE instruction) before falling back to
// short sleeps.
const enableSpin = true

// spinLock is a non-reentrant busy-wait lock. Every lock in a Table is a
// spinLock: critical sections are a handful of loads and stores, so parking
// the goroutine costs more than spinning.
//
// Partially references:
// [https://github.com/facebook/folly/blob/main/folly/synchronization/PicoSpinLock.h]
type spinLock struct {
	state uint32
}

// Lock acquires the lock. This function can be inlined.
func (l *spinLock) Lock() {
	if atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		return
	}
	l.slowLock()
}

func (l *spinLock) slowLock() {
	spins := 0
	for !l.TryLock() {
		delay(&spins)
	}
}

func (l *spinLock) TryLock() bool {
	return atomic.LoadUint32(&l.state) == 0 &&
		atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

func (l *spinLock) Unlock() {
	atomic.StoreUint32(&l.state, 0)
}

func delay(spins *int) {
	const yieldSleep = 50 * time.Microsecond
	if //goland:noinspection ALL
	enableSpin && runtime_canSpin(*spins) {
		runtime_doSpin()
		*spins++
	} else {
		time.Sleep(yieldSleep)
		*spins = 0
	}
}

// nolint:all
//
//go:linkname runtime_canSpin sync.runtime_canSpin
//go:nosplit
func runtime_canSpin(i int) bool

// nolint:all
//
//go:linkname runtime_doSpin sync.runtime_doSpin
//go:nosplit
func runtime_doSpin()
