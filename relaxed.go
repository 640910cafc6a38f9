package stable

import (
	"math/bits"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// plainAccess enables plain loads and stores for the fields readers
// access without locks (slot fields and chain heads). It holds on
// total-store-order CPUs, where aligned word accesses are single-copy
// atomic, and never under the race detector.
const plainAccess = !raceEnabled &&
	(runtime.GOARCH == "amd64" || runtime.GOARCH == "386" || runtime.GOARCH == "s390x")

// plainWide extends plainAccess to 64-bit payloads, which 32-bit CPUs
// write in two halves.
const plainWide = plainAccess && bits.UintSize == 64

//go:nosplit
func loadPtr(addr *unsafe.Pointer) unsafe.Pointer {
	if plainAccess {
		return *addr
	}
	return atomic.LoadPointer(addr)
}

//go:nosplit
func storePtr(addr *unsafe.Pointer, val unsafe.Pointer) {
	if plainAccess {
		*addr = val
	} else {
		atomic.StorePointer(addr, val)
	}
}

//go:nosplit
func loadKind(addr *Kind) Kind {
	if plainAccess {
		return *addr
	}
	return Kind(atomic.LoadUint32((*uint32)(addr)))
}

//go:nosplit
func storeKind(addr *Kind, k Kind) {
	if plainAccess {
		*addr = k
	} else {
		atomic.StoreUint32((*uint32)(addr), uint32(k))
	}
}

// loadBits reads a slot payload. addr must be 8-byte aligned, which
// atomic.Uint64 guarantees.
//
//go:nosplit
func loadBits(addr *uint64) uint64 {
	if plainWide {
		return *addr
	}
	return atomic.LoadUint64(addr)
}

//go:nosplit
func storeBits(addr *uint64, v uint64) {
	if plainWide {
		*addr = v
	} else {
		atomic.StoreUint64(addr, v)
	}
}
