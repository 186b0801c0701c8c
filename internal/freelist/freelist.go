// Package freelist implements the typed free-list allocators that recycle
// hot container records: fixed-size regular lists, variable-size block lists
// organized as a per-size priority queue, and array lists indexed by element
// count. Recycling keeps churn down for record types that are allocated and
// released constantly (the transfer pipeline's pass buffers come from a block
// list) without fragmenting the general heap.
//
// All list heads share process-wide limits and a single coarse lock; inside
// the critical section no operation suspends. The allocator never writes to
// a block after free; clearing on alloc is opt-in.
package freelist

import "sync"

// Limits caps the amount of memory held on free lists, globally per flavor
// and per individual list. A negative value means unlimited.
type Limits struct {
	RegGlobal int64
	RegList   int64
	ArrGlobal int64
	ArrList   int64
	BlkGlobal int64
	BlkList   int64
}

var (
	mu     sync.Mutex
	limits = Limits{-1, -1, -1, -1, -1, -1}

	regHeads []*Regular
	blkHeads []*Block
	arrHeads []*Array

	regGlobalMem int64
	blkGlobalMem int64
	arrGlobalMem int64
)

// SetListLimits installs new free-list memory caps. Lists holding more than
// a new cap are not trimmed immediately; the excess is released on the next
// Free that touches them.
func SetListLimits(l Limits) {
	mu.Lock()
	limits = l
	mu.Unlock()
}

// GarbageCollect drains every free list, releasing all on-list blocks to the
// runtime and zeroing the on-list accounting.
func GarbageCollect() {
	mu.Lock()
	defer mu.Unlock()
	for _, h := range regHeads {
		h.drainLocked()
	}
	for _, h := range blkHeads {
		h.drainLocked()
	}
	for _, h := range arrHeads {
		h.drainLocked()
	}
}

// Regular is a free list of fixed-size blocks, kept as a LIFO so the most
// recently freed (cache-warm) block is handed out first.
type Regular struct {
	name      string
	size      uint64
	allocated int
	onlist    int
	listMem   int64
	list      [][]byte
}

// NewRegular registers a regular free list for blocks of the given size.
// The name tags the list in diagnostics only.
func NewRegular(name string, size uint64) *Regular {
	h := &Regular{name: name, size: size}
	mu.Lock()
	regHeads = append(regHeads, h)
	mu.Unlock()
	return h
}

// Alloc pops the most recently freed block, or allocates a fresh one when
// the list is empty. The payload is zeroed when clear is set.
func (h *Regular) Alloc(clear bool) []byte {
	mu.Lock()
	if n := len(h.list); n > 0 {
		buf := h.list[n-1]
		h.list[n-1] = nil
		h.list = h.list[:n-1]
		h.onlist--
		h.listMem -= int64(h.size)
		regGlobalMem -= int64(h.size)
		mu.Unlock()
		if clear {
			zero(buf)
		}
		return buf
	}
	h.allocated++
	mu.Unlock()
	return make([]byte, h.size)
}

// Free pushes a block back on the list. Blocks of the wrong size are
// released to the runtime instead of being listed.
func (h *Regular) Free(buf []byte) {
	if uint64(len(buf)) != h.size {
		return
	}
	mu.Lock()
	h.list = append(h.list, buf)
	h.onlist++
	h.listMem += int64(h.size)
	regGlobalMem += int64(h.size)
	for h.overCapLocked() && h.onlist > 0 {
		h.releaseOldestLocked()
	}
	mu.Unlock()
}

func (h *Regular) overCapLocked() bool {
	if limits.RegList >= 0 && h.listMem > limits.RegList {
		return true
	}
	if limits.RegGlobal >= 0 && regGlobalMem > limits.RegGlobal {
		return true
	}
	return false
}

func (h *Regular) releaseOldestLocked() {
	copy(h.list, h.list[1:])
	h.list[len(h.list)-1] = nil
	h.list = h.list[:len(h.list)-1]
	h.onlist--
	h.listMem -= int64(h.size)
	regGlobalMem -= int64(h.size)
	h.allocated--
}

func (h *Regular) drainLocked() {
	for i := range h.list {
		h.list[i] = nil
	}
	h.list = h.list[:0]
	h.allocated -= h.onlist
	regGlobalMem -= h.listMem
	h.onlist = 0
	h.listMem = 0
}

// OnList returns the number of blocks currently held on the list.
func (h *Regular) OnList() int {
	mu.Lock()
	defer mu.Unlock()
	return h.onlist
}

// Allocated returns the number of live blocks handed out or listed.
func (h *Regular) Allocated() int {
	mu.Lock()
	defer mu.Unlock()
	return h.allocated
}

// ListMem returns the bytes currently held on the list.
func (h *Regular) ListMem() int64 {
	mu.Lock()
	defer mu.Unlock()
	return h.listMem
}

func zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
