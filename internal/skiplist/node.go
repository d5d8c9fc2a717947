package skiplist

import (
	"sync/atomic"
	"unsafe"
)

// node is a single entry of the 2Q-skiplist: an ordered skip-list tower
// (next) plus the two FIFO pointers (follow/precede) that thread it through
// the hot/cold region. Every published pointer is an atomic.Pointer so a
// concurrent reader walking next[0..] never observes a torn write; Go's
// atomic.Pointer already provides at least the acquire/release pairing
// spec.md §5 asks for, so there is no separate "NoBarrier" variant here the
// way the C++ original needed one.
type node struct {
	key  []byte // encoded entry bytes (see internal/entry); nil for head
	size int    // node_size: header + pointer tail + len(key)

	follow  atomic.Pointer[node] // next-inserted live node
	precede atomic.Pointer[node] // previously-inserted live node

	next []atomic.Pointer[node] // ordered skip-list forward pointers, len == height
}

var (
	nodeBaseSize = int(unsafe.Sizeof(node{}))
	nodePtrSize  = int(unsafe.Sizeof((*node)(nil)))
)

// newNode allocates a node of the given height for encodedEntry. encodedEntry
// is expected to already live in the arena (see internal/entry.Encode); only
// the node's own header and pointer-tail overhead are charged against it
// here, since that bookkeeping is what node_size has to reflect even though
// the node struct itself is a normal Go heap value reclaimed by the GC the
// instant the arena (and the memtable owning it) is unreferenced.
func (l *List) newNode(encodedEntry []byte, height int) *node {
	overhead := nodeBaseSize + height*nodePtrSize
	l.arena.Charge(overhead)
	return &node{
		key:  encodedEntry,
		size: overhead + len(encodedEntry),
		next: make([]atomic.Pointer[node], height),
	}
}

func (n *node) Next(level int) *node {
	return n.next[level].Load()
}

func (n *node) setNext(level int, x *node) {
	n.next[level].Store(x)
}
