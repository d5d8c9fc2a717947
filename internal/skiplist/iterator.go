package skiplist

import "github.com/tqstore/tqmemtable/internal/entry"

// Iterator walks the ordered (skip-list) projection of a List. A zero
// Iterator is not valid; use List.NewIterator. An Iterator may be used
// concurrently with Insert on the same List, but not with Seperate.
type Iterator struct {
	list *List
	node *node
}

// NewIterator returns an Iterator positioned before the first entry.
func (l *List) NewIterator() *Iterator {
	return &Iterator{list: l}
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.node != nil }

// Key returns the encoded entry at the current position. Valid must be true.
func (it *Iterator) Key() []byte { return it.node.key }

// Next advances to the next entry in ascending InternalKey order.
func (it *Iterator) Next() { it.node = it.node.Next(0) }

// Prev moves to the previous entry in ascending InternalKey order. It is
// O(log n): the ordered chain has no backward pointers, so Prev re-seeks from
// the head.
func (it *Iterator) Prev() {
	it.node = it.list.FindLessThan(it.node.key)
	if it.node == it.list.head {
		it.node = nil
	}
}

// Seek positions the iterator at the first entry whose encoded key is >=
// target.
func (it *Iterator) Seek(target []byte) {
	it.node = it.list.FindGreaterOrEqual(target, nil)
}

// SeekToFirst positions the iterator at the first entry.
func (it *Iterator) SeekToFirst() {
	it.node = it.list.head.Next(0)
}

// SeekToLast positions the iterator at the last entry, or invalidates it if
// the list is empty.
func (it *Iterator) SeekToLast() {
	last := it.list.FindLast()
	if last == it.list.head {
		it.node = nil
		return
	}
	it.node = last
}

// FIFOIterator walks the insertion-order FIFO chain of a List, independent of
// which region (hot or cold) an entry currently lives in. It is used to
// inspect or replay insertion history; ordinary lookups should use Iterator.
type FIFOIterator struct {
	list *List
	node *node
}

// NewFIFOIterator returns a FIFOIterator positioned before the oldest entry.
func (l *List) NewFIFOIterator() *FIFOIterator {
	return &FIFOIterator{list: l}
}

// Valid reports whether the iterator is positioned at an entry.
func (it *FIFOIterator) Valid() bool { return it.node != nil }

// Key returns the encoded entry at the current position. Valid must be true.
func (it *FIFOIterator) Key() []byte { return it.node.key }

// EncodedLen returns the byte length of the entry at the current position,
// for callers accounting bytes written during a flush.
func (it *FIFOIterator) EncodedLen() int { return len(it.node.key) }

// SeekToOldest positions the iterator at the hot region's head (its oldest
// entry) if any hot entries remain, else at the cold region's head. When
// both regions are non-empty, the older cold entries lie before that
// position and are reached with Older, not Newer.
func (it *FIFOIterator) SeekToOldest() {
	head := it.list.normalHead
	if head == it.list.head {
		head = it.list.coldHead
	}
	if head == it.list.head {
		it.node = nil
		return
	}
	it.node = head
}

// Newer advances to the next more-recently-inserted entry.
func (it *FIFOIterator) Newer() { it.node = it.node.follow.Load() }

// Older moves to the next less-recently-inserted entry, or invalidates the
// iterator if already at the oldest live entry.
func (it *FIFOIterator) Older() {
	prev := it.node.precede.Load()
	if prev == it.list.head {
		it.node = nil
		return
	}
	it.node = prev
}

// Seq returns the sequence number of the entry at the current position.
func (it *FIFOIterator) Seq() uint64 { return entry.ParseSeq(it.node.key) }
