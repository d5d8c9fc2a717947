package skiplist

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/tqstore/tqmemtable/internal/entry"
)

// Verify walks the whole structure and checks every invariant spec.md §8
// names. It is O(n) and intended for tests and debug builds, not production
// call sites.
func (l *List) Verify() error {
	var err error

	err = multierr.Append(err, l.verifyOrderedChain())
	err = multierr.Append(err, l.verifyFIFOChain())
	err = multierr.Append(err, l.verifyAreaSizes())
	err = multierr.Append(err, l.verifyNoDuplicateLiveUserKeys())

	return err
}

func (l *List) verifyOrderedChain() error {
	var err error
	prev := l.head
	for n := l.head.Next(0); n != nil; n = n.Next(0) {
		if prev != l.head && entry.Compare(prev.key, n.key) >= 0 {
			err = multierr.Append(err, fmt.Errorf("ordered chain out of order or duplicate InternalKey between %q and %q", prev.key, n.key))
		}
		prev = n
	}
	return err
}

func (l *List) verifyFIFOChain() error {
	var err error

	// While cold entries exist, the cold tail precedes normalHead in the FIFO
	// chain; only a hot head with no cold region before it points at head.
	if l.normalHead != l.head && (l.coldHead == l.head || l.coldHead == l.normalHead) {
		if p := l.normalHead.precede.Load(); p != l.head {
			err = multierr.Append(err, fmt.Errorf("normalHead.precede does not point at head"))
		}
	}
	if l.coldHead != l.head && l.coldHead != l.normalHead {
		if p := l.coldHead.precede.Load(); p != l.head {
			err = multierr.Append(err, fmt.Errorf("coldHead.precede does not point at head"))
		}
	}

	seen := 0
	var n *node
	if l.normalHead != l.head {
		n = l.normalHead
	} else if l.coldHead != l.head {
		n = l.coldHead
	}
	for n != nil {
		seen++
		next := n.follow.Load()
		if next != nil {
			if back := next.precede.Load(); back != n {
				err = multierr.Append(err, fmt.Errorf("FIFO chain asymmetry: node.follow.precede != node for entry %q", n.key))
			}
		}
		n = next
	}
	_ = seen

	return err
}

// verifyAreaSizes walks the whole FIFO chain once, from coldHead (or
// normalHead if the list has never frozen a node) through to the tail,
// classifying every node as cold until normalHead is reached and hot from
// then on, and checks both running totals against the tracked counters.
func (l *List) verifyAreaSizes() error {
	var err error

	start := l.coldHead
	if start == l.head {
		start = l.normalHead
	}

	var coldTotal, hotTotal int64
	inHot := false
	for n := start; n != nil && n != l.head; n = n.follow.Load() {
		if n == l.normalHead {
			inHot = true
		}
		if inHot {
			hotTotal += int64(n.size)
		} else {
			coldTotal += int64(n.size)
		}
	}

	if hotTotal != l.normalAreaSize.Load() {
		err = multierr.Append(err, fmt.Errorf("normalAreaSize mismatch: tracked=%d actual=%d", l.normalAreaSize.Load(), hotTotal))
	}
	if coldTotal != l.coldAreaSize.Load() {
		err = multierr.Append(err, fmt.Errorf("coldAreaSize mismatch: tracked=%d actual=%d", l.coldAreaSize.Load(), coldTotal))
	}

	return err
}

// verifyNoDuplicateLiveUserKeys checks that no two nodes still reachable via
// the FIFO chain (i.e. not yet thawed onto the obsolete list) share a user
// key. Two ordered-chain-adjacent nodes sharing a user key is the expected,
// normal state between a duplicate-key Insert and the next Seperate: Insert
// only unlinks the superseded node from the FIFO chain (ThawNode), it stays
// linked in the ordered chain until Seperate runs. So this must walk the
// FIFO chain, not next[0] adjacency.
func (l *List) verifyNoDuplicateLiveUserKeys() error {
	var err error

	start := l.coldHead
	if start == l.head {
		start = l.normalHead
	}
	if start == l.head {
		return nil
	}

	seen := make(map[string]bool)
	for n := start; n != nil && n != l.head; n = n.follow.Load() {
		uk := string(entry.ParseUserKey(n.key))
		if seen[uk] {
			err = multierr.Append(err, fmt.Errorf("duplicate live user key in FIFO chain: %q", uk))
		}
		seen[uk] = true
	}
	return err
}
