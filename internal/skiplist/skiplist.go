// Package skiplist implements the 2Q-skiplist: a concurrent, arena-backed
// ordered map that simultaneously maintains a sorted skip-list projection and
// an insertion-order FIFO chain split into hot and cold regions.
//
// The ordered projection is used for all lookups (Seek/Get). The FIFO
// projection exists purely for flush-time partitioning: Seperate drains the
// hot suffix for carry-over into a successor memtable while leaving the cold
// prefix behind to be emitted as an SSTable.
//
// Exactly one writer (the outer database's serializing mutex) may call
// Insert/Seperate at a time; any number of readers may call Seek-family
// methods concurrently with that writer.
package skiplist

import (
	"math/rand"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tqstore/tqmemtable/internal/arena"
	"github.com/tqstore/tqmemtable/internal/entry"
)

const (
	// MaxHeight bounds a node's tower height.
	MaxHeight = 12
	// branching is the inverse probability of growing the tower by one more
	// level at each step of RandomHeight.
	branching = 4
	// defaultSizeFactor is the fraction of the write-buffer budget the hot
	// region alone may occupy.
	defaultSizeFactor = 0.2
	// seed reseeds the list's PRNG identically every time so node heights
	// (and therefore search-path shapes) are reproducible across runs.
	seed = 0xdeadbeef
)

// Options configures a List's byte budget and hot/cold split.
type Options struct {
	// WriteBufferSize is the outer DB's configured byte budget for the whole
	// memtable (option_normal_size in spec.md's naming).
	WriteBufferSize int
	// SizeFactor is the fraction of WriteBufferSize the hot region may
	// occupy. Zero means defaultSizeFactor (0.2).
	SizeFactor float64
	// Logger receives Debug-level freeze/thaw events. Nil is treated as
	// zap.NewNop().
	Logger *zap.Logger
}

// HotEntry is a (user_key, type, value) triple drained from the hot region
// by Seperate, for the caller to re-insert into a successor memtable. Type
// must be carried along: a hot tombstone re-encoded as TypeValue would
// silently resurrect a deleted key across a flush.
type HotEntry struct {
	UserKey []byte
	Type    entry.Type
	Value   []byte
}

// List is the 2Q-skiplist.
type List struct {
	arena *arena.Arena
	log   *zap.Logger

	head *node

	maxHeight atomic.Int32
	rnd       *rand.Rand // writer-only

	normalHead  *node // hot region head (writer-owned anchor)
	coldHead    *node // cold region head
	curNode     *node // FIFO tail, the most recently inserted live node
	curColdNode *node // newest cold node
	obsolete    *node // LIFO head of retired nodes, writer-only

	normalAreaSize atomic.Int64
	coldAreaSize   atomic.Int64

	optionNormalSize int
	sizeFactor       float64
}

// New constructs an empty 2Q-skiplist backed by a.
func New(a *arena.Arena, opts Options) *List {
	sizeFactor := opts.SizeFactor
	if sizeFactor <= 0 {
		sizeFactor = defaultSizeFactor
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &List{
		arena:            a,
		log:              logger,
		rnd:              rand.New(rand.NewSource(seed)),
		optionNormalSize: opts.WriteBufferSize,
		sizeFactor:       sizeFactor,
	}
	l.head = &node{next: make([]atomic.Pointer[node], MaxHeight)}
	l.normalHead = l.head
	l.coldHead = l.head
	l.curNode = l.head
	l.maxHeight.Store(1)
	return l
}

func (l *List) getMaxHeight() int {
	return int(l.maxHeight.Load())
}

// RandomHeight returns a tower height in [1, MaxHeight], growing by one level
// with probability 1/branching at each step.
func (l *List) RandomHeight() int {
	height := 1
	for height < MaxHeight && l.rnd.Intn(branching) == 0 {
		height++
	}
	return height
}

func keyIsAfterNode(key []byte, n *node) bool {
	return n != nil && entry.Compare(n.key, key) < 0
}

// FindGreaterOrEqual returns the first node whose key is >= key; superseded
// versions retired by ThawNode are still in the ordered chain and can be
// returned. When
// prev is non-nil, prev[i] receives the last node at level i strictly less
// than key.
func (l *List) FindGreaterOrEqual(key []byte, prev []*node) *node {
	x := l.head
	level := l.getMaxHeight() - 1
	for {
		next := x.Next(level)
		if keyIsAfterNode(key, next) {
			x = next
			continue
		}
		if prev != nil {
			prev[level] = x
		}
		if level == 0 {
			return next
		}
		level--
	}
}

// FindLessThan returns the last node (superseded versions included) whose
// key is strictly less than key, or head if there is none.
func (l *List) FindLessThan(key []byte) *node {
	x := l.head
	level := l.getMaxHeight() - 1
	for {
		next := x.Next(level)
		if next == nil || entry.Compare(next.key, key) >= 0 {
			if level == 0 {
				return x
			}
			level--
			continue
		}
		x = next
	}
}

// FindLast returns the last node in ordered traversal, or head if the list is
// empty.
func (l *List) FindLast() *node {
	x := l.head
	level := l.getMaxHeight() - 1
	for {
		next := x.Next(level)
		if next == nil {
			if level == 0 {
				return x
			}
			level--
			continue
		}
		x = next
	}
}

// FindNoSmaller walks next[0] from n while the next node shares n's user key,
// returning the last (oldest-sequence) such node.
func (l *List) FindNoSmaller(n *node) *node {
	x := n
	next := x.Next(0)
	for next != nil && entry.SameUserKey(n.key, next.key) {
		x = next
		next = x.Next(0)
	}
	return x
}

// Contains reports whether an entry with exactly the given encoded
// key-prefix bytes is present.
func (l *List) Contains(key []byte) bool {
	x := l.FindGreaterOrEqual(key, nil)
	return x != nil && entry.Compare(key, x.key) == 0
}

// Insert links encodedEntry (already allocated from the list's arena) into
// both the ordered skip-list and the FIFO chain. If the new entry supersedes
// an existing user key, the superseded node is retired via ThawNode. If
// inserting pushed the hot region over budget, FreezeNodes moves older hot
// nodes into the cold region. The new node itself always stays hot, so a
// single node larger than the hot budget leaves the region over budget.
//
// Preconditions: single writer, no concurrent Insert/Seperate call.
func (l *List) Insert(encodedEntry []byte) {
	var prev [MaxHeight]*node
	succ := l.FindGreaterOrEqual(encodedEntry, prev[:])

	if succ != nil && entry.Compare(succ.key, encodedEntry) == 0 {
		panic("skiplist: duplicate InternalKey inserted twice (same user key, sequence and type)")
	}
	isDuplicate := succ != nil && entry.SameUserKey(encodedEntry, succ.key)

	height := l.RandomHeight()
	maxHeight := l.getMaxHeight()
	if height > maxHeight {
		for i := maxHeight; i < height; i++ {
			prev[i] = l.head
		}
		l.maxHeight.Store(int32(height))
	}

	x := l.newNode(encodedEntry, height)

	l.normalAreaSize.Add(int64(x.size))
	if float64(l.normalAreaSize.Load()) > float64(l.optionNormalSize)*l.sizeFactor {
		l.freezeNodes(x)
	}

	for i := 0; i < height; i++ {
		x.next[i].Store(prev[i].next[i].Load())
		prev[i].setNext(i, x)
	}

	l.curNode.follow.Store(x)
	x.precede.Store(l.curNode)
	x.follow.Store(nil)

	if l.normalHead == l.head && l.coldHead == l.head {
		l.normalHead = x
	}
	l.curNode = x

	if isDuplicate {
		l.thawNode(x)
	}
}

// freezeNodes walks the hot region from normalHead, accumulating node sizes
// until the running total strictly exceeds incoming's size, then moves that
// whole prefix into the cold region. At least one node is always moved when
// the hot region is non-empty, so the hot region drains at amortized O(1)
// work per triggering insert. If the hot region holds no more than
// incoming's size, all of it is moved and incoming (which Insert links right
// after) becomes the new hot head. With an empty hot region nothing moves.
func (l *List) freezeNodes(incoming *node) {
	if l.normalHead == l.head {
		return
	}
	selected := l.normalHead
	wanted := incoming.size
	total := selected.size
	for wanted >= total {
		next := selected.follow.Load()
		if next == nil {
			break
		}
		selected = next
		total += selected.size
	}

	l.curColdNode = selected
	newNormalHead := selected.follow.Load()
	if newNormalHead == nil {
		newNormalHead = incoming
	}
	l.normalHead = newNormalHead

	if l.coldHead == l.head {
		l.coldHead = l.curColdNode
	}

	l.normalAreaSize.Add(-int64(total))
	l.coldAreaSize.Add(int64(total))

	l.log.Debug("freeze_nodes",
		zap.Int("moved_bytes", total),
		zap.Int64("normal_area_size", l.normalAreaSize.Load()),
		zap.Int64("cold_area_size", l.coldAreaSize.Load()),
	)
}

// thawNode retires x's immediate ordered successor (the previous version of
// the user key x just superseded) from the FIFO chain onto the obsolete
// list. It does not touch the ordered chain: the retired node stays
// reachable via next[0] until Seperate.
func (l *List) thawNode(x *node) {
	elder := x.Next(0)
	prev := elder.precede.Load()

	elderSeq := entry.ParseSeq(elder.key)
	hotHeadSeq := entry.ParseSeq(l.normalHead.key)

	if elderSeq >= hotHeadSeq {
		l.normalAreaSize.Add(-int64(elder.size))
		if prev == l.head {
			l.normalHead = elder.follow.Load()
			l.normalHead.precede.Store(l.head)
		} else {
			prev.follow.Store(elder.follow.Load())
			elder.follow.Load().precede.Store(prev)
		}
	} else {
		l.coldAreaSize.Add(-int64(elder.size))
		if prev == l.head {
			l.coldHead = elder.follow.Load()
			l.coldHead.precede.Store(l.head)
		} else {
			prev.follow.Store(elder.follow.Load())
			elder.follow.Load().precede.Store(prev)
		}
	}
	// A region head whose precede is a node of the other region (the hot
	// head right after the cold tail) is spliced out above but is still the
	// region's anchor; move the anchor past it.
	if elder == l.normalHead {
		l.normalHead = elder.follow.Load()
	}
	if elder == l.coldHead {
		l.coldHead = elder.follow.Load()
	}

	elder.follow.Store(l.obsolete)
	l.obsolete = elder

	l.log.Debug("thaw_node", zap.Uint64("elder_seq", elderSeq))
}

// Seperate partitions the list for flush: it drains the hot region into
// hotEntries (in FIFO/insertion order, for carry-over into a successor
// memtable) and rewrites the ordered chain so it contains only cold, live,
// one-node-per-user-key entries. It returns true if any cold node remains.
// Only level 0 (next[0]) is rewritten; the upper levels keep their old
// pointers, so searches that descend through them (FindGreaterOrEqual,
// FindLessThan, FindLast) can still reach nodes dropped from level 0.
//
// Seperate must only be called once the memtable is frozen for flush: no
// further Insert or reader may run concurrently with it, since (unlike
// Insert/Thaw) it mutates the ordered chain's next[0] pointers out from
// under what had been a read-stable structure.
func (l *List) Seperate() (hotEntries []HotEntry, hasCold bool) {
	if l.normalHead == l.head {
		return nil, l.head.Next(0) != nil
	}
	hotHeadSeq := entry.ParseSeq(l.normalHead.key)

	for n := l.normalHead; n != nil; n = n.follow.Load() {
		hotEntries = append(hotEntries, HotEntry{
			UserKey: entry.ParseUserKey(n.key),
			Type:    entry.ParseType(n.key),
			Value:   entry.ParseValue(n.key),
		})
	}

	iter := l.head.Next(0)
	for iter != nil && entry.ParseSeq(iter.key) >= hotHeadSeq {
		iter = l.FindNoSmaller(iter).Next(0)
	}
	l.head.setNext(0, iter)

	if iter == nil {
		return hotEntries, false
	}

	next := l.FindNoSmaller(iter).Next(0)
	for next != nil {
		if entry.ParseSeq(next.key) < hotHeadSeq {
			iter.setNext(0, next)
			iter = next
		}
		next = l.FindNoSmaller(next).Next(0)
	}
	// The last surviving cold node's stale next[0] may still point at a node
	// that was excluded from the cold chain (a hot duplicate run that was
	// skipped rather than linked to). Terminate it explicitly so the ordered
	// chain never dangles into an unlinked node.
	iter.setNext(0, nil)

	return hotEntries, true
}

// ColdAreaSize returns the total node_size of all live cold nodes.
func (l *List) ColdAreaSize() int { return int(l.coldAreaSize.Load()) }

// NormalAreaSize returns the total node_size of all live hot nodes.
func (l *List) NormalAreaSize() int { return int(l.normalAreaSize.Load()) }
