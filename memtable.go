package tqmemtable

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tqstore/tqmemtable/internal/arena"
	"github.com/tqstore/tqmemtable/internal/entry"
	"github.com/tqstore/tqmemtable/internal/skiplist"
)

// ErrArenaOOM is the single real error this module's write path can return:
// the arena could not satisfy an allocation request. Per spec.md §7, every
// other condition Insert might encounter (duplicate key, empty value,
// tombstone lookups) is routine, not an error.
var ErrArenaOOM = errors.New("tqmemtable: arena allocation failed")

// Options configures a TQMemTable.
type Options struct {
	// WriteBufferSize is the byte budget the memtable is expected to stay
	// under before the outer database flushes it. Exceeding it is logged,
	// not rejected (invariant 5 of spec.md §3 allows soft overshoot).
	WriteBufferSize int
	// SizeFactor is the fraction of WriteBufferSize the hot region may
	// occupy before FreezeNodes starts moving entries into the cold
	// region. Zero means the skiplist package default (0.2).
	SizeFactor float64
	// Logger receives Debug-level freeze/thaw events and a Warn when the
	// arena grows past WriteBufferSize. Nil is treated as zap.NewNop().
	Logger *zap.Logger
}

// TQMemTable is the in-memory write buffer in front of an LSM-tree's
// SSTables: a reference-counted façade over a 2Q-skiplist and the arena
// backing it.
//
// All writes (Add) must come from a single goroutine, serialized by the
// outer database's own mutex; Get and NewIterator may run concurrently with
// that writer from any number of goroutines.
type TQMemTable struct {
	arena *arena.Arena
	list  *skiplist.List
	opts  Options
	log   *zap.Logger

	refs atomic.Int32
	seq  atomic.Uint64
}

// New returns an empty, ref-counted TQMemTable with one reference already
// held (matching the teacher's constructor convention of returning a
// ready-to-use value rather than requiring a separate Ref call).
func New(opts Options) *TQMemTable {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := arena.New()
	m := &TQMemTable{
		arena: a,
		list: skiplist.New(a, skiplist.Options{
			WriteBufferSize: opts.WriteBufferSize,
			SizeFactor:      opts.SizeFactor,
			Logger:          logger,
		}),
		opts: opts,
		log:  logger,
	}
	m.refs.Store(1)
	return m
}

// Ref increments the reference count. Callers that hand a TQMemTable to
// another goroutine (e.g. a background flush) must Ref before doing so.
func (m *TQMemTable) Ref() { m.refs.Add(1) }

// Unref decrements the reference count. The memtable (and its arena) become
// eligible for garbage collection once the count reaches zero; there is no
// explicit Close, mirroring spec.md §6's "no destructor-driven cleanup"
// external-interface note.
func (m *TQMemTable) Unref() {
	if m.refs.Add(-1) < 0 {
		panic("tqmemtable: Unref called more times than Ref")
	}
}

// Add inserts userKey/value at the next sequence number this memtable
// assigns internally, as a live value (not a tombstone).
func (m *TQMemTable) Add(userKey, value []byte) error {
	return m.add(userKey, value, entry.TypeValue)
}

// Delete inserts a tombstone for userKey.
func (m *TQMemTable) Delete(userKey []byte) error {
	return m.add(userKey, nil, entry.TypeDeletion)
}

func (m *TQMemTable) add(userKey, value []byte, typ entry.Type) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrArenaOOM, r)
		}
	}()

	seq := m.seq.Add(1)
	rec := entry.Encode(m.arena, seq, typ, userKey, value)
	m.list.Insert(rec)

	if used := m.arena.MemoryUsage(); m.opts.WriteBufferSize > 0 && used > m.opts.WriteBufferSize {
		m.log.Warn("tqmemtable: arena exceeds write buffer budget",
			zap.Int("used", used),
			zap.Int("write_buffer_size", m.opts.WriteBufferSize),
		)
	}
	return nil
}

// Get looks up the most recent value for userKey visible at or before
// readSeq. It returns (value, true, nil) for a live value, (nil, true, nil)
// for a tombstone (the key is known deleted), and (nil, false, nil) if no
// entry for userKey exists at all.
func (m *TQMemTable) Get(userKey []byte, readSeq uint64) (value []byte, found bool, err error) {
	var scratch []byte
	target := entry.EncodeMemKey(&scratch, entry.InternalKey(&scratch, userKey, readSeq, entry.TypeValue))

	it := m.list.NewIterator()
	it.Seek(target)
	if !it.Valid() {
		return nil, false, nil
	}
	rec := it.Key()
	if !entry.SameUserKey(rec, target) {
		return nil, false, nil
	}
	switch entry.ParseType(rec) {
	case entry.TypeDeletion:
		return nil, true, nil
	default:
		return entry.ParseValue(rec), true, nil
	}
}

// Contains reports whether any version of userKey (live or tombstone) is
// present, independent of sequence number.
func (m *TQMemTable) Contains(userKey []byte) bool {
	var scratch []byte
	target := entry.EncodeMemKey(&scratch, entry.InternalKey(&scratch, userKey, ^uint64(0), entry.TypeValue))
	it := m.list.NewIterator()
	it.Seek(target)
	return it.Valid() && entry.SameUserKey(it.Key(), target)
}

// NewIterator returns an Iterator over the InternalKey-ordered projection of
// this memtable's entries.
func (m *TQMemTable) NewIterator() *skiplist.Iterator {
	return m.list.NewIterator()
}

// ApproximateMemoryUsage returns the total bytes charged against this
// memtable's arena, including both arena-carved entry bytes and billed node
// overhead.
func (m *TQMemTable) ApproximateMemoryUsage() int {
	return m.arena.MemoryUsage()
}

// ApproximateColdArea returns the total node_size of the memtable's cold
// region.
func (m *TQMemTable) ApproximateColdArea() int {
	return m.list.ColdAreaSize()
}

// ApproximateNormalArea returns the total node_size of the memtable's hot
// (normal) region.
func (m *TQMemTable) ApproximateNormalArea() int {
	return m.list.NormalAreaSize()
}

// CreateNewAndImm partitions this (now-immutable) memtable for flush: it
// returns a freshly constructed successor memtable with the hot region's
// entries already re-inserted (so very recent writes skip a round trip
// through an SSTable), plus hasCold reporting whether any cold entries
// remain in the receiver for the caller to flush.
//
// After CreateNewAndImm returns, the receiver's level-0 ordered chain
// contains only the cold, deduplicated entries, ready for a SeekToFirst/Next
// walk such as ColdPwritevBuffers. The upper skip-list levels are not
// rewritten, so Seek, SeekToLast and Prev on the receiver can still land on
// dropped entries. Add must not be called on it again.
func (m *TQMemTable) CreateNewAndImm() (successor *TQMemTable, hasCold bool) {
	hotEntries, hasCold := m.list.Seperate()

	successor = New(m.opts)
	for _, he := range hotEntries {
		seq := successor.seq.Add(1)
		rec := entry.Encode(successor.arena, seq, he.Type, he.UserKey, he.Value)
		successor.list.Insert(rec)
	}
	return successor, hasCold
}

// Substitute carries old's still-live hot entries into this memtable's
// arena, preserving their original encoded bytes and sequence numbers
// exactly (a raw FIFO-order copy, unlike CreateNewAndImm's fresh
// re-encoding). Used when a successor memtable was already constructed
// before old's hot region was known, and needs the exact original write
// history grafted in rather than a re-sequenced replay.
func (m *TQMemTable) Substitute(old *TQMemTable) {
	it := old.list.NewFIFOIterator()
	it.SeekToOldest()
	for it.Valid() {
		src := it.Key()
		dst := m.arena.Allocate(len(src))
		copy(dst, src)
		m.list.Insert(dst)
		it.Newer()
	}
}

// ColdPwritevBuffers returns the memtable's entries, in ascending
// InternalKey order, as a slice of byte slices suitable for
// golang.org/x/sys/unix.Pwritev. After CreateNewAndImm has partitioned the
// memtable, the result contains only cold, live, one-per-user-key entries.
// On a memtable that was never split it contains every entry in the ordered
// chain, hot ones and superseded older versions included.
func (m *TQMemTable) ColdPwritevBuffers() [][]byte {
	it := m.list.NewIterator()
	it.SeekToFirst()

	buffers := make([][]byte, 0, m.list.ColdAreaSize()/64+1)
	for it.Valid() {
		buffers = append(buffers, it.Key())
		it.Next()
	}
	return buffers
}
