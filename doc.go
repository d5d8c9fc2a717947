// Package tqmemtable implements a 2Q-skiplist-backed memtable: the
// in-memory write buffer that sits in front of an LSM-tree's SSTables.
//
// Writes land in an arena-backed skip-list (internal/skiplist) that also
// threads every live entry through an insertion-order FIFO chain split into
// a hot and a cold region. At flush time the memtable partitions itself:
// the hot region's most recent writes carry over into a freshly allocated
// successor memtable (so very hot keys never have to round-trip through an
// SSTable), while the cold region is handed to the caller, sorted and
// deduplicated, ready to be written out as an SSTable.
//
// Callers are expected to serialize all writes themselves (a TQMemTable has
// no internal write lock) while allowing any number of concurrent readers.
package tqmemtable
