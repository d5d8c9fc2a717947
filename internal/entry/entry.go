// Package entry implements the encoded-entry codec and the InternalKey
// comparator shared by every node of a 2Q-skiplist.
//
// An encoded entry packs (user_key, sequence, type, value) into a single
// length-prefixed byte record:
//
//	[ varint  ikey_len = len(user_key) + 8 ]
//	[ user_key bytes, length ikey_len - 8  ]
//	[ 8 bytes little-endian (seq<<8)|type  ]
//	[ varint  value_len                    ]
//	[ value bytes                          ]
//
// The record is what a skiplist node's key points to; all four fields can be
// recovered from it without holding onto the original arguments.
package entry

import (
	"encoding/binary"

	"github.com/tqstore/tqmemtable/internal/arena"
)

// Type distinguishes a live value from a tombstone.
type Type byte

const (
	// TypeDeletion marks a tombstone: the user key has been removed as of
	// this sequence number.
	TypeDeletion Type = 0
	// TypeValue marks a live value.
	TypeValue Type = 1
)

const tagSize = 8

// Encode packs seq, typ, userKey and value into a, returning the freshly
// allocated record. The returned slice is stable for the life of a.
func Encode(a *arena.Arena, seq uint64, typ Type, userKey, value []byte) []byte {
	ikeyLen := len(userKey) + tagSize
	size := binary.MaxVarintLen32 + ikeyLen + binary.MaxVarintLen32 + len(value)
	scratch := make([]byte, size)

	n := binary.PutUvarint(scratch, uint64(ikeyLen))
	n += copy(scratch[n:], userKey)
	binary.LittleEndian.PutUint64(scratch[n:], (seq<<8)|uint64(typ))
	n += tagSize
	n += binary.PutUvarint(scratch[n:], uint64(len(value)))
	n += copy(scratch[n:], value)

	buf := a.Allocate(n)
	copy(buf, scratch[:n])
	return buf
}

// Size returns the number of bytes Encode would need to store the given
// fields, matching exactly what Encode allocates.
func Size(userKey, value []byte) int {
	ikeyLen := len(userKey) + tagSize
	return uvarintLen(uint64(ikeyLen)) + ikeyLen + uvarintLen(uint64(len(value))) + len(value)
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// ParseUserKey returns the user-key bytes of an encoded entry. The returned
// slice aliases e.
func ParseUserKey(e []byte) []byte {
	ikeyLen, n := binary.Uvarint(e)
	return e[n : n+int(ikeyLen)-tagSize]
}

// ParseSeq returns the sequence number of an encoded entry.
func ParseSeq(e []byte) uint64 {
	return tag(e) >> 8
}

// ParseType returns the value type of an encoded entry.
func ParseType(e []byte) Type {
	return Type(tag(e) & 0xff)
}

// ParseValue returns the value payload of an encoded entry (empty for
// TypeDeletion). The returned slice aliases e.
func ParseValue(e []byte) []byte {
	ikeyLen, n := binary.Uvarint(e)
	tagEnd := n + int(ikeyLen)
	valLen, m := binary.Uvarint(e[tagEnd:])
	start := tagEnd + m
	return e[start : start+int(valLen)]
}

func tag(e []byte) uint64 {
	ikeyLen, n := binary.Uvarint(e)
	tagStart := n + int(ikeyLen) - tagSize
	return binary.LittleEndian.Uint64(e[tagStart : tagStart+tagSize])
}

// Compare implements the InternalKey order: user keys ascending, ties broken
// by descending (sequence, type) so that the newest version of a user key
// sorts first. a and b are encoded entries (or any prefix containing at
// least the ikey portion).
func Compare(a, b []byte) int {
	ua, ta := ParseUserKey(a), tag(a)
	ub, tb := ParseUserKey(b), tag(b)

	if c := compareBytes(ua, ub); c != 0 {
		return c
	}
	switch {
	case ta > tb:
		return -1
	case ta < tb:
		return 1
	default:
		return 0
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// MemKeyCompare is the comparator function handed to the skip-list: it
// compares two memtable keys (length-prefixed encoded entries, or
// EncodeMemKey lookup targets) by InternalKey order. It is a distinct name
// from Compare so callers that hold a memtable-key comparator value (rather
// than calling Compare directly) have a stable function value to pass
// around, matching the original's separate KeyComparator wrapper type.
func MemKeyCompare(a, b []byte) int {
	return Compare(a, b)
}

// SameUserKey reports whether two encoded entries share the same user key.
func SameUserKey(a, b []byte) bool {
	return compareBytes(ParseUserKey(a), ParseUserKey(b)) == 0
}

// EncodeMemKey wraps a raw InternalKey (user_key + 8-byte tag, no value) with
// its own length prefix, for building a Seek target that mirrors what Encode
// produces. Used by lookups that only know the ikey, not a value. ikey may
// itself live at the start of *scratch (as when InternalKey built it from the
// same scratch buffer).
func EncodeMemKey(scratch *[]byte, ikey []byte) []byte {
	need := binary.MaxVarintLen32 + len(ikey)
	if cap(*scratch) < need {
		*scratch = make([]byte, need)
	}
	buf := (*scratch)[:need]
	n := uvarintLen(uint64(len(ikey)))
	copy(buf[n:], ikey) // move the ikey first: the prefix may overwrite its start
	binary.PutUvarint(buf, uint64(len(ikey)))
	return buf[:n+len(ikey)]
}

// InternalKey builds the raw (user_key || tag) bytes for userKey/seq/typ,
// with no outer length prefix — the payload EncodeMemKey wraps.
func InternalKey(scratch *[]byte, userKey []byte, seq uint64, typ Type) []byte {
	need := len(userKey) + tagSize
	if cap(*scratch) < need {
		*scratch = make([]byte, need)
	}
	buf := (*scratch)[:need]
	n := copy(buf, userKey)
	binary.LittleEndian.PutUint64(buf[n:], (seq<<8)|uint64(typ))
	return buf
}
