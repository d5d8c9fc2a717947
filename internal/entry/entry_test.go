package entry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tqstore/tqmemtable/internal/arena"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		userKey string
		seq     uint64
		typ     Type
		value   string
	}{
		{"simple", "hello", 1, TypeValue, "world"},
		{"empty value", "key", 42, TypeValue, ""},
		{"empty key", "", 7, TypeValue, "v"},
		{"deletion", "gone", 99, TypeDeletion, ""},
		{"large seq", "k", (1 << 56) - 1, TypeValue, "v"},
		{"binary bytes", "\x00\x01\xff", 5, TypeValue, "\x00\xff"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := arena.New()
			rec := Encode(a, tc.seq, tc.typ, []byte(tc.userKey), []byte(tc.value))

			require.Equal(t, tc.userKey, string(ParseUserKey(rec)))
			require.Equal(t, tc.seq, ParseSeq(rec))
			require.Equal(t, tc.typ, ParseType(rec))
			require.Equal(t, tc.value, string(ParseValue(rec)))
			require.Equal(t, Size([]byte(tc.userKey), []byte(tc.value)), len(rec))
		})
	}
}

func TestCompareOrdersUserKeyAscending(t *testing.T) {
	a := arena.New()
	lo := Encode(a, 1, TypeValue, []byte("a"), []byte("x"))
	hi := Encode(a, 1, TypeValue, []byte("b"), []byte("x"))
	require.Negative(t, Compare(lo, hi))
	require.Positive(t, Compare(hi, lo))
	require.Zero(t, Compare(lo, lo))
}

func TestCompareOrdersSequenceDescendingOnTie(t *testing.T) {
	a := arena.New()
	older := Encode(a, 1, TypeValue, []byte("k"), []byte("v1"))
	newer := Encode(a, 2, TypeValue, []byte("k"), []byte("v2"))

	// Newer sequence sorts first for the same user key.
	require.Negative(t, Compare(newer, older))
	require.Positive(t, Compare(older, newer))
}

func TestCompareBreaksSeqTieByTypeDescending(t *testing.T) {
	a := arena.New()
	value := Encode(a, 5, TypeValue, []byte("k"), []byte("v"))
	deletion := Encode(a, 5, TypeDeletion, []byte("k"), nil)
	// (seq<<8)|type: TypeValue=1 > TypeDeletion=0, so value sorts before deletion.
	require.Negative(t, Compare(value, deletion))
}

func TestSameUserKey(t *testing.T) {
	a := arena.New()
	x := Encode(a, 1, TypeValue, []byte("dup"), []byte("1"))
	y := Encode(a, 2, TypeValue, []byte("dup"), []byte("2"))
	z := Encode(a, 1, TypeValue, []byte("other"), []byte("3"))
	require.True(t, SameUserKey(x, y))
	require.False(t, SameUserKey(x, z))
}

func TestInternalKeyAndEncodeMemKeyMatchEncode(t *testing.T) {
	a := arena.New()
	rec := Encode(a, 17, TypeValue, []byte("abc"), []byte("value"))

	var ikeyScratch, memScratch []byte
	ikey := InternalKey(&ikeyScratch, []byte("abc"), 17, TypeValue)
	lookup := EncodeMemKey(&memScratch, ikey)

	require.Equal(t, 0, Compare(lookup, rec))
}
