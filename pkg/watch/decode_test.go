package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/lds/pkg/watch/watchtest"
)

type rec = watchtest.Record

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		records []rec
		exp     []Change
	}{
		{
			name: "Empty",
		},
		{
			name: "CreateFileAndDirectory",
			records: []rec{
				{Handle: 1, Mask: InCreate, Name: "a.txt"},
				{Handle: 1, Mask: InCreate | InIsDir, Name: "dir"},
			},
			exp: []Change{
				{Handle: 1, Name: "a.txt", Kind: Created},
				{Handle: 1, Name: "dir", IsDir: true, Kind: Created},
			},
		},
		{
			name: "EveryPrimitiveKind",
			records: []rec{
				{Handle: 1, Mask: InDelete, Name: "gone"},
				{Handle: 2, Mask: InModify},
				{Handle: 1, Mask: InAttrib | InIsDir, Name: "sub"},
				{Handle: 1, Mask: InMovedFrom, Cookie: 7, Name: "out"},
				{Handle: 1, Mask: InMovedTo, Cookie: 9, Name: "in"},
				{Handle: 3, Mask: InIgnored},
				{Handle: -1, Mask: InQOverflow},
			},
			exp: []Change{
				{Handle: 1, Name: "gone", Kind: Deleted},
				{Handle: 2, Kind: ModifiedContent},
				{Handle: 1, Name: "sub", IsDir: true, Kind: ModifiedMetadata},
				{Handle: 1, Name: "out", Kind: MovedAway, Cookie: 7},
				{Handle: 1, Name: "in", Kind: MovedIn, Cookie: 9},
				{Handle: 3, Kind: WatchRemoved},
				{Handle: -1, Kind: Overflow},
			},
		},
		{
			name: "UnmappedRecordsAreSkipped",
			records: []rec{
				{Handle: 1, Mask: InOpen, Name: "a.txt"},
				{Handle: 1, Mask: InCloseNowrite, Name: "a.txt"},
				{Handle: 1, Mask: InCreate, Name: "b.txt"},
			},
			exp: []Change{
				{Handle: 1, Name: "b.txt", Kind: Created},
			},
		},
		{
			name: "RenamePair",
			records: []rec{
				{Handle: 1, Mask: InMovedFrom, Cookie: 5, Name: "a"},
				{Handle: 1, Mask: InMovedTo, Cookie: 5, Name: "b"},
			},
			exp: []Change{
				{Handle: 1, Name: "b", Kind: Renamed, Cookie: 5, FromHandle: 1, FromName: "a"},
			},
		},
		{
			name: "RenameAcrossDirectories",
			records: []rec{
				{Handle: 1, Mask: InMovedFrom | InIsDir, Cookie: 5, Name: "src"},
				{Handle: 2, Mask: InMovedTo | InIsDir, Cookie: 5, Name: "dst"},
			},
			exp: []Change{
				{Handle: 2, Name: "dst", IsDir: true, Kind: Renamed, Cookie: 5,
					FromHandle: 1, FromName: "src"},
			},
		},
		{
			name: "MovedAwayFollowedByUnrelatedRecord",
			records: []rec{
				{Handle: 1, Mask: InMovedFrom, Cookie: 5, Name: "a"},
				{Handle: 1, Mask: InCreate, Name: "c"},
			},
			exp: []Change{
				{Handle: 1, Name: "a", Kind: MovedAway, Cookie: 5},
				{Handle: 1, Name: "c", Kind: Created},
			},
		},
		{
			name: "MovedAwayFollowedByMovedInWithOtherCookie",
			records: []rec{
				{Handle: 1, Mask: InMovedFrom, Cookie: 5, Name: "a"},
				{Handle: 1, Mask: InMovedTo, Cookie: 6, Name: "b"},
			},
			exp: []Change{
				{Handle: 1, Name: "a", Kind: MovedAway, Cookie: 5},
				{Handle: 1, Name: "b", Kind: MovedIn, Cookie: 6},
			},
		},
		{
			name: "MovedAwayAtEndOfBuffer",
			records: []rec{
				{Handle: 1, Mask: InMovedFrom, Cookie: 5, Name: "a"},
			},
			exp: []Change{
				{Handle: 1, Name: "a", Kind: MovedAway, Cookie: 5},
			},
		},
		{
			name: "MovedInWithoutCookie",
			records: []rec{
				{Handle: 1, Mask: InMovedTo, Name: "b"},
			},
			exp: []Change{
				{Handle: 1, Name: "b", Kind: MovedIn},
			},
		},
		{
			name: "AdjacentDuplicateCookieIsDropped",
			records: []rec{
				{Handle: 1, Mask: InDelete, Cookie: 3, Name: "x"},
				{Handle: 1, Mask: InDelete, Cookie: 3, Name: "x"},
			},
			exp: []Change{
				{Handle: 1, Name: "x", Kind: Deleted, Cookie: 3},
			},
		},
		{
			name: "NonAdjacentDuplicateCookieIsDelivered",
			records: []rec{
				{Handle: 1, Mask: InDelete, Cookie: 3, Name: "x"},
				{Handle: 1, Mask: InCreate, Name: "y"},
				{Handle: 1, Mask: InDelete, Cookie: 3, Name: "x"},
			},
			exp: []Change{
				{Handle: 1, Name: "x", Kind: Deleted, Cookie: 3},
				{Handle: 1, Name: "y", Kind: Created},
				{Handle: 1, Name: "x", Kind: Deleted, Cookie: 3},
			},
		},
		{
			name: "DuplicateAfterRenamePairIsDropped",
			records: []rec{
				{Handle: 1, Mask: InMovedFrom | InIsDir, Cookie: 8, Name: "a"},
				{Handle: 1, Mask: InMovedTo | InIsDir, Cookie: 8, Name: "b"},
				{Handle: 4, Mask: InMovedTo | InIsDir, Cookie: 8, Name: "b"},
			},
			exp: []Change{
				{Handle: 1, Name: "b", IsDir: true, Kind: Renamed, Cookie: 8,
					FromHandle: 1, FromName: "a"},
			},
		},
		{
			name: "ZeroCookiesAreNeverDuplicates",
			records: []rec{
				{Handle: 2, Mask: InModify},
				{Handle: 2, Mask: InModify},
			},
			exp: []Change{
				{Handle: 2, Kind: ModifiedContent},
				{Handle: 2, Kind: ModifiedContent},
			},
		},
		{
			name: "NameExactlyOnePaddingBlock",
			records: []rec{
				{Handle: 1, Mask: InCreate, Name: "sixteen-chars.go"},
			},
			exp: []Change{
				{Handle: 1, Name: "sixteen-chars.go", Kind: Created},
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			changes, err := Decode(watchtest.Encode(test.records...))
			require.NoError(t, err)
			assert.Equal(t, test.exp, changes)
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	full := watchtest.Encode(
		rec{Handle: 1, Mask: InCreate, Name: "a"},
		rec{Handle: 1, Mask: InCreate, Name: "b"},
	)

	tests := []struct {
		name string
		buf  []byte
		exp  []Change
	}{
		{
			name: "PartialHeader",
			buf:  full[:len(full)/2+4],
			exp:  []Change{{Handle: 1, Name: "a", Kind: Created}},
		},
		{
			name: "PartialName",
			buf:  full[:len(full)-1],
			exp:  []Change{{Handle: 1, Name: "a", Kind: Created}},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			changes, err := Decode(test.buf)
			assert.Equal(t, test.exp, changes)
			assert.IsType(t, ErrTruncatedRecord{}, err)
		})
	}
}

func TestDecodeTruncatedAfterMovedAway(t *testing.T) {
	buf := watchtest.Encode(
		rec{Handle: 1, Mask: InMovedFrom, Cookie: 5, Name: "a"},
		rec{Handle: 1, Mask: InMovedTo, Cookie: 5, Name: "b"},
	)
	buf = buf[:len(buf)-1]

	changes, err := Decode(buf)
	assert.Equal(t, []Change{{Handle: 1, Name: "a", Kind: MovedAway, Cookie: 5}}, changes)
	assert.IsType(t, ErrTruncatedRecord{}, err)
}

// Decoding the concatenation of two buffers gives the same result as
// decoding them separately, as long as the boundary doesn't split a record or
// a rename pair.
func TestDecodeConcatenation(t *testing.T) {
	first := watchtest.Encode(
		rec{Handle: 1, Mask: InCreate, Name: "a"},
		rec{Handle: 1, Mask: InMovedFrom, Cookie: 5, Name: "b"},
		rec{Handle: 1, Mask: InMovedTo, Cookie: 5, Name: "c"},
	)
	second := watchtest.Encode(
		rec{Handle: 2, Mask: InModify},
		rec{Handle: 1, Mask: InDelete, Cookie: 9, Name: "d"},
		rec{Handle: 1, Mask: InDelete, Cookie: 9, Name: "d"},
	)

	firstChanges, err := Decode(first)
	require.NoError(t, err)
	secondChanges, err := Decode(second)
	require.NoError(t, err)

	combined := append(append([]byte{}, first...), second...)
	combinedChanges, err := Decode(combined)
	require.NoError(t, err)

	assert.Equal(t, append(firstChanges, secondChanges...), combinedChanges)
}

func TestDecoderIsNotRestartable(t *testing.T) {
	dec := NewDecoder(watchtest.Encode(rec{Handle: 1, Mask: InCreate, Name: "a"}))
	assert.True(t, dec.Next())
	assert.Equal(t, "a", dec.Change().Name)
	assert.False(t, dec.Next())
	assert.False(t, dec.Next())
	assert.NoError(t, dec.Err())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Renamed", Renamed.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
	assert.Equal(t, "Renamed(1/a -> 2/b)",
		Change{Kind: Renamed, FromHandle: 1, FromName: "a", Handle: 2, Name: "b"}.String())
	assert.Equal(t, "Created(1/a)", Change{Kind: Created, Handle: 1, Name: "a"}.String())
}
