package bundle

import (
	"testing"

	"github.com/chazuruo/tavernaplayer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecode_ListAndLeaf tests numbered entries fold into an ordered list
// while a suffixed top-level entry stays a leaf.
func TestDecode_ListAndLeaf(t *testing.T) {
	data := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "A/1.txt", Content: "first"},
		testutil.ZipEntry{Name: "A/2.txt", Content: "second"},
		testutil.ZipEntry{Name: "B.txt", Content: "single"},
	)

	out, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, Outputs{
		"A": []any{[]byte("first"), []byte("second")},
		"B": []byte("single"),
	}, out)
}

// TestDecode_NonNumericSiblingsDropped tests that a branch without numeric
// keys collapses to an empty list.
func TestDecode_NonNumericSiblingsDropped(t *testing.T) {
	data := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "A/x.txt", Content: "x"},
		testutil.ZipEntry{Name: "A/y.txt", Content: "y"},
	)

	out, err := Decode(data)
	require.NoError(t, err)

	require.Contains(t, out, "A")
	assert.Equal(t, []any{}, out["A"])
}

// TestDecode_MixedKeys tests that only the numeric siblings survive.
func TestDecode_MixedKeys(t *testing.T) {
	data := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "A/1.txt", Content: "one"},
		testutil.ZipEntry{Name: "A/notes.txt", Content: "dropped"},
	)

	out, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, []any{[]byte("one")}, out["A"])
}

// TestDecode_OutOfOrder tests that archive order does not change the result.
func TestDecode_OutOfOrder(t *testing.T) {
	ordered := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "out/1/1.txt", Content: "a"},
		testutil.ZipEntry{Name: "out/1/2.txt", Content: "b"},
		testutil.ZipEntry{Name: "out/2/1.txt", Content: "c"},
		testutil.ZipEntry{Name: "log.txt", Content: "done"},
	)
	shuffled := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "out/2/1.txt", Content: "c"},
		testutil.ZipEntry{Name: "log.txt", Content: "done"},
		testutil.ZipEntry{Name: "out/1/2.txt", Content: "b"},
		testutil.ZipEntry{Name: "out/1/1.txt", Content: "a"},
	)

	want := Outputs{
		"out": []any{
			[]any{[]byte("a"), []byte("b")},
			[]any{[]byte("c")},
		},
		"log": []byte("done"),
	}

	for name, data := range map[string][]byte{"ordered": ordered, "shuffled": shuffled} {
		t.Run(name, func(t *testing.T) {
			out, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, want, out)
		})
	}
}

// TestDecode_Gaps tests that missing positions are nil.
func TestDecode_Gaps(t *testing.T) {
	data := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "A/3.txt", Content: "third"},
		testutil.ZipEntry{Name: "A/1.txt", Content: "first"},
	)

	out, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, []any{[]byte("first"), nil, []byte("third")}, out["A"])
}

// TestDecode_DirectoryEntries tests that explicit directory entries add
// nothing to the folded lists.
func TestDecode_DirectoryEntries(t *testing.T) {
	data := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "A/"},
		testutil.ZipEntry{Name: "A/1.txt", Content: "first"},
		testutil.ZipEntry{Name: "E/"},
	)

	out, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, []any{[]byte("first")}, out["A"])
	assert.Equal(t, []any{}, out["E"])
}

// TestDecode_NonPositiveKeys tests that zero and negative names are not positions.
func TestDecode_NonPositiveKeys(t *testing.T) {
	data := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "A/0.txt", Content: "zero"},
		testutil.ZipEntry{Name: "A/-1.txt", Content: "negative"},
		testutil.ZipEntry{Name: "A/2.txt", Content: "two"},
	)

	out, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, []any{nil, []byte("two")}, out["A"])
}

// TestDecode_LeafAndBranchConflict tests that a leaf wins over a branch of the
// same name wherever either appears in the archive.
func TestDecode_LeafAndBranchConflict(t *testing.T) {
	for _, entries := range [][]testutil.ZipEntry{
		{{Name: "A.txt", Content: "leaf"}, {Name: "A/1.txt", Content: "item"}},
		{{Name: "A/1.txt", Content: "item"}, {Name: "A.txt", Content: "leaf"}},
	} {
		out, err := Decode(testutil.BuildZip(t, entries...))
		require.NoError(t, err)
		assert.Equal(t, []byte("leaf"), out["A"])
	}
}

// TestDecode_ByteRoundTrip tests that leaf bytes come back unchanged.
func TestDecode_ByteRoundTrip(t *testing.T) {
	payload := string([]byte{0x00, 0xff, 0x10, 'P', 'K', 0x03, 0x04, '\n'})
	data := testutil.BuildZip(t, testutil.ZipEntry{Name: "port/1.bin", Content: payload})

	out, err := Decode(data)
	require.NoError(t, err)

	list, ok := out["port"].([]any)
	require.True(t, ok, "port should decode to a list")
	require.Len(t, list, 1)
	assert.Equal(t, []byte(payload), list[0])
}

// TestDecode_InvalidArchive tests that non-zip input is rejected.
func TestDecode_InvalidArchive(t *testing.T) {
	_, err := Decode([]byte("not a zip"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "reading archive")
}

// TestDecode_PositionLimit tests that positions beyond MaxPosition fail the
// decode, at the top level and in nested lists.
func TestDecode_PositionLimit(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"top level", "A/99999999999999.txt"},
		{"just above limit", "A/65537.txt"},
		{"nested", "A/1/100000000.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testutil.BuildZip(t, testutil.ZipEntry{Name: tt.entry, Content: "x"})
			_, err := Decode(data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "port A")
		})
	}

	t.Run("at limit", func(t *testing.T) {
		data := testutil.BuildZip(t, testutil.ZipEntry{Name: "A/65536.txt", Content: "x"})
		out, err := Decode(data)
		require.NoError(t, err)
		list := out["A"].([]any)
		require.Len(t, list, MaxPosition)
		assert.Equal(t, []byte("x"), list[MaxPosition-1])
	})
}

// TestDecode_Empty tests that an empty archive yields no ports.
func TestDecode_Empty(t *testing.T) {
	out, err := Decode(testutil.BuildZip(t))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOutputsPorts(t *testing.T) {
	out := Outputs{"b": nil, "a": nil, "c": nil}
	assert.Equal(t, []string{"a", "b", "c"}, out.Ports())
}
