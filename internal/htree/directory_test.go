package htree

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ab409/htree/internal/store"
)

func TestDirectorySlotForConsumesHashByDepth(t *testing.T) {
	tr := newTestTree(t)
	h, err := tr.hash("example")
	require.NoError(t, err)

	for depth := uint8(0); depth <= maxDepth; depth++ {
		d := newDirectory[string, int](tr, depth)
		slot, err := d.slotFor("example")
		require.NoError(t, err)

		shift := uint((maxDepth - int(depth)) * bitSize)
		require.Equal(t, int((h>>shift)&0xFF), slot)
	}
}

func TestDirectoryEncodeDecodeEmptyIsTwoBytes(t *testing.T) {
	tr := newTestTree(t)
	d := newDirectory[string, int](tr, 2)

	var buf bytes.Buffer
	require.NoError(t, d.EncodeTo(&buf))
	require.Equal(t, []byte{tagDirectory, 2, 0}, buf.Bytes())

	br := bufio.NewReader(&buf)
	_, err := br.ReadByte() // discard tag, already asserted above
	require.NoError(t, err)
	decoded, err := decodeDirectoryBody(tr, br)
	require.NoError(t, err)
	require.True(t, decoded.isEmpty())
}

func TestDirectoryEncodeDecodeSparseRoundTrip(t *testing.T) {
	tr := newTestTree(t)
	d := newDirectory[string, int](tr, 1)
	d.children[3] = store.RecordID(42)
	d.children[10] = store.RecordID(7)
	d.children[200] = store.RecordID(99)

	var buf bytes.Buffer
	require.NoError(t, d.EncodeTo(&buf))

	br := bufio.NewReader(&buf)
	_, err := br.ReadByte()
	require.NoError(t, err)
	decoded, err := decodeDirectoryBody(tr, br)
	require.NoError(t, err)

	require.Equal(t, d.children, decoded.children)
	require.Equal(t, uint8(1), decoded.depth)
}

func TestDirectoryPutGetRemoveThroughStore(t *testing.T) {
	db := newMemStore()
	tr, err := New[string, int](db, GobCodec[string, int]{})
	require.NoError(t, err)

	_, had, err := tr.Put("one", 1)
	require.NoError(t, err)
	require.False(t, had)

	v, ok, err := tr.Get("one")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, v)

	prior, had, err := tr.Remove("one")
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, 1, prior)

	_, ok, err = tr.Get("one")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDirectorySplitsOverflowingBucket(t *testing.T) {
	tr := newTestTree(t)

	// Pick keys whose hashes share the same top 8 bits, so they all route
	// to one root slot, guaranteeing a real bucket split once the
	// capacity is exceeded.
	var keys []string
	var top uint32
	for i := 0; len(keys) < bucketCapacity+3; i++ {
		k := keyFor(i)
		h, err := tr.hash(k)
		require.NoError(t, err)
		if len(keys) == 0 {
			top = h >> 24
		}
		if h>>24 == top {
			keys = append(keys, k)
		}
	}

	for i, k := range keys {
		_, _, err := tr.Put(k, i)
		require.NoError(t, err)
	}

	root, err := tr.rootDirectory()
	require.NoError(t, err)
	child, err := root.fetchChild(root.children[top])
	require.NoError(t, err)
	sub, ok := child.(*directory[string, int])
	require.True(t, ok, "the overflowing root slot now holds a directory")
	require.Equal(t, uint8(1), sub.depth)

	for i, k := range keys {
		v, ok, err := tr.Get(k)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}
