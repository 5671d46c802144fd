package htree

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTreePutReplacesAndReturnsPrior(t *testing.T) {
	tr := newTestTree(t)

	_, had, err := tr.Put("k", 1)
	require.NoError(t, err)
	require.False(t, had)

	prior, had, err := tr.Put("k", 2)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, 1, prior)

	v, ok, err := tr.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestTreeModCountIncreasesOnMutation(t *testing.T) {
	tr := newTestTree(t)
	require.Equal(t, uint64(0), tr.ModCount())

	_, _, err := tr.Put("a", 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), tr.ModCount())

	_, _, err = tr.Get("a")
	require.NoError(t, err)
	require.Equal(t, uint64(1), tr.ModCount(), "reads never bump the modification counter")

	_, had, err := tr.Remove("missing")
	require.NoError(t, err)
	require.False(t, had)
	require.Equal(t, uint64(1), tr.ModCount(), "removing a key that was never present is not a mutation")

	_, had, err = tr.Remove("a")
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, uint64(2), tr.ModCount())
}

func TestTreeClearRemovesEverything(t *testing.T) {
	tr := newTestTree(t)
	for i := 0; i < 20; i++ {
		_, _, err := tr.Put(string(rune('a'+i%26)), i)
		require.NoError(t, err)
	}

	require.NoError(t, tr.Clear())

	cur, err := tr.Keys()
	require.NoError(t, err)
	_, err = cur.Next()
	require.ErrorIs(t, err, ErrExhausted)
}

func TestTreeManyEntriesRoundTrip(t *testing.T) {
	tr := newTestTree(t)
	const n = 500
	for i := 0; i < n; i++ {
		key := keyFor(i)
		_, had, err := tr.Put(key, i)
		require.NoError(t, err)
		require.False(t, had)
	}

	for i := 0; i < n; i++ {
		v, ok, err := tr.Get(keyFor(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, v)
	}

	for i := 0; i < n; i += 2 {
		prior, had, err := tr.Remove(keyFor(i))
		require.NoError(t, err)
		require.True(t, had)
		require.Equal(t, i, prior)
	}

	for i := 0; i < n; i++ {
		_, ok, err := tr.Get(keyFor(i))
		require.NoError(t, err)
		require.Equal(t, i%2 != 0, ok)
	}
}

func TestTreeDefragPreservesRecordIDsAndContent(t *testing.T) {
	src := newMemStore()
	tr, err := New[string, int](src, GobCodec[string, int]{})
	require.NoError(t, err)

	const n = 60
	for i := 0; i < n; i++ {
		_, _, err := tr.Put(keyFor(i), i)
		require.NoError(t, err)
	}

	dst := newMemStore()
	newRoot, err := tr.Defrag(dst)
	require.NoError(t, err)
	require.Equal(t, tr.RootID(), newRoot)

	reopened, err := Open[string, int](dst, GobCodec[string, int]{}, newRoot)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		v, ok, err := reopened.Get(keyFor(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func keyFor(i int) string {
	return "key-" + strconv.Itoa(i)
}
