package htreeset

import (
	"bytes"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/ab409/htree/internal/htree"
	"github.com/ab409/htree/internal/store"
)

func newTestSet(t *testing.T) *Set[string] {
	t.Helper()
	db := newMemStore()
	s, err := New[string](db, htree.GobCodec[string, struct{}]{})
	require.NoError(t, err)
	return s
}

func TestSetAddContainsRemove(t *testing.T) {
	s := newTestSet(t)

	added, err := s.Add("a")
	require.NoError(t, err)
	require.True(t, added)

	added, err = s.Add("a")
	require.NoError(t, err)
	require.False(t, added, "adding an already-present element reports false")

	ok, err := s.Contains("a")
	require.NoError(t, err)
	require.True(t, ok)

	removed, err := s.Remove("a")
	require.NoError(t, err)
	require.True(t, removed)

	ok, err = s.Contains("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetLenAndIsEmpty(t *testing.T) {
	s := newTestSet(t)

	empty, err := s.IsEmpty()
	require.NoError(t, err)
	require.True(t, empty)

	for _, e := range []string{"x", "y", "z"} {
		_, err := s.Add(e)
		require.NoError(t, err)
	}

	empty, err = s.IsEmpty()
	require.NoError(t, err)
	require.False(t, empty)

	n, err := s.Len()
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestSetElementsAndClear(t *testing.T) {
	s := newTestSet(t)
	want := []string{"a", "b", "c", "d"}
	for _, e := range want {
		_, err := s.Add(e)
		require.NoError(t, err)
	}

	got, err := s.Elements()
	require.NoError(t, err)
	sort.Strings(got)
	require.Equal(t, want, got)

	require.NoError(t, s.Clear())
	got, err = s.Elements()
	require.NoError(t, err)
	require.Empty(t, got)
}

// memStore is a minimal in-memory store.Store, mirroring
// internal/htree's test double, used so these tests don't need a real
// file-backed store.
type memStore struct {
	records map[store.RecordID][]byte
	next    store.RecordID
}

func newMemStore() *memStore {
	return &memStore{records: make(map[store.RecordID][]byte)}
}

func (m *memStore) Fetch(id store.RecordID, dec store.Decoder) (any, error) {
	raw, err := m.FetchRaw(id)
	if err != nil {
		return nil, err
	}
	return dec.DecodeFrom(bytes.NewReader(raw))
}

func (m *memStore) FetchRaw(id store.RecordID) ([]byte, error) {
	raw, ok := m.records[id]
	if !ok {
		return nil, errors.Errorf("memstore: no record %d", id)
	}
	return raw, nil
}

func (m *memStore) Insert(v store.Encoder) (store.RecordID, error) {
	var buf bytes.Buffer
	if err := v.EncodeTo(&buf); err != nil {
		return 0, err
	}
	m.next++
	m.records[m.next] = buf.Bytes()
	return m.next, nil
}

func (m *memStore) ForceInsert(id store.RecordID, raw []byte) error {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	m.records[id] = cp
	if id > m.next {
		m.next = id
	}
	return nil
}

func (m *memStore) Update(id store.RecordID, v store.Encoder) error {
	if _, ok := m.records[id]; !ok {
		return errors.Errorf("memstore: no record %d", id)
	}
	var buf bytes.Buffer
	if err := v.EncodeTo(&buf); err != nil {
		return err
	}
	m.records[id] = buf.Bytes()
	return nil
}

func (m *memStore) Delete(id store.RecordID) error {
	delete(m.records, id)
	return nil
}

func (m *memStore) Close() error { return nil }
