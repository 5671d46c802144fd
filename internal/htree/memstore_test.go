package htree

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/ab409/htree/internal/store"
)

// memStore is a minimal in-memory store.Store used only to exercise
// internal/htree's algorithms without the extra moving parts of a real
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
	m.records[id] = append([]byte(nil), raw...)
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
