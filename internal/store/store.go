// Package store implements the page-granular record store consumed by
// internal/htree: a flat file of variable-length records addressed by
// opaque record ids through a slot table that holds each record's
// offset and length. Slots of deleted records are reused through a
// singly-linked free list threaded through the slot table; the bytes
// they pointed at are not reclaimed.
package store

import "io"

// RecordID identifies a record within a Store. The zero value means
// "no record" and is never assigned to a live record.
type RecordID uint64

// Encoder writes the wire representation of a value persisted by a
// Store. Directories and buckets both implement Encoder via the tree's
// codec (see internal/htree).
type Encoder interface {
	EncodeTo(w io.Writer) error
}

// Decoder turns bytes back into the runtime value they represent,
// discriminating between node kinds by a leading tag byte. A single
// Decoder is shared by directories and buckets of one tree, matching
// the "one serializer, tag-discriminated" contract of the index's
// external record-store collaborator.
type Decoder interface {
	DecodeFrom(r io.Reader) (any, error)
}

// Store is the narrow persistence contract internal/htree is built
// against: fetch/insert/update/delete by record id, plus the raw byte
// access defragmentation needs.
type Store interface {
	// Fetch reads and decodes the record at id.
	Fetch(id RecordID, dec Decoder) (any, error)
	// FetchRaw reads the record at id without decoding it.
	FetchRaw(id RecordID) ([]byte, error)
	// Insert allocates a new record, encodes v into it and returns its id.
	Insert(v Encoder) (RecordID, error)
	// ForceInsert writes raw verbatim at the given id, growing the store
	// if necessary. Used only by defragmentation, which must preserve
	// record ids across stores.
	ForceInsert(id RecordID, raw []byte) error
	// Update overwrites the record at id with the encoding of v.
	Update(id RecordID, v Encoder) error
	// Delete frees the record at id for reuse.
	Delete(id RecordID) error
	// Close releases any resources held by the store.
	Close() error
}
