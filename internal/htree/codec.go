package htree

import (
	"encoding/gob"
	"io"
)

// Codec builds the per-record encoder and decoder a Tree uses to
// serialize its keys and values. A fresh EntryEncoder/EntryDecoder is
// created for every bucket record rather than reused across records,
// so that a decoder's internal buffering can never reach past the end
// of the record it was handed.
type Codec[K any, V any] interface {
	NewEncoder(w io.Writer) EntryEncoder[K, V]
	NewDecoder(r io.Reader) EntryDecoder[K, V]
}

// EntryEncoder writes a sequence of key/value pairs to one record.
type EntryEncoder[K any, V any] interface {
	EncodeKey(k K) error
	EncodeValue(v V) error
}

// EntryDecoder reads back a sequence of key/value pairs written by the
// matching EntryEncoder.
type EntryDecoder[K any, V any] interface {
	DecodeKey() (K, error)
	DecodeValue() (V, error)
}

// GobCodec is the default Codec: it serializes arbitrary keys and
// values with encoding/gob, the standard library's stand-in for
// java.io.Serializable, which backed the original generic HTree<K,V>.
type GobCodec[K any, V any] struct{}

func (GobCodec[K, V]) NewEncoder(w io.Writer) EntryEncoder[K, V] {
	return &gobEntryCodec[K, V]{enc: gob.NewEncoder(w)}
}

func (GobCodec[K, V]) NewDecoder(r io.Reader) EntryDecoder[K, V] {
	return &gobEntryCodec[K, V]{dec: gob.NewDecoder(r)}
}

type gobEntryCodec[K any, V any] struct {
	enc *gob.Encoder
	dec *gob.Decoder
}

func (c *gobEntryCodec[K, V]) EncodeKey(k K) error   { return c.enc.Encode(k) }
func (c *gobEntryCodec[K, V]) EncodeValue(v V) error { return c.enc.Encode(v) }

func (c *gobEntryCodec[K, V]) DecodeKey() (K, error) {
	var k K
	err := c.dec.Decode(&k)
	return k, err
}

func (c *gobEntryCodec[K, V]) DecodeValue() (V, error) {
	var v V
	err := c.dec.Decode(&v)
	return v, err
}
