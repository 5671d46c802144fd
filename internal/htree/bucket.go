package htree

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// bucket holds the entries that route to one directory slot. Above
// the terminal depth it behaves like a small unordered association
// list bounded by bucketCapacity; at the terminal depth it is allowed
// to grow without bound, since there is no deeper directory level left
// to split into.
type bucket[K comparable, V any] struct {
	tree   *Tree[K, V]
	depth  uint8
	keys   []K
	values []V
}

func newBucket[K comparable, V any](tree *Tree[K, V], depth uint8) *bucket[K, V] {
	return &bucket[K, V]{tree: tree, depth: depth}
}

func (b *bucket[K, V]) len() int { return len(b.keys) }

// hasRoom reports whether the bucket can accept one more entry without
// the directory having to split it into a subdirectory. At the
// terminal depth (maxDepth+1, where there is no further level to split
// into) it always reports room.
func (b *bucket[K, V]) hasRoom() bool {
	if int(b.depth) >= maxDepth+1 {
		return true
	}
	return len(b.keys) < bucketCapacity
}

func (b *bucket[K, V]) get(k K) (V, bool) {
	for i, kk := range b.keys {
		if kk == k {
			return b.values[i], true
		}
	}
	var zero V
	return zero, false
}

// add inserts k/v, or replaces the value if k is already present,
// returning the prior value and whether one existed.
func (b *bucket[K, V]) add(k K, v V) (V, bool) {
	for i, kk := range b.keys {
		if kk == k {
			prior := b.values[i]
			b.values[i] = v
			return prior, true
		}
	}
	b.keys = append(b.keys, k)
	b.values = append(b.values, v)
	var zero V
	return zero, false
}

// remove deletes k if present, filling the gap from the end of the
// slice; buckets make no ordering guarantee so this is safe.
func (b *bucket[K, V]) remove(k K) (V, bool) {
	for i, kk := range b.keys {
		if kk == k {
			prior := b.values[i]
			last := len(b.keys) - 1
			b.keys[i] = b.keys[last]
			b.values[i] = b.values[last]
			b.keys = b.keys[:last]
			b.values = b.values[:last]
			return prior, true
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[K, V]) keysCopy() []K {
	out := make([]K, len(b.keys))
	copy(out, b.keys)
	return out
}

func (b *bucket[K, V]) valuesCopy() []V {
	out := make([]V, len(b.values))
	copy(out, b.values)
	return out
}

// EncodeTo writes depth, the entry count as a varint (unbounded, since
// a terminal bucket's entry count can exceed a byte), then each
// key/value pair through the tree's codec.
func (b *bucket[K, V]) EncodeTo(w io.Writer) error {
	if _, err := w.Write([]byte{tagBucket, byte(b.depth)}); err != nil {
		return err
	}
	var countBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(countBuf[:], uint64(len(b.keys)))
	if _, err := w.Write(countBuf[:n]); err != nil {
		return err
	}
	enc := b.tree.codec.NewEncoder(w)
	for i := range b.keys {
		if err := enc.EncodeKey(b.keys[i]); err != nil {
			return errors.Wrap(err, "htree: encode bucket key")
		}
		if err := enc.EncodeValue(b.values[i]); err != nil {
			return errors.Wrap(err, "htree: encode bucket value")
		}
	}
	return nil
}

func decodeBucketBody[K comparable, V any](tree *Tree[K, V], r *bufio.Reader) (*bucket[K, V], error) {
	depthByte, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "htree: read bucket depth")
	}
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(err, "htree: read bucket entry count")
	}
	b := newBucket[K, V](tree, uint8(depthByte))
	if count == 0 {
		return b, nil
	}
	b.keys = make([]K, 0, count)
	b.values = make([]V, 0, count)
	dec := tree.codec.NewDecoder(r)
	for i := uint64(0); i < count; i++ {
		k, err := dec.DecodeKey()
		if err != nil {
			return nil, errors.Wrap(err, "htree: decode bucket key")
		}
		v, err := dec.DecodeValue()
		if err != nil {
			return nil, errors.Wrap(err, "htree: decode bucket value")
		}
		b.keys = append(b.keys, k)
		b.values = append(b.values, v)
	}
	return b, nil
}
