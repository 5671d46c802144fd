// Package htree implements a persistent extendible hash index: a hash
// trie of fixed-fanout directories routing to small unordered buckets,
// with an explicit 3-deep maximum directory depth and a defragmenting
// copy operation for reclaiming space the store abandons on updates.
//
// The index never caches nodes in memory between calls; every get,
// put, remove and cursor step re-fetches what it needs from the
// backing internal/store.Store, which is assumed single-writer,
// single-reader and does no locking of its own.
package htree

import (
	"bufio"
	"io"

	logging "github.com/op/go-logging"
	"github.com/pkg/errors"

	"github.com/ab409/htree/internal/store"
)

var log = logging.MustGetLogger("htree")

// Tree is a handle onto one persistent extendible hash index. K must
// be comparable so buckets can test key equality directly, the way a
// builtin Go map would.
type Tree[K comparable, V any] struct {
	db    store.Store
	codec Codec[K, V]
	dec   store.Decoder
	root  store.RecordID

	// modCount strictly increases on every successful Put and every
	// Remove that actually removed something; cursors snapshot it to
	// fail fast on concurrent modification.
	modCount uint64
}

// New creates a fresh, empty tree backed by db.
func New[K comparable, V any](db store.Store, codec Codec[K, V]) (*Tree[K, V], error) {
	t := &Tree[K, V]{db: db, codec: codec}
	t.dec = &treeDecoder[K, V]{tree: t}

	root := newDirectory[K, V](t, 0)
	recid, err := db.Insert(root)
	if err != nil {
		return nil, errors.Wrap(err, "htree: create root directory")
	}
	t.root = recid
	return t, nil
}

// Open reconstructs a handle onto a tree whose root directory already
// exists at rootID, e.g. after reopening a store.
func Open[K comparable, V any](db store.Store, codec Codec[K, V], rootID store.RecordID) (*Tree[K, V], error) {
	if rootID == 0 {
		return nil, errors.New("htree: root record id must be non-zero")
	}
	t := &Tree[K, V]{db: db, codec: codec, root: rootID}
	t.dec = &treeDecoder[K, V]{tree: t}
	return t, nil
}

// RootID returns the record id of the tree's root directory, needed to
// reopen the tree later with Open.
func (t *Tree[K, V]) RootID() store.RecordID { return t.root }

// ModCount returns the tree's current modification counter.
func (t *Tree[K, V]) ModCount() uint64 { return t.modCount }

func (t *Tree[K, V]) rootDirectory() (*directory[K, V], error) {
	v, err := t.db.Fetch(t.root, t.dec)
	if err != nil {
		return nil, errors.Wrap(err, "htree: fetch root directory")
	}
	dir, ok := v.(*directory[K, V])
	if !ok {
		return nil, errors.New("htree: root record is not a directory")
	}
	dir.setPersistenceContext(t.db, t.root)
	return dir, nil
}

// Get returns the value associated with k, if any.
func (t *Tree[K, V]) Get(k K) (V, bool, error) {
	var zero V
	root, err := t.rootDirectory()
	if err != nil {
		return zero, false, err
	}
	return root.get(k)
}

// Put inserts or replaces the association for k, returning the prior
// value if one existed.
func (t *Tree[K, V]) Put(k K, v V) (V, bool, error) {
	var zero V
	root, err := t.rootDirectory()
	if err != nil {
		return zero, false, err
	}
	prior, had, err := root.put(k, v)
	if err != nil {
		return zero, false, err
	}
	t.modCount++
	return prior, had, nil
}

// Remove deletes the association for k, if any, returning the removed
// value.
func (t *Tree[K, V]) Remove(k K) (V, bool, error) {
	var zero V
	root, err := t.rootDirectory()
	if err != nil {
		return zero, false, err
	}
	prior, had, err := root.remove(k)
	if err != nil {
		return zero, false, err
	}
	if had {
		t.modCount++
	}
	return prior, had, nil
}

// Clear replaces the tree's root with a fresh, empty directory at the
// same record id, discarding every entry.
func (t *Tree[K, V]) Clear() error {
	root := newDirectory[K, V](t, 0)
	if err := t.db.Update(t.root, root); err != nil {
		return errors.Wrap(err, "htree: clear")
	}
	t.modCount++
	return nil
}

// Keys returns a fail-fast cursor over the tree's keys, visited
// depth-first in directory-slot order.
func (t *Tree[K, V]) Keys() (*Cursor[K, V, K], error) {
	return newCursor[K, V, K](t, func(k K, v V) K { return k })
}

// Values returns a fail-fast cursor over the tree's values, in the
// same order as Keys.
func (t *Tree[K, V]) Values() (*Cursor[K, V, V], error) {
	return newCursor[K, V, V](t, func(k K, v V) V { return v })
}

// Defrag copies every live record of the tree, verbatim and with
// unchanged record ids, into dst, and returns the new root id (equal
// to the old one). It exists to reclaim the space FileStore abandons
// on every Update.
func (t *Tree[K, V]) Defrag(dst store.Store) (store.RecordID, error) {
	raw, err := t.db.FetchRaw(t.root)
	if err != nil {
		return 0, errors.Wrap(err, "htree: defrag fetch root")
	}
	if err := dst.ForceInsert(t.root, raw); err != nil {
		return 0, errors.Wrap(err, "htree: defrag force-insert root")
	}
	root, err := t.rootDirectory()
	if err != nil {
		return 0, err
	}
	if err := root.Defrag(t.db, dst); err != nil {
		return 0, err
	}
	return t.root, nil
}

// treeDecoder is the single store.Decoder shared by every node of one
// tree; it reads the leading tag byte and dispatches to the directory
// or bucket body decoder.
type treeDecoder[K comparable, V any] struct {
	tree *Tree[K, V]
}

func (d *treeDecoder[K, V]) DecodeFrom(r io.Reader) (any, error) {
	br := bufio.NewReader(r)
	tag, err := br.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "htree: read node tag")
	}
	switch tag {
	case tagDirectory:
		return decodeDirectoryBody(d.tree, br)
	case tagBucket:
		return decodeBucketBody(d.tree, br)
	default:
		return nil, errors.Errorf("htree: unknown node tag %d", tag)
	}
}
