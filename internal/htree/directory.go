package htree

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/ab409/htree/internal/store"
)

// directory is one level of the hash trie: a 256-wide array of child
// record ids, indexed by 8 bits of a key's hash. A directory does not
// cache its children; every traversal re-fetches them through db,
// matching the no-internal-locking, single-writer contract of Store.
type directory[K comparable, V any] struct {
	tree     *Tree[K, V]
	depth    uint8
	children [maxChildren]store.RecordID

	// Persistence context, set by the caller after every fetch rather
	// than owned permanently by the directory itself.
	db    store.Store
	recid store.RecordID
}

func newDirectory[K comparable, V any](tree *Tree[K, V], depth uint8) *directory[K, V] {
	return &directory[K, V]{tree: tree, depth: depth}
}

func (d *directory[K, V]) setPersistenceContext(db store.Store, recid store.RecordID) {
	d.db = db
	d.recid = recid
}

func (d *directory[K, V]) isEmpty() bool {
	for _, c := range d.children {
		if c != 0 {
			return false
		}
	}
	return true
}

// slotFor returns the 0..255 index a key routes to at this directory's
// depth: depth 0 consumes the most-significant 8 bits of the key's
// hash, depth maxDepth the least-significant 8 bits.
func (d *directory[K, V]) slotFor(k K) (int, error) {
	h, err := d.tree.hash(k)
	if err != nil {
		return 0, err
	}
	shift := uint((maxDepth - int(d.depth)) * bitSize)
	return int((h >> shift) & 0xFF), nil
}

func (d *directory[K, V]) fetchChild(id store.RecordID) (any, error) {
	v, err := d.db.Fetch(id, d.tree.dec)
	if err != nil {
		return nil, errors.Wrapf(err, "htree: fetch child of directory %d", d.recid)
	}
	return v, nil
}

func (d *directory[K, V]) persistSelf() error {
	if err := d.db.Update(d.recid, d); err != nil {
		return errors.Wrapf(err, "htree: update directory %d", d.recid)
	}
	return nil
}

func (d *directory[K, V]) get(k K) (V, bool, error) {
	var zero V
	s, err := d.slotFor(k)
	if err != nil {
		return zero, false, err
	}
	id := d.children[s]
	if id == 0 {
		return zero, false, nil
	}
	child, err := d.fetchChild(id)
	if err != nil {
		return zero, false, err
	}
	switch c := child.(type) {
	case *directory[K, V]:
		c.setPersistenceContext(d.db, id)
		return c.get(k)
	case *bucket[K, V]:
		v, ok := c.get(k)
		return v, ok, nil
	default:
		return zero, false, errors.New("htree: unexpected node type")
	}
}

func (d *directory[K, V]) put(k K, v V) (V, bool, error) {
	var zero V
	s, err := d.slotFor(k)
	if err != nil {
		return zero, false, err
	}
	id := d.children[s]

	if id == 0 {
		b := newBucket[K, V](d.tree, d.depth+1)
		b.add(k, v)
		bid, err := d.db.Insert(b)
		if err != nil {
			return zero, false, errors.Wrap(err, "htree: insert new bucket")
		}
		d.children[s] = bid
		if err := d.persistSelf(); err != nil {
			return zero, false, err
		}
		return zero, false, nil
	}

	child, err := d.fetchChild(id)
	if err != nil {
		return zero, false, err
	}

	switch c := child.(type) {
	case *directory[K, V]:
		c.setPersistenceContext(d.db, id)
		return c.put(k, v)

	case *bucket[K, V]:
		if c.hasRoom() {
			prior, had := c.add(k, v)
			if err := d.db.Update(id, c); err != nil {
				return zero, false, errors.Wrapf(err, "htree: update bucket %d", id)
			}
			return prior, had, nil
		}

		if d.depth >= maxDepth {
			return zero, false, ErrDepthOverflow
		}

		newDir := newDirectory[K, V](d.tree, d.depth+1)
		dirID, err := d.db.Insert(newDir)
		if err != nil {
			return zero, false, errors.Wrap(err, "htree: insert split directory")
		}
		newDir.setPersistenceContext(d.db, dirID)

		d.children[s] = dirID
		if err := d.persistSelf(); err != nil {
			return zero, false, err
		}
		if err := d.db.Delete(id); err != nil {
			return zero, false, errors.Wrapf(err, "htree: delete overflowed bucket %d", id)
		}
		log.Debugf("htree: split bucket %d at depth %d into directory %d", id, d.depth, dirID)

		for i, mk := range c.keys {
			if _, _, err := newDir.put(mk, c.values[i]); err != nil {
				return zero, false, err
			}
		}
		return newDir.put(k, v)

	default:
		return zero, false, errors.New("htree: unexpected node type")
	}
}

func (d *directory[K, V]) remove(k K) (V, bool, error) {
	var zero V
	s, err := d.slotFor(k)
	if err != nil {
		return zero, false, err
	}
	id := d.children[s]
	if id == 0 {
		return zero, false, nil
	}

	child, err := d.fetchChild(id)
	if err != nil {
		return zero, false, err
	}

	switch c := child.(type) {
	case *directory[K, V]:
		c.setPersistenceContext(d.db, id)
		prior, had, err := c.remove(k)
		if err != nil {
			return zero, false, err
		}
		if had && c.isEmpty() {
			if err := d.db.Delete(id); err != nil {
				return zero, false, errors.Wrapf(err, "htree: delete empty directory %d", id)
			}
			d.children[s] = 0
			if err := d.persistSelf(); err != nil {
				return zero, false, err
			}
		}
		return prior, had, nil

	case *bucket[K, V]:
		prior, had := c.remove(k)
		if !had {
			return prior, false, nil
		}
		if c.len() > 0 {
			if err := d.db.Update(id, c); err != nil {
				return zero, false, errors.Wrapf(err, "htree: update bucket %d", id)
			}
		} else {
			if err := d.db.Delete(id); err != nil {
				return zero, false, errors.Wrapf(err, "htree: delete empty bucket %d", id)
			}
			d.children[s] = 0
			if err := d.persistSelf(); err != nil {
				return zero, false, err
			}
		}
		return prior, true, nil

	default:
		return zero, false, errors.New("htree: unexpected node type")
	}
}

// EncodeTo writes depth, then the sparse [zeroStart, zeroEnd] window of
// non-zero children as varints. An all-zero directory writes only its
// placeholder zeroStart byte and stops, giving the minimal two-byte
// (tag aside) encoding; the reader distinguishes this case by hitting
// end of record rather than by the byte's value, since a genuine
// zeroStart of 0 is indistinguishable from the placeholder otherwise.
func (d *directory[K, V]) EncodeTo(w io.Writer) error {
	if _, err := w.Write([]byte{tagDirectory, byte(d.depth)}); err != nil {
		return err
	}

	first, last := -1, -1
	for i, c := range d.children {
		if c != 0 {
			if first == -1 {
				first = i
			}
			last = i
		}
	}

	if first == -1 {
		_, err := w.Write([]byte{0})
		return err
	}

	if _, err := w.Write([]byte{byte(first), byte(last)}); err != nil {
		return err
	}

	var varintBuf [binary.MaxVarintLen64]byte
	for i := first; i <= last; i++ {
		n := binary.PutUvarint(varintBuf[:], uint64(d.children[i]))
		if _, err := w.Write(varintBuf[:n]); err != nil {
			return err
		}
	}
	return nil
}

func decodeDirectoryBody[K comparable, V any](tree *Tree[K, V], r *bufio.Reader) (*directory[K, V], error) {
	depthByte, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "htree: read directory depth")
	}
	d := newDirectory[K, V](tree, uint8(depthByte))

	zeroStart, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "htree: read directory zeroStart")
	}

	zeroEnd, err := r.ReadByte()
	if err == io.EOF {
		return d, nil // all children zero; zeroStart was only a placeholder
	}
	if err != nil {
		return nil, errors.Wrap(err, "htree: read directory zeroEnd")
	}

	for i := int(zeroStart); i <= int(zeroEnd); i++ {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, errors.Wrapf(err, "htree: read directory child %d", i)
		}
		d.children[i] = store.RecordID(v)
	}
	return d, nil
}

// Defrag copies this directory's children verbatim from src into dst,
// preserving their record ids, and recurses into any child that is
// itself a directory. Buckets are copied but not walked, since their
// entries carry no record ids of their own.
func (d *directory[K, V]) Defrag(src, dst store.Store) error {
	for _, id := range d.children {
		if id == 0 {
			continue
		}
		raw, err := src.FetchRaw(id)
		if err != nil {
			return errors.Wrapf(err, "htree: defrag fetch %d", id)
		}
		if err := dst.ForceInsert(id, raw); err != nil {
			return errors.Wrapf(err, "htree: defrag force-insert %d", id)
		}
		v, err := d.tree.dec.DecodeFrom(bytes.NewReader(raw))
		if err != nil {
			return errors.Wrapf(err, "htree: defrag decode %d", id)
		}
		if child, ok := v.(*directory[K, V]); ok {
			child.setPersistenceContext(src, id)
			if err := child.Defrag(src, dst); err != nil {
				return err
			}
		}
	}
	return nil
}
