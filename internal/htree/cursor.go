package htree

type frame[K comparable, V any] struct {
	dir   *directory[K, V]
	child int
}

// Cursor is a fail-fast, depth-first, left-to-right traversal over a
// Tree's entries. It is created by Tree.Keys or Tree.Values, which fix
// T to K or V respectively; Remove always removes by key internally,
// even on a values cursor, so it behaves correctly regardless of which
// one produced it.
type Cursor[K comparable, V any, T any] struct {
	tree    *Tree[K, V]
	project func(K, V) T

	stack  []frame[K, V]
	dir    *directory[K, V]
	child  int
	bucket *bucket[K, V]
	bi     int

	hasNext bool
	nextKey K
	nextVal V

	hasLast bool
	lastKey K

	expected uint64
}

func newCursor[K comparable, V any, T any](t *Tree[K, V], project func(K, V) T) (*Cursor[K, V, T], error) {
	root, err := t.rootDirectory()
	if err != nil {
		return nil, err
	}
	c := &Cursor[K, V, T]{
		tree:     t,
		project:  project,
		dir:      root,
		child:    -1,
		expected: t.modCount,
	}
	if err := c.advance(); err != nil {
		return nil, err
	}
	return c, nil
}

// advance locates the next bucket entry, descending into directories
// and popping back out of them as needed, leaving hasNext/nextKey/
// nextVal describing it (or hasNext false once traversal is done).
func (c *Cursor[K, V, T]) advance() error {
	for {
		if c.bucket != nil && c.bi < c.bucket.len() {
			c.hasNext = true
			c.nextKey = c.bucket.keys[c.bi]
			c.nextVal = c.bucket.values[c.bi]
			c.bi++
			return nil
		}
		c.bucket = nil

		for {
			c.child++
			if c.child >= maxChildren {
				if len(c.stack) == 0 {
					c.hasNext = false
					return nil
				}
				top := c.stack[len(c.stack)-1]
				c.stack = c.stack[:len(c.stack)-1]
				c.dir = top.dir
				c.child = top.child
				continue
			}
			if c.dir.children[c.child] != 0 {
				break
			}
		}

		childRecID := c.dir.children[c.child]
		v, err := c.dir.fetchChild(childRecID)
		if err != nil {
			return err
		}
		switch n := v.(type) {
		case *directory[K, V]:
			n.setPersistenceContext(c.tree.db, childRecID)
			c.stack = append(c.stack, frame[K, V]{dir: c.dir, child: c.child})
			c.dir = n
			c.child = -1
		case *bucket[K, V]:
			c.bucket = n
			c.bi = 0
		default:
			return ErrConcurrentModification
		}
	}
}

// Next returns the next element, or ErrExhausted once traversal is
// complete, or ErrConcurrentModification if the tree changed since the
// cursor last checked.
func (c *Cursor[K, V, T]) Next() (T, error) {
	var zero T
	if !c.hasNext {
		return zero, ErrExhausted
	}
	if c.expected != c.tree.modCount {
		return zero, ErrConcurrentModification
	}
	c.lastKey = c.nextKey
	c.hasLast = true
	out := c.project(c.nextKey, c.nextVal)
	if err := c.advance(); err != nil {
		return zero, err
	}
	return out, nil
}

// Remove deletes the entry most recently returned by Next. It fails
// with ErrNoCurrent if Next has not been called since construction or
// since the last Remove, and with ErrConcurrentModification if the
// tree changed through some other handle in the meantime.
func (c *Cursor[K, V, T]) Remove() error {
	if !c.hasLast {
		return ErrNoCurrent
	}
	if c.expected != c.tree.modCount {
		return ErrConcurrentModification
	}
	if _, _, err := c.tree.Remove(c.lastKey); err != nil {
		return err
	}
	c.hasLast = false
	c.expected = c.tree.modCount
	return nil
}
