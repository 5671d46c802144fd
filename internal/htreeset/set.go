// Package htreeset adapts internal/htree's Tree into a set: a
// collection of distinct elements backed by the same extendible hash
// index, storing each element as a key mapped to an empty value.
package htreeset

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/ab409/htree/internal/htree"
	"github.com/ab409/htree/internal/store"
)

// Set is a collection of distinct elements of type E, implemented as a
// htree.Tree[E, struct{}] the way the original wrapped its generic map
// to implement a set.
type Set[E comparable] struct {
	tree *htree.Tree[E, struct{}]
}

// New creates a fresh, empty set backed by db.
func New[E comparable](db store.Store, codec htree.Codec[E, struct{}]) (*Set[E], error) {
	t, err := htree.New[E, struct{}](db, codec)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "htreeset: create")
	}
	return &Set[E]{tree: t}, nil
}

// Open reconstructs a handle onto a set whose backing tree already
// exists at rootID.
func Open[E comparable](db store.Store, codec htree.Codec[E, struct{}], rootID store.RecordID) (*Set[E], error) {
	t, err := htree.Open[E, struct{}](db, codec, rootID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "htreeset: open")
	}
	return &Set[E]{tree: t}, nil
}

// RootID returns the record id needed to reopen this set with Open.
func (s *Set[E]) RootID() store.RecordID { return s.tree.RootID() }

// Contains reports whether e is a member of the set.
func (s *Set[E]) Contains(e E) (bool, error) {
	_, ok, err := s.tree.Get(e)
	return ok, err
}

// Add inserts e, reporting whether it was not already present.
func (s *Set[E]) Add(e E) (bool, error) {
	_, had, err := s.tree.Put(e, struct{}{})
	if err != nil {
		return false, err
	}
	return !had, nil
}

// Remove deletes e, reporting whether it was present.
func (s *Set[E]) Remove(e E) (bool, error) {
	_, had, err := s.tree.Remove(e)
	return had, err
}

// Clear removes every element.
func (s *Set[E]) Clear() error {
	return s.tree.Clear()
}

// Len counts the set's elements by walking the whole tree; the
// underlying index keeps no running count.
func (s *Set[E]) Len() (int, error) {
	cur, err := s.tree.Keys()
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		if _, err := cur.Next(); err != nil {
			if errors.Is(err, htree.ErrExhausted) {
				return n, nil
			}
			return 0, err
		}
		n++
	}
}

// IsEmpty reports whether the set has no elements, without walking it
// in full.
func (s *Set[E]) IsEmpty() (bool, error) {
	cur, err := s.tree.Keys()
	if err != nil {
		return false, err
	}
	if _, err := cur.Next(); err != nil {
		if errors.Is(err, htree.ErrExhausted) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// Elements returns every element currently in the set, in the tree's
// traversal order.
func (s *Set[E]) Elements() ([]E, error) {
	cur, err := s.tree.Keys()
	if err != nil {
		return nil, err
	}
	var out []E
	for {
		e, err := cur.Next()
		if err != nil {
			if errors.Is(err, htree.ErrExhausted) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, e)
	}
}
