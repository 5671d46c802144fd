package htree

import "github.com/pkg/errors"

// Sentinel errors returned by Tree and Cursor operations. Callers
// compare against these with errors.Is.
var (
	// ErrDepthOverflow is returned if a bucket at the maximum directory
	// depth were ever asked to split. Buckets at that depth always
	// report room, so this should be unreachable in practice; it exists
	// as a guard against a future capacity policy change.
	ErrDepthOverflow = errors.New("htree: cannot split directory at maximum depth")

	// ErrConcurrentModification is returned by Cursor.Next and
	// Cursor.Remove when the tree was mutated through some other
	// handle since the cursor last checked.
	ErrConcurrentModification = errors.New("htree: concurrent modification")

	// ErrNoCurrent is returned by Cursor.Remove when called before any
	// successful call to Next, or twice in a row without an
	// intervening Next.
	ErrNoCurrent = errors.New("htree: cursor has no current element")

	// ErrExhausted is returned by Cursor.Next once traversal has
	// visited every entry.
	ErrExhausted = errors.New("htree: cursor exhausted")
)
