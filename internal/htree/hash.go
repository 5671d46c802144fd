package htree

import (
	"bytes"
	"hash/fnv"

	"github.com/pkg/errors"
)

// hash returns the 32-bit hash a key routes by. It hashes the key's
// codec-encoded bytes with FNV-1a rather than a language hashCode:
// FNV-1a is deterministic across processes, which matters because the
// resulting slot indices are what gets persisted in a directory's
// children array. Go's builtin map hash, by contrast, is seeded
// randomly per process and would scatter a reopened tree's entries
// across the wrong slots.
func (t *Tree[K, V]) hash(k K) (uint32, error) {
	var buf bytes.Buffer
	enc := t.codec.NewEncoder(&buf)
	if err := enc.EncodeKey(k); err != nil {
		return 0, errors.Wrap(err, "htree: hash key")
	}
	h := fnv.New32a()
	h.Write(buf.Bytes())
	return h.Sum32(), nil
}
