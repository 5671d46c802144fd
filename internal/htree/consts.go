package htree

// Format-defining constants. These MUST NOT change without a wire
// format version bump: they fix the directory fanout (256-wide arrays
// addressed by 8-bit hash slices) and therefore the sparse encoding in
// directory.go.
const (
	maxChildren = 256 // MAX_CHILDREN
	bitSize     = 8   // bits of hash consumed per directory level
	maxDepth    = 3   // deepest directory; buckets below it carry depth maxDepth+1

	bucketCapacity = 8 // entries per bucket above the terminal depth

	tagDirectory = byte(1)
	tagBucket    = byte(2)
)
