package cache

// Cache is a thread-safe cache of changesets keyed by version.
type Cache interface {
	// Get returns the changeset for version, or nil if not cached.
	Get(version uint64) []byte

	// Put inserts a changeset under version.
	Put(version uint64, changeset []byte)
}
