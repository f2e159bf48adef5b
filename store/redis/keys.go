package redis

// Key prefix for primary entity storage.
const prefixRequest = "tether:preq:"

// Sorted set index of all pending requests, scored by creation time.
const zRequestAll = "tether:z:preq:all"

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
