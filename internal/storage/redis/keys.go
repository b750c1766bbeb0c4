package redis

import "strings"

// KeyPrefix namespaces every value noor writes to Redis.
const KeyPrefix = "noor:kv:"

// Key returns the Redis key for a storage key.
func Key(key string) string {
	return KeyPrefix + key
}

// StorageKey strips the namespace from a Redis key.
func StorageKey(redisKey string) (string, bool) {
	if !strings.HasPrefix(redisKey, KeyPrefix) || len(redisKey) == len(KeyPrefix) {
		return "", false
	}
	return redisKey[len(KeyPrefix):], true
}
