package store

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

// NewStore constructs a domain.CartPersister by kind: "memory", "file" or "redis".
// target is the file path for file and the server address for redis; memory ignores it.
func NewStore(kind, target string) (domain.CartPersister, error) {
	switch kind {
	case "memory", "mem":
		return NewMemoryStore(), nil
	case "file":
		if target == "" {
			return nil, fmt.Errorf("file path required for file store")
		}
		return NewFileStore(target), nil
	case "redis":
		if target == "" {
			return nil, fmt.Errorf("address required for redis store")
		}
		return NewRedisStore(redis.NewClient(&redis.Options{Addr: target})), nil
	default:
		return nil, fmt.Errorf("unknown store kind: %s", kind)
	}
}
