// Package backend holds the catalog and order stores the checkout talks to:
// an in-memory implementation for tests and demos, and a SQLite one.
package backend

import (
	"fmt"
	"strings"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

// Backend is the remote side of the shop: the product catalog plus coupons,
// orders and stock.
type Backend interface {
	domain.ProductStore
	domain.OrderBackend
	Close() error
}

// NewBackend is a factory that returns a Backend for the given kind.
// For "sqlite", dsn is a file path or ":memory:".
func NewBackend(kind, dsn string) (Backend, error) {
	switch strings.ToLower(kind) {
	case "memory", "mem", "":
		return NewMemoryBackend(), nil
	case "sqlite", "sqlite3":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite backend requires a database path")
		}
		return NewSQLiteBackend(dsn)
	default:
		return nil, fmt.Errorf("unsupported backend kind: %s", kind)
	}
}
