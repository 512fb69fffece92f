// Package cart implements the shopping cart store: the authoritative list of
// cart lines for one device, its derived totals, and their persistence.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

const defaultSaveTimeout = 5 * time.Second

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for rehydration and persistence reports.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator replaces the UUID line id generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithSaveTimeout bounds each background write.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) { s.saveTimeout = d }
}

// Store holds the cart lines and their totals. Totals are recomputed from
// the lines after every mutation and always match them once a method
// returns. Mutations are published in memory immediately; writes to the
// persister happen afterwards on a background goroutine.
type Store struct {
	mu     sync.RWMutex
	lines  []domain.CartLine
	totals domain.Totals

	persister   domain.CartPersister
	saveTimeout time.Duration
	logger      *slog.Logger
	newID       func() string

	saves   chan domain.CartSnapshot
	flushes chan chan struct{}
	stop    chan struct{}
	done    chan struct{}
	closed  sync.Once
}

// New rehydrates a Store from persister and starts its writer. A nil
// persister keeps the cart in memory only.
func New(ctx context.Context, persister domain.CartPersister, opts ...Option) (*Store, error) {
	s := &Store{
		persister:   persister,
		saveTimeout: defaultSaveTimeout,
		logger:      slog.Default(),
		newID:       uuid.NewString,
		saves:       make(chan domain.CartSnapshot, 1),
		flushes:     make(chan chan struct{}),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if persister != nil {
		snap, err := persister.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		s.lines = s.restore(snap.Items)
	}
	s.totals = domain.ComputeTotals(s.lines)

	go s.writeLoop()
	return s, nil
}

// restore drops persisted lines that break a cart invariant.
func (s *Store) restore(items []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, l := range items {
		switch {
		case l.ProductID == "":
			s.logger.Warn("dropping restored cart line", "reason", "empty product id", "line_id", l.LineID)
			continue
		case l.Quantity <= 0:
			s.logger.Warn("dropping restored cart line", "reason", "non-positive quantity", "product_id", l.ProductID)
			continue
		case l.Quantity > l.AvailableStock:
			s.logger.Warn("dropping restored cart line", "reason", "quantity above stock", "product_id", l.ProductID)
			continue
		case seen[l.ProductID]:
			s.logger.Warn("dropping restored cart line", "reason", "duplicate product", "product_id", l.ProductID)
			continue
		}
		seen[l.ProductID] = true
		if l.LineID == "" {
			l.LineID = s.newID()
		}
		out = append(out, l)
	}
	return out
}

// AddItem adds quantity units of product. An existing line for the product
// has its quantity increased and its captured stock refreshed; otherwise a new line captures the product's
// names, prices, image and stock. Exceeding product.StockQuantity fails with
// an InsufficientStockError and leaves the cart unchanged.
func (s *Store) AddItem(product domain.Product, quantity int) error {
	if quantity < 1 {
		return domain.NewInvalidProductError("quantity", "must be positive", quantity)
	}
	if product.ID == "" {
		return domain.NewInvalidProductError("id", "cannot be empty", product.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(product.ID); i >= 0 {
		next := s.lines[i].Quantity + quantity
		if next > product.StockQuantity {
			return domain.NewInsufficientStockError(product.ID, next, product.StockQuantity)
		}
		s.lines[i].Quantity = next
		s.lines[i].AvailableStock = product.StockQuantity
		s.commit()
		return nil
	}

	if quantity > product.StockQuantity {
		return domain.NewInsufficientStockError(product.ID, quantity, product.StockQuantity)
	}
	s.lines = append(s.lines, domain.CartLine{
		LineID:         s.newID(),
		ProductID:      product.ID,
		NameAr:         product.NameAr,
		NameEn:         product.NameEn,
		PriceIQD:       product.PriceIQD,
		PriceUSD:       product.PriceUSD,
		ImageURL:       product.ImageURL,
		Quantity:       quantity,
		AvailableStock: product.StockQuantity,
	})
	s.commit()
	return nil
}

// RemoveItem deletes the line for productID. Missing lines are ignored.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(productID)
}

func (s *Store) remove(productID string) {
	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
	s.commit()
}

// UpdateQuantity sets the quantity of the line for productID. A quantity of
// zero or less removes the line; a quantity above the line's captured stock
// fails with an InsufficientStockError. Missing lines are ignored.
func (s *Store) UpdateQuantity(productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return nil
	}
	if quantity <= 0 {
		s.remove(productID)
		return nil
	}
	if quantity > s.lines[i].AvailableStock {
		return domain.NewInsufficientStockError(productID, quantity, s.lines[i].AvailableStock)
	}
	s.lines[i].Quantity = quantity
	s.commit()
	return nil
}

// ClearCart empties the cart.
func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.commit()
}

// ItemQuantity returns the quantity in the cart for productID, or zero.
func (s *Store) ItemQuantity(productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(productID); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartLine(nil), s.lines...)
}

// Totals returns the current aggregates.
func (s *Store) Totals() domain.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals
}

// Snapshot returns the cart in its persisted form.
func (s *Store) Snapshot() domain.CartSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Store) snapshot() domain.CartSnapshot {
	return domain.CartSnapshot{
		Version: domain.CartSnapshotVersion,
		Items:   append([]domain.CartLine{}, s.lines...),
		Totals:  s.totals,
	}
}

func (s *Store) indexOf(productID string) int {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// commit recomputes totals and schedules a save. Callers hold s.mu.
func (s *Store) commit() {
	s.totals = domain.ComputeTotals(s.lines)
	if s.persister == nil {
		return
	}
	// only the latest snapshot matters; replace a pending one
	select {
	case <-s.saves:
	default:
	}
	s.saves <- s.snapshot()
}
