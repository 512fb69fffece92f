package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

// MemoryBackend is a thread-safe in-memory Backend
type MemoryBackend struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	coupons   map[string]domain.Coupon
	orders    map[string]domain.Order
	drafts    map[string]string // draft id -> order id
	items     map[string][]domain.OrderItem
	movements map[string]bool // order id + "/" + product id
	now       func() time.Time
}

// NewMemoryBackend constructs an empty MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		products:  make(map[string]domain.Product),
		coupons:   make(map[string]domain.Coupon),
		orders:    make(map[string]domain.Order),
		drafts:    make(map[string]string),
		items:     make(map[string][]domain.OrderItem),
		movements: make(map[string]bool),
		now:       time.Now,
	}
}

// compile-time assertion that MemoryBackend implements Backend
var _ Backend = (*MemoryBackend)(nil)

func (s *MemoryBackend) Close() error { return nil }

func (s *MemoryBackend) Create(ctx context.Context, product domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateProduct(product); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return domain.NewDuplicateProductError(product.ID)
	}
	s.products[product.ID] = product
	return nil
}

func (s *MemoryBackend) Get(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.NewProductNotFoundError(id)
	}
	return p, nil
}

func (s *MemoryBackend) Update(ctx context.Context, id string, product domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	product.ID = id
	if err := domain.ValidateProduct(product); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.NewProductNotFoundError(id)
	}
	s.products[id] = product
	return nil
}

func (s *MemoryBackend) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.NewProductNotFoundError(id)
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryBackend) List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Match(p) {
			out = append(out, p)
		}
	}
	sortProducts(out, filter)
	return out, nil
}

// sortProducts orders by filter.SortBy, falling back to id for a stable listing.
func sortProducts(out []domain.Product, filter domain.ListFilter) {
	desc := filter.Order == "desc"
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	var less func(a, b domain.Product) bool
	switch filter.SortBy {
	case "name":
		less = func(a, b domain.Product) bool { return a.NameEn < b.NameEn }
	case "price":
		less = func(a, b domain.Product) bool { return a.PriceIQD.LessThan(b.PriceIQD) }
	case "stock", "quantity":
		less = func(a, b domain.Product) bool { return a.StockQuantity < b.StockQuantity }
	default:
		return
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
}

// BulkImport stores products concurrently. Rejected products are reported
// together in a joined error, in input order; the rest are kept.
func (s *MemoryBackend) BulkImport(ctx context.Context, products []domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	const maxWorkers = 10
	rejected := make([]error, len(products))

	var g errgroup.Group
	g.SetLimit(maxWorkers)
	for i, p := range products {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := s.Create(ctx, p); err != nil {
				rejected[i] = fmt.Errorf("id=%s: %w", p.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(rejected...)
}

func (s *MemoryBackend) CreateCoupon(ctx context.Context, coupon domain.Coupon) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	coupon.Code = domain.NormalizeCouponCode(coupon.Code)
	if err := domain.ValidateCoupon(coupon); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coupons[coupon.Code]; ok {
		return domain.NewCouponError(coupon.Code, "already exists")
	}
	s.coupons[coupon.Code] = coupon
	return nil
}

func (s *MemoryBackend) ValidateCoupon(ctx context.Context, code string, subtotalIQD decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	code = domain.NormalizeCouponCode(code)

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coupons[code]
	if !ok {
		return decimal.Zero, domain.NewCouponError(code, "not found")
	}
	return c.Discount(subtotalIQD, s.now())
}

func (s *MemoryBackend) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, false, err
	}
	if order.DraftID == "" {
		return domain.Order{}, false, fmt.Errorf("order draft id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.drafts[order.DraftID]; ok {
		return s.orders[id], false, nil
	}
	if order.CouponCode != "" {
		order.CouponCode = domain.NormalizeCouponCode(order.CouponCode)
		c, ok := s.coupons[order.CouponCode]
		if !ok {
			return domain.Order{}, false, domain.NewCouponError(order.CouponCode, "not found")
		}
		if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
			return domain.Order{}, false, domain.NewCouponError(order.CouponCode, "usage limit reached")
		}
		c.UsedCount++
		s.coupons[c.Code] = c
	}

	now := s.now().UTC()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = domain.OrderPending
	}
	order.CreatedAt, order.UpdatedAt = now, now
	s.orders[order.ID] = order
	s.drafts[order.DraftID] = order.ID
	return order, true, nil
}

func (s *MemoryBackend) OrderByDraft(ctx context.Context, draftID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.drafts[draftID]
	if !ok {
		return domain.Order{}, domain.NewOrderNotFoundError(draftID)
	}
	return s.orders[id], nil
}

func (s *MemoryBackend) InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return domain.NewOrderNotFoundError(orderID)
	}
	have := make(map[string]bool, len(s.items[orderID]))
	for _, it := range s.items[orderID] {
		have[it.ProductID] = true
	}
	for _, it := range items {
		if have[it.ProductID] {
			continue
		}
		it.OrderID = orderID
		s.items[orderID] = append(s.items[orderID], it)
		have[it.ProductID] = true
	}
	return nil
}

func (s *MemoryBackend) DecrementStock(ctx context.Context, orderID, productID string, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := orderID + "/" + productID
	if s.movements[key] {
		return nil
	}
	p, ok := s.products[productID]
	if !ok {
		return domain.NewProductNotFoundError(productID)
	}
	if p.StockQuantity < quantity {
		return domain.NewInsufficientStockError(productID, quantity, p.StockQuantity)
	}
	p.StockQuantity -= quantity
	s.products[productID] = p
	s.movements[key] = true
	return nil
}

func (s *MemoryBackend) GetOrder(ctx context.Context, id string) (domain.Order, []domain.OrderItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, nil, domain.NewOrderNotFoundError(id)
	}
	return o, append([]domain.OrderItem(nil), s.items[id]...), nil
}

func (s *MemoryBackend) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	// newest first
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryBackend) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.NewOrderNotFoundError(id)
	}
	if !o.Status.CanTransitionTo(status) {
		return domain.NewInvalidTransitionError(o.Status, status)
	}
	o.Status = status
	o.UpdatedAt = s.now().UTC()
	s.orders[id] = o
	return nil
}
