// Package checkout turns the cart into an order on the backend.
//
// A checkout runs as a sequence of idempotent steps keyed by a draft id the
// client picks before the first attempt: re-validate the cart against the
// live catalog, validate the coupon, create the order, insert its items,
// decrement stock, and finally clear the cart. A failed attempt can be
// retried with the same draft id without creating a second order or
// decrementing stock twice.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

const (
	defaultCallTimeout = 10 * time.Second
	defaultParallelism = 8
	breakerThreshold   = 5
	breakerCooldown    = 30 * time.Second
)

// Cart is the part of the cart store a checkout reads and clears.
type Cart interface {
	Lines() []domain.CartLine
	ClearCart()
}

// Catalog looks up live products.
type Catalog interface {
	Get(ctx context.Context, id string) (domain.Product, error)
}

// Request is one checkout submission.
type Request struct {
	// DraftID makes retries idempotent. Generated when empty.
	DraftID      string
	CustomerName string
	Phone        string
	Address      string
	Notes        string
	CouponCode   string
	Latitude     *float64
	Longitude    *float64
}

func (r Request) validate() error {
	switch {
	case strings.TrimSpace(r.CustomerName) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Phone) == "":
		return fmt.Errorf("%w: phone is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Address) == "":
		return fmt.Errorf("%w: address is required", ErrInvalidRequest)
	case (r.Latitude == nil) != (r.Longitude == nil):
		return fmt.Errorf("%w: latitude and longitude go together", ErrInvalidRequest)
	}
	return nil
}

// StockFailure is a stock decrement that did not apply.
type StockFailure struct {
	ProductID string
	Quantity  int
	Err       error
}

// Result is a completed checkout.
type Result struct {
	DraftID string
	Order   domain.Order
	Items   []domain.OrderItem
	// Created is false when the order already existed from an earlier attempt.
	Created       bool
	Status        Status
	StockFailures []StockFailure
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for step and breaker events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithCallTimeout bounds every backend call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithIDGenerator sets how draft ids are generated when a request has none.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// Service runs checkouts for one cart.
type Service struct {
	cart    Cart
	catalog Catalog
	orders  domain.OrderBackend

	logger  *slog.Logger
	timeout time.Duration
	newID   func() string
	breaker *gobreaker.CircuitBreaker[any]
	flights singleflight.Group // concurrent submissions of one draft
}

// New returns a Service that checks out cart against catalog and orders.
func New(cart Cart, catalog Catalog, orders domain.OrderBackend, opts ...Option) *Service {
	s := &Service{
		cart:    cart,
		catalog: catalog,
		orders:  orders,
		logger:  slog.Default(),
		timeout: defaultCallTimeout,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "backend",
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return s
}

// isSuccessful keeps domain rejections and caller cancellation from
// counting against the backend.
func isSuccessful(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		domain.IsInsufficientStockError(err),
		domain.IsCouponError(err),
		domain.IsProductNotFoundError(err),
		domain.IsProductUnavailableError(err),
		domain.IsInvalidProductError(err),
		domain.IsOrderNotFoundError(err):
		return true
	}
	return false
}

// call runs fn through the breaker with a per-call timeout.
func call[T any](ctx context.Context, s *Service, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := s.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Checkout submits the cart as an order. Failures before stock is touched
// return a *StepError and leave the cart as it was.
func (s *Service) Checkout(ctx context.Context, req Request) (Result, error) {
	if req.DraftID == "" {
		req.DraftID = s.newID()
	}
	v, err, shared := s.flights.Do(req.DraftID, func() (any, error) {
		return s.run(ctx, req)
	})
	if shared {
		s.logger.Debug("checkout joined in-flight attempt", "draft_id", req.DraftID)
	}
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// attempt tracks one run through the steps.
type attempt struct {
	draftID string
	orderID string
	status  Status
	logger  *slog.Logger
}

func (a *attempt) advance(to Status) error {
	if !a.status.CanTransitionTo(to) {
		return fmt.Errorf("checkout cannot move from %s to %s", a.status, to)
	}
	a.status = to
	a.logger.Info("checkout step", "draft_id", a.draftID, "status", to.String())
	return nil
}

func (a *attempt) fail(step Status, err error) error {
	a.status = StatusFailed
	a.logger.Warn("checkout failed", "draft_id", a.draftID, "step", step.String(), "error", err)
	return &StepError{Step: step, DraftID: a.draftID, OrderID: a.orderID, Err: err}
}

func (s *Service) run(ctx context.Context, req Request) (Result, error) {
	a := &attempt{draftID: req.DraftID, status: StatusInitiated, logger: s.logger}
	a.logger.Info("checkout started", "draft_id", a.draftID)

	if err := req.validate(); err != nil {
		return Result{}, a.fail(StatusValidated, err)
	}
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return Result{}, a.fail(StatusValidated, ErrEmptyCart)
	}
	if err := s.revalidate(ctx, lines); err != nil {
		return Result{}, a.fail(StatusValidated, err)
	}

	order, err := s.draftOrder(ctx, req, lines)
	if err != nil {
		return Result{}, a.fail(StatusValidated, err)
	}
	if err := a.advance(StatusValidated); err != nil {
		return Result{}, a.fail(StatusValidated, err)
	}

	type created struct {
		order domain.Order
		fresh bool
	}
	c, err := call(ctx, s, func(ctx context.Context) (created, error) {
		o, fresh, err := s.orders.CreateOrder(ctx, order)
		return created{o, fresh}, err
	})
	if err != nil {
		return Result{}, a.fail(StatusOrderCreated, err)
	}
	order = c.order
	a.orderID = order.ID
	if !c.fresh {
		a.logger.Info("resuming existing order", "draft_id", a.draftID, "order_id", order.ID)
	}
	if err := a.advance(StatusOrderCreated); err != nil {
		return Result{}, a.fail(StatusOrderCreated, err)
	}

	items := orderItems(order.ID, lines)
	_, err = call(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.orders.InsertOrderItems(ctx, order.ID, items)
	})
	if err != nil {
		return Result{}, a.fail(StatusItemsInserted, err)
	}
	if err := a.advance(StatusItemsInserted); err != nil {
		return Result{}, a.fail(StatusItemsInserted, err)
	}

	// the order exists from here on; stock problems are reported, not fatal
	failures := s.commitStock(ctx, a, items)
	if err := a.advance(StatusStockCommitted); err != nil {
		return Result{}, a.fail(StatusStockCommitted, err)
	}

	s.cart.ClearCart()
	if err := a.advance(StatusCompleted); err != nil {
		return Result{}, a.fail(StatusCompleted, err)
	}

	return Result{
		DraftID:       a.draftID,
		Order:         order,
		Items:         items,
		Created:       c.fresh,
		Status:        a.status,
		StockFailures: failures,
	}, nil
}

// revalidate checks every line against the live catalog concurrently.
func (s *Service) revalidate(ctx context.Context, lines []domain.CartLine) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultParallelism)
	for _, l := range lines {
		g.Go(func() error {
			p, err := call(gctx, s, func(ctx context.Context) (domain.Product, error) {
				return s.catalog.Get(ctx, l.ProductID)
			})
			switch {
			case domain.IsProductNotFoundError(err):
				return domain.NewProductUnavailableError(l.ProductID)
			case err != nil:
				return fmt.Errorf("look up product %s: %w", l.ProductID, err)
			case !p.IsActive:
				return domain.NewProductUnavailableError(l.ProductID)
			case p.StockQuantity < l.Quantity:
				return domain.NewInsufficientStockError(l.ProductID, l.Quantity, p.StockQuantity)
			}
			return nil
		})
	}
	return g.Wait()
}

// draftOrder returns the order an earlier attempt created for the draft,
// keeping the coupon it already redeemed, or prices a new one.
func (s *Service) draftOrder(ctx context.Context, req Request, lines []domain.CartLine) (domain.Order, error) {
	o, err := call(ctx, s, func(ctx context.Context) (domain.Order, error) {
		return s.orders.OrderByDraft(ctx, req.DraftID)
	})
	switch {
	case err == nil:
		return o, nil
	case domain.IsOrderNotFoundError(err):
		return s.price(ctx, req, lines)
	}
	return domain.Order{}, fmt.Errorf("look up draft %s: %w", req.DraftID, err)
}

// price builds the order from the cart lines at their captured prices and
// applies the coupon. The USD total is discounted in the same proportion
// as the IQD total.
func (s *Service) price(ctx context.Context, req Request, lines []domain.CartLine) (domain.Order, error) {
	totals := domain.ComputeTotals(lines)
	discount := decimal.Zero
	code := domain.NormalizeCouponCode(req.CouponCode)
	if code != "" {
		d, err := call(ctx, s, func(ctx context.Context) (decimal.Decimal, error) {
			return s.orders.ValidateCoupon(ctx, code, totals.IQD)
		})
		if err != nil {
			return domain.Order{}, err
		}
		discount = d
	}

	total := totals.IQD.Sub(discount)
	usd := totals.USD
	if discount.IsPositive() && totals.IQD.IsPositive() {
		usd = usd.Mul(total).Div(totals.IQD).Round(2)
	}

	return domain.Order{
		DraftID:      req.DraftID,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		Notes:        strings.TrimSpace(req.Notes),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		CouponCode:   code,
		SubtotalIQD:  totals.IQD,
		DiscountIQD:  discount,
		TotalIQD:     total,
		TotalUSD:     usd,
		Status:       domain.OrderPending,
	}, nil
}

func orderItems(orderID string, lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, len(lines))
	for i, l := range lines {
		items[i] = domain.OrderItem{
			OrderID:   orderID,
			ProductID: l.ProductID,
			NameAr:    l.NameAr,
			NameEn:    l.NameEn,
			Quantity:  l.Quantity,
			PriceIQD:  l.PriceIQD,
			PriceUSD:  l.PriceUSD,
		}
	}
	return items
}

func (s *Service) commitStock(ctx context.Context, a *attempt, items []domain.OrderItem) []StockFailure {
	var failures []StockFailure
	for _, it := range items {
		_, err := call(ctx, s, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.orders.DecrementStock(ctx, it.OrderID, it.ProductID, it.Quantity)
		})
		if err != nil {
			a.logger.Error("stock decrement failed",
				"draft_id", a.draftID, "order_id", it.OrderID, "product_id", it.ProductID, "error", err)
			failures = append(failures, StockFailure{ProductID: it.ProductID, Quantity: it.Quantity, Err: err})
		}
	}
	return failures
}
