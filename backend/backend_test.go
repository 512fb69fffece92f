package backend

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

// each case runs against every Backend implementation
func backends(t *testing.T) map[string]func(t *testing.T) Backend {
	t.Helper()
	return map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend { return NewMemoryBackend() },
		"sqlite": func(t *testing.T) Backend {
			b, err := NewSQLiteBackend(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { b.Close() })
			return b
		},
	}
}

func product(id string, iqd, usd string, stock int) domain.Product {
	return domain.Product{
		ID:            id,
		NameAr:        "منتج " + id,
		NameEn:        "Product " + id,
		PriceIQD:      decimal.RequireFromString(iqd),
		PriceUSD:      decimal.RequireFromString(usd),
		StockQuantity: stock,
		IsActive:      true,
		Category:      "food",
	}
}

func TestCatalogCRUD(t *testing.T) {
	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t)

			p := product("p1", "1500", "1.15", 10)
			require.NoError(t, b.Create(ctx, p))
			assert.True(t, domain.IsDuplicateProductError(b.Create(ctx, p)))

			got, err := b.Get(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, p.NameAr, got.NameAr)
			assert.True(t, p.PriceUSD.Equal(got.PriceUSD))
			assert.Equal(t, 10, got.StockQuantity)
			assert.True(t, got.IsActive)

			p.StockQuantity = 3
			p.IsActive = false
			require.NoError(t, b.Update(ctx, "p1", p))
			got, err = b.Get(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, 3, got.StockQuantity)
			assert.False(t, got.IsActive)

			assert.True(t, domain.IsProductNotFoundError(b.Update(ctx, "nope", p)))
			assert.True(t, domain.IsInvalidProductError(b.Create(ctx, product("bad", "-1", "0", 1))))

			require.NoError(t, b.Delete(ctx, "p1"))
			_, err = b.Get(ctx, "p1")
			assert.True(t, domain.IsProductNotFoundError(err))
			assert.True(t, domain.IsProductNotFoundError(b.Delete(ctx, "p1")))
		})
	}
}

func TestListFilterAndSort(t *testing.T) {
	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t)

			a := product("a", "3000", "2.3", 5)
			c := product("c", "1000", "0.77", 0)
			c.Category = "drinks"
			d := product("d", "2000", "1.5", 9)
			d.IsActive = false
			for _, p := range []domain.Product{a, c, d} {
				require.NoError(t, b.Create(ctx, p))
			}

			all, err := b.List(ctx, domain.ListFilter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c", "d"}, ids(all))

			active, err := b.List(ctx, domain.ListFilter{ActiveOnly: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c"}, ids(active))

			food, err := b.List(ctx, domain.ListFilter{Category: "food"})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "d"}, ids(food))

			byPrice, err := b.List(ctx, domain.ListFilter{SortBy: "price", Order: "desc"})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "d", "c"}, ids(byPrice))

			max := decimal.NewFromInt(2000)
			cheap, err := b.List(ctx, domain.ListFilter{MaxPrice: &max})
			require.NoError(t, err)
			assert.Equal(t, []string{"c", "d"}, ids(cheap))
		})
	}
}

func ids(ps []domain.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestBulkImportReportsRejected(t *testing.T) {
	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t)
			require.NoError(t, b.Create(ctx, product("dup", "1", "1", 1)))

			err := b.BulkImport(ctx, []domain.Product{
				product("x1", "100", "0.1", 1),
				product("dup", "1", "1", 1),
				product("", "1", "1", 1),
				product("x2", "200", "0.2", 2),
			})
			require.Error(t, err)
			assert.True(t, domain.IsDuplicateProductError(err))
			assert.True(t, domain.IsInvalidProductError(err))

			all, err := b.List(ctx, domain.ListFilter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"dup", "x1", "x2"}, ids(all))
		})
	}
}

func TestMemoryBulkImportManyProducts(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	batch := make([]domain.Product, 0, 50)
	for i := range 50 {
		batch = append(batch, product(fmt.Sprintf("bulk-%02d", i), "100", "0.1", i))
	}
	batch = append(batch, product("bulk-07", "1", "1", 1))
	err := b.BulkImport(ctx, batch)
	assert.True(t, domain.IsDuplicateProductError(err))
	assert.Contains(t, err.Error(), "id=bulk-07")

	all, err := b.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 50)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, b.BulkImport(cancelled, []domain.Product{product("late", "1", "1", 1)}), context.Canceled)
	_, err = b.Get(ctx, "late")
	assert.True(t, domain.IsProductNotFoundError(err))
}

func TestCoupons(t *testing.T) {
	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t)

			past := time.Now().Add(-time.Hour)
			require.NoError(t, b.CreateCoupon(ctx, domain.Coupon{
				Code: " save10 ", Kind: domain.CouponPercent, Value: decimal.NewFromInt(10), IsActive: true,
			}))
			require.NoError(t, b.CreateCoupon(ctx, domain.Coupon{
				Code: "OLD", Kind: domain.CouponFixed, Value: decimal.NewFromInt(500), IsActive: true, ExpiresAt: &past,
			}))
			assert.True(t, domain.IsCouponError(b.CreateCoupon(ctx, domain.Coupon{
				Code: "SAVE10", Kind: domain.CouponFixed, Value: decimal.NewFromInt(1), IsActive: true,
			})))

			d, err := b.ValidateCoupon(ctx, "save10", decimal.NewFromInt(4500))
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(450).Equal(d), d.String())

			_, err = b.ValidateCoupon(ctx, "OLD", decimal.NewFromInt(4500))
			assert.True(t, domain.IsCouponError(err))

			_, err = b.ValidateCoupon(ctx, "MISSING", decimal.NewFromInt(4500))
			assert.True(t, domain.IsCouponError(err))
		})
	}
}

func sampleOrder(draft string) domain.Order {
	return domain.Order{
		DraftID:      draft,
		CustomerName: "Ali",
		Phone:        "07700000000",
		Address:      "Baghdad",
		SubtotalIQD:  decimal.NewFromInt(3000),
		DiscountIQD:  decimal.Zero,
		TotalIQD:     decimal.NewFromInt(3000),
		TotalUSD:     decimal.RequireFromString("2.3"),
	}
}

func TestCreateOrderIsIdempotentByDraft(t *testing.T) {
	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t)
			require.NoError(t, b.CreateCoupon(ctx, domain.Coupon{
				Code: "ONCE", Kind: domain.CouponFixed, Value: decimal.NewFromInt(100), MaxUses: 1, IsActive: true,
			}))

			o := sampleOrder("draft-1")
			lat := 33.3
			o.Latitude = &lat
			o.CouponCode = "once"

			first, created, err := b.CreateOrder(ctx, o)
			require.NoError(t, err)
			assert.True(t, created)
			assert.NotEmpty(t, first.ID)
			assert.Equal(t, domain.OrderPending, first.Status)
			assert.Equal(t, "ONCE", first.CouponCode)

			again, created, err := b.CreateOrder(ctx, o)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, first.ID, again.ID)

			// the coupon was counted once
			_, err = b.ValidateCoupon(ctx, "ONCE", decimal.NewFromInt(3000))
			assert.True(t, domain.IsCouponError(err))

			stored, _, err := b.GetOrder(ctx, first.ID)
			require.NoError(t, err)
			require.NotNil(t, stored.Latitude)
			assert.InDelta(t, lat, *stored.Latitude, 1e-9)
			assert.Nil(t, stored.Longitude)
			assert.True(t, decimal.RequireFromString("2.3").Equal(stored.TotalUSD))

			_, _, err = b.CreateOrder(ctx, sampleOrder(""))
			assert.Error(t, err)
		})
	}
}

func TestCreateOrderEnforcesCouponLimit(t *testing.T) {
	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t)
			require.NoError(t, b.CreateCoupon(ctx, domain.Coupon{
				Code: "SOLO", Kind: domain.CouponFixed, Value: decimal.NewFromInt(100), MaxUses: 1, IsActive: true,
			}))
			require.NoError(t, b.CreateCoupon(ctx, domain.Coupon{
				Code: "OPEN", Kind: domain.CouponFixed, Value: decimal.NewFromInt(100), IsActive: true,
			}))

			// both checkouts validated before either created its order
			for range 2 {
				_, err := b.ValidateCoupon(ctx, "SOLO", decimal.NewFromInt(3000))
				require.NoError(t, err)
			}

			a := sampleOrder("draft-a")
			a.CouponCode = "SOLO"
			_, created, err := b.CreateOrder(ctx, a)
			require.NoError(t, err)
			assert.True(t, created)

			second := sampleOrder("draft-b")
			second.CouponCode = "SOLO"
			_, _, err = b.CreateOrder(ctx, second)
			var ce *domain.CouponError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "usage limit reached", ce.Reason)
			_, err = b.OrderByDraft(ctx, "draft-b")
			assert.True(t, domain.IsOrderNotFoundError(err))

			missing := sampleOrder("draft-c")
			missing.CouponCode = "NOPE"
			_, _, err = b.CreateOrder(ctx, missing)
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "not found", ce.Reason)

			for i := range 3 {
				o := sampleOrder("open-" + string(rune('a'+i)))
				o.CouponCode = "OPEN"
				_, _, err := b.CreateOrder(ctx, o)
				require.NoError(t, err, "unlimited coupon use %d", i)
			}
		})
	}
}

func TestOrderByDraft(t *testing.T) {
	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t)

			_, err := b.OrderByDraft(ctx, "draft-x")
			assert.True(t, domain.IsOrderNotFoundError(err))

			o, _, err := b.CreateOrder(ctx, sampleOrder("draft-x"))
			require.NoError(t, err)
			got, err := b.OrderByDraft(ctx, "draft-x")
			require.NoError(t, err)
			assert.Equal(t, o.ID, got.ID)
			assert.True(t, o.TotalIQD.Equal(got.TotalIQD))
		})
	}
}

func TestOrderItemsAndStock(t *testing.T) {
	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t)
			require.NoError(t, b.Create(ctx, product("p1", "1500", "1.15", 5)))
			require.NoError(t, b.Create(ctx, product("p2", "500", "0.4", 1)))

			o, _, err := b.CreateOrder(ctx, sampleOrder("draft-2"))
			require.NoError(t, err)

			items := []domain.OrderItem{
				{ProductID: "p1", NameEn: "Product p1", Quantity: 2, PriceIQD: decimal.NewFromInt(1500), PriceUSD: decimal.RequireFromString("1.15")},
				{ProductID: "p2", NameEn: "Product p2", Quantity: 1, PriceIQD: decimal.NewFromInt(500), PriceUSD: decimal.RequireFromString("0.4")},
			}
			require.NoError(t, b.InsertOrderItems(ctx, o.ID, items))
			require.NoError(t, b.InsertOrderItems(ctx, o.ID, items))
			assert.True(t, domain.IsOrderNotFoundError(b.InsertOrderItems(ctx, "missing", items)))

			_, stored, err := b.GetOrder(ctx, o.ID)
			require.NoError(t, err)
			require.Len(t, stored, 2)
			assert.Equal(t, o.ID, stored[0].OrderID)

			require.NoError(t, b.DecrementStock(ctx, o.ID, "p1", 2))
			require.NoError(t, b.DecrementStock(ctx, o.ID, "p1", 2))
			p, err := b.Get(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, 3, p.StockQuantity)

			err = b.DecrementStock(ctx, o.ID, "p2", 2)
			assert.True(t, domain.IsInsufficientStockError(err))
			p, err = b.Get(ctx, "p2")
			require.NoError(t, err)
			assert.Equal(t, 1, p.StockQuantity)

			assert.True(t, domain.IsProductNotFoundError(b.DecrementStock(ctx, o.ID, "ghost", 1)))
		})
	}
}

func TestOrderStatusLifecycle(t *testing.T) {
	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t)

			o, _, err := b.CreateOrder(ctx, sampleOrder("draft-3"))
			require.NoError(t, err)
			other, _, err := b.CreateOrder(ctx, sampleOrder("draft-4"))
			require.NoError(t, err)

			require.NoError(t, b.UpdateOrderStatus(ctx, o.ID, domain.OrderConfirmed))
			err = b.UpdateOrderStatus(ctx, o.ID, domain.OrderDelivered)
			assert.True(t, domain.IsInvalidTransitionError(err))
			assert.True(t, domain.IsOrderNotFoundError(b.UpdateOrderStatus(ctx, "nope", domain.OrderConfirmed)))

			confirmed, err := b.ListOrders(ctx, domain.OrderFilter{Status: domain.OrderConfirmed})
			require.NoError(t, err)
			require.Len(t, confirmed, 1)
			assert.Equal(t, o.ID, confirmed[0].ID)

			all, err := b.ListOrders(ctx, domain.OrderFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 2)

			limited, err := b.ListOrders(ctx, domain.OrderFilter{Limit: 1})
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			_, _, err = b.GetOrder(ctx, "nope")
			assert.True(t, domain.IsOrderNotFoundError(err))
			_ = other
		})
	}
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = NewBackend("sqlite", ":memory:")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBackend{}, b)
	require.NoError(t, b.Close())

	_, err = NewBackend("sqlite", "")
	assert.Error(t, err)

	_, err = NewBackend("postgres", "x")
	assert.Error(t, err)
}

func TestSQLiteMigrationsAreRerunnable(t *testing.T) {
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()
	assert.NoError(t, b.RunMigrations())
}
