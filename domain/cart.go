package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// CartSnapshotVersion is written into every persisted snapshot.
const CartSnapshotVersion = 1

// CartLine is one purchasable line in the cart. Names, prices, image and
// stock are captured from the product when the line is created.
type CartLine struct {
	LineID         string          `json:"id"`
	ProductID      string          `json:"product_id"`
	NameAr         string          `json:"name_ar"`
	NameEn         string          `json:"name_en"`
	PriceIQD       decimal.Decimal `json:"price_iqd"`
	PriceUSD       decimal.Decimal `json:"price_usd"`
	ImageURL       string          `json:"image_url"`
	Quantity       int             `json:"quantity"`
	AvailableStock int             `json:"stock_quantity"`
}

// Name returns the display name for the locale.
func (l CartLine) Name(loc Locale) string {
	return localized(loc, l.NameAr, l.NameEn)
}

// Totals are the cart aggregates.
type Totals struct {
	Items int             `json:"total_items"`
	IQD   decimal.Decimal `json:"total_iqd"`
	USD   decimal.Decimal `json:"total_usd"`
}

// ComputeTotals sums quantities and per-currency line amounts.
func ComputeTotals(lines []CartLine) Totals {
	t := Totals{IQD: decimal.Zero, USD: decimal.Zero}
	for _, l := range lines {
		q := decimal.NewFromInt(int64(l.Quantity))
		t.Items += l.Quantity
		t.IQD = t.IQD.Add(l.PriceIQD.Mul(q))
		t.USD = t.USD.Add(l.PriceUSD.Mul(q))
	}
	return t
}

// CartSnapshot is the persisted form of a cart. The aggregate fields are
// written for readers of the blob and are never trusted on load.
type CartSnapshot struct {
	Version int        `json:"version"`
	Items   []CartLine `json:"items"`
	Totals
}

// CartPersister loads and saves cart snapshots under a fixed key.
type CartPersister interface {
	Load(ctx context.Context) (CartSnapshot, error)
	Save(ctx context.Context, snapshot CartSnapshot) error
}
