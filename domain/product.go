// Package domain defines core business types and interfaces.
package domain

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a catalog product as served by the backend
type Product struct {
	ID            string          `json:"id"`
	NameAr        string          `json:"name_ar"`
	NameEn        string          `json:"name_en"`
	PriceIQD      decimal.Decimal `json:"price_iqd"`
	PriceUSD      decimal.Decimal `json:"price_usd"`
	ImageURL      string          `json:"image_url"`
	StockQuantity int             `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
	Category      string          `json:"category"`
}

// Name returns the display name for the locale, falling back to the other one.
func (p Product) Name(l Locale) string {
	return localized(l, p.NameAr, p.NameEn)
}

// ListFilter allows filtering and sorting results from List
type ListFilter struct {
	Category   string
	MinPrice   *decimal.Decimal // IQD
	MaxPrice   *decimal.Decimal // IQD
	ActiveOnly bool
	Search     string
	SortBy     string // "name", "price", "stock"
	Order      string // "asc" or "desc"
}

// Match reports whether p passes every filter criterion.
func (f ListFilter) Match(p Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && p.PriceIQD.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.PriceIQD.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.ActiveOnly && !p.IsActive {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.NameEn), q) && !strings.Contains(p.NameAr, f.Search) {
			return false
		}
	}
	return true
}

// ValidateProduct checks the fields every stored product must satisfy.
func ValidateProduct(p Product) error {
	if p.ID == "" {
		return NewInvalidProductError("id", "cannot be empty", p.ID)
	}
	if p.NameAr == "" && p.NameEn == "" {
		return NewInvalidProductError("name", "cannot be empty", p.NameEn)
	}
	if p.PriceIQD.IsNegative() {
		return NewInvalidProductError("price_iqd", "must be non-negative", p.PriceIQD)
	}
	if p.PriceUSD.IsNegative() {
		return NewInvalidProductError("price_usd", "must be non-negative", p.PriceUSD)
	}
	if p.StockQuantity < 0 {
		return NewInvalidProductError("stock_quantity", "must be non-negative", p.StockQuantity)
	}
	return nil
}

// ProductStore defines the catalog interface of the backend
type ProductStore interface {
	Create(ctx context.Context, product Product) error
	Get(ctx context.Context, id string) (Product, error)
	Update(ctx context.Context, id string, product Product) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	BulkImport(ctx context.Context, products []Product) error
}
