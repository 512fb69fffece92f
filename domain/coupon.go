package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CouponKind selects how a coupon value is applied.
type CouponKind string

const (
	CouponPercent CouponKind = "percent"
	CouponFixed   CouponKind = "fixed"
)

// Coupon is a discount code. MaxUses of zero means unlimited.
type Coupon struct {
	Code        string          `json:"code"`
	Kind        CouponKind      `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	MinOrderIQD decimal.Decimal `json:"min_order_iqd"`
	MaxUses     int             `json:"max_uses"`
	UsedCount   int             `json:"used_count"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	IsActive    bool            `json:"is_active"`
}

// NormalizeCouponCode upper-cases and trims a user-typed code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCoupon checks the fields every stored coupon must satisfy.
func ValidateCoupon(c Coupon) error {
	if c.Code == "" {
		return NewCouponError(c.Code, "code cannot be empty")
	}
	switch c.Kind {
	case CouponPercent:
		if !c.Value.IsPositive() || c.Value.GreaterThan(decimal.NewFromInt(100)) {
			return NewCouponError(c.Code, "percent must be in (0, 100]")
		}
	case CouponFixed:
		if !c.Value.IsPositive() {
			return NewCouponError(c.Code, "amount must be positive")
		}
	default:
		return NewCouponError(c.Code, "unknown kind "+string(c.Kind))
	}
	if c.MinOrderIQD.IsNegative() || c.MaxUses < 0 {
		return NewCouponError(c.Code, "limits must be non-negative")
	}
	return nil
}

// Discount returns the IQD discount the coupon grants on subtotal at now.
func (c Coupon) Discount(subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	switch {
	case !c.IsActive:
		return decimal.Zero, NewCouponError(c.Code, "inactive")
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return decimal.Zero, NewCouponError(c.Code, "expired")
	case c.MaxUses > 0 && c.UsedCount >= c.MaxUses:
		return decimal.Zero, NewCouponError(c.Code, "usage limit reached")
	case subtotal.LessThan(c.MinOrderIQD):
		return decimal.Zero, NewCouponError(c.Code, "order below minimum "+c.MinOrderIQD.String())
	}

	var d decimal.Decimal
	if c.Kind == CouponPercent {
		// dinars have no fractional unit
		d = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(0)
	} else {
		d = c.Value
	}
	return decimal.Min(d, subtotal), nil
}
