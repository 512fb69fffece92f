package cli

import (
	"errors"
	"fmt"

	"github.com/wbtio/Amal-Center-sub000/checkout"
	"github.com/wbtio/Amal-Center-sub000/domain"
)

// messages holds the user-facing strings per locale.
var messages = map[domain.Locale]map[string]string{
	domain.LocaleArabic: {
		"insufficient_stock":  "الكمية غير متوفرة: المتوفر %d فقط",
		"product_unavailable": "المنتج غير متوفر حالياً",
		"empty_cart":          "السلة فارغة",
		"coupon_rejected":     "كود الخصم غير صالح",
		"retry":               "أعد المحاولة باستخدام --draft-id %s",
		"items":               "العناصر",
		"total":               "المجموع",
		"discount":            "الخصم",
		"order_placed":        "تم إرسال الطلب %s",
		"stock_warning":       "تعذر تحديث المخزون للمنتج %s",
	},
	domain.LocaleEnglish: {
		"insufficient_stock":  "Not enough stock: only %d available",
		"product_unavailable": "This product is currently unavailable",
		"empty_cart":          "Your cart is empty",
		"coupon_rejected":     "Invalid coupon code",
		"retry":               "Retry with --draft-id %s",
		"items":               "Items",
		"total":               "Total",
		"discount":            "Discount",
		"order_placed":        "Order %s placed",
		"stock_warning":       "Could not update stock for product %s",
	},
}

func msg(key string, args ...any) string {
	m, ok := messages[locale]
	if !ok {
		m = messages[domain.LocaleArabic]
	}
	if len(args) == 0 {
		return m[key]
	}
	return fmt.Sprintf(m[key], args...)
}

// localizedError shows a translated message and keeps the cause for errors.Is.
type localizedError struct {
	msg string
	err error
}

func (e *localizedError) Error() string { return e.msg }
func (e *localizedError) Unwrap() error { return e.err }

// localizeError translates the conditions a shopper is expected to see.
// Anything else is returned as is.
func localizeError(err error) error {
	if err == nil {
		return nil
	}
	var le *localizedError
	if errors.As(err, &le) {
		return err
	}

	var text string
	var ise *domain.InsufficientStockError
	switch {
	case errors.As(err, &ise):
		text = msg("insufficient_stock", ise.Available)
	case domain.IsProductUnavailableError(err):
		text = msg("product_unavailable")
	case errors.Is(err, checkout.ErrEmptyCart):
		text = msg("empty_cart")
	case domain.IsCouponError(err):
		text = msg("coupon_rejected")
	default:
		return err
	}
	return &localizedError{msg: text, err: err}
}
