package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/wbtio/Amal-Center-sub000/backend"
	"github.com/wbtio/Amal-Center-sub000/cart"
	"github.com/wbtio/Amal-Center-sub000/domain"
	"github.com/wbtio/Amal-Center-sub000/store"
)

// useMemoryStores injects fresh stores so PersistentPreRunE is a no-op.
func useMemoryStores(t *testing.T) {
	t.Helper()
	c, err := cart.New(context.Background(), store.NewMemoryStore())
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	shop = backend.NewMemoryBackend()
	cartStore = c
	locale = domain.LocaleEnglish
	t.Cleanup(resetCLI)
}

// reset cobra + global state between tests
func resetCLI() {
	if cartStore != nil {
		_ = cartStore.Close(context.Background())
	}
	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetIn(nil)
	shop, cartStore = nil, nil
	locale = domain.LocaleArabic
}

// execute runs one command line and returns what it printed to stdout.
func execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := run(args)
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(args...)
	if err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return out
}

func seedProduct(t *testing.T, id string, stock int, active bool) {
	t.Helper()
	args := []string{"product", "create", "--id", id,
		"--name-ar", "منتج " + id, "--name-en", "Product " + id,
		"--price-iqd", "1500", "--price-usd", "1.15",
		"--stock", itoa(stock), "--category", "food"}
	if !active {
		args = append(args, "--inactive")
	}
	mustExecute(t, args...)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestProductCreateGetListUpdateDelete(t *testing.T) {
	useMemoryStores(t)

	// CREATE
	out := mustExecute(t, "product", "create",
		"--name-en", "Dates", "--name-ar", "تمر",
		"--price-iqd", "4000", "--price-usd", "3.05",
		"--stock", "2", "--category", "T")

	var created domain.Product
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("invalid create output: %v", err)
	}
	if created.ID == "" || !created.IsActive {
		t.Fatalf("unexpected product: %+v", created)
	}

	// GET
	out = mustExecute(t, "product", "get", created.ID)
	if !strings.Contains(out, "تمر") {
		t.Fatalf("get output missing arabic name: %s", out)
	}

	// LIST
	out = mustExecute(t, "product", "list")
	if !strings.Contains(out, "Dates | 4000 IQD | 3.05 USD | 2 | T") {
		t.Fatalf("unexpected list output: %q", out)
	}

	// UPDATE
	out = mustExecute(t, "product", "update", created.ID, "--price-iqd", "4500")
	var updated domain.Product
	if err := json.Unmarshal([]byte(out), &updated); err != nil {
		t.Fatalf("invalid update output: %v", err)
	}
	if updated.PriceIQD.String() != "4500" || updated.StockQuantity != 2 {
		t.Fatalf("update not applied: %+v", updated)
	}

	// DELETE
	mustExecute(t, "product", "delete", "--force", created.ID)
	if _, err := shop.Get(context.Background(), created.ID); !domain.IsProductNotFoundError(err) {
		t.Fatalf("expected product to be deleted, got %v", err)
	}
}

func TestProductCreateFlagsDoNotLeak(t *testing.T) {
	useMemoryStores(t)
	seedProduct(t, "a", 7, false)
	mustExecute(t, "product", "create", "--id", "b", "--name-en", "B")

	b, err := shop.Get(context.Background(), "b")
	if err != nil {
		t.Fatal(err)
	}
	if b.StockQuantity != 0 || !b.IsActive || b.Category != "" {
		t.Fatalf("flags from an earlier command leaked: %+v", b)
	}
}

func TestProductListFilters(t *testing.T) {
	useMemoryStores(t)
	seedProduct(t, "a", 1, true)
	seedProduct(t, "b", 9, false)

	out := mustExecute(t, "product", "list", "--active-only", "--output", "json")
	var got []domain.Product
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid list output: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected active list: %+v", got)
	}

	out = mustExecute(t, "product", "list", "--sort-by", "stock", "--order", "desc")
	if strings.Index(out, "b |") > strings.Index(out, "a |") {
		t.Fatalf("expected b before a:\n%s", out)
	}
}

func TestCartCommands(t *testing.T) {
	useMemoryStores(t)
	seedProduct(t, "p1", 5, true)
	seedProduct(t, "off", 5, false)

	out := mustExecute(t, "cart", "add", "p1", "--quantity", "2")
	if !strings.Contains(out, "Items: 2 | Total: 3000 IQD | 2.30 USD") {
		t.Fatalf("unexpected cart output: %q", out)
	}
	if out := mustExecute(t, "cart", "qty", "p1"); strings.TrimSpace(out) != "2" {
		t.Fatalf("qty = %q", out)
	}

	// default quantity is one
	mustExecute(t, "cart", "add", "p1")
	if got := cartStore.ItemQuantity("p1"); got != 3 {
		t.Fatalf("quantity = %d, want 3", got)
	}

	_, err := execute("cart", "add", "p1", "--quantity", "3")
	if !domain.IsInsufficientStockError(err) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if err.Error() != "Not enough stock: only 5 available" {
		t.Fatalf("message not localized: %q", err.Error())
	}
	if got := cartStore.ItemQuantity("p1"); got != 3 {
		t.Fatalf("failed add changed the cart: %d", got)
	}

	_, err = execute("cart", "add", "off")
	if !domain.IsProductUnavailableError(err) {
		t.Fatalf("expected unavailable product, got %v", err)
	}

	if _, err := execute("cart", "update", "p1", "6"); !domain.IsInsufficientStockError(err) {
		t.Fatalf("expected insufficient stock on update, got %v", err)
	}
	if _, err := execute("cart", "update", "p1", "x"); err == nil {
		t.Fatalf("expected error for non-numeric quantity")
	}

	out = mustExecute(t, "cart", "show", "--output", "json")
	var snap domain.CartSnapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("invalid snapshot output: %v", err)
	}
	if snap.Version != domain.CartSnapshotVersion || len(snap.Items) != 1 || snap.Totals.Items != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	out = mustExecute(t, "cart", "update", "p1", "0")
	if !strings.Contains(out, "Your cart is empty") {
		t.Fatalf("update to zero should empty the cart: %q", out)
	}

	mustExecute(t, "cart", "add", "p1")
	mustExecute(t, "cart", "remove", "p1")
	mustExecute(t, "cart", "add", "p1")
	mustExecute(t, "cart", "clear")
	if n := len(cartStore.Lines()); n != 0 {
		t.Fatalf("cart not cleared: %d lines", n)
	}
}

func TestCartArabicMessages(t *testing.T) {
	useMemoryStores(t)
	locale = domain.LocaleArabic
	seedProduct(t, "p1", 1, true)

	_, err := execute("cart", "add", "p1", "--quantity", "2")
	if err == nil || err.Error() != "الكمية غير متوفرة: المتوفر 1 فقط" {
		t.Fatalf("unexpected message: %v", err)
	}
	out := mustExecute(t, "cart", "show")
	if !strings.Contains(out, "السلة فارغة") {
		t.Fatalf("unexpected empty cart output: %q", out)
	}
}

type placedOrder struct {
	Order domain.Order       `json:"order"`
	Items []domain.OrderItem `json:"items"`
}

func TestCheckoutAndOrderCommands(t *testing.T) {
	useMemoryStores(t)
	seedProduct(t, "p1", 5, true)
	mustExecute(t, "coupon", "create", "--code", "eid", "--kind", "fixed", "--value", "500")
	mustExecute(t, "cart", "add", "p1", "--quantity", "2")

	out := mustExecute(t, "checkout",
		"--name", "Noor", "--phone", "07701112233", "--address", "Mansour",
		"--coupon", "EID", "--lat", "33.3", "--lng", "44.4", "--draft-id", "d-1")
	var placed placedOrder
	if err := json.Unmarshal([]byte(out), &placed); err != nil {
		t.Fatalf("invalid checkout output: %v\n%s", err, out)
	}
	o := placed.Order
	if o.DraftID != "d-1" || o.TotalIQD.String() != "2500" || o.DiscountIQD.String() != "500" {
		t.Fatalf("unexpected order: %+v", o)
	}
	if o.Latitude == nil || *o.Latitude != 33.3 {
		t.Fatalf("location not recorded: %+v", o)
	}
	if len(placed.Items) != 1 || placed.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", placed.Items)
	}
	if n := len(cartStore.Lines()); n != 0 {
		t.Fatalf("cart should be cleared after checkout, has %d lines", n)
	}
	p, _ := shop.Get(context.Background(), "p1")
	if p.StockQuantity != 3 {
		t.Fatalf("stock = %d, want 3", p.StockQuantity)
	}

	out = mustExecute(t, "order", "list")
	if !strings.Contains(out, o.ID) || !strings.Contains(out, "pending") {
		t.Fatalf("order list missing order: %q", out)
	}

	out = mustExecute(t, "order", "get", o.ID)
	if !strings.Contains(out, `"product_id": "p1"`) {
		t.Fatalf("order get missing items: %s", out)
	}

	mustExecute(t, "order", "status", o.ID, "confirmed")
	if _, err := execute("order", "status", o.ID, "delivered"); !domain.IsInvalidTransitionError(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	out = mustExecute(t, "order", "list", "--status", "confirmed", "--output", "json")
	var listed []domain.Order
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("invalid order list: %v", err)
	}
	if len(listed) != 1 || listed[0].Status != domain.OrderConfirmed {
		t.Fatalf("unexpected filtered list: %+v", listed)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	useMemoryStores(t)
	_, err := execute("checkout", "--name", "Noor", "--phone", "1", "--address", "x")
	if err == nil || err.Error() != "Your cart is empty" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestShell(t *testing.T) {
	useMemoryStores(t)
	seedProduct(t, "p1", 5, true)

	rootCmd.SetIn(strings.NewReader("cart add p1 --quantity 2\n\ncart add p1 --quantity 9\ncart qty p1\nexit\n"))
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	if err := run([]string{"shell"}); err != nil {
		t.Fatalf("shell: %v", err)
	}
	if got := cartStore.ItemQuantity("p1"); got != 2 {
		t.Fatalf("quantity = %d, want 2", got)
	}
	if !strings.Contains(errOut.String(), "Not enough stock") {
		t.Fatalf("shell should report the failed line: %q", errOut.String())
	}
	if !strings.Contains(out.String(), "amal> ") {
		t.Fatalf("missing prompt: %q", out.String())
	}
}
