package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteBackend is a Backend on a SQLite database.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

var _ Backend = (*SQLiteBackend)(nil)

// NewSQLiteBackend opens dsn (a file path or ":memory:") and migrates it to
// the latest schema.
func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: sqlite serializes writers anyway and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteBackend{db: db, now: time.Now}
	if err := s.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// RunMigrations applies the embedded schema migrations.
func (s *SQLiteBackend) RunMigrations() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

const productColumns = `id, name_ar, name_en, price_iqd, price_usd, image_url, stock_quantity, is_active, category`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.NameAr, &p.NameEn, &p.PriceIQD, &p.PriceUSD,
		&p.ImageURL, &p.StockQuantity, &p.IsActive, &p.Category)
	return p, err
}

func (s *SQLiteBackend) Create(ctx context.Context, product domain.Product) error {
	if err := domain.ValidateProduct(product); err != nil {
		return err
	}
	return s.insertProduct(ctx, s.db, product)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteBackend) insertProduct(ctx context.Context, db execer, p domain.Product) error {
	now := s.now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.NameAr, p.NameEn, p.PriceIQD, p.PriceUSD, p.ImageURL,
		p.StockQuantity, p.IsActive, p.Category, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewDuplicateProductError(p.ID)
	}
	return nil
}

func (s *SQLiteBackend) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.NewProductNotFoundError(id)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (s *SQLiteBackend) Update(ctx context.Context, id string, product domain.Product) error {
	product.ID = id
	if err := domain.ValidateProduct(product); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name_ar = ?, name_en = ?, price_iqd = ?, price_usd = ?, image_url = ?,
		    stock_quantity = ?, is_active = ?, category = ?, updated_at = ?
		WHERE id = ?`,
		product.NameAr, product.NameEn, product.PriceIQD, product.PriceUSD, product.ImageURL,
		product.StockQuantity, product.IsActive, product.Category, s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewProductNotFoundError(id)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewProductNotFoundError(id)
	}
	return nil
}

func (s *SQLiteBackend) List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var where []string
	var args []any
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	out := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		// price and search criteria compare decimals and both scripts
		if filter.Match(p) {
			out = append(out, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	sortProducts(out, filter)
	return out, nil
}

// BulkImport inserts every valid, new product in one transaction and
// reports the rejected ones.
func (s *SQLiteBackend) BulkImport(ctx context.Context, products []domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var rejected []error
	for _, p := range products {
		if err := domain.ValidateProduct(p); err != nil {
			rejected = append(rejected, fmt.Errorf("id=%s: %w", p.ID, err))
			continue
		}
		if err := s.insertProduct(ctx, tx, p); err != nil {
			if !domain.IsDuplicateProductError(err) {
				return err
			}
			rejected = append(rejected, fmt.Errorf("id=%s: %w", p.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return errors.Join(rejected...)
}

func (s *SQLiteBackend) CreateCoupon(ctx context.Context, c domain.Coupon) error {
	c.Code = domain.NormalizeCouponCode(c.Code)
	if err := domain.ValidateCoupon(c); err != nil {
		return err
	}
	var expires sql.NullTime
	if c.ExpiresAt != nil {
		expires = sql.NullTime{Time: c.ExpiresAt.UTC(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO coupons (code, kind, value, min_order_iqd, max_uses, used_count, expires_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO NOTHING`,
		c.Code, string(c.Kind), c.Value, c.MinOrderIQD, c.MaxUses, c.UsedCount, expires, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewCouponError(c.Code, "already exists")
	}
	return nil
}

func (s *SQLiteBackend) ValidateCoupon(ctx context.Context, code string, subtotalIQD decimal.Decimal) (decimal.Decimal, error) {
	code = domain.NormalizeCouponCode(code)
	var (
		c       domain.Coupon
		kind    string
		expires sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, kind, value, min_order_iqd, max_uses, used_count, expires_at, is_active
		FROM coupons WHERE code = ?`, code,
	).Scan(&c.Code, &kind, &c.Value, &c.MinOrderIQD, &c.MaxUses, &c.UsedCount, &expires, &c.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, domain.NewCouponError(code, "not found")
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query coupon: %w", err)
	}
	c.Kind = domain.CouponKind(kind)
	if expires.Valid {
		c.ExpiresAt = &expires.Time
	}
	return c.Discount(subtotalIQD, s.now())
}

const orderColumns = `id, draft_id, customer_name, phone, address, notes, latitude, longitude,
	coupon_code, subtotal_iqd, discount_iqd, total_iqd, total_usd, status, created_at, updated_at`

func scanOrder(row scanner) (domain.Order, error) {
	var (
		o        domain.Order
		status   string
		lat, lng sql.NullFloat64
	)
	err := row.Scan(&o.ID, &o.DraftID, &o.CustomerName, &o.Phone, &o.Address, &o.Notes, &lat, &lng,
		&o.CouponCode, &o.SubtotalIQD, &o.DiscountIQD, &o.TotalIQD, &o.TotalUSD, &status,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	if lat.Valid {
		o.Latitude = &lat.Float64
	}
	if lng.Valid {
		o.Longitude = &lng.Float64
	}
	return o, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func (s *SQLiteBackend) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, bool, error) {
	if order.DraftID == "" {
		return domain.Order{}, false, fmt.Errorf("order draft id required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE draft_id = ?`, order.DraftID))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, false, fmt.Errorf("query order by draft: %w", err)
	}

	if order.CouponCode != "" {
		order.CouponCode = domain.NormalizeCouponCode(order.CouponCode)
		res, err := tx.ExecContext(ctx, `
			UPDATE coupons SET used_count = used_count + 1
			WHERE code = ? AND (max_uses = 0 OR used_count < max_uses)`, order.CouponCode)
		if err != nil {
			return domain.Order{}, false, fmt.Errorf("count coupon use: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM coupons WHERE code = ?`, order.CouponCode).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.Order{}, false, domain.NewCouponError(order.CouponCode, "not found")
			}
			if err != nil {
				return domain.Order{}, false, fmt.Errorf("query coupon: %w", err)
			}
			return domain.Order{}, false, domain.NewCouponError(order.CouponCode, "usage limit reached")
		}
	}

	now := s.now().UTC()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = domain.OrderPending
	}
	order.CreatedAt, order.UpdatedAt = now, now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.DraftID, order.CustomerName, order.Phone, order.Address, order.Notes,
		nullFloat(order.Latitude), nullFloat(order.Longitude), order.CouponCode,
		order.SubtotalIQD, order.DiscountIQD, order.TotalIQD, order.TotalUSD, string(order.Status),
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("insert order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, false, fmt.Errorf("commit: %w", err)
	}
	return order, true, nil
}

// OrderByDraft returns the order created for draftID, or an
// OrderNotFoundError when no attempt got that far.
func (s *SQLiteBackend) OrderByDraft(ctx context.Context, draftID string) (domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE draft_id = ?`, draftID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.NewOrderNotFoundError(draftID)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order by draft: %w", err)
	}
	return o, nil
}

func (s *SQLiteBackend) InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, orderID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("query order: %w", err)
	}
	if exists == 0 {
		return domain.NewOrderNotFoundError(orderID)
	}

	for _, it := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name_ar, name_en, quantity, price_iqd, price_usd)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (order_id, product_id) DO NOTHING`,
			orderID, it.ProductID, it.NameAr, it.NameEn, it.Quantity, it.PriceIQD, it.PriceUSD,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", it.ProductID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteBackend) DecrementStock(ctx context.Context, orderID, productID string, quantity int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (order_id, product_id, quantity, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (order_id, product_id) DO NOTHING`,
		orderID, productID, quantity, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record stock movement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// already applied by an earlier attempt
		return nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - ?, updated_at = ?
		WHERE id = ? AND stock_quantity >= ?`,
		quantity, s.now().UTC(), productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var available int
		err := tx.QueryRowContext(ctx, `SELECT stock_quantity FROM products WHERE id = ?`, productID).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewProductNotFoundError(productID)
		}
		if err != nil {
			return fmt.Errorf("query stock: %w", err)
		}
		return domain.NewInsufficientStockError(productID, quantity, available)
	}
	return tx.Commit()
}

func (s *SQLiteBackend) GetOrder(ctx context.Context, id string) (domain.Order, []domain.OrderItem, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, nil, domain.NewOrderNotFoundError(id)
	}
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("query order: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, product_id, name_ar, name_en, quantity, price_iqd, price_usd
		FROM order_items WHERE order_id = ? ORDER BY rowid`, id)
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.NameAr, &it.NameEn, &it.Quantity, &it.PriceIQD, &it.PriceUSD); err != nil {
			return domain.Order{}, nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, nil, fmt.Errorf("row iteration error: %w", err)
	}
	return o, items, nil
}

func (s *SQLiteBackend) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (s *SQLiteBackend) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewOrderNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("query order: %w", err)
	}
	from := domain.OrderStatus(current)
	if !from.CanTransitionTo(status) {
		return domain.NewInvalidTransitionError(from, status)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now().UTC(), id); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return tx.Commit()
}
