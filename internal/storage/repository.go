// Package storage implements the SQLite persistence layer. All money values
// are stored as integer cents and purchase dates as "YYYY-MM-DD" text so the
// monthly grouping key is a prefix of the stored value.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"feira/internal/core"

	_ "modernc.org/sqlite"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// DefaultCategories is seeded once, only when the categories table is empty.
var DefaultCategories = []string{
	"Higiene", "Bebidas", "Mercearia", "Padaria",
	"Limpeza", "Hortifruti", "Açougue", "Outros",
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping reports whether the database is reachable, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{timestampLayout, time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// --- Stores ---

const storeCols = `id, name, address, created_at`

func scanStore(scanner interface{ Scan(...any) error }) (*core.Store, error) {
	var s core.Store
	var createdAt string
	if err := scanner.Scan(&s.ID, &s.Name, &s.Address, &createdAt); err != nil {
		return nil, err
	}
	s.CreatedAt = parseTimestamp(createdAt)
	return &s, nil
}

func (r *SQLiteRepository) CreateStore(ctx context.Context, s core.Store) (core.Store, error) {
	if err := s.Validate(); err != nil {
		return core.Store{}, err
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO stores (name, address) VALUES (?, ?)`, s.Name, s.Address)
	if err != nil {
		return core.Store{}, fmt.Errorf("insert store: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return core.Store{}, fmt.Errorf("last insert id: %w", err)
	}
	return r.GetStore(ctx, id)
}

func (r *SQLiteRepository) GetStore(ctx context.Context, id int64) (core.Store, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+storeCols+` FROM stores WHERE id = ?`, id)
	s, err := scanStore(row)
	if err == sql.ErrNoRows {
		return core.Store{}, core.ErrNotFound
	}
	if err != nil {
		return core.Store{}, fmt.Errorf("get store: %w", err)
	}
	return *s, nil
}

func (r *SQLiteRepository) ListStores(ctx context.Context) ([]core.Store, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+storeCols+` FROM stores ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	var stores []core.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		stores = append(stores, *s)
	}
	return stores, rows.Err()
}

func (r *SQLiteRepository) UpdateStore(ctx context.Context, s core.Store) (core.Store, error) {
	if err := s.Validate(); err != nil {
		return core.Store{}, err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE stores SET name = ?, address = ? WHERE id = ?`, s.Name, s.Address, s.ID)
	if err != nil {
		return core.Store{}, fmt.Errorf("update store: %w", err)
	}
	return r.GetStore(ctx, s.ID)
}

func (r *SQLiteRepository) DeleteStore(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM stores WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete store: %w", err)
	}
	return nil
}

// --- Products (catalog) ---

const productCols = `id, name, category, unit, created_at`

func scanProduct(scanner interface{ Scan(...any) error }) (*core.Product, error) {
	var p core.Product
	var createdAt string
	if err := scanner.Scan(&p.ID, &p.Name, &p.Category, &p.Unit, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTimestamp(createdAt)
	return &p, nil
}

func (r *SQLiteRepository) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO products (name, category, unit) VALUES (?, ?, ?)`,
		p.Name, p.Category, p.Unit)
	if err != nil {
		return core.Product{}, fmt.Errorf("insert product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return core.Product{}, fmt.Errorf("last insert id: %w", err)
	}
	return r.GetProduct(ctx, id)
}

func (r *SQLiteRepository) GetProduct(ctx context.Context, id int64) (core.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return core.Product{}, core.ErrNotFound
	}
	if err != nil {
		return core.Product{}, fmt.Errorf("get product: %w", err)
	}
	return *p, nil
}

func (r *SQLiteRepository) ListProducts(ctx context.Context) ([]core.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productCols+` FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *SQLiteRepository) UpdateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = ?, category = ?, unit = ? WHERE id = ?`,
		p.Name, p.Category, p.Unit, p.ID)
	if err != nil {
		return core.Product{}, fmt.Errorf("update product: %w", err)
	}
	return r.GetProduct(ctx, p.ID)
}

func (r *SQLiteRepository) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// --- Categories ---

const categoryCols = `id, name`

func scanCategory(scanner interface{ Scan(...any) error }) (*core.Category, error) {
	var c core.Category
	if err := scanner.Scan(&c.ID, &c.Name); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryCols+` FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		if id, err := result.LastInsertId(); err == nil {
			return core.Category{ID: id, Name: name}, nil
		}
	}
	// Conflict: the category already exists, return the stored row.
	row := r.db.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM categories WHERE name = ?`, name)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return *c, nil
}

// DeleteCategory removes a category from the taxonomy. Historic purchase
// items keep their snapshot category string untouched.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// SeedCategories inserts the default taxonomy when the table is empty.
// A non-empty table is left alone so user edits survive restarts.
func (r *SQLiteRepository) SeedCategories(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, name := range DefaultCategories {
		if _, err := r.CreateCategory(ctx, name); err != nil {
			return fmt.Errorf("seed category %q: %w", name, err)
		}
	}
	return nil
}

// --- Purchases ---

const purchaseCols = `id, date, store_id, total_cents, payment_method`

func scanPurchase(scanner interface{ Scan(...any) error }) (*core.Purchase, error) {
	var p core.Purchase
	var date, payment string
	if err := scanner.Scan(&p.ID, &date, &p.StoreID, &p.Total.Cents, &payment); err != nil {
		return nil, err
	}
	p.Date = parseDate(date)
	p.Payment = core.PaymentMethod(payment).Normalize()
	return &p, nil
}

func (r *SQLiteRepository) CreatePurchase(ctx context.Context, p core.Purchase) (core.Purchase, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO purchases (date, store_id, total_cents, payment_method) VALUES (?, ?, ?, ?)`,
		p.Date.Format(dateLayout), p.StoreID, p.Total.Cents, string(p.Payment.Normalize()))
	if err != nil {
		return core.Purchase{}, fmt.Errorf("insert purchase: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return core.Purchase{}, fmt.Errorf("last insert id: %w", err)
	}
	return r.GetPurchase(ctx, id)
}

func (r *SQLiteRepository) GetPurchase(ctx context.Context, id int64) (core.Purchase, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+purchaseCols+` FROM purchases WHERE id = ?`, id)
	p, err := scanPurchase(row)
	if err == sql.ErrNoRows {
		return core.Purchase{}, core.ErrNotFound
	}
	if err != nil {
		return core.Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	return *p, nil
}

func (r *SQLiteRepository) ListPurchases(ctx context.Context) ([]core.Purchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+purchaseCols+` FROM purchases ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []core.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

// DeletePurchase removes a purchase and its items. Also used as the
// compensating action when an item insert fails mid-save.
func (r *SQLiteRepository) DeletePurchase(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM purchase_items WHERE purchase_id = ?`, id); err != nil {
		return fmt.Errorf("delete purchase items: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	return nil
}

// recomputeTotal rewrites the parent total from its items so the stored
// total always equals the sum of rounded line totals. Bumps the version
// so a pending sheet export picks up the newer state.
func (r *SQLiteRepository) recomputeTotal(ctx context.Context, purchaseID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE purchases SET total_cents = (
			SELECT COALESCE(SUM(CAST(unit_price_cents * weight + 0.5 AS INTEGER)), 0)
			FROM purchase_items WHERE purchase_id = ?
		), version = version + 1
		WHERE id = ?`, purchaseID, purchaseID)
	if err != nil {
		return fmt.Errorf("recompute purchase total: %w", err)
	}
	return nil
}

// --- Purchase items ---

const itemCols = `id, purchase_id, product_name, brand, category, weight, unit, unit_price_cents, promo, date`

func scanItem(scanner interface{ Scan(...any) error }) (*core.PurchaseItem, error) {
	var i core.PurchaseItem
	var promo int
	var date string
	err := scanner.Scan(&i.ID, &i.PurchaseID, &i.ProductName, &i.Brand, &i.Category,
		&i.Weight, &i.Unit, &i.UnitPrice.Cents, &promo, &date)
	if err != nil {
		return nil, err
	}
	i.Promo = promo != 0
	i.Date = parseDate(date)
	return &i, nil
}

func (r *SQLiteRepository) CreatePurchaseItem(ctx context.Context, i core.PurchaseItem) (core.PurchaseItem, error) {
	if err := i.Validate(); err != nil {
		return core.PurchaseItem{}, err
	}
	promo := 0
	if i.Promo {
		promo = 1
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO purchase_items (purchase_id, product_name, brand, category, weight, unit, unit_price_cents, promo, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.PurchaseID, i.ProductName, i.Brand, i.Category, i.Weight, string(i.Unit),
		i.UnitPrice.Cents, promo, i.Date.Format(dateLayout))
	if err != nil {
		return core.PurchaseItem{}, fmt.Errorf("insert purchase item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return core.PurchaseItem{}, fmt.Errorf("last insert id: %w", err)
	}
	if err := r.recomputeTotal(ctx, i.PurchaseID); err != nil {
		return core.PurchaseItem{}, err
	}
	return r.GetPurchaseItem(ctx, id)
}

func (r *SQLiteRepository) GetPurchaseItem(ctx context.Context, id int64) (core.PurchaseItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemCols+` FROM purchase_items WHERE id = ?`, id)
	i, err := scanItem(row)
	if err == sql.ErrNoRows {
		return core.PurchaseItem{}, core.ErrNotFound
	}
	if err != nil {
		return core.PurchaseItem{}, fmt.Errorf("get purchase item: %w", err)
	}
	return *i, nil
}

func (r *SQLiteRepository) ItemsByPurchase(ctx context.Context, purchaseID int64) ([]core.PurchaseItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM purchase_items WHERE purchase_id = ? ORDER BY id ASC`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("items by purchase: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListAllItems returns the full line-item history, newest first. Aggregation
// engines recompute from this on every call.
func (r *SQLiteRepository) ListAllItems(ctx context.Context) ([]core.PurchaseItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM purchase_items ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *SQLiteRepository) UpdatePurchaseItem(ctx context.Context, i core.PurchaseItem) (core.PurchaseItem, error) {
	if err := i.Validate(); err != nil {
		return core.PurchaseItem{}, err
	}
	promo := 0
	if i.Promo {
		promo = 1
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE purchase_items
		SET product_name = ?, brand = ?, category = ?, weight = ?, unit = ?, unit_price_cents = ?, promo = ?, date = ?
		WHERE id = ?`,
		i.ProductName, i.Brand, i.Category, i.Weight, string(i.Unit),
		i.UnitPrice.Cents, promo, i.Date.Format(dateLayout), i.ID)
	if err != nil {
		return core.PurchaseItem{}, fmt.Errorf("update purchase item: %w", err)
	}
	if err := r.recomputeTotal(ctx, i.PurchaseID); err != nil {
		return core.PurchaseItem{}, err
	}
	return r.GetPurchaseItem(ctx, i.ID)
}

func (r *SQLiteRepository) DeletePurchaseItem(ctx context.Context, id int64) error {
	item, err := r.GetPurchaseItem(ctx, id)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM purchase_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete purchase item: %w", err)
	}
	return r.recomputeTotal(ctx, item.PurchaseID)
}

// SearchItemsByName matches the product name as a case-insensitive
// substring, newest first.
func (r *SQLiteRepository) SearchItemsByName(ctx context.Context, query string) ([]core.PurchaseItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemCols+` FROM purchase_items
		WHERE LOWER(product_name) LIKE '%' || LOWER(?) || '%'
		ORDER BY date DESC, id DESC`, query)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// CheapestItem returns the lowest-priced record for an exact product name
// (case-insensitive) and optional exact brand. Ties resolve to the most
// recent date, then the lowest id. Returns nil when nothing matches.
func (r *SQLiteRepository) CheapestItem(ctx context.Context, productName, brand string) (*core.PurchaseItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+itemCols+` FROM purchase_items
		WHERE LOWER(product_name) = LOWER(?)
		  AND (? = '' OR LOWER(brand) = LOWER(?))
		ORDER BY unit_price_cents ASC, date DESC, id ASC
		LIMIT 1`, productName, brand, brand)
	i, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cheapest item: %w", err)
	}
	return i, nil
}

func collectItems(rows *sql.Rows) ([]core.PurchaseItem, error) {
	var items []core.PurchaseItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase item: %w", err)
		}
		items = append(items, *i)
	}
	return items, rows.Err()
}

// --- Shopping lists ---

const listCols = `id, name, status, created_at`

func scanList(scanner interface{ Scan(...any) error }) (*core.ShoppingList, error) {
	var l core.ShoppingList
	var status, createdAt string
	if err := scanner.Scan(&l.ID, &l.Name, &status, &createdAt); err != nil {
		return nil, err
	}
	l.Status = core.ListStatus(status)
	l.CreatedAt = parseTimestamp(createdAt)
	return &l, nil
}

func (r *SQLiteRepository) CreateShoppingList(ctx context.Context, l core.ShoppingList) (core.ShoppingList, error) {
	if err := l.Validate(); err != nil {
		return core.ShoppingList{}, err
	}
	status := l.Status
	if status == "" {
		status = core.ListActive
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO shopping_lists (name, status) VALUES (?, ?)`, l.Name, string(status))
	if err != nil {
		return core.ShoppingList{}, fmt.Errorf("insert shopping list: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return core.ShoppingList{}, fmt.Errorf("last insert id: %w", err)
	}
	return r.GetShoppingList(ctx, id)
}

func (r *SQLiteRepository) GetShoppingList(ctx context.Context, id int64) (core.ShoppingList, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+listCols+` FROM shopping_lists WHERE id = ?`, id)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return core.ShoppingList{}, core.ErrNotFound
	}
	if err != nil {
		return core.ShoppingList{}, fmt.Errorf("get shopping list: %w", err)
	}
	return *l, nil
}

func (r *SQLiteRepository) ListShoppingLists(ctx context.Context) ([]core.ShoppingList, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listCols+` FROM shopping_lists ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list shopping lists: %w", err)
	}
	defer rows.Close()

	var lists []core.ShoppingList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

// DeleteShoppingList removes a list and cascades to its items.
func (r *SQLiteRepository) DeleteShoppingList(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shopping_list_items WHERE list_id = ?`, id); err != nil {
		return fmt.Errorf("delete shopping list items: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shopping_lists WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete shopping list: %w", err)
	}
	return nil
}

// --- Shopping list items ---

const listItemCols = `id, list_id, product_name, brand, unit, checked, price_cents`

func scanListItem(scanner interface{ Scan(...any) error }) (*core.ShoppingListItem, error) {
	var i core.ShoppingListItem
	var checked int
	err := scanner.Scan(&i.ID, &i.ListID, &i.ProductName, &i.Brand, &i.Unit, &checked, &i.Price.Cents)
	if err != nil {
		return nil, err
	}
	i.Checked = checked != 0
	return &i, nil
}

func (r *SQLiteRepository) CreateListItem(ctx context.Context, i core.ShoppingListItem) (core.ShoppingListItem, error) {
	if i.ProductName == "" {
		return core.ShoppingListItem{}, core.ErrEmptyProduct
	}
	unit := i.Unit
	if unit == "" {
		unit = core.UnitPiece
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO shopping_list_items (list_id, product_name, brand, unit, checked, price_cents)
		VALUES (?, ?, ?, ?, 0, 0)`,
		i.ListID, i.ProductName, i.Brand, string(unit))
	if err != nil {
		return core.ShoppingListItem{}, fmt.Errorf("insert list item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return core.ShoppingListItem{}, fmt.Errorf("last insert id: %w", err)
	}
	return r.GetListItem(ctx, id)
}

func (r *SQLiteRepository) GetListItem(ctx context.Context, id int64) (core.ShoppingListItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+listItemCols+` FROM shopping_list_items WHERE id = ?`, id)
	i, err := scanListItem(row)
	if err == sql.ErrNoRows {
		return core.ShoppingListItem{}, core.ErrNotFound
	}
	if err != nil {
		return core.ShoppingListItem{}, fmt.Errorf("get list item: %w", err)
	}
	return *i, nil
}

func (r *SQLiteRepository) ItemsByList(ctx context.Context, listID int64) ([]core.ShoppingListItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listItemCols+` FROM shopping_list_items WHERE list_id = ? ORDER BY checked ASC, id ASC`, listID)
	if err != nil {
		return nil, fmt.Errorf("items by list: %w", err)
	}
	defer rows.Close()

	var items []core.ShoppingListItem
	for rows.Next() {
		i, err := scanListItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list item: %w", err)
		}
		items = append(items, *i)
	}
	return items, rows.Err()
}

// UpdateListItem rewrites the checked flag together with the in-store
// captured brand and price.
func (r *SQLiteRepository) UpdateListItem(ctx context.Context, i core.ShoppingListItem) (core.ShoppingListItem, error) {
	checked := 0
	if i.Checked {
		checked = 1
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE shopping_list_items
		SET product_name = ?, brand = ?, unit = ?, checked = ?, price_cents = ?
		WHERE id = ?`,
		i.ProductName, i.Brand, string(i.Unit), checked, i.Price.Cents, i.ID)
	if err != nil {
		return core.ShoppingListItem{}, fmt.Errorf("update list item: %w", err)
	}
	return r.GetListItem(ctx, i.ID)
}

func (r *SQLiteRepository) DeleteListItem(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shopping_list_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete list item: %w", err)
	}
	return nil
}

// --- Meal allowances ---

const allowanceCols = `id, month_year, amount_cents`

func scanAllowance(scanner interface{ Scan(...any) error }) (*core.MealAllowance, error) {
	var a core.MealAllowance
	if err := scanner.Scan(&a.ID, &a.MonthKey, &a.Amount.Cents); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAllowance records the credit for one month, replacing any previous
// amount for the same month key.
func (r *SQLiteRepository) UpsertAllowance(ctx context.Context, a core.MealAllowance) (core.MealAllowance, error) {
	if err := a.Validate(); err != nil {
		return core.MealAllowance{}, err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO meal_allowances (month_year, amount_cents) VALUES (?, ?)
		ON CONFLICT(month_year) DO UPDATE SET amount_cents = excluded.amount_cents`,
		a.MonthKey, a.Amount.Cents)
	if err != nil {
		return core.MealAllowance{}, fmt.Errorf("upsert allowance: %w", err)
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+allowanceCols+` FROM meal_allowances WHERE month_year = ?`, a.MonthKey)
	out, err := scanAllowance(row)
	if err != nil {
		return core.MealAllowance{}, fmt.Errorf("get allowance: %w", err)
	}
	return *out, nil
}

func (r *SQLiteRepository) ListAllowances(ctx context.Context) ([]core.MealAllowance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+allowanceCols+` FROM meal_allowances ORDER BY month_year ASC`)
	if err != nil {
		return nil, fmt.Errorf("list allowances: %w", err)
	}
	defer rows.Close()

	var allowances []core.MealAllowance
	for rows.Next() {
		a, err := scanAllowance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan allowance: %w", err)
		}
		allowances = append(allowances, *a)
	}
	return allowances, rows.Err()
}

// --- Sync queue support ---

// PendingSyncPurchase is the minimal payload for sync queue messages.
type PendingSyncPurchase struct {
	ID      int64
	Version int64
}

// PendingSyncPurchases returns purchases not yet exported, oldest first,
// for the worker's backup sweep.
func (r *SQLiteRepository) PendingSyncPurchases(ctx context.Context, limit int) ([]PendingSyncPurchase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version FROM purchases
		WHERE sync_status IN ('pending', 'error')
		ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending sync purchases: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncPurchase
	for rows.Next() {
		var p PendingSyncPurchase
		if err := rows.Scan(&p.ID, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pending purchase: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// SyncVersion returns the current change counter of one purchase.
func (r *SQLiteRepository) SyncVersion(ctx context.Context, id int64) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`SELECT version FROM purchases WHERE id = ?`, id).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("sync version of purchase %d: %w", id, err)
	}
	return version, nil
}

// MarkSynced records a successful export, but only when the exported
// version is still current.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE purchases SET sync_status = 'synced' WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("mark purchase synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE purchases SET sync_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark purchase sync error: %w", err)
	}
	return nil
}
