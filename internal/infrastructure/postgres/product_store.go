package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, sku, image_url, brand, price, discount_price, stock, active`

// ProductStore reads the catalog and owns the stock column.
type ProductStore struct {
	db DBTX
}

var (
	_ catalog.Repository = (*ProductStore)(nil)
	_ inventory.Stock    = (*ProductStore)(nil)
)

func NewProductStore(db DBTX) *ProductStore {
	return &ProductStore{db: db}
}

// Put upserts a product; used for seeding.
func (s *ProductStore) Put(ctx context.Context, p catalog.Product) error {
	_, err := s.db.Exec(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, sku = EXCLUDED.sku, image_url = EXCLUDED.image_url, brand = EXCLUDED.brand,
			price = EXCLUDED.price, discount_price = EXCLUDED.discount_price, stock = EXCLUDED.stock,
			active = EXCLUDED.active`,
		p.ID, p.Name, p.SKU, p.ImageURL, p.Brand, p.Price, nullDecimal(p.DiscountPrice), p.Stock, p.Active,
	)
	if err != nil {
		return fmt.Errorf("q.UpsertProduct: %w", err)
	}
	return nil
}

func (s *ProductStore) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("q.GetProduct: %w", catalog.ErrNotFound)
		}
		return nil, fmt.Errorf("q.GetProduct: %w", err)
	}
	return p, nil
}

func (s *ProductStore) FindByIDs(ctx context.Context, ids []string) (map[string]*catalog.Product, error) {
	if len(ids) == 0 {
		return map[string]*catalog.Product{}, nil
	}

	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, lo.Uniq(ids))
	if err != nil {
		return nil, fmt.Errorf("q.GetProducts: %w", err)
	}
	defer rows.Close()

	var products []*catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanProduct: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return lo.KeyBy(products, func(p *catalog.Product) string { return p.ID }), nil
}

// Reserve is one conditional decrement; a short product is left untouched.
func (s *ProductStore) Reserve(ctx context.Context, productID string, qty int) (bool, error) {
	if qty <= 0 {
		return false, inventory.ErrInvalidQuantity
	}

	tag, err := s.db.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("q.ReserveStock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	exists, err := s.exists(ctx, productID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("q.ReserveStock: %w", inventory.ErrNotFound)
	}
	return false, nil
}

func (s *ProductStore) Restore(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return inventory.ErrInvalidQuantity
	}

	tag, err := s.db.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("q.RestoreStock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("q.RestoreStock: %w", inventory.ErrNotFound)
	}
	return nil
}

func (s *ProductStore) exists(ctx context.Context, productID string) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("q.ProductExists: %w", err)
	}
	return exists, nil
}

func scanProduct(row pgx.Row) (*catalog.Product, error) {
	var (
		p        catalog.Product
		discount decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.ImageURL, &p.Brand, &p.Price, &discount, &p.Stock, &p.Active); err != nil {
		return nil, err
	}
	p.DiscountPrice = fromNullDecimal(discount)
	return &p, nil
}
