package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const orderColumns = `id, number, user_id, status, payment_status, currency,
	subtotal, tax, shipping, discount, total, amount_refunded,
	ship_full_name, ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_country, ship_phone,
	notes, tracking_number, cancellation_reason, cancelled_by,
	created_at, updated_at, confirmed_at, shipped_at, delivered_at, cancelled_at, paid_at, version`

type OrderRepository struct {
	db DBTX
}

var _ domain.Repository = (*OrderRepository)(nil)

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return errors.New("order id is empty")
	}

	_, err := withTx(ctx, r.db, func(tx pgx.Tx) (struct{}, error) {
		_, err := tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, 1)`,
			o.ID, o.Number, o.UserID, string(o.Status), string(o.PaymentStatus), o.Currency.String(),
			o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total, o.AmountRefunded,
			o.ShippingAddress.FullName, o.ShippingAddress.Line1, o.ShippingAddress.Line2, o.ShippingAddress.City,
			o.ShippingAddress.State, o.ShippingAddress.PostalCode, o.ShippingAddress.Country, o.ShippingAddress.Phone,
			o.Notes, o.TrackingNumber, o.CancellationReason, string(o.CancelledBy),
			o.CreatedAt, o.UpdatedAt, o.ConfirmedAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt, o.PaidAt,
		)
		if err != nil {
			if isUniqueViolation(err, "orders_number_key") {
				return struct{}{}, fmt.Errorf("q.InsertOrder: %w", domain.ErrDuplicateNumber)
			}
			if isUniqueViolation(err, "orders_pkey") {
				return struct{}{}, fmt.Errorf("q.InsertOrder: %w", domain.ErrConflict)
			}
			return struct{}{}, fmt.Errorf("q.InsertOrder: %w", err)
		}

		for i, it := range o.Items {
			_, err := tx.Exec(ctx, `INSERT INTO order_items
				(order_id, line_no, product_id, name, sku, image_url, brand, unit_price, discount_price, quantity, line_total, stock_reserved)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				o.ID, i, it.ProductID, it.Name, it.SKU, it.ImageURL, it.Brand,
				it.UnitPrice, nullDecimal(it.DiscountPrice), it.Quantity, it.LineTotal, it.StockReserved,
			)
			if err != nil {
				return struct{}{}, fmt.Errorf("q.InsertOrderItem: %w", err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	o.Version = 1
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.getBy(ctx, "id", id)
}

func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.getBy(ctx, "number", number)
}

func (r *OrderRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("q.OrderNumberExists: %w", err)
	}
	return exists, nil
}

// Update writes the mutable order fields and the per-line reservation flags when the version still matches.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return errors.New("order id is empty")
	}

	_, err := withTx(ctx, r.db, func(tx pgx.Tx) (struct{}, error) {
		tag, err := tx.Exec(ctx, `UPDATE orders SET
				status = $3, payment_status = $4, amount_refunded = $5,
				tracking_number = $6, cancellation_reason = $7, cancelled_by = $8,
				updated_at = $9, confirmed_at = $10, shipped_at = $11, delivered_at = $12,
				cancelled_at = $13, paid_at = $14, version = version + 1
			WHERE id = $1 AND version = $2`,
			o.ID, o.Version, string(o.Status), string(o.PaymentStatus), o.AmountRefunded,
			o.TrackingNumber, o.CancellationReason, string(o.CancelledBy),
			o.UpdatedAt, o.ConfirmedAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt, o.PaidAt,
		)
		if err != nil {
			return struct{}{}, fmt.Errorf("q.UpdateOrder: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, r.missOrConflict(ctx, tx, o.ID)
		}

		for i, it := range o.Items {
			if _, err := tx.Exec(ctx, `UPDATE order_items SET stock_reserved = $3 WHERE order_id = $1 AND line_no = $2`,
				o.ID, i, it.StockReserved); err != nil {
				return struct{}{}, fmt.Errorf("q.UpdateOrderItem: %w", err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	o.Version++
	return nil
}

func (r *OrderRepository) missOrConflict(ctx context.Context, db DBTX, id string) error {
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("q.OrderExists: %w", err)
	}
	if !exists {
		return fmt.Errorf("q.UpdateOrder: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("q.UpdateOrder: %w", domain.ErrConflict)
}

func (r *OrderRepository) getBy(ctx context.Context, column, value string) (*domain.Order, error) {
	return withTx(ctx, r.db, func(tx pgx.Tx) (*domain.Order, error) {
		row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, value)
		o, err := scanOrder(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("q.GetOrder: %w", domain.ErrNotFound)
			}
			return nil, fmt.Errorf("q.GetOrder: %w", err)
		}

		o.Items, err = loadItems(ctx, tx, o.ID)
		if err != nil {
			return nil, err
		}
		return o, nil
	})
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                     domain.Order
		status, payStatus     string
		cur, cancelledBy      string
		subtotal, tax         decimal.Decimal
		shipping, discount    decimal.Decimal
		total, amountRefunded decimal.Decimal
		addr                  domain.ShippingAddress
		createdAt, updatedAt  time.Time
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &status, &payStatus, &cur,
		&subtotal, &tax, &shipping, &discount, &total, &amountRefunded,
		&addr.FullName, &addr.Line1, &addr.Line2, &addr.City, &addr.State, &addr.PostalCode, &addr.Country, &addr.Phone,
		&o.Notes, &o.TrackingNumber, &o.CancellationReason, &cancelledBy,
		&createdAt, &updatedAt, &o.ConfirmedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt, &o.PaidAt, &o.Version,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := currency.ParseISO(cur)
	if err != nil {
		return nil, fmt.Errorf("currency[%s] is not valid: %w", cur, err)
	}
	if o.Status, err = domain.ToStatus(status); err != nil {
		return nil, fmt.Errorf("status[%s]: %w", status, err)
	}
	if o.PaymentStatus, err = domain.ToPaymentStatus(payStatus); err != nil {
		return nil, fmt.Errorf("payment status[%s]: %w", payStatus, err)
	}

	o.Currency = parsed
	o.CancelledBy = domain.Actor(cancelledBy)
	o.Subtotal, o.Tax, o.Shipping, o.Discount = subtotal, tax, shipping, discount
	o.Total, o.AmountRefunded = total, amountRefunded
	o.ShippingAddress = addr
	o.CreatedAt, o.UpdatedAt = createdAt.UTC(), updatedAt.UTC()
	return &o, nil
}

func loadItems(ctx context.Context, db DBTX, orderID string) ([]domain.Item, error) {
	rows, err := db.Query(ctx, `SELECT product_id, name, sku, image_url, brand, unit_price, discount_price,
			quantity, line_total, stock_reserved
		FROM order_items WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, fmt.Errorf("q.GetOrderItems: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var (
			it       domain.Item
			discount decimal.NullDecimal
		)
		if err := rows.Scan(&it.ProductID, &it.Name, &it.SKU, &it.ImageURL, &it.Brand, &it.UnitPrice, &discount,
			&it.Quantity, &it.LineTotal, &it.StockReserved); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		it.DiscountPrice = fromNullDecimal(discount)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return items, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
