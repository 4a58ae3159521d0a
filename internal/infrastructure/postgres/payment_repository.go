package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/jackc/pgx/v5"
	"golang.org/x/text/currency"
)

const paymentColumns = `id, order_id, intent_id, amount, currency, status, amount_refunded,
	charge_id, receipt_url, card_brand, card_last4, failure_code, failure_message,
	paid_at, created_at, updated_at, version`

type PaymentRepository struct {
	db DBTX
}

var _ domain.Repository = (*PaymentRepository)(nil)

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Insert(ctx context.Context, p *domain.Payment) error {
	if p == nil || p.ID == "" {
		return errors.New("payment id is empty")
	}

	_, err := r.db.Exec(ctx, `INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)`,
		p.ID, p.OrderID, p.IntentID, p.Amount, p.Currency.String(), string(p.Status), p.AmountRefunded,
		p.ChargeID, p.ReceiptURL, p.CardBrand, p.CardLast4, p.FailureCode, p.FailureMessage,
		p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "payments_intent_id_key") {
			return fmt.Errorf("q.InsertPayment: %w", domain.ErrDuplicateIntent)
		}
		if isUniqueViolation(err, "payments_pkey") {
			return fmt.Errorf("q.InsertPayment: %w", domain.ErrConflict)
		}
		return fmt.Errorf("q.InsertPayment: %w", err)
	}

	p.Version = 1
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *PaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE intent_id = $1`, intentID)
}

// ListByOrder returns the order's payments, newest first.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE order_id = $1 ORDER BY created_at DESC, seq DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("q.ListPaymentsByOrder: %w", err)
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanPayment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return out, nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	if p == nil || p.ID == "" {
		return errors.New("payment id is empty")
	}

	tag, err := r.db.Exec(ctx, `UPDATE payments SET
			status = $3, amount_refunded = $4, charge_id = $5, receipt_url = $6, card_brand = $7,
			card_last4 = $8, failure_code = $9, failure_message = $10, paid_at = $11, updated_at = $12,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		p.ID, p.Version, string(p.Status), p.AmountRefunded, p.ChargeID, p.ReceiptURL, p.CardBrand,
		p.CardLast4, p.FailureCode, p.FailureMessage, p.PaidAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("q.UpdatePayment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("q.PaymentExists: %w", err)
		}
		if !exists {
			return fmt.Errorf("q.UpdatePayment: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("q.UpdatePayment: %w", domain.ErrConflict)
	}

	p.Version++
	return nil
}

func (r *PaymentRepository) getOne(ctx context.Context, query, arg string) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("q.GetPayment: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("q.GetPayment: %w", err)
	}
	return p, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p           domain.Payment
		cur, status string
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.IntentID, &p.Amount, &cur, &status, &p.AmountRefunded,
		&p.ChargeID, &p.ReceiptURL, &p.CardBrand, &p.CardLast4, &p.FailureCode, &p.FailureMessage,
		&p.PaidAt, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		return nil, err
	}

	parsed, err := currency.ParseISO(cur)
	if err != nil {
		return nil, fmt.Errorf("currency[%s] is not valid: %w", cur, err)
	}
	p.Currency = parsed
	p.Status = domain.Status(status)
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return &p, nil
}
