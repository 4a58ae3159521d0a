package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	"github.com/jackc/pgx/v5"
)

type CustomerDirectory struct {
	db DBTX
}

var _ customer.Directory = (*CustomerDirectory)(nil)

func NewCustomerDirectory(db DBTX) *CustomerDirectory {
	return &CustomerDirectory{db: db}
}

func (d *CustomerDirectory) PutUser(ctx context.Context, u customer.User) error {
	_, err := d.db.Exec(ctx, `INSERT INTO users (id, email, name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name`, u.ID, u.Email, u.Name)
	if err != nil {
		return fmt.Errorf("q.UpsertUser: %w", err)
	}
	return nil
}

func (d *CustomerDirectory) PutAddress(ctx context.Context, a customer.Address) error {
	_, err := d.db.Exec(ctx, `INSERT INTO addresses
			(id, user_id, full_name, line1, line2, city, state, postal_code, country, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.UserID, a.FullName, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country, a.Phone)
	if err != nil {
		return fmt.Errorf("q.InsertAddress: %w", err)
	}
	return nil
}

func (d *CustomerDirectory) FindUser(ctx context.Context, userID string) (*customer.User, error) {
	var u customer.User
	err := d.db.QueryRow(ctx, `SELECT id, email, name FROM users WHERE id = $1`, userID).Scan(&u.ID, &u.Email, &u.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("q.GetUser: %w", customer.ErrUserNotFound)
		}
		return nil, fmt.Errorf("q.GetUser: %w", err)
	}
	return &u, nil
}

// FindAddress scopes the lookup to the owner so another user's address reads as missing.
func (d *CustomerDirectory) FindAddress(ctx context.Context, userID, addressID string) (*customer.Address, error) {
	var a customer.Address
	err := d.db.QueryRow(ctx, `SELECT id, user_id, full_name, line1, line2, city, state, postal_code, country, phone
		FROM addresses WHERE id = $1 AND user_id = $2`, addressID, userID).
		Scan(&a.ID, &a.UserID, &a.FullName, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country, &a.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("q.GetAddress: %w", customer.ErrAddressNotFound)
		}
		return nil, fmt.Errorf("q.GetAddress: %w", err)
	}
	return &a, nil
}
