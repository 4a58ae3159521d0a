// Package customer holds the read-only views of users and their addresses.
package customer

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound    = errors.New("customer: user not found")
	ErrAddressNotFound = errors.New("customer: address not found")
)

type User struct {
	ID    string
	Email string
	Name  string
}

type Address struct {
	ID         string
	UserID     string
	FullName   string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

type Directory interface {
	FindUser(ctx context.Context, userID string) (*User, error)
	// FindAddress only returns addresses owned by userID.
	FindAddress(ctx context.Context, userID, addressID string) (*Address, error)
}
