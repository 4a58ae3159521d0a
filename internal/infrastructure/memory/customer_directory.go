package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
)

type CustomerDirectory struct {
	mu        sync.RWMutex
	users     map[string]customer.User
	addresses map[string]customer.Address
}

func NewCustomerDirectory() *CustomerDirectory {
	return &CustomerDirectory{
		users:     make(map[string]customer.User),
		addresses: make(map[string]customer.Address),
	}
}

func (d *CustomerDirectory) PutUser(u customer.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *CustomerDirectory) PutAddress(a customer.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addresses[a.ID] = a
}

func (d *CustomerDirectory) FindUser(ctx context.Context, userID string) (*customer.User, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, customer.ErrUserNotFound
	}
	return &u, nil
}

func (d *CustomerDirectory) FindAddress(ctx context.Context, userID, addressID string) (*customer.Address, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, customer.ErrAddressNotFound
	}
	return &a, nil
}
