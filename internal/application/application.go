package application

import (
	"context"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Caller is the authenticated principal on whose behalf a use case runs.
type Caller struct {
	UserID string
	Role   Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// CanAccess reports whether the caller may see a resource owned by ownerID.
func (c Caller) CanAccess(ownerID string) bool {
	return c.IsAdmin() || (c.UserID != "" && c.UserID == ownerID)
}
