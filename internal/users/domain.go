package users

import (
	"errors"
	"time"
)

// User is an account as shown on the admin user list.
type User struct {
	ID        int64
	Username  string
	Email     string
	Role      string
	CreatedAt time.Time
}

var (
	// ErrInvalidRole is returned for roles outside rbac's role set.
	ErrInvalidRole = errors.New("users: invalid role")
	// ErrSelfRoleChange prevents an admin from demoting themselves.
	ErrSelfRoleChange = errors.New("users: cannot change own role")
)
