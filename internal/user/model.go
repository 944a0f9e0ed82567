package user

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// User is the read-only view of an account the engine needs for delivery.
type User struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
