package domain

import (
	"context"
	"time"
)

// User is a record owned by the collection endpoint. Clients only ever read it.
type User struct {
	ID        int64
	Name      string
	Age       int
	CreatedAt time.Time
}

// NewUser is the payload for creating a user. The server assigns the ID.
type NewUser struct {
	Name string
	Age  int
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetByName returns the oldest user with the given name.
	GetByName(ctx context.Context, name string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
}
