package domain

import "context"

// Database defines lifecycle operations for the store behind the collection
// endpoint. Each implementation owns its own migration files.
type Database interface {
	Migrate(ctx context.Context) error
	Users() UserRepository
	Close() error
}
