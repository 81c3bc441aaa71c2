package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/msomdec/user-board/internal/domain"
)

var userColumns = []string{"id", "name", "age", "created_at"}

type userRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Age       int       `db:"age"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{ID: r.ID, Name: r.Name, Age: r.Age, CreatedAt: r.CreatedAt}
}

// UserRepository implements domain.UserRepository using SQLite.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new SQLite-backed UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db.x}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	query, args, err := sq.Insert("users").
		Columns("name", "age", "created_at").
		Values(user.Name, user.Age, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *UserRepository) GetByName(ctx context.Context, name string) (*domain.User, error) {
	return r.getOne(ctx, sq.Eq{"name": name})
}

// List returns every user ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	query, args, err := sq.Select(userColumns...).From("users").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users: %w", err)
	}

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]domain.User, len(rows))
	for i, row := range rows {
		users[i] = row.toDomain()
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("users").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count users: %w", err)
	}

	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *UserRepository) getOne(ctx context.Context, where sq.Eq) (*domain.User, error) {
	query, args, err := sq.Select(userColumns...).
		From("users").
		Where(where).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get user: %w", err)
	}

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user := row.toDomain()
	return &user, nil
}
