package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/store"
)

// UsersRepository provides persistence helpers for user accounts.
type UsersRepository struct {
	q store.Querier
}

const userColumns = `user_id, name, email, password_hash, address, role::text`

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	Name         string
	Email        string
	PasswordHash string
	Address      string
	Role         domain.Role
}

// Create inserts a new user row and returns the stored entity.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	query := fmt.Sprintf(`
        INSERT INTO users (name, email, password_hash, address, role)
        VALUES ($1, $2, $3, $4, $5::text::user_role)
        RETURNING %s
    `, userColumns)

	row := r.q.QueryRow(ctx, query, params.Name, params.Email, params.PasswordHash, params.Address, string(params.Role))
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE user_id = $1`, userColumns)
	return r.getOne(ctx, query, id)
}

// GetByEmail fetches a user by their unique email address.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return r.getOne(ctx, query, email)
}

// GetByIDs returns the users whose ids are listed, keyed by id. Unknown ids are
// simply absent from the map.
func (r *UsersRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.User, error) {
	users := make(map[int64]domain.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE user_id = ANY($1)`, userColumns)
	list, err := r.list(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range list {
		users[u.ID] = u
	}
	return users, nil
}

// Exists reports whether a user with the given id is present.
func (r *UsersRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

// List returns users ordered by id, optionally restricted to one role.
func (r *UsersRepository) List(ctx context.Context, role *domain.Role) ([]domain.User, error) {
	if role != nil {
		query := fmt.Sprintf(`SELECT %s FROM users WHERE role = $1::text::user_role ORDER BY user_id`, userColumns)
		return r.list(ctx, query, string(*role))
	}
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY user_id`, userColumns)
	return r.list(ctx, query)
}

// UpdatePasswordHash replaces the stored hash for a user.
func (r *UsersRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE user_id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UsersRepository) getOne(ctx context.Context, query string, args ...any) (domain.User, error) {
	user, err := scanUser(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (r *UsersRepository) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Address, &role); err != nil {
		return domain.User{}, err
	}
	user.Role = domain.Role(role)
	return user, nil
}
