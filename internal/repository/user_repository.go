package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password and inserts the user, returning the stored row.
func (r *UserRepo) Create(ctx context.Context, email, password, name, role string, cost int) (*model.User, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	now := utils.TruncateTimestamp(time.Now())
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, name, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, r.DB, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, r.DB, "id", id)
}

// GetByIDTx fetches a user by id inside tx.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	return r.getOne(ctx, tx, "id", id)
}

func (r *UserRepo) getOne(ctx context.Context, q querier, column, value string) (*model.User, error) {
	var u model.User
	err := q.QueryRowContext(ctx,
		"SELECT id,email,password_hash,name,role,is_active,created_at,updated_at FROM users WHERE "+column+"=? LIMIT 1",
		value).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	u.CreatedAt = utc(u.CreatedAt)
	u.UpdatedAt = utc(u.UpdatedAt)
	return &u, nil
}

// CountByRole returns the number of users holding role.
func (r *UserRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role=?", role).Scan(&n)
	return n, err
}
