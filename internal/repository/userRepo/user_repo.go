package userRepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"spreadsheet-service/internal/model/user"
)

type UserRepo struct {
	conn *pgx.Conn
}

func New(conn *pgx.Conn) *UserRepo {
	return &UserRepo{conn: conn}
}

func (r *UserRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (uint32, error) {
	query := `INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING id`
	var userID uint32
	err := r.conn.QueryRow(ctx, query, username, email, passwordHash).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user and retrieve id: %w", err)
	}
	return userID, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, id uint32) (*user.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE id=$1`
	return r.scanUser(r.conn.QueryRow(ctx, query, id))
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE username=$1`
	return r.scanUser(r.conn.QueryRow(ctx, query, username))
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE email=$1`
	return r.scanUser(r.conn.QueryRow(ctx, query, email))
}

func (r *UserRepo) scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &u, err
}
