// internal/database/user.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/unoserve/unoserve/internal/auth"
	"github.com/unoserve/unoserve/internal/models"
)

// ErrDuplicateUsername is returned by CreateAccount when the username is
// already taken.
var ErrDuplicateUsername = errors.New("username already taken")

// ErrInvalidCredentials is returned by Authenticate for an unknown username
// or a wrong password, without distinguishing the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// CreateAccount hashes the password and inserts a fresh account row.
func (s *Store) CreateAccount(ctx context.Context, username, password string) error {
	hash, err := auth.HashPassword(password, auth.Params)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	q := `INSERT INTO users (id, username, password) VALUES ($1, $2, $3)`
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, uuid.New(), username, hash)
		return execErr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetAccount fetches the account record for username. The password hash is
// not included.
func (s *Store) GetAccount(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	q := `SELECT id, username, wins, losses FROM users WHERE username=$1`
	if err := s.pool.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.Wins, &u.Losses); err != nil {
		return nil, fmt.Errorf("fetch user %q: %w", username, err)
	}
	return &u, nil
}

// Authenticate verifies the username/password pair and returns the account
// record on success.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var u models.User
	q := `SELECT id, username, password, wins, losses FROM users WHERE username=$1`
	err := s.pool.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.Password, &u.Wins, &u.Losses)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("fetch user %q: %w", username, err)
	}

	match, err := auth.ComparePasswordAndHash(password, u.Password)
	if err != nil || !match {
		return nil, ErrInvalidCredentials
	}
	u.Password = ""
	return &u, nil
}

// RecordResult increments the win or loss counter for username.
func (s *Store) RecordResult(ctx context.Context, username string, won bool) error {
	q := `UPDATE users SET losses = losses + 1 WHERE username=$1`
	if won {
		q = `UPDATE users SET wins = wins + 1 WHERE username=$1`
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, username)
		return err
	})
}
