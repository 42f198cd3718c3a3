package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// User is one operator account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditEntry is one recorded operator action.
type AuditEntry struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Action   string    `json:"action"`
	When     time.Time `json:"when"`
}

// Users persists operator accounts and the audit log in Postgres.
type Users struct {
	db *sql.DB
}

// NewUsers creates the repo.
func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

// GetByUsername returns a user, or (nil, nil) when the username is unknown.
func (r *Users) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at
		FROM users WHERE username = $1
	`, username)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new account.
func (r *Users) Create(ctx context.Context, username, passwordHash string, isAdmin bool) (*User, error) {
	if username == "" {
		return nil, errors.New("username required")
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, is_admin)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, username, passwordHash, isAdmin)
	u := User{Username: username, PasswordHash: passwordHash, IsAdmin: isAdmin}
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetPassword replaces an account's password hash.
func (r *Users) SetPassword(ctx context.Context, username, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, passwordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("user not found")
	}
	return nil
}

// List returns every account ordered by username.
func (r *Users) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Delete removes an account. The primary admin account is protected.
func (r *Users) Delete(ctx context.Context, username string) error {
	if username == "admin" {
		return errors.New("cannot delete the primary admin account")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("user not found")
	}
	return nil
}

// InsertAudit appends one audit entry.
func (r *Users) InsertAudit(ctx context.Context, e AuditEntry) error {
	when := e.When
	if when.IsZero() {
		when = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO logs (user_id, username, action, created_at)
		VALUES ($1, $2, $3, $4)
	`, e.UserID, e.Username, e.Action, when)
	return err
}
