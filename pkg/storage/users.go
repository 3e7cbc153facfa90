package storage

import (
	"database/sql"
	"strings"
	"time"

	apperrors "github.com/Ganeshg1313/askandsay-server/pkg/errors"
)

// User is a registered account. The password hash never leaves this package
// except through GetUserWithPassword for credential checks.
type User struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateUser inserts a new user with the given bcrypt password hash.
// Emails are stored lowercase and trimmed.
func (s *Store) CreateUser(email, passwordHash string) (*User, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "email is required")
	}
	if passwordHash == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "password hash is required")
	}

	id := NewID()
	now := time.Now().UTC()
	_, err := s.db.Exec(`
        INSERT INTO users (id, email, password_hash, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
    `, id, email, passwordHash, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.New(apperrors.ErrCodeConflict, "email has been used before")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "create user")
	}
	return &User{ID: id, Email: email, CreatedAt: now, UpdatedAt: now}, nil
}

// GetUserByEmail returns the user with the given email, or nil when absent.
func (s *Store) GetUserByEmail(email string) (*User, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRow(`SELECT id, email, created_at, updated_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// GetUserByID returns the user with the given id, or nil when absent.
func (s *Store) GetUserByID(id string) (*User, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	row := s.db.QueryRow(`SELECT id, email, created_at, updated_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserWithPassword returns the user and its stored password hash for
// credential verification. Returns nil user when the email is unknown.
func (s *Store) GetUserWithPassword(email string) (*User, string, error) {
	if s == nil || s.db == nil {
		return nil, "", ErrStoreClosed
	}
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRow(`SELECT id, email, password_hash, created_at, updated_at FROM users WHERE email = ?`, email)
	var u User
	var hash string
	if err := row.Scan(&u.ID, &u.Email, &hash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, "", nil
		}
		return nil, "", apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "get user")
	}
	return &u, hash, nil
}

// ListUsersExcept returns all users except the one with the given id.
func (s *Store) ListUsersExcept(userID string) ([]User, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.Query(`
        SELECT id, email, created_at, updated_at FROM users
        WHERE id != ? ORDER BY email
    `, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "list users")
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "scan user")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "get user")
	}
	return &u, nil
}
