package db

import (
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is an operator account. Passwords are stored as unsalted SHA-256
// hashes for parity with the legacy accounts this system imports; see
// HashPassword.
type User struct {
	ID          int       `json:"id"`
	GUID        string    `json:"guid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// HashPassword returns the hex SHA-256 digest of a password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// CreateUser inserts a new user with a fresh GUID.
func (db *DB) CreateUser(username, password, displayName, role string) (*User, error) {
	user := User{
		GUID:        uuid.NewString(),
		Username:    username,
		DisplayName: displayName,
		Role:        role,
	}

	result, err := db.DB.Exec(`
		INSERT INTO users (guid, username, password_hash, display_name, role)
		VALUES (?, ?, ?, ?, ?)
	`, user.GUID, user.Username, HashPassword(password), user.DisplayName, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	user.ID = int(id)
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(username string) (*User, error) {
	var user User
	var createdAtUnix int64

	err := db.DB.QueryRow(`
		SELECT id, guid, username, display_name, role, created_at
		FROM users
		WHERE username = ?
	`, username).Scan(
		&user.ID,
		&user.GUID,
		&user.Username,
		&user.DisplayName,
		&user.Role,
		&createdAtUnix,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.CreatedAt = time.Unix(createdAtUnix, 0)
	return &user, nil
}

// Authenticate checks a username/password pair and returns the user on
// success.
func (db *DB) Authenticate(username, password string) (*User, error) {
	var storedHash string
	err := db.DB.QueryRow(
		`SELECT password_hash FROM users WHERE username = ?`, username,
	).Scan(&storedHash)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(storedHash), []byte(HashPassword(password))) != 1 {
		return nil, fmt.Errorf("invalid credentials")
	}

	return db.GetUserByUsername(username)
}
