// Package auth implements user registration and login on top of the SQLite
// users table, issuing JWTs for the HTTP API.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	pkgauth "github.com/matiasleandrokruk/chatd/pkg/auth"
	"github.com/matiasleandrokruk/chatd/pkg/uuid"
)

// ErrInvalidCredentials is returned by Login when email or password is
// incorrect. A single error for both cases avoids leaking whether an email
// exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailAlreadyExists is returned by Register when the email is taken.
var ErrEmailAlreadyExists = errors.New("email already registered")

// RegisterInput holds the data needed to create a new user.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Result is returned after a successful Register or Login. Token is a signed
// JWT carrying the UserID claim.
type Result struct {
	Token  string
	UserID string
}

// Service defines the authentication business operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*Result, error)
	Login(ctx context.Context, input LoginInput) (*Result, error)
}

// service is the concrete implementation backed by SQLite.
type service struct {
	db *sql.DB
}

// NewService creates a Service backed by the provided DB.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

// Register creates a user and returns a JWT. The password is hashed with
// bcrypt before storage; plaintext is never stored.
func (s *service) Register(ctx context.Context, input RegisterInput) (*Result, error) {
	hash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userID := uuid.NewV7().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name)
		VALUES (?, ?, ?, ?)
	`, userID, input.Email, hash, input.DisplayName)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := pkgauth.GenerateJWT(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}

	return &Result{Token: token, UserID: userID}, nil
}

// Login verifies credentials and returns a JWT. Any failure — unknown email,
// wrong password, query error — returns ErrInvalidCredentials.
func (s *service) Login(ctx context.Context, input LoginInput) (*Result, error) {
	var userID string
	var passwordHash sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash FROM users WHERE email = ? LIMIT 1
	`, input.Email).Scan(&userID, &passwordHash)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !passwordHash.Valid || passwordHash.String == "" {
		return nil, ErrInvalidCredentials
	}

	// Constant-time comparison via bcrypt.
	if !pkgauth.VerifyPassword(passwordHash.String, input.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := pkgauth.GenerateJWT(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}

	return &Result{Token: token, UserID: userID}, nil
}

// isUniqueViolation checks if an SQLite error is a UNIQUE constraint
// violation. SQLite surfaces these in the error message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
