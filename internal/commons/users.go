package commons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Built-in users that always exist and can never be deleted or have their
// permission level altered.
const (
	AdminUser   = "Admin"
	GenericUser = "Generic"
)

// ErrUserNotFound marks lookups for unknown users.
var ErrUserNotFound = errors.New("user not found")

// User is a row in the shared user list.
type User struct {
	Name            string
	Initials        string
	PasswordHash    string
	PermissionLevel int
	Email           string
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// GetUser returns the named user or ErrUserNotFound.
func (s *Store) GetUser(ctx context.Context, name string) (User, error) {
	ctx = ensureContext(ctx)
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT name, initials, password_hash, permission_level, email FROM users WHERE name = ?`, name,
	).Scan(&user.Name, &user.Initials, &user.PasswordHash, &user.PermissionLevel, &user.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, name)
	}
	if err != nil {
		return User{}, fmt.Errorf("query user %s: %w", name, err)
	}
	return user, nil
}

// HasUser reports whether the named user exists.
func (s *Store) HasUser(ctx context.Context, name string) (bool, error) {
	_, err := s.GetUser(ctx, name)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Users returns all users ordered by name.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, initials, password_hash, permission_level, email FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.Name, &user.Initials, &user.PasswordHash, &user.PermissionLevel, &user.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateUser inserts a new user row. The caller is responsible for the
// permission gate; the store only enforces uniqueness.
func (s *Store) CreateUser(ctx context.Context, user User) error {
	res, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO users (name, initials, password_hash, permission_level, email)
         VALUES (?, ?, ?, ?, ?)`,
		user.Name, user.Initials, user.PasswordHash, user.PermissionLevel, user.Email)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", user.Name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %s already exists", user.Name)
	}
	return nil
}

// DeleteUser removes the named user. Built-in users are protected upstream;
// this method refuses them too as a safety net.
func (s *Store) DeleteUser(ctx context.Context, name string) error {
	if name == AdminUser || name == GenericUser {
		return fmt.Errorf("built-in user %s cannot be deleted", name)
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM users WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, name)
	}
	return nil
}

// SetPermissionLevel updates a user's permission level. Built-in users are
// rejected here as well as at the gate above.
func (s *Store) SetPermissionLevel(ctx context.Context, name string, level int) error {
	if name == AdminUser || name == GenericUser {
		return fmt.Errorf("permission level of built-in user %s cannot be altered", name)
	}
	res, err := s.execWithRetry(ctx, `UPDATE users SET permission_level = ? WHERE name = ?`, level, name)
	if err != nil {
		return fmt.Errorf("update permission level for %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, name)
	}
	return nil
}

// SetPasswordHash replaces a user's stored password hash.
func (s *Store) SetPasswordHash(ctx context.Context, name, hash string) error {
	res, err := s.execWithRetry(ctx, `UPDATE users SET password_hash = ? WHERE name = ?`, hash, name)
	if err != nil {
		return fmt.Errorf("update password for %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, name)
	}
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
func (s *Store) CheckPassword(ctx context.Context, name, password string) (bool, error) {
	user, err := s.GetUser(ctx, name)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("compare password for %s: %w", name, err)
	}
	return true, nil
}

// PermissionLevel returns the stored permission level for the named user.
func (s *Store) PermissionLevel(ctx context.Context, name string) (int, error) {
	user, err := s.GetUser(ctx, name)
	if err != nil {
		return 0, err
	}
	return user.PermissionLevel, nil
}
