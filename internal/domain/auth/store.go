package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"schoolerp/internal/platform/querier"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const userColumns = `
	u.id, u.username, u.email, u.first_name, u.last_name, u.phone, u.address,
	u.user_type, u.role_id, r.name, u.employee_id, u.status,
	u.must_change_password, u.mfa_enabled, u.last_login, u.created_at`

func scanUser(row pgx.Row, extra ...any) (User, error) {
	var u User
	dest := []any{
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.Address,
		&u.UserType, &u.RoleID, &u.RoleName, &u.EmployeeID, &u.Status,
		&u.MustChangePassword, &u.MFAEnabled, &u.LastLogin, &u.CreatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) FindCredentials(ctx context.Context, login string) (Credentials, error) {
	var c Credentials
	user, err := scanUser(s.DB.QueryRow(ctx, `
		SELECT`+userColumns+`, u.password_hash, u.mfa_secret
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE lower(u.username) = lower($1) OR lower(u.email) = lower($1)
		LIMIT 1
	`, strings.TrimSpace(login)), &c.PasswordHash, &c.MFASecret)
	if err != nil {
		return Credentials{}, err
	}
	c.User = user
	return c, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1
	`, id))
}

func (s *Store) MFASecret(ctx context.Context, userID string) (string, error) {
	var secret string
	err := s.DB.QueryRow(ctx, "SELECT mfa_secret FROM users WHERE id = $1", userID).Scan(&secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return secret, err
}

func (s *Store) CreateSession(ctx context.Context, userID, refreshHash string, expires time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO sessions (user_id, refresh_token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, userID, refreshHash, expires).Scan(&id)
	return id, err
}

// SessionByRefresh returns the active session holding refreshHash.
func (s *Store) SessionByRefresh(ctx context.Context, refreshHash string) (string, string, error) {
	var sessionID, userID string
	err := s.DB.QueryRow(ctx, `
		SELECT id, user_id
		FROM sessions
		WHERE refresh_token = $1 AND expires_at > now() AND revoked_at IS NULL
	`, refreshHash).Scan(&sessionID, &userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrSessionInvalid
	}
	return sessionID, userID, err
}

func (s *Store) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	var active bool
	err := s.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions WHERE id = $1 AND expires_at > now() AND revoked_at IS NULL
		)
	`, sessionID).Scan(&active)
	return active, err
}

// RotateSession swaps oldHash for newHash. It fails with ErrSessionInvalid
// when another refresh already consumed oldHash.
func (s *Store) RotateSession(ctx context.Context, sessionID, oldHash, newHash string, expires time.Time) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE sessions
		SET refresh_token = $1, previous_refresh_token = $2, expires_at = $3, rotated_at = now()
		WHERE id = $4 AND refresh_token = $2 AND revoked_at IS NULL
	`, newHash, oldHash, expires, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionInvalid
	}
	return nil
}

// RevokeReusedRefresh revokes the session whose already rotated refresh token
// matches refreshHash and reports whether one was found.
func (s *Store) RevokeReusedRefresh(ctx context.Context, refreshHash string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE previous_refresh_token = $1 AND revoked_at IS NULL
	`, refreshHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL", sessionID)
	return err
}

func (s *Store) RevokeUserSessions(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL", userID)
	return err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) SetPassword(ctx context.Context, userID, hash string, mustChange bool) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE users SET password_hash = $1, must_change_password = $2, updated_at = now()
		WHERE id = $3
	`, hash, mustChange, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetMFASecret(ctx context.Context, userID, sealed string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_secret = $1, mfa_enabled = false WHERE id = $2", sealed, userID)
	return err
}

func (s *Store) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_enabled = $1 WHERE id = $2", enabled, userID)
	return err
}

func (s *Store) UserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id FROM users WHERE lower(email) = lower($1) AND status = $2", strings.TrimSpace(email), UserStatusActive).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

func (s *Store) CreatePasswordReset(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, "INSERT INTO password_resets (user_id, token, expires_at) VALUES ($1, $2, $3)", userID, tokenHash, expires)
	return err
}

// ConsumePasswordReset marks the token used and returns its user. A token can
// be consumed once.
func (s *Store) ConsumePasswordReset(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.DB.QueryRow(ctx, `
		UPDATE password_resets SET used_at = now()
		WHERE token = $1 AND expires_at > now() AND used_at IS NULL
		RETURNING user_id
	`, tokenHash).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidResetToken
	}
	return userID, err
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE users
		SET first_name = $1, last_name = $2, email = $3, phone = $4, address = $5, updated_at = now()
		WHERE id = $6
	`, in.FirstName, in.LastName, strings.TrimSpace(in.Email), in.Phone, in.Address, userID)
	if querier.IsUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) RoleIDByName(ctx context.Context, name string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id FROM roles WHERE name = $1", name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUnknownRole
	}
	return id, err
}

func (s *Store) CreateUser(ctx context.Context, in NewUser, roleID, passwordHash string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name, phone, address,
			user_type, role_id, employee_id, must_change_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true)
		RETURNING id
	`, in.Username, strings.TrimSpace(in.Email), passwordHash, in.FirstName, in.LastName, in.Phone, in.Address,
		in.UserType, roleID, in.EmployeeID).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

func (s *Store) UpdateUser(ctx context.Context, id string, in UserUpdate, roleID string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE users
		SET email = $1, first_name = $2, last_name = $3, phone = $4, address = $5,
			role_id = $6, status = $7, employee_id = $8, updated_at = now()
		WHERE id = $9
	`, strings.TrimSpace(in.Email), in.FirstName, in.LastName, in.Phone, in.Address, roleID, in.Status, in.EmployeeID, id)
	if querier.IsUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT`+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE ($1 = '' OR u.user_type = $1)
		  AND ($2 = '' OR u.username ILIKE '%' || $2 || '%' OR u.first_name ILIKE '%' || $2 || '%'
		       OR u.last_name ILIKE '%' || $2 || '%' OR u.email ILIKE '%' || $2 || '%')
		ORDER BY u.last_name, u.first_name
		LIMIT $3 OFFSET $4
	`, filter.UserType, filter.Query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		return scanUser(row)
	})
}

func (s *Store) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	var ok bool
	err := s.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM role_permissions rp
			JOIN permissions p ON p.id = rp.permission_id
			WHERE rp.role_id = $1 AND p.key = $2
		)
	`, roleID, permission).Scan(&ok)
	return ok, err
}

func (s *Store) RolePermissions(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT p.key
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.key
	`, roleID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
