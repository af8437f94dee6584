package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"schoolerp/internal/platform/crypto"
	"schoolerp/internal/platform/email"
)

const defaultResetBase = "http://localhost:8080"

// StoreAPI is the persistence surface the service needs; Store implements it.
type StoreAPI interface {
	FindCredentials(ctx context.Context, login string) (Credentials, error)
	GetUser(ctx context.Context, id string) (User, error)
	MFASecret(ctx context.Context, userID string) (string, error)
	CreateSession(ctx context.Context, userID, refreshHash string, expires time.Time) (string, error)
	SessionByRefresh(ctx context.Context, refreshHash string) (string, string, error)
	RotateSession(ctx context.Context, sessionID, oldHash, newHash string, expires time.Time) error
	RevokeReusedRefresh(ctx context.Context, refreshHash string) (bool, error)
	RevokeSession(ctx context.Context, sessionID string) error
	RevokeUserSessions(ctx context.Context, userID string) error
	UpdateLastLogin(ctx context.Context, userID string) error
	SetPassword(ctx context.Context, userID, hash string, mustChange bool) error
	SetMFASecret(ctx context.Context, userID, sealed string) error
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
	UserIDByEmail(ctx context.Context, email string) (string, error)
	CreatePasswordReset(ctx context.Context, userID, tokenHash string, expires time.Time) error
	ConsumePasswordReset(ctx context.Context, tokenHash string) (string, error)
	UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) error
	RoleIDByName(ctx context.Context, name string) (string, error)
	CreateUser(ctx context.Context, in NewUser, roleID, passwordHash string) (string, error)
	UpdateUser(ctx context.Context, id string, in UserUpdate, roleID string) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
}

type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	ResetURL   string
	Issuer     string
}

type Service struct {
	Store  StoreAPI
	Crypto *crypto.Service
	Mailer email.Mailer
	opts   Options
}

func NewService(store StoreAPI, cryptoSvc *crypto.Service, mailer email.Mailer, opts Options) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 2 * time.Hour
	}
	if opts.Issuer == "" {
		opts.Issuer = "SchoolERP"
	}
	return &Service{Store: store, Crypto: cryptoSvc, Mailer: mailer, opts: opts}
}

func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	creds, err := s.Store.FindCredentials(ctx, in.Login)
	if errors.Is(err, ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if creds.Status != UserStatusActive || CheckPassword(creds.PasswordHash, in.Password) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if creds.MFAEnabled {
		if strings.TrimSpace(in.OTP) == "" {
			return LoginResult{}, ErrMFARequired
		}
		secret, err := s.Crypto.OpenString(creds.MFASecret)
		if err != nil || secret == "" || !totp.Validate(in.OTP, secret) {
			return LoginResult{}, ErrMFAInvalid
		}
	}

	result, err := s.issue(ctx, creds.User)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.Store.UpdateLastLogin(ctx, creds.ID); err != nil {
		slog.Warn("update last_login failed", "userId", creds.ID, "err", err)
	}
	return result, nil
}

func (s *Service) issue(ctx context.Context, user User) (LoginResult, error) {
	refresh, err := NewOpaqueToken()
	if err != nil {
		return LoginResult{}, err
	}
	sessionID, err := s.Store.CreateSession(ctx, user.ID, HashToken(refresh), time.Now().Add(s.opts.RefreshTTL))
	if err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}
	access, err := s.accessToken(user, sessionID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		AccessToken:        access,
		RefreshToken:       refresh,
		ExpiresIn:          int(s.opts.AccessTTL.Seconds()),
		MustChangePassword: user.MustChangePassword,
		User:               user,
	}, nil
}

func (s *Service) accessToken(user User, sessionID string) (string, error) {
	claims := Claims{
		UserID:    user.ID,
		RoleID:    user.RoleID,
		RoleName:  user.RoleName,
		UserType:  user.UserType,
		SessionID: sessionID,
	}
	if user.EmployeeID != nil {
		claims.EmployeeID = *user.EmployeeID
	}
	return GenerateToken(s.opts.Secret, claims, s.opts.AccessTTL)
}

// Refresh rotates the refresh token and issues a new access token for the
// same session. Presenting a refresh token that was already rotated revokes
// the session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return LoginResult{}, ErrSessionInvalid
	}
	presented := HashToken(refreshToken)
	sessionID, userID, err := s.Store.SessionByRefresh(ctx, presented)
	if errors.Is(err, ErrSessionInvalid) {
		s.revokeReused(ctx, presented)
		return LoginResult{}, err
	}
	if err != nil {
		return LoginResult{}, err
	}
	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return LoginResult{}, err
	}
	if user.Status != UserStatusActive {
		return LoginResult{}, ErrSessionInvalid
	}
	next, err := NewOpaqueToken()
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.Store.RotateSession(ctx, sessionID, presented, HashToken(next), time.Now().Add(s.opts.RefreshTTL)); err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			s.revokeReused(ctx, presented)
		}
		return LoginResult{}, err
	}
	access, err := s.accessToken(user, sessionID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		AccessToken:        access,
		RefreshToken:       next,
		ExpiresIn:          int(s.opts.AccessTTL.Seconds()),
		MustChangePassword: user.MustChangePassword,
		User:               user,
	}, nil
}

func (s *Service) revokeReused(ctx context.Context, refreshHash string) {
	revoked, err := s.Store.RevokeReusedRefresh(ctx, refreshHash)
	if err != nil {
		slog.Warn("refresh reuse revoke failed", "err", err)
		return
	}
	if revoked {
		slog.Warn("refresh token reused, session revoked")
	}
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.Store.RevokeSession(ctx, sessionID)
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	return s.Store.GetUser(ctx, userID)
}

// CompleteFirstLogin replaces the initial password of an account that was
// created with must_change_password set.
func (s *Service) CompleteFirstLogin(ctx context.Context, userID, newPassword string) error {
	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MustChangePassword {
		return ErrSetupNotRequired
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Store.SetPassword(ctx, userID, hash, false)
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	creds, err := s.Store.FindCredentials(ctx, user.Username)
	if err != nil {
		return err
	}
	if CheckPassword(creds.PasswordHash, current) != nil {
		return ErrWrongPassword
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.Store.SetPassword(ctx, userID, hash, false)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (User, error) {
	if err := s.Store.UpdateProfile(ctx, userID, in); err != nil {
		return User{}, err
	}
	return s.Store.GetUser(ctx, userID)
}

func (s *Service) SetupMFA(ctx context.Context, user UserContext) (MFASetup, error) {
	if !s.Crypto.Configured() {
		return MFASetup{}, ErrMFAUnavailable
	}
	account, err := s.Store.GetUser(ctx, user.UserID)
	if err != nil {
		return MFASetup{}, err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.opts.Issuer,
		AccountName: account.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return MFASetup{}, fmt.Errorf("generate mfa secret: %w", err)
	}
	sealed, err := s.Crypto.SealString(key.Secret())
	if err != nil {
		return MFASetup{}, err
	}
	if err := s.Store.SetMFASecret(ctx, user.UserID, sealed); err != nil {
		return MFASetup{}, err
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// SetMFA turns the second factor on or off after verifying a current code.
func (s *Service) SetMFA(ctx context.Context, userID, code string, enabled bool) error {
	if !s.Crypto.Configured() {
		return ErrMFAUnavailable
	}
	sealed, err := s.Store.MFASecret(ctx, userID)
	if err != nil {
		return err
	}
	if sealed == "" {
		return ErrMFANotSetUp
	}
	secret, err := s.Crypto.OpenString(sealed)
	if err != nil {
		return ErrMFANotSetUp
	}
	if !totp.Validate(code, secret) {
		return ErrMFAInvalid
	}
	return s.Store.SetMFAEnabled(ctx, userID, enabled)
}

// RequestPasswordReset never reports whether the email exists.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) {
	userID, err := s.Store.UserIDByEmail(ctx, emailAddr)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("password reset lookup failed", "err", err)
		}
		return
	}
	token, err := NewOpaqueToken()
	if err != nil {
		slog.Warn("password reset token generation failed", "userId", userID, "err", err)
		return
	}
	if err := s.Store.CreatePasswordReset(ctx, userID, HashToken(token), time.Now().Add(s.opts.ResetTTL)); err != nil {
		slog.Warn("password reset insert failed", "userId", userID, "err", err)
		return
	}
	if s.Mailer == nil {
		return
	}
	link := buildResetLink(s.opts.ResetURL, token)
	msg := email.Message{
		To:      strings.TrimSpace(emailAddr),
		Subject: "Password reset",
		Body:    buildResetEmailMessage(link, s.opts.ResetTTL),
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		slog.Warn("password reset email failed", "userId", userID, "err", err)
	}
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	userID, err := s.Store.ConsumePasswordReset(ctx, HashToken(strings.TrimSpace(token)))
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Store.SetPassword(ctx, userID, hash, false); err != nil {
		return err
	}
	if err := s.Store.RevokeUserSessions(ctx, userID); err != nil {
		slog.Warn("revoke sessions after reset failed", "userId", userID, "err", err)
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.Store.ListUsers(ctx, filter)
}

// CreateUser adds a staff, lecturer or student account. The account must
// change its password on first login.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (User, error) {
	if err := ValidatePassword(in.Password); err != nil {
		return User{}, err
	}
	roleID, err := s.Store.RoleIDByName(ctx, in.Role)
	if err != nil {
		return User{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	id, err := s.Store.CreateUser(ctx, in, roleID, hash)
	if err != nil {
		return User{}, err
	}
	return s.Store.GetUser(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, id string, in UserUpdate) (User, error) {
	roleID, err := s.Store.RoleIDByName(ctx, in.Role)
	if err != nil {
		return User{}, err
	}
	if err := s.Store.UpdateUser(ctx, id, in, roleID); err != nil {
		return User{}, err
	}
	if in.Status == UserStatusDisabled {
		if err := s.Store.RevokeUserSessions(ctx, id); err != nil {
			slog.Warn("revoke sessions for disabled user failed", "userId", id, "err", err)
		}
	}
	return s.Store.GetUser(ctx, id)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.Store.DeleteUser(ctx, id)
}

func buildResetLink(baseURL, token string) string {
	base := strings.TrimSpace(baseURL)
	parsed, err := url.Parse(base)
	if base == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
		parsed, _ = url.Parse(defaultResetBase)
	}
	if !strings.HasSuffix(parsed.Path, "/reset") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/reset"
	}
	query := parsed.Query()
	query.Set("token", token)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func buildResetEmailMessage(link string, ttl time.Duration) string {
	hours := int(ttl.Hours())
	if hours < 1 {
		hours = 1
	}
	return fmt.Sprintf("A password reset was requested for your account.\n\nOpen the link below to choose a new password:\n%s\n\nThe link expires in %d hour(s). If you did not request this, ignore this email.\n", link, hours)
}
