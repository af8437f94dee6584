package auth

import (
	"errors"
	"time"
)

const (
	UserTypeAdmin    = "admin"
	UserTypeLecturer = "lecturer"
	UserTypeStudent  = "student"
	UserTypeStaff    = "staff"

	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrConflict           = errors.New("username or email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMFARequired        = errors.New("mfa code required")
	ErrMFAInvalid         = errors.New("invalid mfa code")
	ErrMFAUnavailable     = errors.New("mfa requires an encryption key")
	ErrMFANotSetUp        = errors.New("mfa setup required")
	ErrSessionInvalid     = errors.New("session expired or revoked")
	ErrWeakPassword       = errors.New("password must be at least 8 characters and contain a letter and a digit")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSetupNotRequired   = errors.New("first login setup already completed")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrUnknownRole        = errors.New("unknown role")
)

// UserContext is the authenticated caller attached to each request.
type UserContext struct {
	UserID     string
	RoleID     string
	RoleName   string
	UserType   string
	EmployeeID string
	SessionID  string
}

type User struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	Phone              string     `json:"phone"`
	Address            string     `json:"address"`
	UserType           string     `json:"userType"`
	RoleID             string     `json:"roleId"`
	RoleName           string     `json:"role"`
	EmployeeID         *string    `json:"employeeId,omitempty"`
	Status             string     `json:"status"`
	MustChangePassword bool       `json:"mustChangePassword"`
	MFAEnabled         bool       `json:"mfaEnabled"`
	LastLogin          *time.Time `json:"lastLogin,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Credentials is the login view of a user row.
type Credentials struct {
	User
	PasswordHash string
	MFASecret    string
}

type LoginInput struct {
	Login    string
	Password string
	OTP      string
}

type LoginResult struct {
	AccessToken        string `json:"accessToken"`
	RefreshToken       string `json:"refreshToken"`
	ExpiresIn          int    `json:"expiresIn"`
	MustChangePassword bool   `json:"mustChangePassword"`
	User               User   `json:"user"`
}

type ProfileUpdate struct {
	FirstName string `json:"firstName" validate:"notblank,max=100"`
	LastName  string `json:"lastName" validate:"notblank,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"max=40"`
	Address   string `json:"address" validate:"max=255"`
}

type NewUser struct {
	Username   string  `json:"username" validate:"required,alphanum,min=3,max=64"`
	Email      string  `json:"email" validate:"required,email"`
	Password   string  `json:"password" validate:"required"`
	FirstName  string  `json:"firstName" validate:"notblank,max=100"`
	LastName   string  `json:"lastName" validate:"notblank,max=100"`
	Phone      string  `json:"phone" validate:"max=40"`
	Address    string  `json:"address" validate:"max=255"`
	UserType   string  `json:"userType" validate:"required,oneof=admin lecturer student staff"`
	Role       string  `json:"role" validate:"required"`
	EmployeeID *string `json:"employeeId" validate:"omitempty,uuid"`
}

type UserUpdate struct {
	Email      string  `json:"email" validate:"required,email"`
	FirstName  string  `json:"firstName" validate:"notblank,max=100"`
	LastName   string  `json:"lastName" validate:"notblank,max=100"`
	Phone      string  `json:"phone" validate:"max=40"`
	Address    string  `json:"address" validate:"max=255"`
	Role       string  `json:"role" validate:"required"`
	Status     string  `json:"status" validate:"required,oneof=active disabled"`
	EmployeeID *string `json:"employeeId" validate:"omitempty,uuid"`
}

type UserFilter struct {
	UserType string
	Query    string
	Limit    int
	Offset   int
}

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}
