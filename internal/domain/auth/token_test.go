package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("super-secret1")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "super-secret1"))
	assert.Error(t, CheckPassword(hash, "wrong"))
}

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", RoleID: "r1", RoleName: RoleHRManager, UserType: UserTypeStaff, EmployeeID: "e1", SessionID: "s1"}

	token, err := GenerateToken(secret, claims, time.Hour)
	require.NoError(t, err)

	parsed, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, UserContext{UserID: "u1", RoleID: "r1", RoleName: RoleHRManager, UserType: UserTypeStaff, EmployeeID: "e1", SessionID: "s1"}, parsed.UserContext())

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestParseExpiredToken(t *testing.T) {
	token, err := GenerateToken("s", Claims{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("s", token)
	assert.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid password", password: "Stronger123"},
		{name: "lowercase with digit", password: "longpassword1"},
		{name: "too short", password: "S1hort", wantErr: true},
		{name: "missing digit", password: "LongPassword", wantErr: true},
		{name: "missing letter", password: "1234567890", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrWeakPassword)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOpaqueTokenHashing(t *testing.T) {
	a, err := NewOpaqueToken()
	require.NoError(t, err)
	b, err := NewOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, HashToken(a), 64)
	assert.Equal(t, HashToken(a), HashToken(a))
}
