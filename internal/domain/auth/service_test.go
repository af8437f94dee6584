package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolerp/internal/platform/crypto"
	"schoolerp/internal/platform/email"
)

type fakeSession struct {
	userID   string
	hash     string
	previous string
	revoked  bool
}

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*Credentials
	sessions map[string]*fakeSession
	resets   map[string]string
	seq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*Credentials{}, sessions: map[string]*fakeSession{}, resets: map[string]string{}}
}

func (f *fakeStore) addUser(t *testing.T, username, password string, mustChange bool) *Credentials {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	f.seq++
	c := &Credentials{
		User: User{
			ID:                 "u" + string(rune('0'+f.seq)),
			Username:           username,
			Email:              username + "@school.test",
			RoleID:             "role-staff",
			RoleName:           RoleStaff,
			UserType:           UserTypeStaff,
			Status:             UserStatusActive,
			MustChangePassword: mustChange,
		},
		PasswordHash: hash,
	}
	f.users[c.ID] = c
	return c
}

func (f *fakeStore) FindCredentials(_ context.Context, login string) (Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.users {
		if strings.EqualFold(c.Username, login) || strings.EqualFold(c.Email, login) {
			return *c, nil
		}
	}
	return Credentials{}, ErrNotFound
}

func (f *fakeStore) GetUser(_ context.Context, id string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return c.User, nil
}

func (f *fakeStore) MFASecret(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[userID].MFASecret, nil
}

func (f *fakeStore) CreateSession(_ context.Context, userID, refreshHash string, _ time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "s" + string(rune('a'+len(f.sessions)))
	f.sessions[id] = &fakeSession{userID: userID, hash: refreshHash}
	return id, nil
}

func (f *fakeStore) SessionByRefresh(_ context.Context, refreshHash string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.hash == refreshHash && !s.revoked {
			return id, s.userID, nil
		}
	}
	return "", "", ErrSessionInvalid
}

func (f *fakeStore) RotateSession(_ context.Context, sessionID, oldHash, newHash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.revoked || s.hash != oldHash {
		return ErrSessionInvalid
	}
	s.previous, s.hash = oldHash, newHash
	return nil
}

func (f *fakeStore) RevokeReusedRefresh(_ context.Context, refreshHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	revoked := false
	for _, s := range f.sessions {
		if s.previous == refreshHash && !s.revoked {
			s.revoked = true
			revoked = true
		}
	}
	return revoked, nil
}

func (f *fakeStore) RevokeSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok {
		s.revoked = true
	}
	return nil
}

func (f *fakeStore) RevokeUserSessions(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.userID == userID {
			s.revoked = true
		}
	}
	return nil
}

func (f *fakeStore) UpdateLastLogin(context.Context, string) error { return nil }

func (f *fakeStore) SetPassword(_ context.Context, userID, hash string, mustChange bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID].PasswordHash = hash
	f.users[userID].MustChangePassword = mustChange
	return nil
}

func (f *fakeStore) SetMFASecret(_ context.Context, userID, sealed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID].MFASecret = sealed
	f.users[userID].MFAEnabled = false
	return nil
}

func (f *fakeStore) SetMFAEnabled(_ context.Context, userID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID].MFAEnabled = enabled
	return nil
}

func (f *fakeStore) UserIDByEmail(_ context.Context, addr string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.users {
		if strings.EqualFold(c.Email, addr) {
			return id, nil
		}
	}
	return "", ErrNotFound
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID, tokenHash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[tokenHash] = userID
	return nil
}

func (f *fakeStore) ConsumePasswordReset(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.resets[tokenHash]
	if !ok {
		return "", ErrInvalidResetToken
	}
	delete(f.resets, tokenHash)
	return userID, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, userID string, in ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	u.FirstName, u.LastName, u.Email, u.Phone, u.Address = in.FirstName, in.LastName, in.Email, in.Phone, in.Address
	return nil
}

func (f *fakeStore) RoleIDByName(_ context.Context, name string) (string, error) {
	if _, ok := RolePermissions[name]; !ok {
		return "", ErrUnknownRole
	}
	return "role-" + strings.ToLower(name), nil
}

func (f *fakeStore) CreateUser(_ context.Context, in NewUser, roleID, passwordHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.users {
		if c.Username == in.Username {
			return "", ErrConflict
		}
	}
	f.seq++
	id := "u" + string(rune('0'+f.seq))
	f.users[id] = &Credentials{
		User:         User{ID: id, Username: in.Username, Email: in.Email, RoleID: roleID, RoleName: in.Role, UserType: in.UserType, Status: UserStatusActive, MustChangePassword: true},
		PasswordHash: passwordHash,
	}
	return id, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id string, in UserUpdate, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Email, u.RoleID, u.RoleName, u.Status = in.Email, roleID, in.Role, in.Status
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) ListUsers(_ context.Context, filter UserFilter) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []User
	for _, c := range f.users {
		if filter.UserType == "" || c.UserType == filter.UserType {
			out = append(out, c.User)
		}
	}
	return out, nil
}

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestService(t *testing.T, store *fakeStore) (*Service, *email.NoopMailer) {
	t.Helper()
	cryptoSvc, err := crypto.New(testKey)
	require.NoError(t, err)
	mailer := &email.NoopMailer{}
	return NewService(store, cryptoSvc, mailer, Options{Secret: "test-secret", ResetURL: "https://erp.school.test"}), mailer
}

func TestLoginIssuesTokensAndFlagsFirstLogin(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(t, "jdoe", "Initial123", true)
	svc, _ := newTestService(t, store)

	res, err := svc.Login(context.Background(), LoginInput{Login: "JDOE", Password: "Initial123"})
	require.NoError(t, err)
	assert.True(t, res.MustChangePassword)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, 900, res.ExpiresIn)

	claims, err := ParseToken("test-secret", res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.NotEmpty(t, claims.SessionID)

	_, err = svc.Login(context.Background(), LoginInput{Login: "jdoe", Password: "nope12345"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), LoginInput{Login: "ghost", Password: "Initial123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsDisabledUser(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(t, "gone", "Initial123", false)
	user.Status = UserStatusDisabled
	svc, _ := newTestService(t, store)

	_, err := svc.Login(context.Background(), LoginInput{Login: "gone", Password: "Initial123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestFirstLoginFlow(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(t, "lecturer1", "Initial123", true)
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	assert.ErrorIs(t, svc.CompleteFirstLogin(ctx, user.ID, "short"), ErrWeakPassword)
	require.NoError(t, svc.CompleteFirstLogin(ctx, user.ID, "Brandnew456"))
	assert.ErrorIs(t, svc.CompleteFirstLogin(ctx, user.ID, "Another789"), ErrSetupNotRequired)

	res, err := svc.Login(ctx, LoginInput{Login: "lecturer1", Password: "Brandnew456"})
	require.NoError(t, err)
	assert.False(t, res.MustChangePassword)
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(t, "staff1", "Current123", false)
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "Wrong12345", "Next12345"), ErrWrongPassword)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "Current123", "Next12345"))
	_, err := svc.Login(ctx, LoginInput{Login: "staff1", Password: "Next12345"})
	assert.NoError(t, err)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	store := newFakeStore()
	store.addUser(t, "staff2", "Current123", false)
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.Login(ctx, LoginInput{Login: "staff2", Password: "Current123"})
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	claims, err := ParseToken("test-secret", second.AccessToken)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, claims.SessionID))
	_, err = svc.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestRefreshReuseRevokesSession(t *testing.T) {
	store := newFakeStore()
	store.addUser(t, "staff3", "Current123", false)
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.Login(ctx, LoginInput{Login: "staff3", Password: "Current123"})
	require.NoError(t, err)
	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = svc.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestConcurrentRefreshMintsOneToken(t *testing.T) {
	store := newFakeStore()
	store.addUser(t, "staff4", "Current123", false)
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.Login(ctx, LoginInput{Login: "staff4", Password: "Current123"})
	require.NoError(t, err)

	const attempts = 5
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(ctx, first.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSessionInvalid)
	}
	assert.Equal(t, 1, succeeded)
}

func TestMFAEnrollmentAndLogin(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(t, "hr1", "Current123", false)
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	setup, err := svc.SetupMFA(ctx, UserContext{UserID: user.ID})
	require.NoError(t, err)
	assert.NotEqual(t, setup.Secret, store.users[user.ID].MFASecret)

	assert.ErrorIs(t, svc.SetMFA(ctx, user.ID, "000000", true), ErrMFAInvalid)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.SetMFA(ctx, user.ID, code, true))

	_, err = svc.Login(ctx, LoginInput{Login: "hr1", Password: "Current123"})
	assert.ErrorIs(t, err, ErrMFARequired)
	_, err = svc.Login(ctx, LoginInput{Login: "hr1", Password: "Current123", OTP: "123"})
	assert.ErrorIs(t, err, ErrMFAInvalid)
	_, err = svc.Login(ctx, LoginInput{Login: "hr1", Password: "Current123", OTP: code})
	assert.NoError(t, err)
}

func TestMFAUnavailableWithoutKey(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(t, "hr2", "Current123", false)
	svc := NewService(store, nil, nil, Options{Secret: "s"})

	_, err := svc.SetupMFA(context.Background(), UserContext{UserID: user.ID})
	assert.ErrorIs(t, err, ErrMFAUnavailable)
}

func TestPasswordResetFlow(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(t, "bursar", "Current123", false)
	svc, mailer := newTestService(t, store)
	ctx := context.Background()

	svc.RequestPasswordReset(ctx, "nobody@school.test")
	assert.Empty(t, mailer.Sent())

	svc.RequestPasswordReset(ctx, user.Email)
	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, user.Email, sent[0].To)

	idx := strings.Index(sent[0].Body, "token=")
	require.Positive(t, idx)
	token := strings.Fields(sent[0].Body[idx+len("token="):])[0]

	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "weak"), ErrWeakPassword)
	require.NoError(t, svc.ResetPassword(ctx, token, "Recovered123"))
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "Recovered456"), ErrInvalidResetToken)

	_, err := svc.Login(ctx, LoginInput{Login: "bursar", Password: "Recovered123"})
	assert.NoError(t, err)
}

func TestCreateUserRequiresKnownRoleAndStrongPassword(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, NewUser{Username: "stud1", Email: "s@school.test", Password: "short", UserType: UserTypeStudent, Role: RoleStudent})
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.CreateUser(ctx, NewUser{Username: "stud1", Email: "s@school.test", Password: "Student123", UserType: UserTypeStudent, Role: "Janitor"})
	assert.ErrorIs(t, err, ErrUnknownRole)

	user, err := svc.CreateUser(ctx, NewUser{Username: "stud1", Email: "s@school.test", Password: "Student123", UserType: UserTypeStudent, Role: RoleStudent})
	require.NoError(t, err)
	assert.True(t, user.MustChangePassword)

	_, err = svc.CreateUser(ctx, NewUser{Username: "stud1", Email: "t@school.test", Password: "Student123", UserType: UserTypeStudent, Role: RoleStudent})
	assert.ErrorIs(t, err, ErrConflict)

	students, err := svc.ListUsers(ctx, UserFilter{UserType: UserTypeStudent})
	require.NoError(t, err)
	assert.Len(t, students, 1)
}

func TestBuildResetLink(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{name: "empty base url uses default", baseURL: "", want: "http://localhost:8080/reset?token=abc"},
		{name: "custom host", baseURL: "https://erp.school.test", want: "https://erp.school.test/reset?token=abc"},
		{name: "already ends with reset", baseURL: "https://erp.school.test/reset", want: "https://erp.school.test/reset?token=abc"},
		{name: "custom path", baseURL: "https://erp.school.test/app/", want: "https://erp.school.test/app/reset?token=abc"},
		{name: "invalid base url falls back", baseURL: "not a url", want: "http://localhost:8080/reset?token=abc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, buildResetLink(tc.baseURL, "abc"))
		})
	}
}

func TestBuildResetEmailMessage(t *testing.T) {
	msg := buildResetEmailMessage("https://erp.school.test/reset?token=abc", 2*time.Hour)
	assert.Contains(t, msg, "https://erp.school.test/reset?token=abc")
	assert.Contains(t, msg, "expires in 2 hour(s)")
}
