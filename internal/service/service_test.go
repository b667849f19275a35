package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"auth_api/internal/auth"
	"auth_api/internal/models"
	"auth_api/internal/storage"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func newTestService(t *testing.T) (*service, *storage.MemoryStorage) {
	t.Helper()

	st := storage.NewMemoryStorage()
	tokens := auth.NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	lgr := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewService(st, tokens, lgr), st
}

func register(t *testing.T, s *service, email, password, name string) models.AuthResult {
	t.Helper()

	res, err := s.Register(context.Background(), email, password, name)
	require.NoError(t, err)

	return res
}

type failingStorage struct {
	*storage.MemoryStorage
	err error
}

func (f *failingStorage) GetUserByEmail(context.Context, string) (models.User, error) {
	return models.User{}, f.err
}

// --- register / login ---

func TestRegister_ReturnsSanitizedUserAndClaims(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	res := register(t, s, "a@x.com", "secret1", "A")

	assert.Equal(t, "a@x.com", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.True(t, res.User.IsActive)
	assert.Empty(t, res.User.Password)
	assert.Nil(t, res.User.RefreshToken)

	claims, err := s.tokens.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{UserID: res.User.ID, Email: "a@x.com", Role: models.RoleUser}, claims.Identity())

	profile, err := s.GetProfile(ctx, res.User.ID)
	require.NoError(t, err)

	raw, err := json.Marshal(profile)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "password")
	assert.NotContains(t, fields, "refreshToken")
}

func TestRegister_StoresRefreshToken(t *testing.T) {
	s, st := newTestService(t)

	res := register(t, s, "a@x.com", "secret1", "A")

	stored, err := st.GetUserByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, res.RefreshToken, *stored.RefreshToken)
	assert.True(t, auth.VerifyPassword(stored.Password, "secret1"))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	register(t, s, "a@x.com", "secret1", "A")

	_, err := s.Register(ctx, "a@x.com", "other12", "B")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = s.Register(ctx, "  A@X.com ", "other12", "B")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegister_StorageFailurePropagates(t *testing.T) {
	boom := errors.New("connection refused")
	st := &failingStorage{MemoryStorage: storage.NewMemoryStorage(), err: boom}
	tokens := auth.NewTokenIssuer("a", "r", time.Minute, time.Hour)
	s := NewService(st, tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := s.Register(context.Background(), "a@x.com", "secret1", "A")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
}

func TestLogin_EnumerationResistant(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	register(t, s, "a@x.com", "secret1", "A")

	_, wrongPassword := s.Login(ctx, "a@x.com", "wrong")
	_, unknownEmail := s.Login(ctx, "nobody@x.com", "secret1")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLogin_Deactivated(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	res := register(t, s, "a@x.com", "secret1", "A")
	require.NoError(t, st.SetActive(ctx, res.User.ID, false))

	_, err := s.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrAccountDeactivated)
}

func TestScenario_RegisterWrongLoginLogin(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")

	_, err := s.Login(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	login, err := s.Login(ctx, "A@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.NotEqual(t, reg.RefreshToken, login.RefreshToken)
}

// --- refresh / logout ---

func TestRefreshToken_IssuesAccessOnly(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")

	access, err := s.RefreshToken(ctx, reg.RefreshToken)
	require.NoError(t, err)

	claims, err := s.tokens.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	stored, err := st.GetUserByID(ctx, reg.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, reg.RefreshToken, *stored.RefreshToken)
}

func TestRefreshToken_PicksUpRoleChange(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")
	require.NoError(t, s.AssignRole(ctx, reg.User.ID, models.RoleAdmin))

	access, err := s.RefreshToken(ctx, reg.RefreshToken)
	require.NoError(t, err)

	claims, err := s.tokens.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestRefreshToken_RejectedAfterLogout(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")
	require.NoError(t, s.Logout(ctx, reg.User.ID))

	_, err := s.RefreshToken(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshToken_RejectedAfterSecondLogin(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	register(t, s, "a@x.com", "secret1", "A")

	first, err := s.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	second, err := s.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = s.RefreshToken(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = s.RefreshToken(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshToken_Invalid(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "garbage"},
		{name: "access token", token: reg.AccessToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.RefreshToken(ctx, tt.token)
			assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		})
	}

	ghost, err := s.tokens.IssueRefreshToken(models.User{ID: uuid.Must(uuid.NewV4())})
	require.NoError(t, err)
	_, err = s.RefreshToken(ctx, ghost)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogout_Idempotent(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")

	assert.NoError(t, s.Logout(ctx, reg.User.ID))
	assert.NoError(t, s.Logout(ctx, reg.User.ID))
	assert.NoError(t, s.Logout(ctx, uuid.Must(uuid.NewV4())))
}

// --- profile ---

func TestGetProfile_NotFound(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.GetProfile(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfile(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	a := register(t, s, "a@x.com", "secret1", "A")
	register(t, s, "b@x.com", "secret1", "B")

	name := "Alice"
	user, err := s.UpdateProfile(ctx, a.User.ID, models.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "a@x.com", user.Email)

	taken := "B@x.com"
	_, err = s.UpdateProfile(ctx, a.User.ID, models.ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	own := "a@x.com"
	_, err = s.UpdateProfile(ctx, a.User.ID, models.ProfileUpdate{Email: &own})
	assert.NoError(t, err)

	fresh := "New@X.com"
	user, err = s.UpdateProfile(ctx, a.User.ID, models.ProfileUpdate{Email: &fresh})
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", user.Email)
	assert.Equal(t, "Alice", user.Name)

	_, err = s.UpdateProfile(ctx, uuid.Must(uuid.NewV4()), models.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// --- password ---

func TestChangePassword_Incorrect(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")
	before, err := st.GetUserByID(ctx, reg.User.ID)
	require.NoError(t, err)

	err = s.ChangePassword(ctx, reg.User.ID, "wrong", "newsecret")
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	after, err := st.GetUserByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Password, after.Password)
}

func TestChangePassword_RevokesRefreshToken(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")

	require.NoError(t, s.ChangePassword(ctx, reg.User.ID, "secret1", "newsecret"))

	_, err := s.RefreshToken(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = s.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, "a@x.com", "newsecret")
	assert.NoError(t, err)
}

func TestChangePassword_NotFound(t *testing.T) {
	s, _ := newTestService(t)

	err := s.ChangePassword(context.Background(), uuid.Must(uuid.NewV4()), "a", "bbbbbb")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// --- image ---

func TestUpdateImage(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")

	path := "images/users/a.png"
	user, err := s.UpdateImage(ctx, reg.User.ID, &path)
	require.NoError(t, err)
	require.NotNil(t, user.Image)
	assert.Equal(t, path, *user.Image)
	assert.Nil(t, user.RefreshToken)

	user, err = s.UpdateImage(ctx, reg.User.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, user.Image)

	_, err = s.UpdateImage(ctx, uuid.Must(uuid.NewV4()), nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// --- admin ---

func TestAssignRole(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")

	assert.ErrorIs(t, s.AssignRole(ctx, reg.User.ID, "root"), ErrInvalidRole)
	assert.ErrorIs(t, s.AssignRole(ctx, uuid.Must(uuid.NewV4()), models.RoleAdmin), ErrUserNotFound)
	require.NoError(t, s.AssignRole(ctx, reg.User.ID, models.RoleAdmin))

	profile, err := s.GetProfile(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, profile.Role)
}

func TestSetActive_DeactivationRevokesSession(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	reg := register(t, s, "a@x.com", "secret1", "A")

	require.NoError(t, s.SetActive(ctx, reg.User.ID, false))

	_, err := s.RefreshToken(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	require.NoError(t, s.SetActive(ctx, reg.User.ID, true))
	_, err = s.Login(ctx, "a@x.com", "secret1")
	assert.NoError(t, err)

	assert.ErrorIs(t, s.SetActive(ctx, uuid.Must(uuid.NewV4()), true), ErrUserNotFound)
}

func TestListUsers_Sanitized(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	register(t, s, "a@x.com", "secret1", "A")
	register(t, s, "b@x.com", "secret1", "B")

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	for _, u := range users {
		assert.Empty(t, u.Password)
		assert.Nil(t, u.RefreshToken)
	}
}
