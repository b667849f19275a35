package service

import (
	"auth_api/internal/auth"
	"auth_api/internal/models"
	"auth_api/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofrs/uuid"
)

type Service interface {
	Register(ctx context.Context, email, password, name string) (models.AuthResult, error)
	Login(ctx context.Context, email, password string) (models.AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, userID uuid.UUID) error

	GetProfile(ctx context.Context, userID uuid.UUID) (models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (models.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
	UpdateImage(ctx context.Context, userID uuid.UUID, image *string) (models.User, error)

	ListUsers(ctx context.Context) ([]models.User, error)
	AssignRole(ctx context.Context, userID uuid.UUID, role string) error
	SetActive(ctx context.Context, userID uuid.UUID, active bool) error
}

type service struct {
	storage storage.Storage
	tokens  *auth.TokenIssuer
	log     *slog.Logger
}

func NewService(st storage.Storage, tokens *auth.TokenIssuer, lgr *slog.Logger) *service {
	return &service{
		storage: st,
		tokens:  tokens,
		log:     lgr,
	}
}

// NormalizeEmail is applied to every email before lookup or write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Register(ctx context.Context, email, password, name string) (models.AuthResult, error) {
	const op = "service.Register"

	email = NormalizeEmail(email)

	_, err := s.storage.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return models.AuthResult{}, ErrDuplicateEmail
	case !errors.Is(err, storage.ErrUserNotFound):
		return models.AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.CreateUser(ctx, models.NewUser{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEmailExists) {
			return models.AuthResult{}, ErrDuplicateEmail
		}
		return models.AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.startSession(ctx, user)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.String("user_id", user.ID.String()))

	return res, nil
}

func (s *service) Login(ctx context.Context, email, password string) (models.AuthResult, error) {
	const op = "service.Login"

	user, err := s.storage.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			auth.SpendPasswordCheck(password)
			return models.AuthResult{}, ErrInvalidCredentials
		}
		return models.AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsActive {
		return models.AuthResult{}, ErrAccountDeactivated
	}

	if ok := auth.VerifyPassword(user.Password, password); !ok {
		return models.AuthResult{}, ErrInvalidCredentials
	}

	res, err := s.startSession(ctx, user)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user logged in", slog.String("user_id", user.ID.String()))

	return res, nil
}

// startSession issues both tokens and overwrites the stored refresh token.
// Concurrent logins for one user are last-write-wins.
func (s *service) startSession(ctx context.Context, user models.User) (models.AuthResult, error) {
	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return models.AuthResult{}, err
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return models.AuthResult{}, err
	}

	if err := s.storage.SetRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		return models.AuthResult{}, err
	}

	return models.AuthResult{
		User:         user.Sanitized(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// RefreshToken mints a new access token. The presented token must still be
// the one stored for the user, so logout and re-login revoke older tokens.
func (s *service) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	const op = "service.RefreshToken"

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	user, err := s.storage.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return "", ErrInvalidRefreshToken
	}

	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return accessToken, nil
}

// Logout clears the stored refresh token. A missing user is not an error.
func (s *service) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.Logout"

	err := s.storage.SetRefreshToken(ctx, userID, nil)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user logged out", slog.String("user_id", userID.String()))

	return nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "service.GetProfile"

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, s.wrapUserErr(op, err)
	}

	return user.Sanitized(), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (models.User, error) {
	const op = "service.UpdateProfile"

	if upd.Email != nil {
		email := NormalizeEmail(*upd.Email)
		upd.Email = &email

		owner, err := s.storage.GetUserByEmail(ctx, email)
		switch {
		case err == nil && owner.ID != userID:
			return models.User{}, ErrDuplicateEmail
		case err != nil && !errors.Is(err, storage.ErrUserNotFound):
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	user, err := s.storage.UpdateProfile(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, storage.ErrEmailExists) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, s.wrapUserErr(op, err)
	}

	return user.Sanitized(), nil
}

// ChangePassword replaces the password and revokes the stored refresh token.
// Access tokens already issued stay valid until they expire.
func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	const op = "service.ChangePassword"

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return s.wrapUserErr(op, err)
	}

	if ok := auth.VerifyPassword(user.Password, oldPassword); !ok {
		return ErrIncorrectPassword
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.SetPassword(ctx, userID, passwordHash); err != nil {
		return s.wrapUserErr(op, err)
	}

	if err := s.storage.SetRefreshToken(ctx, userID, nil); err != nil {
		return s.wrapUserErr(op, err)
	}

	s.log.Info("password changed", slog.String("user_id", userID.String()))

	return nil
}

func (s *service) UpdateImage(ctx context.Context, userID uuid.UUID, image *string) (models.User, error) {
	const op = "service.UpdateImage"

	user, err := s.storage.SetImage(ctx, userID, image)
	if err != nil {
		return models.User{}, s.wrapUserErr(op, err)
	}

	return user.Sanitized(), nil
}

func (s *service) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "service.ListUsers"

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range users {
		users[i] = users[i].Sanitized()
	}

	return users, nil
}

// AssignRole changes the stored role. Tokens already issued keep the old role
// claim until the user's next login or refresh.
func (s *service) AssignRole(ctx context.Context, userID uuid.UUID, role string) error {
	const op = "service.AssignRole"

	if !models.ValidRole(role) {
		return ErrInvalidRole
	}

	if err := s.storage.AssignRole(ctx, userID, role); err != nil {
		return s.wrapUserErr(op, err)
	}

	s.log.Info("role assigned", slog.String("user_id", userID.String()), slog.String("role", role))

	return nil
}

// SetActive toggles the account; deactivation also revokes the refresh token.
func (s *service) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	const op = "service.SetActive"

	if err := s.storage.SetActive(ctx, userID, active); err != nil {
		return s.wrapUserErr(op, err)
	}

	if !active {
		if err := s.storage.SetRefreshToken(ctx, userID, nil); err != nil {
			return s.wrapUserErr(op, err)
		}
	}

	s.log.Info("account status changed", slog.String("user_id", userID.String()), slog.Bool("active", active))

	return nil
}

func (s *service) wrapUserErr(op string, err error) error {
	if errors.Is(err, storage.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
