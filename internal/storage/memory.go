package storage

import (
	"auth_api/internal/models"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*PostgresStorage)(nil)
)

// MemoryStorage keeps users in process memory. It backs local runs without a
// database and the service and handler tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{users: make(map[uuid.UUID]models.User)}
}

func (m *MemoryStorage) CreateUser(_ context.Context, newUser models.NewUser) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail(newUser.Email); ok {
		return models.User{}, ErrEmailExists
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.User{}, err
	}

	role := newUser.Role
	if role == "" {
		role = models.RoleUser
	}

	now := time.Now().UTC()
	user := models.User{
		ID:        id,
		Email:     newUser.Email,
		Password:  newUser.PasswordHash,
		Name:      newUser.Name,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.users[id] = user

	return user, nil
}

func (m *MemoryStorage) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}

	return user, nil
}

func (m *MemoryStorage) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byEmail(email)
	if !ok {
		return models.User{}, ErrUserNotFound
	}

	return user, nil
}

func (m *MemoryStorage) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })

	return users, nil
}

func (m *MemoryStorage) UpdateProfile(_ context.Context, userID uuid.UUID, upd models.ProfileUpdate) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}

	if upd.Email != nil {
		if owner, ok := m.byEmail(*upd.Email); ok && owner.ID != userID {
			return models.User{}, ErrEmailExists
		}
		user.Email = *upd.Email
	}
	if upd.Name != nil {
		user.Name = *upd.Name
	}

	user.UpdatedAt = time.Now().UTC()
	m.users[userID] = user

	return user, nil
}

func (m *MemoryStorage) SetImage(_ context.Context, userID uuid.UUID, image *string) (models.User, error) {
	var user models.User
	err := m.update(userID, func(u *models.User) { u.Image = image; user = *u })
	return user, err
}

func (m *MemoryStorage) SetPassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	return m.update(userID, func(u *models.User) { u.Password = passwordHash })
}

func (m *MemoryStorage) SetRefreshToken(_ context.Context, userID uuid.UUID, token *string) error {
	return m.update(userID, func(u *models.User) { u.RefreshToken = token })
}

func (m *MemoryStorage) AssignRole(_ context.Context, userID uuid.UUID, roleName string) error {
	return m.update(userID, func(u *models.User) { u.Role = roleName })
}

func (m *MemoryStorage) SetActive(_ context.Context, userID uuid.UUID, active bool) error {
	return m.update(userID, func(u *models.User) { u.IsActive = active })
}

func (m *MemoryStorage) Ping(context.Context) error { return nil }

func (m *MemoryStorage) Close() {}

func (m *MemoryStorage) update(userID uuid.UUID, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}

	fn(&user)
	user.UpdatedAt = time.Now().UTC()
	m.users[userID] = user

	return nil
}

// byEmail expects the caller to hold the lock.
func (m *MemoryStorage) byEmail(email string) (models.User, bool) {
	for _, u := range m.users {
		if u.Email == email {
			return u, true
		}
	}
	return models.User{}, false
}
