package storage

import (
	"context"
	"errors"
	"fmt"

	"auth_api/internal/models"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	usersTable = "users"

	userColumns = "id, email, password_hash, name, user_role, image, is_active, refresh_token, created_at, updated_at"

	uniqueViolation = "23505"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// Storage is the credential store. Users returned from it carry the password
// hash and refresh token; callers sanitize before exposing them.
type Storage interface {

	// Users
	CreateUser(ctx context.Context, user models.NewUser) (models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (models.User, error)
	SetImage(ctx context.Context, userID uuid.UUID, image *string) (models.User, error)

	// Credentials
	SetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string) error

	// Administration
	AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error
	SetActive(ctx context.Context, userID uuid.UUID, active bool) error

	Ping(ctx context.Context) error
	Close()
}

// pgxPool is the part of *pgxpool.Pool the store needs.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type PostgresStorage struct {
	db pgxPool

	// connConfig is nil when db is not a real pool; Migrate needs it.
	connConfig *pgx.ConnConfig
}

func NewPostgresStorage(ctx context.Context, DbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db:         conn,
		connConfig: conn.Config().ConnConfig,
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Password,
		&user.Name,
		&user.Role,
		&user.Image,
		&user.IsActive,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

// mapErr translates driver errors into the storage sentinels.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailExists
	}

	return err
}

func (p *PostgresStorage) CreateUser(ctx context.Context, newUser models.NewUser) (models.User, error) {
	const op = "storage.CreateUser"

	role := newUser.Role
	if role == "" {
		role = models.RoleUser
	}

	query := fmt.Sprintf(`INSERT INTO %s(email, password_hash, name, user_role)
	VALUES ($1, $2, $3, $4) RETURNING %s;`, usersTable, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, newUser.Email, newUser.PasswordHash, newUser.Name, role))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "storage.GetUserByID"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, userID))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE email=$1;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, email))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return user, nil
}

func (p *PostgresStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"

	users := []models.User{}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at;", userColumns, usersTable)

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return users, nil
}

func (p *PostgresStorage) UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (models.User, error) {
	const op = "storage.UpdateProfile"

	query := fmt.Sprintf(`UPDATE %s
	SET name = COALESCE($1, name),
	    email = COALESCE($2, email),
	    updated_at = now()
	WHERE id = $3
	RETURNING %s;`, usersTable, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, upd.Name, upd.Email, userID))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return user, nil
}

func (p *PostgresStorage) SetImage(ctx context.Context, userID uuid.UUID, image *string) (models.User, error) {
	const op = "storage.SetImage"

	query := fmt.Sprintf(`UPDATE %s SET image = $1, updated_at = now() WHERE id = $2 RETURNING %s;`, usersTable, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, image, userID))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return user, nil
}

func (p *PostgresStorage) SetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	const op = "storage.SetPassword"

	query := fmt.Sprintf("UPDATE %s SET password_hash = $1, updated_at = now() WHERE id = $2", usersTable)

	return p.execOne(ctx, op, query, passwordHash, userID)
}

// SetRefreshToken overwrites the stored token; nil clears it.
func (p *PostgresStorage) SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string) error {
	const op = "storage.SetRefreshToken"

	query := fmt.Sprintf("UPDATE %s SET refresh_token = $1 WHERE id = $2", usersTable)

	return p.execOne(ctx, op, query, token, userID)
}

func (p *PostgresStorage) AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	const op = "storage.AssignRole"

	query := fmt.Sprintf("UPDATE %s SET user_role = $1, updated_at = now() WHERE id = $2", usersTable)

	return p.execOne(ctx, op, query, roleName, userID)
}

func (p *PostgresStorage) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	const op = "storage.SetActive"

	query := fmt.Sprintf("UPDATE %s SET is_active = $1, updated_at = now() WHERE id = $2", usersTable)

	return p.execOne(ctx, op, query, active, userID)
}

func (p *PostgresStorage) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return nil
}

func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}
