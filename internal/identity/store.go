package identity

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrUsernameTaken is returned when a username belongs to another account.
var ErrUsernameTaken = errors.New("username taken by another user")

// Account is one row of the users table.
type Account struct {
	ID             int64
	Username       string
	Name           string
	PasswordHash   string
	Admin          bool
	Active         bool
	LastSessionKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// User returns the aggregate the session engine works with.
func (a *Account) User() *goSession.User {
	return &goSession.User{
		ID:             a.ID,
		Username:       a.Username,
		Admin:          a.Admin,
		Active:         a.Active,
		LastSessionKey: a.LastSessionKey,
		PasswordHash:   a.PasswordHash,
	}
}

// NewAccount holds the fields needed to create an account.
type NewAccount struct {
	Username     string
	Name         string
	PasswordHash string
	Admin        bool
}

// AccountUpdate changes an account. Admin is always applied; an empty
// PasswordHash keeps the current password and a nil Name keeps the name.
type AccountUpdate struct {
	Name         *string
	PasswordHash string
	Admin        bool
}

// Store is the SQLite user repository. It implements goSession.IdentityResolver,
// goSession.CredentialStore and goSession.PasswordHashUpdater.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path. Use ":memory:" only with a
// single connection; tests use a file under t.TempDir.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "identity"),
		now:    time.Now,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies pending schema migrations and returns the resulting version.
func (s *Store) Migrate(ctx context.Context) (int64, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return 0, err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return 0, fmt.Errorf("migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	for _, r := range results {
		s.logger.InfoContext(ctx, "migration applied",
			"version", r.Source.Version,
			"duration", r.Duration,
		)
	}

	return provider.GetDBVersion(ctx)
}

const accountColumns = `id, username, name, password_hash, admin, active, last_session_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var a Account
	var createdAt, updatedAt string

	if err := row.Scan(&a.ID, &a.Username, &a.Name, &a.PasswordHash, &a.Admin, &a.Active,
		&a.LastSessionKey, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &a, nil
}

// Get returns the account with id, or an error wrapping goSession.ErrUserNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Account, error) {
	s.logger.DebugContext(ctx, "sql", "op", "select", "table", "users", "id", id)

	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, goSession.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return a, nil
}

// GetByUsername returns the account with username, or an error wrapping
// goSession.ErrUserNotFound.
func (s *Store) GetByUsername(ctx context.Context, username string) (*Account, error) {
	s.logger.DebugContext(ctx, "sql", "op", "select", "table", "users", "username", username)

	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, goSession.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return a, nil
}

// List returns all accounts ordered by id.
func (s *Store) List(ctx context.Context) ([]Account, error) {
	s.logger.DebugContext(ctx, "sql", "op", "select", "table", "users")

	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Create inserts a new active account. A username already in use returns
// [ErrUsernameTaken].
func (s *Store) Create(ctx context.Context, na NewAccount) (*Account, error) {
	if strings.TrimSpace(na.Username) == "" {
		return nil, errors.New("username required")
	}
	if na.PasswordHash == "" {
		return nil, errors.New("password hash required")
	}

	s.logger.DebugContext(ctx, "sql", "op", "insert", "table", "users", "username", na.Username)

	now := s.now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, name, password_hash, admin, active, last_session_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, '', ?, ?)`,
		na.Username, na.Name, na.PasswordHash, na.Admin, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, na.Username)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Update applies u to the account with id.
func (s *Store) Update(ctx context.Context, id int64, u AccountUpdate) (*Account, error) {
	s.logger.DebugContext(ctx, "sql", "op", "update", "table", "users", "id", id)

	sets := []string{"admin = ?", "updated_at = ?"}
	args := []any{u.Admin, s.now().UTC().Format(time.RFC3339Nano)}
	if u.PasswordHash != "" {
		sets = append(sets, "password_hash = ?")
		args = append(args, u.PasswordHash)
	}
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	args = append(args, id)

	if err := s.execOne(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, id, args...); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Deactivate marks the account inactive and returns it as it was stored, so
// the caller can drop the session in LastSessionKey.
func (s *Store) Deactivate(ctx context.Context, id int64) (*Account, error) {
	s.logger.DebugContext(ctx, "sql", "op", "update", "table", "users", "id", id, "active", false)

	err := s.execOne(ctx, `UPDATE users SET active = 0, updated_at = ? WHERE id = ?`, id,
		s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Store) execOne(ctx context.Context, query string, id int64, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, goSession.ErrUserNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// ResolveByID implements goSession.IdentityResolver.
func (s *Store) ResolveByID(ctx context.Context, id int64) (*goSession.User, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.User(), nil
}

// ResolveByUsername implements goSession.CredentialStore.
func (s *Store) ResolveByUsername(ctx context.Context, username string) (*goSession.User, error) {
	a, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return a.User(), nil
}

// MarkLoggedIn implements goSession.IdentityResolver by recording token as the
// user's current session.
func (s *Store) MarkLoggedIn(ctx context.Context, user *goSession.User, token string) error {
	s.logger.DebugContext(ctx, "sql", "op", "update", "table", "users", "id", user.ID, "column", "last_session_key")

	return s.execOne(ctx, `UPDATE users SET last_session_key = ?, updated_at = ? WHERE id = ?`, user.ID,
		token, s.now().UTC().Format(time.RFC3339Nano), user.ID)
}

// UpdatePasswordHash implements goSession.PasswordHashUpdater.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	s.logger.DebugContext(ctx, "sql", "op", "update", "table", "users", "id", userID, "column", "password_hash")

	return s.execOne(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, userID,
		hash, s.now().UTC().Format(time.RFC3339Nano), userID)
}

var (
	_ goSession.IdentityResolver    = (*Store)(nil)
	_ goSession.CredentialStore     = (*Store)(nil)
	_ goSession.PasswordHashUpdater = (*Store)(nil)
)
