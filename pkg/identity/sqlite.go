package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// SQLiteStore persists the session in a local sqlite database. It is the
// desktop analogue of the browser's localStorage: a single session row plus a
// profiles table that doubles as the fallback email source.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenDB opens the local session database and applies the goose migrations
// from migrationFS.
func OpenDB(file string, migrationFS fs.FS) (*sql.DB, error) {
	var dsn strings.Builder
	dsn.WriteString("file:")
	dsn.WriteString(file)

	db, err := sql.Open("sqlite3", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	return db, nil
}

func (s *SQLiteStore) LoadSession(ctx context.Context) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, "SELECT blob FROM session WHERE id = 1")
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return blob, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (id, blob, updated_at) VALUES (1, @blob, @updated_at)
		 ON CONFLICT (id) DO UPDATE SET blob = @blob, updated_at = @updated_at`,
		sql.Named("blob", blob), sql.Named("updated_at", time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE id = 1"); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LookupEmail(ctx context.Context, userID int) (string, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT email FROM profiles WHERE user_id = ? LIMIT 1", userID)
	var email string
	if err := row.Scan(&email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("scanning profile: %w", err)
	}
	return email, nil
}

// RememberProfile records a user's email in the fallback profile store.
func (s *SQLiteStore) RememberProfile(ctx context.Context, userID int, email string) error {
	if userID <= 0 || email == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, email) VALUES (@user_id, @email)
		 ON CONFLICT (user_id) DO UPDATE SET email = @email`,
		sql.Named("user_id", userID), sql.Named("email", email))
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}
