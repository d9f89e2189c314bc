package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/mattn/go-sqlite3"

	"rabisk.app/cloud/models"
)

const keyColumns = `id, key, email, plan, stripe_session_id, stripe_customer_id, is_active, created_at, updated_at`

type SQLiteStorage struct {
	db   *sql.DB
	path string
}

func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	driver, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init migration driver: %w", err)
	}
	if err := runMigrations("sqlite3", driver); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

func (s *SQLiteStorage) FindKeyBySession(ctx context.Context, sessionID string) (*models.AccessKey, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM access_keys WHERE stripe_session_id = ?`, sessionID)
	return scanKeyRow(row)
}

func (s *SQLiteStorage) FindKeyByValue(ctx context.Context, key string) (*models.AccessKey, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM access_keys WHERE key = ?`, key)
	return scanKeyRow(row)
}

func (s *SQLiteStorage) KeyValueExists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM access_keys WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check key existence: %w", err)
	}
	return true, nil
}

func (s *SQLiteStorage) InsertKey(ctx context.Context, key *models.AccessKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_keys (`+keyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.Key,
		nullIfEmpty(key.Email),
		key.Plan,
		key.StripeSessionID,
		nullIfEmpty(key.StripeCustomerID),
		key.IsActive,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			// The driver reports which column's unique index fired only in
			// the message text.
			if strings.Contains(serr.Error(), "stripe_session_id") {
				return ErrDuplicateSession
			}
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert access key: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Deactivate(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE access_keys SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deactivate access key: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func scanKeyRow(row *sql.Row) (*models.AccessKey, error) {
	var ak models.AccessKey
	var email, customerID sql.NullString

	err := row.Scan(
		&ak.ID,
		&ak.Key,
		&email,
		&ak.Plan,
		&ak.StripeSessionID,
		&customerID,
		&ak.IsActive,
		&ak.CreatedAt,
		&ak.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan access key: %w", err)
	}

	ak.Email = email.String
	ak.StripeCustomerID = customerID.String
	return &ak, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
