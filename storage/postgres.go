package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"rabisk.app/cloud/models"
)

// PostgresStorage backs the service with a shared pgx connection pool,
// safe for concurrent use by all in-flight requests.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	if err := migratePostgres(databaseURL); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// migratePostgres runs migrations over a short-lived database/sql handle so
// the pgx pool never carries migration state.
func migratePostgres(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}

	return runMigrations("pgx", driver)
}

func (p *PostgresStorage) FindKeyBySession(ctx context.Context, sessionID string) (*models.AccessKey, error) {
	return p.findKey(ctx,
		`SELECT `+keyColumns+` FROM access_keys WHERE stripe_session_id = $1`, sessionID)
}

func (p *PostgresStorage) FindKeyByValue(ctx context.Context, key string) (*models.AccessKey, error) {
	return p.findKey(ctx,
		`SELECT `+keyColumns+` FROM access_keys WHERE key = $1`, key)
}

func (p *PostgresStorage) findKey(ctx context.Context, query, arg string) (*models.AccessKey, error) {
	var ak models.AccessKey
	var email, customerID *string

	err := p.pool.QueryRow(ctx, query, arg).Scan(
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
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query access key: %w", err)
	}

	if email != nil {
		ak.Email = *email
	}
	if customerID != nil {
		ak.StripeCustomerID = *customerID
	}
	return &ak, nil
}

func (p *PostgresStorage) KeyValueExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM access_keys WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check key existence: %w", err)
	}
	return exists, nil
}

func (p *PostgresStorage) InsertKey(ctx context.Context, key *models.AccessKey) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO access_keys (`+keyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
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
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "access_keys_session_idx":
				return ErrDuplicateSession
			case "access_keys_key_idx":
				return ErrDuplicateKey
			}
		}
		return fmt.Errorf("insert access key: %w", err)
	}
	return nil
}

func (p *PostgresStorage) Deactivate(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE access_keys SET is_active = FALSE, updated_at = NOW() WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("deactivate access key: %w", err)
	}
	return nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}
