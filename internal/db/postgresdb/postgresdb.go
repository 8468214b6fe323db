// Package postgresdb provides a PostgreSQL-based implementation of the
// storage interface for persisting users and QR records. The schema is
// managed with goose migrations; records are rendered on demand, so no image
// paths are stored.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/qrvault/internal/models"
	"github.com/patric-chuzhbe/qrvault/internal/record"
	"github.com/patric-chuzhbe/qrvault/internal/user"
)

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed implementation of the QR keeper storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
) (*PostgresDB, error) {
	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrStorage, err)
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

func (db *PostgresDB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.connectionTimeout)
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %s", models.ErrStorage, err)
}

func (db *PostgresDB) FindUser(ctx context.Context, username string) (*user.User, bool, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	usr := &user.User{}
	err := db.database.QueryRowContext(
		ctx,
		`SELECT username, password FROM users WHERE username = $1`,
		username,
	).Scan(&usr.Username, &usr.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr(err)
	}

	return usr, true, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (username, password) VALUES ($1, $2)`,
		usr.Username,
		usr.PasswordHash,
	)
	// Two concurrent signups can both pass the existence check; the unique
	// constraint settles the race.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return models.ErrUserAlreadyExists
	}
	if err != nil {
		return storageErr(err)
	}

	return nil
}

func (db *PostgresDB) CreateRecord(ctx context.Context, rec *record.Record) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO qr_codes (id, username, link, created_at) VALUES ($1, $2, $3, $4)`,
		rec.ID,
		rec.Owner,
		rec.Link,
		rec.CreatedAt,
	)
	if err != nil {
		return storageErr(err)
	}

	return nil
}

func (db *PostgresDB) FindRecordsByOwner(ctx context.Context, owner string) ([]record.Record, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.database.QueryContext(
		ctx,
		`SELECT id, username, link, created_at
			FROM qr_codes
			WHERE username = $1
			ORDER BY created_at DESC`,
		owner,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	result := []record.Record{}
	for rows.Next() {
		rec := record.Record{}
		if err := rows.Scan(&rec.ID, &rec.Owner, &rec.Link, &rec.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}

	return result, nil
}

func (db *PostgresDB) findOneRecord(ctx context.Context, query string, args ...interface{}) (*record.Record, bool, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rec := &record.Record{}
	err := db.database.QueryRowContext(ctx, query, args...).
		Scan(&rec.ID, &rec.Owner, &rec.Link, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr(err)
	}

	return rec, true, nil
}

func (db *PostgresDB) FindRecord(ctx context.Context, id, owner string) (*record.Record, bool, error) {
	return db.findOneRecord(
		ctx,
		`SELECT id, username, link, created_at FROM qr_codes WHERE id = $1 AND username = $2`,
		id,
		owner,
	)
}

func (db *PostgresDB) FindRecordByID(ctx context.Context, id string) (*record.Record, bool, error) {
	return db.findOneRecord(
		ctx,
		`SELECT id, username, link, created_at FROM qr_codes WHERE id = $1`,
		id,
	)
}

func (db *PostgresDB) DeleteRecord(ctx context.Context, id, owner string) (*record.Record, bool, error) {
	rec, found, err := db.FindRecord(ctx, id, owner)
	if err != nil || !found {
		return nil, false, err
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err = db.database.ExecContext(
		ctx,
		`DELETE FROM qr_codes WHERE id = $1 AND username = $2`,
		id,
		owner,
	)
	if err != nil {
		return nil, false, storageErr(err)
	}

	return rec, true, nil
}

func (db *PostgresDB) getCount(ctx context.Context, query string) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var count int64
	if err := db.database.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, storageErr(err)
	}

	return count, nil
}

func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.getCount(ctx, `SELECT COUNT(*) FROM users`)
}

func (db *PostgresDB) GetNumberOfRecords(ctx context.Context) (int64, error) {
	return db.getCount(ctx, `SELECT COUNT(*) FROM qr_codes`)
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	if err := db.database.PingContext(ctx); err != nil {
		return storageErr(err)
	}

	return nil
}

func (db *PostgresDB) Close() error {
	return db.database.Close()
}
