// Package sqlite implements the embedded persistence backend on gorm and a
// pure-Go SQLite driver. It satisfies the same repository contracts as the
// postgres package and is used for single-node deployments and tests.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Database owns the gorm handle.
type Database struct {
	db *gorm.DB
}

// Open connects to the database at path, applies pragmas and migrates the schema.
func Open(path string) (*Database, error) {
	if path != MemoryDSN && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// One connection: SQLite serializes writers anyway, and an in-memory
	// database exists only on the connection that created it.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite: underlying db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := configure(db, path); err != nil {
		return nil, err
	}

	d := &Database{db: db}
	if err := d.Migrate(); err != nil {
		return nil, err
	}

	slog.Info("sqlite database ready", "path", path)
	return d, nil
}

func configure(db *gorm.DB, path string) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	if path != MemoryDSN {
		pragmas = append(pragmas,
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
		)
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	return nil
}

// Migrate creates tables and indexes. It is idempotent.
func (d *Database) Migrate() error {
	return AutoMigrate(d.db)
}

// AutoMigrate creates every table and the partial unique index on
// single-attempt quiz rows.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&ProfileRow{},
		&AttemptRow{},
		&ActivityRow{},
		&ChallengeRow{},
		&ChallengeCompletionRow{},
		&LessonCompletionRow{},
	); err != nil {
		return fmt.Errorf("sqlite: auto migrate: %w", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_quiz_attempts_single
		ON quiz_attempts (profile_id, quiz_id) WHERE single_attempt = 1`).Error; err != nil {
		return fmt.Errorf("sqlite: create single-attempt index: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return shared.StoreUnavailable("sqlite", "Ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return shared.StoreUnavailable("sqlite", "Ping", err)
	}
	return nil
}

// Close closes the database.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Transactions
// ─────────────────────────────────────────────────────────────────────────────

type txKey struct{}

// WithinTx implements shared.Transactor. Nested calls join the outer transaction.
func (d *Database) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or the root handle.
func (d *Database) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return d.db.WithContext(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────────────────────────────────────

// isUniqueViolation matches both the translated gorm error and the raw
// driver message.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "sql: database is closed")
}

// mapError translates gorm/driver errors into the domain taxonomy.
func mapError(domain, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return shared.WrapError(domain, op, shared.ErrConflict, "unique constraint violated", err)
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError(domain, op, shared.ErrTimeout, "store timeout", err)
	case isBusy(err):
		return shared.StoreUnavailable(domain, op, err)
	}
	return fmt.Errorf("%s.%s: %w", domain, op, err)
}
