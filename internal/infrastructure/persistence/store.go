// Package persistence selects and assembles the storage backend.
package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/alem-quest/internal/domain/activity"
	"github.com/alem-hub/alem-quest/internal/domain/challenge"
	"github.com/alem-hub/alem-quest/internal/domain/lesson"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/quiz"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/alem-quest/internal/infrastructure/persistence/sqlite"
)

// Supported engines.
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

// Config selects and configures the backend.
type Config struct {
	Engine      string
	PostgresURL string
	SQLitePath  string
	MaxConns    int32
	MinConns    int32

	// AutoMigrate applies pending postgres migrations on startup.
	// SQLite always migrates on open.
	AutoMigrate bool
}

// Store bundles the repositories and the transactor of one backend.
type Store struct {
	Engine     string
	Profiles   profile.Repository
	Attempts   quiz.Repository
	Activity   activity.Repository
	Challenges challenge.Repository
	Lessons    lesson.Repository
	Tx         shared.Transactor

	ping  func(ctx context.Context) error
	close func()
}

// NewByEngine opens the configured backend.
func NewByEngine(ctx context.Context, cfg Config) (*Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", EnginePostgres:
		return openPostgres(ctx, cfg)
	case EngineSQLite:
		return openSQLite(cfg)
	default:
		return nil, fmt.Errorf("persistence: unsupported store engine %q", cfg.Engine)
	}
}

func openPostgres(ctx context.Context, cfg Config) (*Store, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.PostgresURL
	if cfg.MaxConns > 0 {
		pgCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pgCfg.MinConns = cfg.MinConns
	}

	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &Store{
		Engine:     EnginePostgres,
		Profiles:   postgres.NewProfileRepository(conn),
		Attempts:   postgres.NewAttemptRepository(conn),
		Activity:   postgres.NewActivityRepository(conn),
		Challenges: postgres.NewChallengeRepository(conn),
		Lessons:    postgres.NewLessonRepository(conn),
		Tx:         conn,
		ping:       conn.Ping,
		close:      conn.Close,
	}, nil
}

func openSQLite(cfg Config) (*Store, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = sqlite.MemoryDSN
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db), nil
}

// NewSQLiteStore assembles a store over an open sqlite database.
func NewSQLiteStore(db *sqlite.Database) *Store {
	return &Store{
		Engine:     EngineSQLite,
		Profiles:   sqlite.NewProfileRepository(db),
		Attempts:   sqlite.NewAttemptRepository(db),
		Activity:   sqlite.NewActivityRepository(db),
		Challenges: sqlite.NewChallengeRepository(db),
		Lessons:    sqlite.NewLessonRepository(db),
		Tx:         db,
		ping:       db.Ping,
		close:      func() { _ = db.Close() },
	}
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// SeedChallenges upserts catalog entries.
func (s *Store) SeedChallenges(ctx context.Context, catalog []challenge.Challenge) error {
	for i := range catalog {
		if err := s.Challenges.Upsert(ctx, &catalog[i]); err != nil {
			return fmt.Errorf("persistence: seed challenge %d: %w", catalog[i].ID, err)
		}
	}
	return nil
}
