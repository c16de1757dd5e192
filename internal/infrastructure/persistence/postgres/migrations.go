package postgres

import (
	"context"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// Migrator applies embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Pool().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// applied returns the applied versions.
func (m *Migrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.conn.Pool().Query(ctx, fmt.Sprintf("SELECT version FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithinTx(ctx, func(ctx context.Context) error {
			q := m.conn.querier(ctx)
			if _, err := q.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := q.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_profiles", UpSQL: migration001Up},
		{Version: 2, Name: "create_quiz_attempts", UpSQL: migration002Up},
		{Version: 3, Name: "create_activity_log", UpSQL: migration003Up},
		{Version: 4, Name: "create_challenges", UpSQL: migration004Up},
		{Version: 5, Name: "create_lesson_completions", UpSQL: migration005Up},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS profiles (
    id VARCHAR(128) PRIMARY KEY,
    display_name VARCHAR(64) NOT NULL,
    xp INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
    streak INTEGER NOT NULL DEFAULT 0 CHECK (streak >= 0),
    completed_lessons INTEGER NOT NULL DEFAULT 0 CHECK (completed_lessons >= 0),
    completed_quizzes INTEGER NOT NULL DEFAULT 0 CHECK (completed_quizzes >= 0),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_profiles_xp ON profiles (xp DESC, id);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: QUIZ ATTEMPTS
// ══════════════════════════════════════════════════════════════════════════════

// The partial unique index is what makes single-attempt quizzes
// at-most-once under concurrent submissions.
const migration002Up = `
CREATE TABLE IF NOT EXISTS quiz_attempts (
    id UUID PRIMARY KEY,
    submission_id VARCHAR(128) NOT NULL UNIQUE,
    profile_id VARCHAR(128) NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    quiz_id VARCHAR(128) NOT NULL,
    score INTEGER NOT NULL CHECK (score >= 0),
    total_questions INTEGER NOT NULL CHECK (total_questions > 0),
    time_taken_seconds INTEGER NOT NULL DEFAULT 0 CHECK (time_taken_seconds >= 0),
    time_remaining_seconds INTEGER NOT NULL DEFAULT 0 CHECK (time_remaining_seconds >= 0),
    xp_earned INTEGER NOT NULL CHECK (xp_earned >= 0),
    passed BOOLEAN NOT NULL,
    is_perfect BOOLEAN NOT NULL,
    single_attempt BOOLEAN NOT NULL DEFAULT FALSE,
    personality_type VARCHAR(20),
    activity_date DATE NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CHECK (score <= total_questions)
);

CREATE INDEX IF NOT EXISTS idx_quiz_attempts_profile_quiz
    ON quiz_attempts (profile_id, quiz_id, completed_at);

CREATE UNIQUE INDEX IF NOT EXISTS uq_quiz_attempts_single
    ON quiz_attempts (profile_id, quiz_id) WHERE single_attempt;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ACTIVITY LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS activity_log (
    id UUID PRIMARY KEY,
    profile_id VARCHAR(128) NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    activity_date DATE NOT NULL,
    activity_type VARCHAR(10) NOT NULL CHECK (activity_type IN ('lesson', 'quiz', 'other')),
    xp_earned INTEGER NOT NULL DEFAULT 0 CHECK (xp_earned >= 0),
    source_ref VARCHAR(160) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_activity_log_profile_date
    ON activity_log (profile_id, activity_date);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS challenges (
    id BIGINT PRIMARY KEY,
    code VARCHAR(64) NOT NULL UNIQUE,
    title VARCHAR(200) NOT NULL,
    kind VARCHAR(20) NOT NULL CHECK (kind IN ('standard', 'daily_streak')),
    xp_reward INTEGER NOT NULL CHECK (xp_reward >= 0),
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS challenge_completions (
    profile_id VARCHAR(128) NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    challenge_id BIGINT NOT NULL REFERENCES challenges(id),
    completed_date DATE NOT NULL,
    xp_awarded INTEGER NOT NULL CHECK (xp_awarded >= 0),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (profile_id, challenge_id, completed_date)
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: LESSON COMPLETIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
CREATE TABLE IF NOT EXISTS lesson_completions (
    profile_id VARCHAR(128) NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    lesson_id VARCHAR(128) NOT NULL,
    xp_awarded INTEGER NOT NULL CHECK (xp_awarded >= 0),
    activity_date DATE NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (profile_id, lesson_id)
);
`
