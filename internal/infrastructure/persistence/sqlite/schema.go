package sqlite

import "time"

// ProfileRow is the profiles table.
type ProfileRow struct {
	ID               string    `gorm:"primaryKey;size:128"`
	DisplayName      string    `gorm:"size:64;not null"`
	XP               int       `gorm:"column:xp;not null;default:0;index"`
	Streak           int       `gorm:"not null;default:0"`
	CompletedLessons int       `gorm:"not null;default:0"`
	CompletedQuizzes int       `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName specifies the table name.
func (ProfileRow) TableName() string {
	return "profiles"
}

// AttemptRow is the quiz_attempts table. The partial unique index on
// (profile_id, quiz_id) for single-attempt rows is created in Migrate.
type AttemptRow struct {
	ID                   string    `gorm:"primaryKey;size:36"`
	SubmissionID         string    `gorm:"size:128;not null;uniqueIndex"`
	ProfileID            string    `gorm:"size:128;not null;index:idx_quiz_attempts_profile_quiz"`
	QuizID               string    `gorm:"size:128;not null;index:idx_quiz_attempts_profile_quiz"`
	Score                int       `gorm:"not null"`
	TotalQuestions       int       `gorm:"not null"`
	TimeTakenSeconds     int       `gorm:"not null;default:0"`
	TimeRemainingSeconds int       `gorm:"not null;default:0"`
	XPEarned             int       `gorm:"column:xp_earned;not null"`
	Passed               bool      `gorm:"not null"`
	IsPerfect            bool      `gorm:"not null"`
	SingleAttempt        bool      `gorm:"not null;default:false"`
	PersonalityType      *string   `gorm:"size:20"`
	ActivityDate         string    `gorm:"size:10;not null"` // YYYY-MM-DD
	CompletedAt          time.Time `gorm:"not null"`
}

// TableName specifies the table name.
func (AttemptRow) TableName() string {
	return "quiz_attempts"
}

// ActivityRow is the activity_log table.
type ActivityRow struct {
	ID           string    `gorm:"primaryKey;size:36"`
	ProfileID    string    `gorm:"size:128;not null;index:idx_activity_log_profile_date"`
	ActivityDate string    `gorm:"size:10;not null;index:idx_activity_log_profile_date"`
	ActivityType string    `gorm:"size:10;not null"`
	XPEarned     int       `gorm:"column:xp_earned;not null;default:0"`
	SourceRef    string    `gorm:"size:160;not null;default:''"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName specifies the table name.
func (ActivityRow) TableName() string {
	return "activity_log"
}

// ChallengeRow is the challenges catalog table.
type ChallengeRow struct {
	ID       int64  `gorm:"primaryKey;autoIncrement:false"`
	Code     string `gorm:"size:64;not null;uniqueIndex"`
	Title    string `gorm:"size:200;not null"`
	Kind     string `gorm:"size:20;not null"`
	XPReward int    `gorm:"column:xp_reward;not null"`
	Active   bool   `gorm:"not null"`
}

// TableName specifies the table name.
func (ChallengeRow) TableName() string {
	return "challenges"
}

// ChallengeCompletionRow is the challenge_completions ledger table.
type ChallengeCompletionRow struct {
	ProfileID     string    `gorm:"primaryKey;size:128"`
	ChallengeID   int64     `gorm:"primaryKey;autoIncrement:false"`
	CompletedDate string    `gorm:"primaryKey;size:10"`
	XPAwarded     int       `gorm:"column:xp_awarded;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName specifies the table name.
func (ChallengeCompletionRow) TableName() string {
	return "challenge_completions"
}

// LessonCompletionRow is the lesson_completions table.
type LessonCompletionRow struct {
	ProfileID    string    `gorm:"primaryKey;size:128"`
	LessonID     string    `gorm:"primaryKey;size:128"`
	XPAwarded    int       `gorm:"column:xp_awarded;not null"`
	ActivityDate string    `gorm:"size:10;not null"`
	CompletedAt  time.Time `gorm:"not null"`
}

// TableName specifies the table name.
func (LessonCompletionRow) TableName() string {
	return "lesson_completions"
}
