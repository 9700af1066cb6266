package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/prepwise/internal/domain"
	"github.com/ashureev/prepwise/internal/shared"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite opens the database at dbPath and applies pending migrations.
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers while a call writes feedback.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("Applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, name, email, photo_url, role, status, is_onboarded,
		       created_at, updated_at, last_login_at
		FROM users WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var photoURL sql.NullString
	var createdAt, updatedAt, lastLogin int64

	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &photoURL, &user.Role, &user.Status,
		&user.IsOnboarded, &createdAt, &updatedAt, &lastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.PhotoURL = photoURL.String
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	user.LastLoginAt = time.Unix(lastLogin, 0)
	return &user, nil
}

// UpsertUser creates a user or merges profile fields into an existing one.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (id, name, email, photo_url, role, status, is_onboarded,
	                   created_at, updated_at, last_login_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		email = excluded.email,
		photo_url = COALESCE(excluded.photo_url, users.photo_url),
		updated_at = excluded.updated_at,
		last_login_at = excluded.last_login_at`

	var photoURL any
	if user.PhotoURL != "" {
		photoURL = user.PhotoURL
	}

	return shared.RetryOnConflict(ctx, "upsert user", shared.DefaultRetryPolicy, func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.ID, user.Name, user.Email, photoURL, user.Role, user.Status, user.IsOnboarded,
			user.CreatedAt.Unix(), user.UpdatedAt.Unix(), user.LastLoginAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		return nil
	})
}

// TouchLastLogin records a successful sign-in.
func (s *SQLiteStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, at.Unix(), at.Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_login_at: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("TouchLastLogin affected 0 rows", "user_id", userID)
	}
	return nil
}

// CreateInterview stores a new interview.
func (s *SQLiteStore) CreateInterview(ctx context.Context, interview *domain.Interview) error {
	techStack, err := json.Marshal(nonNil(interview.TechStack))
	if err != nil {
		return fmt.Errorf("encode techstack: %w", err)
	}
	questions, err := json.Marshal(nonNil(interview.Questions))
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}

	query := `
	INSERT INTO interviews (id, user_id, role, level, type, techstack_json,
	                        questions_json, finalized, cover_image, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, "create interview", shared.DefaultRetryPolicy, func() error {
		_, err := s.db.ExecContext(ctx, query,
			interview.ID, interview.UserID, interview.Role, interview.Level, interview.Type,
			string(techStack), string(questions), interview.Finalized, interview.CoverImage,
			interview.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert interview: %w", err)
		}
		return nil
	})
}

const interviewColumns = `id, user_id, role, level, type, techstack_json, questions_json,
	finalized, cover_image, created_at`

// GetInterview retrieves an interview by ID.
func (s *SQLiteStore) GetInterview(ctx context.Context, interviewID string) (*domain.Interview, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, interviewID)
	interview, err := scanInterview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return interview, nil
}

// ListInterviewsByUser returns a user's interviews, newest first.
func (s *SQLiteStore) ListInterviewsByUser(ctx context.Context, userID string) ([]*domain.Interview, error) {
	query := `SELECT ` + interviewColumns + ` FROM interviews
		WHERE user_id = ? ORDER BY created_at DESC, id`
	return s.queryInterviews(ctx, query, userID)
}

// ListLatestInterviews returns finalized interviews of other users, newest first.
func (s *SQLiteStore) ListLatestInterviews(ctx context.Context, excludeUserID string, limit int) ([]*domain.Interview, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + interviewColumns + ` FROM interviews
		WHERE finalized = 1 AND user_id != ? ORDER BY created_at DESC, id LIMIT ?`
	return s.queryInterviews(ctx, query, excludeUserID, limit)
}

func (s *SQLiteStore) queryInterviews(ctx context.Context, query string, args ...any) ([]*domain.Interview, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interviews: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close interview rows", "error", closeErr)
		}
	}()

	interviews := []*domain.Interview{}
	for rows.Next() {
		interview, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		interviews = append(interviews, interview)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interviews: %w", err)
	}
	return interviews, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner) (*domain.Interview, error) {
	var interview domain.Interview
	var techStack, questions string
	var coverImage sql.NullString
	var createdAt int64

	err := row.Scan(
		&interview.ID, &interview.UserID, &interview.Role, &interview.Level, &interview.Type,
		&techStack, &questions, &interview.Finalized, &coverImage, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan interview row: %w", err)
	}

	if err := json.Unmarshal([]byte(techStack), &interview.TechStack); err != nil {
		return nil, fmt.Errorf("decode techstack: %w", err)
	}
	if err := json.Unmarshal([]byte(questions), &interview.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	interview.CoverImage = coverImage.String
	interview.CreatedAt = time.Unix(createdAt, 0)
	return &interview, nil
}

// SaveFeedback creates or overwrites feedback by ID.
func (s *SQLiteStore) SaveFeedback(ctx context.Context, feedback *domain.Feedback) error {
	categories, err := json.Marshal(nonNil(feedback.CategoryScores))
	if err != nil {
		return fmt.Errorf("encode category scores: %w", err)
	}
	strengths, err := json.Marshal(nonNil(feedback.Strengths))
	if err != nil {
		return fmt.Errorf("encode strengths: %w", err)
	}
	improvements, err := json.Marshal(nonNil(feedback.AreasForImprovement))
	if err != nil {
		return fmt.Errorf("encode areas for improvement: %w", err)
	}
	transcript, err := json.Marshal(nonNil(feedback.Transcript))
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	query := `
	INSERT INTO feedback (id, interview_id, user_id, total_score, category_scores_json,
	                      strengths_json, improvements_json, final_assessment,
	                      transcript_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		total_score = excluded.total_score,
		category_scores_json = excluded.category_scores_json,
		strengths_json = excluded.strengths_json,
		improvements_json = excluded.improvements_json,
		final_assessment = excluded.final_assessment,
		transcript_json = excluded.transcript_json,
		created_at = excluded.created_at`

	return shared.RetryOnConflict(ctx, "save feedback", shared.DefaultRetryPolicy, func() error {
		_, err := s.db.ExecContext(ctx, query,
			feedback.ID, feedback.InterviewID, feedback.UserID, feedback.TotalScore,
			string(categories), string(strengths), string(improvements),
			feedback.FinalAssessment, string(transcript), feedback.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("save feedback: %w", err)
		}
		return nil
	})
}

// GetFeedback retrieves a user's feedback for an interview.
func (s *SQLiteStore) GetFeedback(ctx context.Context, interviewID, userID string) (*domain.Feedback, error) {
	query := `
		SELECT id, interview_id, user_id, total_score, category_scores_json,
		       strengths_json, improvements_json, final_assessment,
		       transcript_json, created_at
		FROM feedback WHERE interview_id = ? AND user_id = ?`

	row := s.db.QueryRowContext(ctx, query, interviewID, userID)

	var fb domain.Feedback
	var categories, strengths, improvements, transcript string
	var createdAt int64

	err := row.Scan(
		&fb.ID, &fb.InterviewID, &fb.UserID, &fb.TotalScore, &categories,
		&strengths, &improvements, &fb.FinalAssessment, &transcript, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan feedback row: %w", err)
	}

	for _, field := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"category scores", categories, &fb.CategoryScores},
		{"strengths", strengths, &fb.Strengths},
		{"areas for improvement", improvements, &fb.AreasForImprovement},
		{"transcript", transcript, &fb.Transcript},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", field.name, err)
		}
	}
	fb.CreatedAt = time.Unix(createdAt, 0)
	return &fb, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
