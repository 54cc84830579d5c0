package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fitstack/coach/pkg/models"
)

// SQLiteStores implements the store interfaces on a single SQLite database.
type SQLiteStores struct {
	db *sql.DB
}

// NewSQLiteStoreSet opens (creating if needed) a SQLite database at dbPath
// and returns a StoreSet backed by it.
func NewSQLiteStoreSet(dbPath string) (StoreSet, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return StoreSet{}, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps readers from blocking the writer.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return StoreSet{}, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return StoreSet{}, fmt.Errorf("ping database: %w", err)
	}

	stores := &SQLiteStores{db: db}
	if err := stores.initSchema(); err != nil {
		db.Close()
		return StoreSet{}, fmt.Errorf("initialize schema: %w", err)
	}

	return StoreSet{
		Profiles:      stores,
		Plans:         stores,
		Conversations: stores,
		closer:        db.Close,
	}, nil
}

func (s *SQLiteStores) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		experience_level TEXT NOT NULL DEFAULT '',
		primary_goal TEXT NOT NULL DEFAULT '',
		schedule_prefs TEXT NOT NULL DEFAULT '',
		meal_prefs TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plans (
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		items_json TEXT NOT NULL DEFAULT '[]',
		generated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, kind)
	);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_user_created ON turns(user_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStores) Create(ctx context.Context, profile *models.Profile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("profile with user id is required")
	}
	now := time.Now()
	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, experience_level, primary_goal, schedule_prefs, meal_prefs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profile.UserID, profile.ExperienceLevel, profile.PrimaryGoal,
		profile.SchedulePrefs, profile.MealPrefs, createdAt.UnixMilli(), createdAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *SQLiteStores) Get(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, experience_level, primary_goal, schedule_prefs, meal_prefs, created_at, updated_at
		FROM profiles WHERE user_id = ?`, userID)

	var profile models.Profile
	var createdAt, updatedAt int64
	err := row.Scan(&profile.UserID, &profile.ExperienceLevel, &profile.PrimaryGoal,
		&profile.SchedulePrefs, &profile.MealPrefs, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	profile.CreatedAt = time.UnixMilli(createdAt)
	profile.UpdatedAt = time.UnixMilli(updatedAt)
	return &profile, nil
}

func (s *SQLiteStores) Update(ctx context.Context, profile *models.Profile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("profile with user id is required")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET experience_level = ?, primary_goal = ?, schedule_prefs = ?, meal_prefs = ?, updated_at = ?
		WHERE user_id = ?`,
		profile.ExperienceLevel, profile.PrimaryGoal, profile.SchedulePrefs,
		profile.MealPrefs, time.Now().UnixMilli(), profile.UserID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStores) Put(ctx context.Context, userID string, plan *models.PlanSnapshot) error {
	if userID == "" || plan == nil {
		return fmt.Errorf("user id and plan are required")
	}
	items, err := json.Marshal(plan.Items)
	if err != nil {
		return fmt.Errorf("encode plan items: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (user_id, kind, title, summary, items_json, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, kind) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			items_json = excluded.items_json,
			generated_at = excluded.generated_at`,
		userID, string(plan.Kind), plan.Title, plan.Summary, string(items), plan.GeneratedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

func (s *SQLiteStores) List(ctx context.Context, userID string) ([]models.PlanSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, title, summary, items_json, generated_at
		FROM plans WHERE user_id = ? ORDER BY kind`, userID)
	if err != nil {
		return nil, fmt.Errorf("select plans: %w", err)
	}
	defer rows.Close()

	var plans []models.PlanSnapshot
	for rows.Next() {
		var plan models.PlanSnapshot
		var kind, itemsJSON string
		var generatedAt int64
		if err := rows.Scan(&kind, &plan.Title, &plan.Summary, &itemsJSON, &generatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plan.Kind = models.PlanKind(kind)
		plan.GeneratedAt = time.UnixMilli(generatedAt)
		if err := json.Unmarshal([]byte(itemsJSON), &plan.Items); err != nil {
			return nil, fmt.Errorf("decode plan items: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (s *SQLiteStores) Append(ctx context.Context, userID string, turn *models.ConversationTurn) error {
	if userID == "" || turn == nil {
		return fmt.Errorf("user id and turn are required")
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, user_id, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		turn.ID, userID, string(turn.Role), turn.Text, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func (s *SQLiteStores) Recent(ctx context.Context, userID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		limit = 20
	}
	// Newest N selected descending, then reversed to chronological order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, text, created_at
		FROM turns WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select turns: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var turn models.ConversationTurn
		var createdAt int64
		if err := rows.Scan(&turn.ID, &turn.Role, &turn.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.CreatedAt = time.UnixMilli(createdAt)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
