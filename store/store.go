package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Choice is one answer option, stored as part of a question's JSON column.
type Choice struct {
	Key              string `json:"key"`
	Text             string `json:"text"`
	IsVisuallyMarked bool   `json:"is_visually_marked"`
}

// Quiz represents a row in the quizzes table.
type Quiz struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	DocumentURL        string `json:"document_url"`
	DocumentKind       string `json:"document_kind"`
	ContentHash        string `json:"content_hash"`
	State              string `json:"state"`
	TotalQuestions     int    `json:"total_questions"`
	ProcessedQuestions int    `json:"processed_questions"`
	SectionCounts      string `json:"section_counts,omitempty"` // JSON-encoded []SectionCount
	Owner              string `json:"owner,omitempty"`
	Deleted            bool   `json:"deleted"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// Question represents a row in the questions table.
type Question struct {
	ID               int64    `json:"id"`
	QuizID           int64    `json:"quiz_id"`
	Index            int      `json:"idx"`
	Stem             string   `json:"stem"`
	Choices          []Choice `json:"choices"`
	CorrectAnswerKey string   `json:"correct_answer_key,omitempty"`
	Explanation      string   `json:"explanation,omitempty"`
	Source           string   `json:"source"`
	Section          string   `json:"section"`
}

// CachedAnswer represents a row in the cached_answers table.
type CachedAnswer struct {
	StemHash    string   `json:"stem_hash"`
	ChoicesHash string   `json:"choices_hash"`
	CorrectKey  string   `json:"correct_key"`
	Explanation string   `json:"explanation,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Provider    string   `json:"provider"`
	HitCount    int      `json:"hit_count"`
	LastHitAt   string   `json:"last_hit_at"`
}

// Job represents a row in the jobs audit table.
type Job struct {
	ID           string `json:"id"`
	QuizID       int64  `json:"quiz_id"`
	DocumentURL  string `json:"document_url"`
	DocumentType string `json:"document_type"`
	Attempts     int    `json:"attempts"`
	NextAttempt  string `json:"next_attempt,omitempty"`
	State        string `json:"state"`
}

// Store wraps the SQLite database backing the pipeline's quiz/question/
// cache/job tables.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initializes the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// --- Quiz operations ---

// UpsertQuiz inserts a new quiz keyed by content_hash, or returns the
// existing quiz's ID unchanged if the hash already exists — this is the
// duplicate-upload detection path (SPEC_FULL §3, §4.6).
func (s *Store) UpsertQuiz(ctx context.Context, q Quiz) (id int64, duplicate bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quizzes (title, document_url, document_kind, content_hash, state, total_questions)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`, q.Title, q.DocumentURL, q.DocumentKind, q.ContentHash, q.State, q.TotalQuestions)
	if err != nil {
		return 0, false, err
	}

	newID, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	if newID != 0 {
		n, _ := res.RowsAffected()
		if n > 0 {
			return newID, false, nil
		}
	}

	row := s.db.QueryRowContext(ctx, "SELECT id FROM quizzes WHERE content_hash = ?", q.ContentHash)
	if err := row.Scan(&id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *Store) GetQuiz(ctx context.Context, id int64) (*Quiz, error) {
	q := &Quiz{}
	var sectionCounts, owner sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, document_url, document_kind, content_hash, state,
		       total_questions, processed_questions, section_counts, owner, deleted,
		       created_at, updated_at
		FROM quizzes WHERE id = ?
	`, id).Scan(&q.ID, &q.Title, &q.DocumentURL, &q.DocumentKind, &q.ContentHash, &q.State,
		&q.TotalQuestions, &q.ProcessedQuestions, &sectionCounts, &owner, &q.Deleted,
		&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.SectionCounts = sectionCounts.String
	q.Owner = owner.String
	return q, nil
}

func (s *Store) UpdateQuizState(ctx context.Context, id int64, state string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE quizzes SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", state, id)
	return err
}

// UpdateQuizProgress records the processed-question count, raising
// total_questions to match when it is lower so processed never exceeds
// total (SPEC_FULL §3 invariants).
func (s *Store) UpdateQuizProgress(ctx context.Context, id int64, processed int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE quizzes SET processed_questions = ?, total_questions = MAX(total_questions, ?), updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		processed, processed, id)
	return err
}

// UpdateQuizDocumentURL points a quiz at its long-term storage location
// after a successful BlobStore upload (SPEC_FULL §4.6 step 7).
func (s *Store) UpdateQuizDocumentURL(ctx context.Context, id int64, documentURL string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE quizzes SET document_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		documentURL, id)
	return err
}

func (s *Store) FinalizeQuiz(ctx context.Context, id int64, state, sectionCountsJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE quizzes SET state = ?, section_counts = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, state, sectionCountsJSON, id)
	return err
}

func (s *Store) SoftDeleteQuiz(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE quizzes SET deleted = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?", id)
	return err
}

func (s *Store) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, document_url, document_kind, content_hash, state,
		       total_questions, processed_questions, section_counts, owner, deleted,
		       created_at, updated_at
		FROM quizzes WHERE deleted = 0 ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Quiz
	for rows.Next() {
		var q Quiz
		var sectionCounts, owner sql.NullString
		if err := rows.Scan(&q.ID, &q.Title, &q.DocumentURL, &q.DocumentKind, &q.ContentHash, &q.State,
			&q.TotalQuestions, &q.ProcessedQuestions, &sectionCounts, &owner, &q.Deleted,
			&q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		q.SectionCounts = sectionCounts.String
		q.Owner = owner.String
		out = append(out, q)
	}
	return out, rows.Err()
}

// --- Question operations ---

// InsertQuestions bulk-inserts a quiz's parsed questions inside a single
// transaction.
func (s *Store) InsertQuestions(ctx context.Context, quizID int64, questions []Question) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO questions (quiz_id, idx, stem, choices, correct_answer_key, explanation, source, section)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(quiz_id, idx) DO UPDATE SET
				stem = excluded.stem,
				choices = excluded.choices,
				correct_answer_key = excluded.correct_answer_key,
				explanation = excluded.explanation,
				source = excluded.source,
				section = excluded.section
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, q := range questions {
			choicesJSON, err := json.Marshal(q.Choices)
			if err != nil {
				return fmt.Errorf("marshaling choices for question %d: %w", q.Index, err)
			}
			if _, err := stmt.ExecContext(ctx, quizID, q.Index, q.Stem, string(choicesJSON),
				nullableString(q.CorrectAnswerKey), nullableString(q.Explanation), q.Source, q.Section); err != nil {
				return fmt.Errorf("inserting question %d: %w", q.Index, err)
			}
		}
		return nil
	})
}

func (s *Store) GetQuestionsByQuiz(ctx context.Context, quizID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quiz_id, idx, stem, choices, correct_answer_key, explanation, source, section
		FROM questions WHERE quiz_id = ? ORDER BY idx
	`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		var choicesJSON string
		var correctKey, explanation sql.NullString
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Index, &q.Stem, &choicesJSON,
			&correctKey, &explanation, &q.Source, &q.Section); err != nil {
			return nil, err
		}
		q.CorrectAnswerKey = correctKey.String
		q.Explanation = explanation.String
		if err := json.Unmarshal([]byte(choicesJSON), &q.Choices); err != nil {
			return nil, fmt.Errorf("unmarshaling choices for question %d: %w", q.Index, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// UpdateQuestionAnswer writes an orchestrator-resolved answer onto a
// parsed question that had none (SPEC_FULL §4.6 precedence merge).
func (s *Store) UpdateQuestionAnswer(ctx context.Context, quizID int64, idx int, correctKey, explanation string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE questions SET correct_answer_key = ?, explanation = ?
		WHERE quiz_id = ? AND idx = ?
	`, correctKey, explanation, quizID, idx)
	return err
}

// --- Semantic cache operations ---

// LookupCachedAnswer returns the cached answer for a (stemHash,
// choicesHash) pair, incrementing its hit counter, or nil on miss
// (SPEC_FULL §4.3).
func (s *Store) LookupCachedAnswer(ctx context.Context, stemHash, choicesHash string) (*CachedAnswer, error) {
	a := &CachedAnswer{}
	var explanation sql.NullString
	var confidence sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT stem_hash, choices_hash, correct_key, explanation, confidence, provider, hit_count, last_hit_at
		FROM cached_answers WHERE stem_hash = ? AND choices_hash = ?
	`, stemHash, choicesHash).Scan(&a.StemHash, &a.ChoicesHash, &a.CorrectKey, &explanation,
		&confidence, &a.Provider, &a.HitCount, &a.LastHitAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	a.Explanation = explanation.String
	if confidence.Valid {
		a.Confidence = &confidence.Float64
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE cached_answers SET hit_count = hit_count + 1, last_hit_at = CURRENT_TIMESTAMP
		WHERE stem_hash = ? AND choices_hash = ?
	`, stemHash, choicesHash); err != nil {
		return nil, err
	}
	a.HitCount++
	return a, nil
}

// WriteCachedAnswer inserts a fresh cache entry. On an existing row it
// bumps the hit counter but leaves correct_key/explanation/provider
// untouched — the first authoritative answer is never overwritten
// (SPEC_FULL §3 invariant).
func (s *Store) WriteCachedAnswer(ctx context.Context, a CachedAnswer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cached_answers (stem_hash, choices_hash, correct_key, explanation, confidence, provider, hit_count)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(stem_hash, choices_hash) DO UPDATE SET
			hit_count = cached_answers.hit_count + 1,
			last_hit_at = CURRENT_TIMESTAMP
	`, a.StemHash, a.ChoicesHash, a.CorrectKey, nullableString(a.Explanation), a.Confidence, a.Provider)
	return err
}

// --- Job audit operations ---

func (s *Store) RecordJob(ctx context.Context, j Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, quiz_id, document_url, document_type, attempts, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			attempts = excluded.attempts,
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP
	`, j.ID, j.QuizID, j.DocumentURL, j.DocumentType, j.Attempts, j.State)
	return err
}

func (s *Store) UpdateJobState(ctx context.Context, id, state string, attempts int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, attempts = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, state, attempts, id)
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
