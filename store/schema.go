package store

// schemaSQL returns the DDL for all tables.
const schemaSQL = `
-- Quiz registry with hash-based duplicate detection (SPEC_FULL §3).
CREATE TABLE IF NOT EXISTS quizzes (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    document_url TEXT NOT NULL,
    document_kind TEXT NOT NULL,
    content_hash TEXT NOT NULL UNIQUE,
    state TEXT NOT NULL DEFAULT 'Pending',
    total_questions INTEGER NOT NULL DEFAULT 0,
    processed_questions INTEGER NOT NULL DEFAULT 0,
    section_counts JSON,
    owner TEXT,
    deleted INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per question; choices stored as a JSON array of
-- {key, text, is_visually_marked}.
CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY,
    quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    stem TEXT NOT NULL,
    choices JSON NOT NULL,
    correct_answer_key TEXT,
    explanation TEXT,
    source TEXT NOT NULL DEFAULT 'AI_Generated',
    section TEXT NOT NULL DEFAULT 'Nội dung chung',
    UNIQUE(quiz_id, idx)
);

-- Semantic cache: (stem_hash, choices_hash) -> first authoritative answer.
-- Writes are upsert-only; correct_key/explanation/provider are never
-- overwritten once set (SPEC_FULL §3, §4.3).
CREATE TABLE IF NOT EXISTS cached_answers (
    stem_hash TEXT NOT NULL,
    choices_hash TEXT NOT NULL,
    correct_key TEXT NOT NULL,
    explanation TEXT,
    confidence REAL,
    provider TEXT NOT NULL,
    hit_count INTEGER NOT NULL DEFAULT 1,
    last_hit_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (stem_hash, choices_hash)
);

-- Durable audit record of queue jobs, mirroring the Redis-backed live
-- queue (SPEC_FULL §4.7) so job history survives a Redis flush.
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
    document_url TEXT NOT NULL,
    document_type TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    next_attempt DATETIME,
    state TEXT NOT NULL DEFAULT 'queued',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_quizzes_hash ON quizzes(content_hash);
CREATE INDEX IF NOT EXISTS idx_quizzes_state ON quizzes(state);
CREATE INDEX IF NOT EXISTS idx_questions_quiz ON questions(quiz_id);
CREATE INDEX IF NOT EXISTS idx_jobs_quiz ON jobs(quiz_id);
CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
`
