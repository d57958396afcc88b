// Package postgres implements the PostgreSQL record store for the progress service.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROGRESS RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create progress_records table
-- Version: 001

CREATE TABLE IF NOT EXISTS progress_records (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    course_id BIGINT NOT NULL,
    completion_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_accessed TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    total_time_spent INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- One record per (user, course); concurrent first writes race on this.
    CONSTRAINT uq_progress_user_course UNIQUE (user_id, course_id),

    CONSTRAINT valid_completion CHECK (completion_percentage >= 0 AND completion_percentage <= 100),
    CONSTRAINT valid_time_spent CHECK (total_time_spent >= 0)
);

CREATE INDEX IF NOT EXISTS idx_progress_user_id ON progress_records(user_id);
CREATE INDEX IF NOT EXISTS idx_progress_course_id ON progress_records(course_id);
CREATE INDEX IF NOT EXISTS idx_progress_completion ON progress_records(course_id, completion_percentage);
`

const migration001Down = `
DROP TABLE IF EXISTS progress_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ASSESSMENT RESULTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create assessment_results table
-- Version: 002

CREATE TABLE IF NOT EXISTS assessment_results (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    assessment_id BIGINT NOT NULL,
    course_id BIGINT NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    max_score DOUBLE PRECISION NOT NULL,
    percentage_score DOUBLE PRECISION NOT NULL,
    attempt_number INTEGER NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    time_taken INTEGER NOT NULL DEFAULT 0,
    progress_id UUID NOT NULL REFERENCES progress_records(id),

    -- Backstop for attempt numbering: two writers that race past the
    -- row lock cannot both land the same attempt number.
    CONSTRAINT uq_assessment_attempt UNIQUE (user_id, assessment_id, attempt_number),

    CONSTRAINT valid_max_score CHECK (max_score > 0),
    CONSTRAINT valid_score CHECK (score >= 0),
    CONSTRAINT valid_percentage CHECK (percentage_score >= 0 AND percentage_score <= 100),
    CONSTRAINT valid_attempt CHECK (attempt_number >= 1),
    CONSTRAINT valid_time_taken CHECK (time_taken >= 0)
);

CREATE INDEX IF NOT EXISTS idx_assessment_user_id ON assessment_results(user_id);
CREATE INDEX IF NOT EXISTS idx_assessment_progress_id ON assessment_results(progress_id);
CREATE INDEX IF NOT EXISTS idx_assessment_user_course ON assessment_results(user_id, course_id);
`

const migration002Down = `
DROP TABLE IF EXISTS assessment_results;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create certificates table
-- Version: 003

CREATE TABLE IF NOT EXISTS certificates (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    course_id BIGINT NOT NULL,
    certificate_url TEXT NOT NULL,
    issued_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    final_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    is_valid BOOLEAN NOT NULL DEFAULT TRUE,

    CONSTRAINT valid_final_score CHECK (final_score >= 0 AND final_score <= 100)
);

-- At most one valid certificate per (user, course). Invalidated rows
-- stay as the audit trail of re-issuance.
CREATE UNIQUE INDEX IF NOT EXISTS uq_certificates_valid
    ON certificates(user_id, course_id) WHERE is_valid;

CREATE INDEX IF NOT EXISTS idx_certificates_user_id ON certificates(user_id, issued_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS certificates;
`
