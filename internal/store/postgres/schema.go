package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT         PRIMARY KEY,
    resume      TEXT         NOT NULL,
    question    TEXT         NOT NULL DEFAULT '',
    report      TEXT         NOT NULL DEFAULT '',
    completed   BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS turns (
    id           BIGSERIAL    PRIMARY KEY,
    session_id   TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    position     INT          NOT NULL,
    question     TEXT         NOT NULL,
    answer       TEXT         NOT NULL,
    answered_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (session_id, position)
);

CREATE INDEX IF NOT EXISTS idx_turns_session_id
    ON turns (session_id);
`

// ddlAnswerChunks returns the answer index DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlAnswerChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS answer_chunks (
    id          TEXT         PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    question    TEXT         NOT NULL DEFAULT '',
    answer      TEXT         NOT NULL,
    embedding   vector(%d),
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_answer_chunks_session_id
    ON answer_chunks (session_id);

CREATE INDEX IF NOT EXISTS idx_answer_chunks_embedding
    ON answer_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlSessions,
		ddlAnswerChunks(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
