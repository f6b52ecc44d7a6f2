package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/store"
)

// IndexAnswer implements [store.AnswerIndex.IndexAnswer]. A chunk with the
// same ID is completely replaced.
func (s *Store) IndexAnswer(ctx context.Context, chunk store.AnswerChunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("answer index: chunk id must not be empty")
	}

	const q = `
		INSERT INTO answer_chunks (id, session_id, question, answer, embedding, timestamp)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		ON CONFLICT (id) DO UPDATE SET
		    session_id = EXCLUDED.session_id,
		    question   = EXCLUDED.question,
		    answer     = EXCLUDED.answer,
		    embedding  = EXCLUDED.embedding,
		    timestamp  = EXCLUDED.timestamp`

	var ts any
	if !chunk.Timestamp.IsZero() {
		ts = chunk.Timestamp
	}

	vec := pgvector.NewVector(chunk.Embedding)
	_, err := s.pool.Exec(ctx, q,
		chunk.ID,
		chunk.SessionID,
		chunk.Question,
		chunk.Answer,
		vec,
		ts,
	)
	if err != nil {
		return fmt.Errorf("answer index: index chunk: %w", err)
	}
	return nil
}

// Similar implements [store.AnswerIndex.Similar]. Results are ordered by
// ascending cosine distance (most similar first).
func (s *Store) Similar(ctx context.Context, embedding []float32, topK int, filter store.AnswerFilter) ([]store.AnswerMatch, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec} // $1 = query vector
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = "+next(filter.SessionID))
	}
	if !filter.Before.IsZero() {
		conditions = append(conditions, "timestamp < "+next(filter.Before))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, "\n  AND ")
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, session_id, question, answer, embedding, timestamp,
		       embedding <=> $1 AS distance
		FROM   answer_chunks
		%s
		ORDER  BY distance
		LIMIT  %s`, whereClause, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("answer index: search: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.AnswerMatch, error) {
		var (
			m   store.AnswerMatch
			vec pgvector.Vector
		)
		if err := row.Scan(
			&m.Chunk.ID,
			&m.Chunk.SessionID,
			&m.Chunk.Question,
			&m.Chunk.Answer,
			&vec,
			&m.Chunk.Timestamp,
			&m.Distance,
		); err != nil {
			return store.AnswerMatch{}, err
		}
		m.Chunk.Embedding = vec.Slice()
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("answer index: scan rows: %w", err)
	}
	if matches == nil {
		matches = []store.AnswerMatch{}
	}
	return matches, nil
}
