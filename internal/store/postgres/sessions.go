package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/store"
)

// Create implements [store.SessionStore.Create].
func (s *Store) Create(ctx context.Context, sess store.Session) (store.Session, error) {
	if sess.ID == "" {
		id, err := generateID()
		if err != nil {
			return store.Session{}, fmt.Errorf("session store: generate id: %w", err)
		}
		sess.ID = id
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	sess.UpdatedAt = sess.CreatedAt

	const q = `
		INSERT INTO sessions (id, resume, question, report, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q,
		sess.ID,
		sess.Resume,
		sess.Question,
		sess.Report,
		sess.Completed,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		return store.Session{}, fmt.Errorf("session store: create: %w", err)
	}
	return sess, nil
}

// Get implements [store.SessionStore.Get].
func (s *Store) Get(ctx context.Context, id string) (store.Session, error) {
	const q = `
		SELECT id, resume, question, report, completed, created_at, updated_at
		FROM   sessions
		WHERE  id = $1`

	var sess store.Session
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&sess.ID,
		&sess.Resume,
		&sess.Question,
		&sess.Report,
		&sess.Completed,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Session{}, store.ErrNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("session store: get: %w", err)
	}

	turns, err := s.loadTurns(ctx, id)
	if err != nil {
		return store.Session{}, err
	}
	sess.Turns = turns
	return sess, nil
}

// AppendTurn implements [store.SessionStore.AppendTurn]. The turn insert and
// the question swap happen in one transaction.
func (s *Store) AppendTurn(ctx context.Context, id, answer, nextQuestion string) (store.Session, error) {
	if err := s.recordTurn(ctx, id, answer, nextQuestion, "", false); err != nil {
		return store.Session{}, err
	}
	return s.Get(ctx, id)
}

// Complete implements [store.SessionStore.Complete].
func (s *Store) Complete(ctx context.Context, id, answer, report string) (store.Session, error) {
	if err := s.recordTurn(ctx, id, answer, "", report, true); err != nil {
		return store.Session{}, err
	}
	return s.Get(ctx, id)
}

// recordTurn appends the answer to the session's pending question and updates
// the session row. The pending question is read under FOR UPDATE so two
// concurrent submissions cannot record the same turn twice.
func (s *Store) recordTurn(ctx context.Context, id, answer, nextQuestion, report string, complete bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("session store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		question  string
		completed bool
	)
	err = tx.QueryRow(ctx,
		`SELECT question, completed FROM sessions WHERE id = $1 FOR UPDATE`, id,
	).Scan(&question, &completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("session store: lock session: %w", err)
	}
	if completed {
		return store.ErrSessionClosed
	}

	const insertTurn = `
		INSERT INTO turns (session_id, position, question, answer)
		SELECT $1, COALESCE(MAX(position), 0) + 1, $2, $3
		FROM   turns
		WHERE  session_id = $1`

	if _, err := tx.Exec(ctx, insertTurn, id, question, answer); err != nil {
		return fmt.Errorf("session store: insert turn: %w", err)
	}

	const updateSession = `
		UPDATE sessions
		SET    question = $2, report = $3, completed = $4, updated_at = now()
		WHERE  id = $1`

	if _, err := tx.Exec(ctx, updateSession, id, nextQuestion, report, complete); err != nil {
		return fmt.Errorf("session store: update session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("session store: commit: %w", err)
	}
	return nil
}

// loadTurns returns the session's turns in interview order.
func (s *Store) loadTurns(ctx context.Context, id string) ([]store.Turn, error) {
	const q = `
		SELECT question, answer, answered_at
		FROM   turns
		WHERE  session_id = $1
		ORDER  BY position`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("session store: load turns: %w", err)
	}

	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Turn, error) {
		var t store.Turn
		if err := row.Scan(&t.Question, &t.Answer, &t.AnsweredAt); err != nil {
			return store.Turn{}, err
		}
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session store: scan turns: %w", err)
	}
	return turns, nil
}

// generateID produces a random 16-byte hex string using crypto/rand.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
