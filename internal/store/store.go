// Package store persists interview sessions and an embedding index over
// candidate answers.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session exists with the given ID.
	ErrNotFound = errors.New("store: session not found")
	// ErrSessionClosed is returned when writing to a completed session.
	ErrSessionClosed = errors.New("store: session already completed")
)

// Session is one mock interview: the resume it was started from, the
// completed exchanges, and the question currently awaiting an answer.
type Session struct {
	ID        string
	Resume    string
	Turns     []Turn
	Question  string
	Report    string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Turn is a completed question/answer exchange within a session.
type Turn struct {
	Question   string
	Answer     string
	AnsweredAt time.Time
}

// SessionStore persists interview sessions.
//
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Create inserts a new session. If s.ID is empty an ID is generated;
	// the stored session is returned.
	Create(ctx context.Context, s Session) (Session, error)

	// Get returns the session with the given ID, or [ErrNotFound].
	Get(ctx context.Context, id string) (Session, error)

	// AppendTurn records the answer to the session's current question and
	// installs nextQuestion as the new pending question. Returns
	// [ErrSessionClosed] if the session is already completed.
	AppendTurn(ctx context.Context, id, answer, nextQuestion string) (Session, error)

	// Complete records the answer to the final question together with the
	// evaluation report and marks the session completed.
	Complete(ctx context.Context, id, answer, report string) (Session, error)
}

// AnswerChunk is one embedded candidate answer, indexed for similarity
// search across sessions.
type AnswerChunk struct {
	ID        string
	SessionID string
	Question  string
	Answer    string
	Embedding []float32
	Timestamp time.Time
}

// AnswerMatch is a similarity search hit. Distance is the cosine distance
// to the query embedding; lower is more similar.
type AnswerMatch struct {
	Chunk    AnswerChunk
	Distance float64
}

// AnswerFilter narrows a similarity search.
type AnswerFilter struct {
	// SessionID restricts results to a single session when non-empty.
	SessionID string
	// Before excludes chunks indexed at or after the given time when set.
	Before time.Time
}

// AnswerIndex stores embedded answers and finds the nearest ones to a
// query embedding.
//
// Implementations must be safe for concurrent use.
type AnswerIndex interface {
	// IndexAnswer upserts a pre-embedded answer chunk. A chunk with the
	// same ID is replaced.
	IndexAnswer(ctx context.Context, chunk AnswerChunk) error

	// Similar returns up to topK chunks ordered by ascending cosine
	// distance from embedding, optionally narrowed by filter.
	Similar(ctx context.Context, embedding []float32, topK int, filter AnswerFilter) ([]AnswerMatch, error)
}
