package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Compile-time interface checks.
var (
	_ SessionStore = (*MemStore)(nil)
	_ AnswerIndex  = (*MemStore)(nil)
)

// MemStore is a thread-safe, in-memory implementation of [SessionStore]
// and [AnswerIndex]. It is the default backend when no database is
// configured and is suitable for testing.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	chunks   map[string]AnswerChunk
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]Session),
		chunks:   make(map[string]AnswerChunk),
	}
}

// Create implements [SessionStore.Create].
func (s *MemStore) Create(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		id, err := generateID()
		if err != nil {
			return Session{}, fmt.Errorf("store: generate id: %w", err)
		}
		sess.ID = id
	}
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return Session{}, fmt.Errorf("store: duplicate session id %q", sess.ID)
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return sess, nil
}

// Get implements [SessionStore.Get].
func (s *MemStore) Get(ctx context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return cloneSession(sess), nil
}

// AppendTurn implements [SessionStore.AppendTurn].
func (s *MemStore) AppendTurn(ctx context.Context, id, answer, nextQuestion string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if sess.Completed {
		return Session{}, ErrSessionClosed
	}

	now := time.Now()
	sess.Turns = append(sess.Turns, Turn{
		Question:   sess.Question,
		Answer:     answer,
		AnsweredAt: now,
	})
	sess.Question = nextQuestion
	sess.UpdatedAt = now
	s.sessions[id] = cloneSession(sess)
	return sess, nil
}

// Complete implements [SessionStore.Complete].
func (s *MemStore) Complete(ctx context.Context, id, answer, report string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if sess.Completed {
		return Session{}, ErrSessionClosed
	}

	now := time.Now()
	sess.Turns = append(sess.Turns, Turn{
		Question:   sess.Question,
		Answer:     answer,
		AnsweredAt: now,
	})
	sess.Question = ""
	sess.Report = report
	sess.Completed = true
	sess.UpdatedAt = now
	s.sessions[id] = cloneSession(sess)
	return sess, nil
}

// IndexAnswer implements [AnswerIndex.IndexAnswer].
func (s *MemStore) IndexAnswer(ctx context.Context, chunk AnswerChunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("store: index answer: chunk id must not be empty")
	}
	if chunk.Timestamp.IsZero() {
		chunk.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunk.ID] = chunk
	return nil
}

// Similar implements [AnswerIndex.Similar] with an exact linear scan.
func (s *MemStore) Similar(ctx context.Context, embedding []float32, topK int, filter AnswerFilter) ([]AnswerMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]AnswerMatch, 0, len(s.chunks))
	for _, c := range s.chunks {
		if filter.SessionID != "" && c.SessionID != filter.SessionID {
			continue
		}
		if !filter.Before.IsZero() && !c.Timestamp.Before(filter.Before) {
			continue
		}
		matches = append(matches, AnswerMatch{
			Chunk:    c,
			Distance: cosineDistance(embedding, c.Embedding),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// cloneSession copies the turn slice so callers cannot mutate stored state.
func cloneSession(s Session) Session {
	if s.Turns != nil {
		s.Turns = append([]Turn(nil), s.Turns...)
	}
	return s
}

// generateID produces a random 16-byte hex string using crypto/rand.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// cosineDistance returns 1 - cosine similarity. Mismatched or zero-length
// vectors are treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
