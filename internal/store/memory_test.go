package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemStore_CreateAndGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	created, err := s.Create(ctx, Session{
		Resume:   "Go engineer, five years.",
		Question: "Tell me about your current role.",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create: expected a generated ID")
	}
	if created.CreatedAt.IsZero() {
		t.Error("Create: CreatedAt not set")
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Resume != created.Resume || got.Question != created.Question {
		t.Errorf("Get: got %+v", got)
	}
}

func TestMemStore_GetMissing(t *testing.T) {
	s := NewMemStore()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing: want ErrNotFound, got %v", err)
	}
}

func TestMemStore_CreateDuplicateID(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, Session{ID: "fixed", Question: "Q1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, Session{ID: "fixed", Question: "Q1"}); err == nil {
		t.Error("expected error for duplicate session id")
	}
}

func TestMemStore_AppendTurn(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	sess, _ := s.Create(ctx, Session{Question: "Q1"})

	after, err := s.AppendTurn(ctx, sess.ID, "A1", "Q2")
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if len(after.Turns) != 1 {
		t.Fatalf("Turns: want 1, got %d", len(after.Turns))
	}
	if after.Turns[0].Question != "Q1" || after.Turns[0].Answer != "A1" {
		t.Errorf("Turns[0] = %+v", after.Turns[0])
	}
	if after.Question != "Q2" {
		t.Errorf("Question: want Q2, got %q", after.Question)
	}

	if _, err := s.AppendTurn(ctx, "missing", "A", "Q"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendTurn missing: want ErrNotFound, got %v", err)
	}
}

func TestMemStore_Complete(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	sess, _ := s.Create(ctx, Session{Question: "Q5"})

	done, err := s.Complete(ctx, sess.ID, "final answer", "solid interview")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !done.Completed {
		t.Error("session not marked completed")
	}
	if done.Report != "solid interview" {
		t.Errorf("Report = %q", done.Report)
	}
	if len(done.Turns) != 1 || done.Turns[0].Answer != "final answer" {
		t.Errorf("final turn not recorded: %+v", done.Turns)
	}

	// Writes after completion are rejected.
	if _, err := s.AppendTurn(ctx, sess.ID, "A", "Q"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("AppendTurn closed: want ErrSessionClosed, got %v", err)
	}
	if _, err := s.Complete(ctx, sess.ID, "A", "R"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Complete closed: want ErrSessionClosed, got %v", err)
	}
}

func TestMemStore_GetReturnsCopy(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	sess, _ := s.Create(ctx, Session{Question: "Q1"})
	s.AppendTurn(ctx, sess.ID, "A1", "Q2")

	got, _ := s.Get(ctx, sess.ID)
	got.Turns[0].Answer = "tampered"

	again, _ := s.Get(ctx, sess.ID)
	if again.Turns[0].Answer != "A1" {
		t.Error("stored session mutated through the returned copy")
	}
}

func TestMemStore_SimilarOrdering(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	chunks := []AnswerChunk{
		{ID: "c1", SessionID: "s1", Answer: "kafka fan-out", Embedding: []float32{1, 0, 0}},
		{ID: "c2", SessionID: "s1", Answer: "postgres tuning", Embedding: []float32{0, 1, 0}},
		{ID: "c3", SessionID: "s2", Answer: "grpc streaming", Embedding: []float32{0, 0, 1}},
	}
	for _, c := range chunks {
		if err := s.IndexAnswer(ctx, c); err != nil {
			t.Fatalf("IndexAnswer %s: %v", c.ID, err)
		}
	}

	matches, err := s.Similar(ctx, []float32{1, 0, 0}, 3, AnswerFilter{})
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("Similar: want 3, got %d", len(matches))
	}
	if matches[0].Chunk.ID != "c1" {
		t.Errorf("closest: want c1, got %s", matches[0].Chunk.ID)
	}
	if matches[0].Distance >= matches[1].Distance {
		t.Error("matches not ordered by ascending distance")
	}
}

func TestMemStore_SimilarFilters(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	s.IndexAnswer(ctx, AnswerChunk{ID: "c1", SessionID: "s1", Embedding: []float32{1, 0}})
	s.IndexAnswer(ctx, AnswerChunk{ID: "c2", SessionID: "s2", Embedding: []float32{1, 0}})

	scoped, err := s.Similar(ctx, []float32{1, 0}, 10, AnswerFilter{SessionID: "s2"})
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Chunk.ID != "c2" {
		t.Errorf("session filter: got %+v", scoped)
	}

	none, err := s.Similar(ctx, []float32{1, 0}, 10, AnswerFilter{Before: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("Similar before: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("before filter: want 0, got %d", len(none))
	}
}

func TestMemStore_SimilarTopK(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	for _, c := range []AnswerChunk{
		{ID: "c1", Embedding: []float32{1, 0}},
		{ID: "c2", Embedding: []float32{0.9, 0.1}},
		{ID: "c3", Embedding: []float32{0, 1}},
	} {
		s.IndexAnswer(ctx, c)
	}

	matches, _ := s.Similar(ctx, []float32{1, 0}, 2, AnswerFilter{})
	if len(matches) != 2 {
		t.Errorf("topK=2: want 2, got %d", len(matches))
	}
}

func TestMemStore_IndexAnswerUpsert(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	s.IndexAnswer(ctx, AnswerChunk{ID: "c1", Answer: "old", Embedding: []float32{1, 0}})
	s.IndexAnswer(ctx, AnswerChunk{ID: "c1", Answer: "new", Embedding: []float32{0, 1}})

	matches, _ := s.Similar(ctx, []float32{0, 1}, 1, AnswerFilter{})
	if len(matches) != 1 || matches[0].Chunk.Answer != "new" {
		t.Errorf("upsert: got %+v", matches)
	}
}

func TestMemStore_IndexAnswerRequiresID(t *testing.T) {
	s := NewMemStore()
	if err := s.IndexAnswer(context.Background(), AnswerChunk{}); err == nil {
		t.Error("expected error for empty chunk id")
	}
}

func TestCosineDistance(t *testing.T) {
	if d := cosineDistance([]float32{1, 0}, []float32{1, 0}); d > 1e-9 {
		t.Errorf("identical vectors: want 0, got %v", d)
	}
	if d := cosineDistance([]float32{1, 0}, []float32{0, 1}); d < 0.99 {
		t.Errorf("orthogonal vectors: want ~1, got %v", d)
	}
	if d := cosineDistance([]float32{1, 0}, []float32{1}); d != 1 {
		t.Errorf("mismatched lengths: want 1, got %v", d)
	}
	if d := cosineDistance(nil, nil); d != 1 {
		t.Errorf("empty vectors: want 1, got %v", d)
	}
}
