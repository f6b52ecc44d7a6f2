package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/store"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/store/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if INTERVIEW_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("INTERVIEW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INTERVIEW_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema and
// closes it when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS answer_chunks CASCADE",
		"DROP TABLE IF EXISTS turns CASCADE",
		"DROP TABLE IF EXISTS sessions CASCADE",
	} {
		if _, err := cleanPool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema %q: %v", stmt, err)
		}
	}

	s, err := postgres.NewStore(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSessions_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, store.Session{
		Resume:   "Go engineer, five years, mostly payments.",
		Question: "Walk me through the payments platform.",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create: expected a generated ID")
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Resume != created.Resume || got.Question != created.Question {
		t.Errorf("Get: got %+v", got)
	}
	if got.Completed {
		t.Error("new session must not be completed")
	}

	// Record two turns.
	after, err := s.AppendTurn(ctx, created.ID, "I led the ledger rewrite.", "What broke during the rewrite?")
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if len(after.Turns) != 1 {
		t.Fatalf("Turns: want 1, got %d", len(after.Turns))
	}
	if after.Turns[0].Question != created.Question {
		t.Errorf("Turns[0].Question: want %q, got %q", created.Question, after.Turns[0].Question)
	}
	if after.Question != "What broke during the rewrite?" {
		t.Errorf("pending question: got %q", after.Question)
	}

	done, err := s.Complete(ctx, created.ID, "Mostly idempotency bugs.", "Strong candidate. 8/10.")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !done.Completed || done.Report == "" {
		t.Errorf("Complete: got %+v", done)
	}
	if len(done.Turns) != 2 {
		t.Errorf("Turns after complete: want 2, got %d", len(done.Turns))
	}
	if done.Question != "" {
		t.Errorf("pending question after complete: got %q", done.Question)
	}

	// Writes after completion are rejected.
	if _, err := s.AppendTurn(ctx, created.ID, "late", "Q"); !errors.Is(err, store.ErrSessionClosed) {
		t.Errorf("AppendTurn closed: want ErrSessionClosed, got %v", err)
	}
}

func TestSessions_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get: want ErrNotFound, got %v", err)
	}
	if _, err := s.AppendTurn(ctx, "missing", "A", "Q"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("AppendTurn: want ErrNotFound, got %v", err)
	}
}

func TestAnswers_IndexAndSimilar(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []store.AnswerChunk{
		{ID: "c1", SessionID: "s1", Question: "Q1", Answer: "Kafka fan-out", Embedding: []float32{1, 0, 0, 0}},
		{ID: "c2", SessionID: "s1", Question: "Q2", Answer: "Postgres tuning", Embedding: []float32{0, 1, 0, 0}},
		{ID: "c3", SessionID: "s2", Question: "Q1", Answer: "gRPC streaming", Embedding: []float32{0, 0, 1, 0}},
	}
	for _, c := range chunks {
		if err := s.IndexAnswer(ctx, c); err != nil {
			t.Fatalf("IndexAnswer %s: %v", c.ID, err)
		}
	}

	matches, err := s.Similar(ctx, []float32{1, 0, 0, 0}, 3, store.AnswerFilter{})
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("Similar topK=3: want 3, got %d", len(matches))
	}
	if matches[0].Chunk.ID != "c1" {
		t.Errorf("closest: want c1, got %s (distance %.4f)", matches[0].Chunk.ID, matches[0].Distance)
	}

	// Session scope.
	scoped, err := s.Similar(ctx, []float32{0, 0, 1, 0}, 10, store.AnswerFilter{SessionID: "s2"})
	if err != nil {
		t.Fatalf("Similar scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Chunk.ID != "c3" {
		t.Errorf("session scope: got %+v", scoped)
	}

	// Upsert replaces the chunk.
	updated := chunks[0]
	updated.Answer = "Updated answer"
	updated.Embedding = []float32{0, 0, 0, 1}
	if err := s.IndexAnswer(ctx, updated); err != nil {
		t.Fatalf("IndexAnswer upsert: %v", err)
	}
	upserted, err := s.Similar(ctx, []float32{0, 0, 0, 1}, 1, store.AnswerFilter{})
	if err != nil {
		t.Fatalf("Similar after upsert: %v", err)
	}
	if len(upserted) != 1 || upserted[0].Chunk.Answer != "Updated answer" {
		t.Errorf("upsert: got %+v", upserted)
	}

	// Time filter.
	none, err := s.Similar(ctx, []float32{1, 0, 0, 0}, 10, store.AnswerFilter{Before: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("Similar before: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("before filter: want 0, got %d", len(none))
	}
}
