// Package server implements the interview backend HTTP API.
//
// The API has two operations: POST /upload-resume starts a session from a
// resume and returns the first question, and POST /submit-answer records an
// answer and returns either the next question or the final report. Health
// probes and a Prometheus /metrics endpoint ride alongside.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/health"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/observe"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/question"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/store"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/embeddings"
)

const (
	// DefaultTotalTurns is the number of questions per interview.
	DefaultTotalTurns = 5

	// DefaultMaxResumeBytes caps the accepted resume upload size.
	DefaultMaxResumeBytes = 2 << 20
)

// Option configures a Server.
type Option func(*Server)

// WithAnswerIndex enables semantic indexing of submitted answers. Each
// recorded answer is embedded via embedder and upserted into index.
func WithAnswerIndex(index store.AnswerIndex, embedder embeddings.Provider) Option {
	return func(s *Server) {
		s.index = index
		s.embedder = embedder
	}
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger overrides the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithTotalTurns overrides the number of questions per interview.
func WithTotalTurns(n int) Option {
	return func(s *Server) {
		s.totalTurns = n
	}
}

// WithMaxResumeBytes overrides the resume upload size cap.
func WithMaxResumeBytes(n int64) Option {
	return func(s *Server) {
		s.maxResumeBytes = n
	}
}

// WithReadinessCheck registers a named readiness probe evaluated on /readyz.
func WithReadinessCheck(c health.Checker) Option {
	return func(s *Server) {
		s.checkers = append(s.checkers, c)
	}
}

// Server holds the handler dependencies. Construct with [New].
type Server struct {
	sessions  store.SessionStore
	questions *question.Generator

	index    store.AnswerIndex
	embedder embeddings.Provider

	metrics  *observe.Metrics
	log      *slog.Logger
	checkers []health.Checker

	totalTurns     int
	maxResumeBytes int64
}

// New creates a Server backed by the given session store and question
// generator.
func New(sessions store.SessionStore, questions *question.Generator, opts ...Option) (*Server, error) {
	var errs []error
	if sessions == nil {
		errs = append(errs, errors.New("server: session store must not be nil"))
	}
	if questions == nil {
		errs = append(errs, errors.New("server: question generator must not be nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	s := &Server{
		sessions:       sessions,
		questions:      questions,
		totalTurns:     DefaultTotalTurns,
		maxResumeBytes: DefaultMaxResumeBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.index != nil && s.embedder == nil {
		return nil, errors.New("server: answer index requires an embeddings provider")
	}
	if s.totalTurns < 1 {
		return nil, errors.New("server: total turns must be at least 1")
	}
	return s, nil
}

// Handler returns the full request router with observability middleware
// applied to the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload-resume", s.handleUploadResume)
	mux.HandleFunc("POST /submit-answer", s.handleSubmitAnswer)

	health.New(s.checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}
