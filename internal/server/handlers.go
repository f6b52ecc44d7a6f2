package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/observe"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/question"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/service"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/store"
)

// indexTimeout bounds the background embedding of a recorded answer.
const indexTimeout = 30 * time.Second

// Recall parameters: how many related earlier answers feed the next
// question, and how dissimilar a match may be before it is ignored.
const (
	recallTopK        = 3
	recallMaxDistance = 0.6
)

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Error string `json:"error"`
}

// handleUploadResume starts a new interview session. It accepts a multipart
// form with the resume under the "file" field, generates the opening
// question, and returns the session ID.
func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxResumeBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing resume file upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read resume: "+err.Error())
		return
	}
	resume := strings.TrimSpace(string(data))
	if resume == "" {
		writeError(w, http.StatusBadRequest, "resume is empty")
		return
	}
	if !utf8.ValidString(resume) {
		writeError(w, http.StatusUnsupportedMediaType, "resume must be plain UTF-8 text")
		return
	}

	start := time.Now()
	first, err := s.questions.FirstQuestion(ctx, resume)
	s.metrics.QuestionDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordProviderRequest(ctx, "llm", "question", callStatus(err))
	if err != nil {
		s.metrics.RecordProviderError(ctx, "llm", "question")
		observe.Logger(ctx).Error("first question generation failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "question generation failed")
		return
	}

	sess, err := s.sessions.Create(ctx, store.Session{
		Resume:   resume,
		Question: first,
	})
	if err != nil {
		observe.Logger(ctx).Error("create session failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "create session failed")
		return
	}

	s.metrics.ActiveInterviews.Add(ctx, 1)
	observe.Logger(ctx).Info("session started",
		slog.String("session_id", sess.ID),
		slog.String("resume_file", header.Filename),
		slog.Int("resume_bytes", len(resume)),
	)

	writeJSON(w, http.StatusOK, service.StartResult{
		SessionID:     sess.ID,
		FirstQuestion: first,
	})
}

// handleSubmitAnswer records one answer against the session's pending
// question and replies with the next question, or with the final report when
// the configured number of turns is reached.
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req service.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := s.sessions.Get(ctx, req.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		observe.Logger(ctx).Error("load session failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "load session failed")
		return
	}
	if sess.Completed {
		writeError(w, http.StatusConflict, "session already completed")
		return
	}

	// The stored pending question is authoritative. A mismatched question in
	// the request means the client drifted, which is worth a log line but
	// not a rejection.
	if req.Question != "" && req.Question != sess.Question {
		observe.Logger(ctx).Warn("client question diverged from session",
			slog.String("session_id", sess.ID),
		)
	}

	answered := len(sess.Turns) + 1
	history := make([]question.Turn, 0, answered)
	for _, t := range sess.Turns {
		history = append(history, question.Turn{Question: t.Question, Answer: t.Answer})
	}
	history = append(history, question.Turn{Question: sess.Question, Answer: req.Answer})

	var res service.SubmitResult
	var answerVec []float32
	if answered >= s.totalTurns {
		genStart := time.Now()
		report, err := s.questions.FinalReport(ctx, sess.Resume, history)
		s.metrics.ReportDuration.Record(ctx, time.Since(genStart).Seconds())
		s.metrics.RecordProviderRequest(ctx, "llm", "report", callStatus(err))
		if err != nil {
			s.metrics.RecordProviderError(ctx, "llm", "report")
			s.metrics.RecordSubmission(ctx, "error")
			observe.Logger(ctx).Error("final report generation failed", slog.Any("error", err))
			writeError(w, http.StatusBadGateway, "report generation failed")
			return
		}

		if _, err := s.sessions.Complete(ctx, sess.ID, req.Answer, report); err != nil {
			s.metrics.RecordSubmission(ctx, "error")
			observe.Logger(ctx).Error("complete session failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "record answer failed")
			return
		}

		s.metrics.ActiveInterviews.Add(ctx, -1)
		s.metrics.RecordSubmission(ctx, "final")
		res = service.SubmitResult{FinalReport: report}
	} else {
		var covered []string
		covered, answerVec = s.recallCovered(ctx, sess.ID, req.Answer)

		genStart := time.Now()
		next, err := s.questions.NextQuestion(ctx, sess.Resume, history, covered)
		s.metrics.QuestionDuration.Record(ctx, time.Since(genStart).Seconds())
		s.metrics.RecordProviderRequest(ctx, "llm", "question", callStatus(err))
		if err != nil {
			s.metrics.RecordProviderError(ctx, "llm", "question")
			s.metrics.RecordSubmission(ctx, "error")
			observe.Logger(ctx).Error("next question generation failed", slog.Any("error", err))
			writeError(w, http.StatusBadGateway, "question generation failed")
			return
		}

		if _, err := s.sessions.AppendTurn(ctx, sess.ID, req.Answer, next); err != nil {
			s.metrics.RecordSubmission(ctx, "error")
			observe.Logger(ctx).Error("append turn failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "record answer failed")
			return
		}

		s.metrics.RecordSubmission(ctx, "next")
		res = service.SubmitResult{
			NextQuestion:  next,
			QuestionCount: answered + 1,
		}
	}

	s.indexAnswer(ctx, sess.ID, answered, sess.Question, req.Answer, answerVec)
	s.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, res)
}

// recallCovered embeds the just-given answer and looks up the closest
// earlier answers in the same session, returning the questions they
// responded to as ground the next question should avoid. The embedding is
// returned so the indexing path can reuse it. Recall never fails a
// submission; any error yields nil covered ground.
func (s *Server) recallCovered(ctx context.Context, sessionID, answer string) ([]string, []float32) {
	if s.index == nil || strings.TrimSpace(answer) == "" {
		return nil, nil
	}

	start := time.Now()
	vec, err := s.embedder.Embed(ctx, answer)
	s.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordProviderRequest(ctx, s.embedder.ModelID(), "embeddings", callStatus(err))
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.embedder.ModelID(), "embeddings")
		observe.Logger(ctx).Warn("answer embedding failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		return nil, nil
	}

	matches, err := s.index.Similar(ctx, vec, recallTopK, store.AnswerFilter{SessionID: sessionID})
	if err != nil {
		observe.Logger(ctx).Warn("answer recall failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		return nil, vec
	}

	var covered []string
	for _, m := range matches {
		if m.Distance > recallMaxDistance {
			continue
		}
		covered = append(covered, m.Chunk.Question)
	}
	return covered, vec
}

// indexAnswer upserts the recorded answer into the answer index in the
// background. vec is the answer embedding when the recall path already
// computed it; when nil the answer is embedded here. Failures are logged,
// never surfaced to the client.
func (s *Server) indexAnswer(ctx context.Context, sessionID string, turn int, questionText, answer string, vec []float32) {
	if s.index == nil || strings.TrimSpace(answer) == "" {
		return
	}

	log := observe.Logger(ctx)
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bgCtx, indexTimeout)
		defer cancel()

		if vec == nil {
			start := time.Now()
			var err error
			vec, err = s.embedder.Embed(ctx, answer)
			s.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
			s.metrics.RecordProviderRequest(ctx, s.embedder.ModelID(), "embeddings", callStatus(err))
			if err != nil {
				s.metrics.RecordProviderError(ctx, s.embedder.ModelID(), "embeddings")
				log.Warn("answer embedding failed",
					slog.String("session_id", sessionID),
					slog.Any("error", err),
				)
				return
			}
		}

		chunk := store.AnswerChunk{
			ID:        fmt.Sprintf("%s-turn-%d", sessionID, turn),
			SessionID: sessionID,
			Question:  questionText,
			Answer:    answer,
			Embedding: vec,
			Timestamp: time.Now(),
		}
		if err := s.index.IndexAnswer(ctx, chunk); err != nil {
			log.Warn("answer indexing failed",
				slog.String("session_id", sessionID),
				slog.Any("error", err),
			)
		}
	}()
}

// callStatus maps a provider call result to the status attribute value.
func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
