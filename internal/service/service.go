// Package service defines the client boundary to the interview backend: the
// remote service that issues sessions from a resume and turns each submitted
// answer into the next question or a final report.
package service

import "context"

// StartResult is the backend's reply to a session-start request.
type StartResult struct {
	// SessionID is the opaque token identifying this interview session.
	SessionID string `json:"session_id"`

	// FirstQuestion seeds the first turn.
	FirstQuestion string `json:"first_question"`
}

// SubmitRequest carries one completed answer to the backend.
type SubmitRequest struct {
	// SessionID is the token from StartResult.
	SessionID string `json:"session_id"`

	// Question is the exact question text that was asked this turn.
	Question string `json:"current_question"`

	// Answer is the candidate's full transcript for this turn.
	Answer string `json:"current_answer"`

	// PriorQuestions and PriorAnswers are the ordered histories of all
	// turns completed before this one. The backend keeps its own history;
	// these let it detect divergence.
	PriorQuestions []string `json:"prior_questions,omitempty"`
	PriorAnswers   []string `json:"prior_answers,omitempty"`
}

// SubmitResult is the backend's reply to a submitted answer. Exactly one of
// the two shapes is populated: a next question to continue the interview, or
// a final report ending it.
type SubmitResult struct {
	// NextQuestion is the question for the following turn. Empty when Done.
	NextQuestion string `json:"next_question,omitempty"`

	// QuestionCount is the 1-based number of the next question.
	QuestionCount int `json:"question_count,omitempty"`

	// FinalReport is the evaluation text ending the session.
	FinalReport string `json:"final_report,omitempty"`
}

// Done reports whether this result ends the session.
func (r *SubmitResult) Done() bool {
	return r.FinalReport != ""
}

// Client is the interface the turn controller submits answers through.
type Client interface {
	// Submit sends one answer and returns the next question or the final
	// report. Submit is not cancellable once the backend has received it;
	// callers discard late responses rather than cancelling.
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
}
