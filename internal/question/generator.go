// Package question generates interview questions and the final evaluation
// report from a candidate's resume and answer history.
package question

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/llm"
)

// DefaultModelTemperature keeps questions varied without drifting off the
// resume.
const DefaultModelTemperature = 0.7

const questionSystemPrompt = `You are a professional technical interviewer conducting a spoken mock interview.
You are given the candidate's resume and the interview so far.
Ask exactly one question. It must:
- be grounded in the candidate's resume or in one of their previous answers,
- not repeat ground already covered,
- be answerable out loud in under two minutes,
- contain no preamble, numbering, or commentary. Output the question text only.`

const reportSystemPrompt = `You are a professional technical interviewer writing a final evaluation of a spoken mock interview.
You are given the candidate's resume and the full list of questions and answers.
Write a concise report with: overall impression, strengths, areas to improve, and a 1-10 score.
Judge only what was said; do not invent details. Address the candidate directly.`

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string
	Answer   string
}

// Option configures a Generator.
type Option func(*Generator)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

// Generator produces interview questions and reports through an LLM.
type Generator struct {
	provider    llm.Provider
	temperature float64
}

// NewGenerator creates a Generator backed by the given LLM provider.
func NewGenerator(provider llm.Provider, opts ...Option) (*Generator, error) {
	if provider == nil {
		return nil, errors.New("question: provider must not be nil")
	}
	g := &Generator{
		provider:    provider,
		temperature: DefaultModelTemperature,
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// FirstQuestion generates the opening question from the resume alone.
func (g *Generator) FirstQuestion(ctx context.Context, resume string) (string, error) {
	return g.ask(ctx, resume, nil, nil)
}

// NextQuestion generates a follow-up question that builds on the history.
// covered lists topics recalled from earlier answers that the new question
// should steer away from; it may be nil.
func (g *Generator) NextQuestion(ctx context.Context, resume string, history []Turn, covered []string) (string, error) {
	if len(history) == 0 {
		return "", errors.New("question: NextQuestion requires at least one completed turn")
	}
	return g.ask(ctx, resume, history, covered)
}

// FinalReport writes the closing evaluation over the full history.
func (g *Generator) FinalReport(ctx context.Context, resume string, history []Turn) (string, error) {
	if len(history) == 0 {
		return "", errors.New("question: FinalReport requires at least one completed turn")
	}

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: reportSystemPrompt,
		Messages: []llm.Message{
			llm.User(buildContext(resume, history) + "\n\nWrite the final evaluation report."),
		},
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("question: final report: %w", err)
	}
	report := strings.TrimSpace(resp.Content)
	if report == "" {
		return "", errors.New("question: model returned an empty report")
	}
	return report, nil
}

func (g *Generator) ask(ctx context.Context, resume string, history []Turn, covered []string) (string, error) {
	prompt := buildContext(resume, history)
	if len(covered) > 0 {
		var b strings.Builder
		b.WriteString("\n\nGround already covered by earlier answers (do not revisit):")
		for _, topic := range covered {
			b.WriteString("\n- ")
			b.WriteString(topic)
		}
		prompt += b.String()
	}

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: questionSystemPrompt,
		Messages: []llm.Message{
			llm.User(prompt + "\n\nAsk the next question."),
		},
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("question: generate: %w", err)
	}

	q := cleanQuestion(resp.Content)
	if q == "" {
		return "", errors.New("question: model returned an empty question")
	}
	return q, nil
}

// buildContext renders the resume and history into the user message.
func buildContext(resume string, history []Turn) string {
	var b strings.Builder
	b.WriteString("Resume:\n")
	b.WriteString(strings.TrimSpace(resume))
	if len(history) > 0 {
		b.WriteString("\n\nInterview so far:")
		for i, turn := range history {
			fmt.Fprintf(&b, "\nQ%d: %s\nA%d: %s", i+1, turn.Question, i+1, turn.Answer)
		}
	}
	return b.String()
}

// cleanQuestion strips the wrapping LLMs like to add around a bare question.
func cleanQuestion(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'")
	// Drop a leading "Question:" or "Q:" label if present.
	for _, prefix := range []string{"Question:", "question:", "Q:"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	return s
}
