// Package voicecmd detects spoken control commands in final transcript
// fragments.
//
// Candidates steer the interview by voice: "I'm done" submits the answer
// early, "repeat the question" replays it, "skip this question" moves on,
// and "try again" re-opens a failed turn. Detection runs on every final
// fragment before it is appended to the answer transcript; a detected
// command is consumed and never becomes part of the answer.
//
// Matching is two-stage, modeled on how recognized speech actually arrives
// from an STT engine: an exact regex pass first, then a phonetic pass
// (Double Metaphone + Jaro-Winkler) that tolerates mishearings such as
// "I am dun" or "repeed the question".
package voicecmd

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

// Command is a recognized spoken control action.
type Command int

const (
	// None means the fragment is ordinary answer speech.
	None Command = iota

	// Done submits the current answer immediately.
	Done

	// Repeat replays the current question.
	Repeat

	// Skip abandons the current answer and requests the next question.
	Skip

	// Retry re-opens the turn after a failed submission.
	Retry
)

// String returns the command name for logging.
func (c Command) String() string {
	switch c {
	case Done:
		return "done"
	case Repeat:
		return "repeat"
	case Skip:
		return "skip"
	case Retry:
		return "retry"
	default:
		return "none"
	}
}

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched phrase to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic overlap is found. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.fuzzyThreshold = threshold
	}
}

// pattern pairs a command with its exact form and canonical spoken phrases.
type pattern struct {
	cmd     Command
	regex   *regexp.Regexp
	phrases []string
}

// Detector recognizes spoken control commands. Read-only after construction,
// safe for concurrent use.
type Detector struct {
	patterns          []pattern
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Detector with the built-in command set.
func New(opts ...Option) *Detector {
	d := &Detector{
		patterns:          defaultPatterns(),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect checks whether text is a spoken control command. Command phrases
// must make up the whole fragment; "I'm done with Java now" is answer
// content, not a command.
func (d *Detector) Detect(text string) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return None
	}

	// Stage 1: exact forms.
	for _, p := range d.patterns {
		if p.regex.MatchString(trimmed) {
			return p.cmd
		}
	}

	// Stage 2: phonetic tolerance for mishearings. Only short fragments are
	// considered; long ones are clearly answer speech.
	if len(strings.Fields(trimmed)) > 5 {
		return None
	}
	lower := strings.ToLower(strings.Trim(trimmed, ".,!?"))
	inputCodes := codesForTokens(strings.Fields(lower))

	best := None
	bestScore := 0.0
	for _, p := range d.patterns {
		for _, phrase := range p.phrases {
			phraseTokens := strings.Fields(phrase)
			score := bestJWScore(strings.Fields(lower), phraseTokens, lower, phrase)

			threshold := d.fuzzyThreshold
			if codesOverlap(inputCodes, codesForTokens(phraseTokens)) {
				threshold = d.phoneticThreshold
			}
			if score >= threshold && score > bestScore {
				best = p.cmd
				bestScore = score
			}
		}
	}
	return best
}

// defaultPatterns returns the built-in spoken command set.
func defaultPatterns() []pattern {
	return []pattern{
		{
			cmd:   Done,
			regex: regexp.MustCompile(`(?i)^(i'?m|i\s+am)\s+done[.!]?$|^done[.!]?$|^that'?s\s+(it|all)[.!]?$`),
			phrases: []string{
				"i'm done", "i am done", "that's it", "that's all",
			},
		},
		{
			cmd:   Repeat,
			regex: regexp.MustCompile(`(?i)^(please\s+)?(repeat|say)\s+(the\s+question|that|it)(\s+again)?(\s+please)?[.?!]?$|^(come\s+)?again[.?!]?$`),
			phrases: []string{
				"repeat the question", "say that again", "repeat that",
			},
		},
		{
			cmd:   Skip,
			regex: regexp.MustCompile(`(?i)^(please\s+)?(skip|pass)(\s+(this|that|the|it))?(\s+(question|one))?(\s+please)?[.!]?$|^next\s+question[.!]?$`),
			phrases: []string{
				"skip this question", "skip it", "next question", "pass",
			},
		},
		{
			cmd:   Retry,
			regex: regexp.MustCompile(`(?i)^(please\s+)?(try|retry)(\s+(that|it))?(\s+again)?(\s+please)?[.!]?$`),
			phrases: []string{
				"try again", "retry",
			},
		},
	}
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// and the phrase across full-string, space-stripped, and pairwise-token
// comparisons.
func bestJWScore(inputTokens, phraseTokens []string, inputFull, phraseFull string) float64 {
	score := matchr.JaroWinkler(inputFull, phraseFull, false)

	if len(inputTokens) > 1 || len(phraseTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(phraseTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	return score
}
