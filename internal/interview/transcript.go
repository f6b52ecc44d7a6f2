package interview

import "strings"

// Transcript accumulates recognized speech for one turn. Finalized fragments
// are committed permanently in arrival order; an interim fragment only ever
// replaces the previous interim tail, so provisional text can never leak into
// the committed portion.
//
// Transcript is not safe for concurrent use; the Controller serializes all
// access under its own lock.
type Transcript struct {
	committed []string
	interim   string
}

// AppendFinal commits a finalized fragment. The interim tail is dropped; the
// engine re-delivers its content inside the final text.
func (t *Transcript) AppendFinal(text string) {
	text = strings.TrimSpace(text)
	if text != "" {
		t.committed = append(t.committed, text)
	}
	t.interim = ""
}

// SetInterim replaces the provisional tail.
func (t *Transcript) SetInterim(text string) {
	t.interim = strings.TrimSpace(text)
}

// String returns the full running transcript: committed fragments in order,
// then the current interim tail.
func (t *Transcript) String() string {
	parts := t.committed
	if t.interim != "" {
		parts = append(parts[:len(parts):len(parts)], t.interim)
	}
	return strings.Join(parts, " ")
}

// Empty reports whether the transcript holds no text at all, committed or
// interim. An empty transcript at submission time is a false start.
func (t *Transcript) Empty() bool {
	return len(t.committed) == 0 && t.interim == ""
}

// Clear resets the transcript for a new turn.
func (t *Transcript) Clear() {
	t.committed = nil
	t.interim = ""
}
