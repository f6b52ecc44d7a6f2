package tui

import (
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/interview"
)

type fakeControls struct {
	done, retry, repeat int
}

func (f *fakeControls) Done()   { f.done++ }
func (f *fakeControls) Retry()  { f.retry++ }
func (f *fakeControls) Repeat() { f.repeat++ }

func sized(m Model) Model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

func withSnapshot(m Model, snap interview.Snapshot) Model {
	updated, _ := m.Update(SnapshotMsg{Snapshot: snap})
	return updated.(Model)
}

func TestView_ShowsQuestionAndTranscript(t *testing.T) {
	m := sized(New(nil))
	m = withSnapshot(m, interview.Snapshot{
		Status:     interview.StatusListening,
		Question:   "Why did you choose Go for the billing service?",
		Transcript: "Mostly for the concurrency model",
		Remaining:  95,
		Turn:       2,
		TotalTurns: 5,
	})

	view := m.View()
	for _, want := range []string{
		"Why did you choose Go for the billing service?",
		"Mostly for the concurrency model",
		"question 2 of 5",
		"listening",
		"1:35 left",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestView_FinalReport(t *testing.T) {
	m := sized(New(nil))
	m = withSnapshot(m, interview.Snapshot{
		Status:      interview.StatusComplete,
		FinalReport: "Strong fundamentals. Score: 8/10.",
		Turn:        5,
		TotalTurns:  5,
	})

	view := m.View()
	if !strings.Contains(view, "Strong fundamentals. Score: 8/10.") {
		t.Errorf("view missing final report:\n%s", view)
	}
	if !strings.Contains(view, "interview complete") {
		t.Errorf("view missing completion status:\n%s", view)
	}
}

func TestView_Notice(t *testing.T) {
	m := sized(New(nil))
	m = withSnapshot(m, interview.Snapshot{
		Status: interview.StatusIdle,
		Notice: "submission failed: connection refused",
	})

	view := m.View()
	if !strings.Contains(view, "submission failed: connection refused") {
		t.Errorf("view missing notice:\n%s", view)
	}
	if !strings.Contains(view, "r retry") {
		t.Errorf("view missing retry hint:\n%s", view)
	}
}

func TestView_BeforeWindowSize(t *testing.T) {
	m := New(nil)
	if got := m.View(); got != "Loading..." {
		t.Errorf("View before sizing = %q", got)
	}
}

func TestKeys_DoneOnlyWhileListening(t *testing.T) {
	controls := &fakeControls{}
	m := sized(New(controls))

	m = withSnapshot(m, interview.Snapshot{Status: interview.StatusSpeaking})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if controls.done != 0 {
		t.Error("Done triggered while speaking")
	}

	m = withSnapshot(m, interview.Snapshot{Status: interview.StatusListening})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if controls.done != 1 {
		t.Errorf("done calls = %d, want 1", controls.done)
	}
}

func TestKeys_RetryOnlyWhileIdle(t *testing.T) {
	controls := &fakeControls{}
	m := sized(New(controls))

	m = withSnapshot(m, interview.Snapshot{Status: interview.StatusListening})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if controls.retry != 0 {
		t.Error("Retry triggered while listening")
	}

	m = withSnapshot(m, interview.Snapshot{Status: interview.StatusIdle})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if controls.retry != 1 {
		t.Errorf("retry calls = %d, want 1", controls.retry)
	}
}

func TestKeys_RepeatWhileListening(t *testing.T) {
	controls := &fakeControls{}
	m := sized(New(controls))

	m = withSnapshot(m, interview.Snapshot{Status: interview.StatusListening})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if controls.repeat != 1 {
		t.Errorf("repeat calls = %d, want 1", controls.repeat)
	}
}

func TestKeys_Quit(t *testing.T) {
	m := sized(New(nil))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not produce tea.Quit")
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five", 9)
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	for _, l := range lines {
		if len(l) > 9 {
			t.Errorf("line %q exceeds width", l)
		}
	}
}

func TestWrapText_MultiByteRunes(t *testing.T) {
	// A forced wrap point inside this text must never split a rune.
	text := "résumé détaillé für die Bewerbung"
	for width := 3; width <= 12; width++ {
		for _, line := range wrapText(text, width) {
			if !utf8.ValidString(line) {
				t.Fatalf("width %d: line %q is not valid UTF-8", width, line)
			}
			if utf8.RuneCountInString(line) > width {
				t.Errorf("width %d: line %q exceeds width", width, line)
			}
		}
	}
}

func TestFormatCountdown(t *testing.T) {
	if got := formatCountdown(95); got != "1:35 left" {
		t.Errorf("formatCountdown(95) = %q", got)
	}
	if got := formatCountdown(5); got != "0:05 left" {
		t.Errorf("formatCountdown(5) = %q", got)
	}
}
