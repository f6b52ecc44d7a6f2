package voicecmd

import "testing"

func TestDetect_ExactCommands(t *testing.T) {
	d := New()

	cases := []struct {
		text string
		want Command
	}{
		{"I'm done", Done},
		{"i am done.", Done},
		{"Done", Done},
		{"That's it", Done},
		{"that's all!", Done},
		{"repeat the question", Repeat},
		{"Please repeat the question", Repeat},
		{"say that again", Repeat},
		{"repeat that again please", Repeat},
		{"again?", Repeat},
		{"skip this question", Skip},
		{"skip", Skip},
		{"Skip it", Skip},
		{"next question", Skip},
		{"pass", Skip},
		{"try again", Retry},
		{"Retry", Retry},
		{"please try that again", Retry},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			if got := d.Detect(tc.text); got != tc.want {
				t.Errorf("Detect(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestDetect_AnswerSpeechIsNotACommand(t *testing.T) {
	d := New()

	cases := []string{
		"",
		"   ",
		"I'm done with Java now, these days I mostly write Go",
		"we had to skip the integration tests because of the deadline",
		"the question of scale came up again and again",
		"I repeated the experiment three times",
		"my team shipped the feature",
		"once the migration was done we saw latency drop",
	}

	for _, text := range cases {
		if got := d.Detect(text); got != None {
			t.Errorf("Detect(%q) = %v, want None", text, got)
		}
	}
}

func TestDetect_PhoneticMishearings(t *testing.T) {
	// STT engines routinely garble short command phrases; the phonetic pass
	// should still catch close renderings.
	d := New()

	cases := []struct {
		text string
		want Command
	}{
		{"I am dun", Done},
		{"im done", Done},
		{"repeat the questian", Repeat},
		{"skip this questian", Skip},
		{"try agin", Retry},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			if got := d.Detect(tc.text); got != tc.want {
				t.Errorf("Detect(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestDetect_LongFragmentsSkipPhoneticPass(t *testing.T) {
	d := New()
	// Six words or more never reach the phonetic stage.
	text := "I think I am mostly dun with that part"
	if got := d.Detect(text); got != None {
		t.Errorf("Detect(%q) = %v, want None", text, got)
	}
}

func TestDetect_ThresholdOptions(t *testing.T) {
	// With an impossible threshold nothing fuzzy should match.
	strict := New(WithPhoneticThreshold(1.01), WithFuzzyThreshold(1.01))
	if got := strict.Detect("I am dun"); got != None {
		t.Errorf("strict detector matched %v for a mishearing", got)
	}
	// Exact forms are unaffected by thresholds.
	if got := strict.Detect("I'm done"); got != Done {
		t.Errorf("strict detector failed on the exact form: %v", got)
	}
}

func TestCommandString(t *testing.T) {
	cases := map[Command]string{
		None:   "none",
		Done:   "done",
		Repeat: "repeat",
		Skip:   "skip",
		Retry:  "retry",
	}
	for cmd, want := range cases {
		if got := cmd.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", cmd, got, want)
		}
	}
}
