package interview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/capture"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/service"
)

// ---- fakes ----

// fakeSpeaker records spoken texts and lets tests force the Speaking signal.
type fakeSpeaker struct {
	mu       sync.Mutex
	spoken   []string
	speaking bool
	delay    time.Duration
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}
	return nil
}

func (f *fakeSpeaker) Speaking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speaking
}

func (f *fakeSpeaker) Cancel() {}

func (f *fakeSpeaker) setSpeaking(v bool) {
	f.mu.Lock()
	f.speaking = v
	f.mu.Unlock()
}

func (f *fakeSpeaker) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

// fakeSession is a scripted capture.Session.
type fakeSession struct {
	frags chan capture.Fragment
	warns chan error
	once  sync.Once
	stops int
	mu    sync.Mutex
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		frags: make(chan capture.Fragment, 32),
		warns: make(chan error, 8),
	}
}

func (s *fakeSession) Fragments() <-chan capture.Fragment { return s.frags }
func (s *fakeSession) Warnings() <-chan error             { return s.warns }

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	s.once.Do(func() {
		close(s.frags)
		close(s.warns)
	})
	return nil
}

func (s *fakeSession) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func (s *fakeSession) final(text string) {
	s.frags <- capture.Fragment{Text: text, Final: true}
}

func (s *fakeSession) interim(text string) {
	s.frags <- capture.Fragment{Text: text, Final: false}
}

// fakeListener hands out sessions in order.
type fakeListener struct {
	mu       sync.Mutex
	sessions []*fakeSession
	calls    int
	err      error
}

func (l *fakeListener) Listen(_ context.Context) (capture.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	n := l.calls
	l.calls++
	if n < len(l.sessions) {
		return l.sessions[n], nil
	}
	s := newFakeSession()
	l.sessions = append(l.sessions, s)
	return s, nil
}

func (l *fakeListener) listenCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *fakeListener) session(i int) *fakeSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < len(l.sessions) {
		return l.sessions[i]
	}
	return nil
}

// fakeClient returns scripted results in call order.
type fakeClient struct {
	mu       sync.Mutex
	results  []*service.SubmitResult
	errs     []error
	requests []service.SubmitRequest
	delay    time.Duration
}

func (c *fakeClient) Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error) {
	c.mu.Lock()
	n := len(c.requests)
	c.requests = append(c.requests, req)
	delay := c.delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n < len(c.errs) && c.errs[n] != nil {
		return nil, c.errs[n]
	}
	if n < len(c.results) {
		return c.results[n], nil
	}
	return &service.SubmitResult{FinalReport: "default report"}, nil
}

func (c *fakeClient) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *fakeClient) request(i int) service.SubmitRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[i]
}

// ---- harness ----

type harness struct {
	ctrl     *Controller
	speaker  *fakeSpeaker
	listener *fakeListener
	client   *fakeClient
	cancel   context.CancelFunc
	runDone  chan error

	mu      sync.Mutex
	reports []string
}

func newHarness(t *testing.T, cfg Config, client *fakeClient) *harness {
	t.Helper()
	if cfg.SessionID == "" {
		cfg.SessionID = "sess-1"
	}
	if cfg.FirstQuestion == "" {
		cfg.FirstQuestion = "Tell me about yourself."
	}
	if cfg.SilenceTimeout == 0 {
		cfg.SilenceTimeout = 100 * time.Millisecond
	}
	if cfg.CeilingTimeout == 0 {
		cfg.CeilingTimeout = time.Hour
	}
	if cfg.FalseStartDelay == 0 {
		cfg.FalseStartDelay = 20 * time.Millisecond
	}
	if cfg.StartDelay == 0 {
		cfg.StartDelay = -1
	}

	h := &harness{
		speaker:  &fakeSpeaker{},
		listener: &fakeListener{},
		client:   client,
		runDone:  make(chan error, 1),
	}

	ctrl, err := New(cfg, h.speaker, h.listener, client,
		WithOnComplete(func(report string) {
			h.mu.Lock()
			h.reports = append(h.reports, report)
			h.mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.ctrl = ctrl

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.runDone <- ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = ctrl.Close()
	})
	return h
}

func (h *harness) completions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.reports...)
}

// waitStatus polls until the controller reaches want.
func (h *harness) waitStatus(t *testing.T, want Status) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if h.ctrl.Snapshot().Status == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %q, at %q", want, h.ctrl.Snapshot().Status)
		case <-time.After(time.Millisecond):
		}
	}
}

// waitListening waits for listening phase number n (1-based Listen call count).
func (h *harness) waitListening(t *testing.T, n int) *fakeSession {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for h.listener.listenCalls() < n || h.ctrl.Snapshot().Status != StatusListening {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for listening phase %d (calls=%d, status=%q)",
				n, h.listener.listenCalls(), h.ctrl.Snapshot().Status)
		case <-time.After(time.Millisecond):
		}
	}
	return h.listener.session(n - 1)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(time.Millisecond):
		}
	}
}

// ---- tests ----

func TestFirstTurn_SpeaksThenListens(t *testing.T) {
	h := newHarness(t, Config{}, &fakeClient{})

	h.waitListening(t, 1)

	spoken := h.speaker.spokenTexts()
	if len(spoken) != 1 || spoken[0] != "Tell me about yourself." {
		t.Errorf("unexpected spoken texts: %v", spoken)
	}
	snap := h.ctrl.Snapshot()
	if snap.Turn != 1 {
		t.Errorf("turn = %d, want 1", snap.Turn)
	}
}

func TestTranscript_MirrorsFragments(t *testing.T) {
	h := newHarness(t, Config{SilenceTimeout: time.Hour}, &fakeClient{})
	sess := h.waitListening(t, 1)

	sess.interim("I")
	sess.interim("I think")
	sess.final("I think Go fits here.")
	sess.interim("because")

	waitFor(t, "transcript to settle", func() bool {
		return h.ctrl.Snapshot().Transcript == "I think Go fits here. because"
	})
}

func TestSilence_SubmitsCapturedAnswer(t *testing.T) {
	client := &fakeClient{results: []*service.SubmitResult{
		{NextQuestion: "Why Go?", QuestionCount: 2},
	}}
	h := newHarness(t, Config{}, client)
	sess := h.waitListening(t, 1)

	sess.final("I led the payments migration.")

	// No further fragments: the silence timer must end the turn.
	waitFor(t, "submission", func() bool { return client.requestCount() == 1 })

	req := client.request(0)
	if req.Question != "Tell me about yourself." {
		t.Errorf("submitted question: %q", req.Question)
	}
	if req.Answer != "I led the payments migration." {
		t.Errorf("submitted answer: %q", req.Answer)
	}
	if req.SessionID != "sess-1" {
		t.Errorf("session ID: %q", req.SessionID)
	}

	// The next question begins turn 2.
	h.waitListening(t, 2)
	snap := h.ctrl.Snapshot()
	if snap.Turn != 2 || snap.Question != "Why Go?" {
		t.Errorf("after advance: turn=%d question=%q", snap.Turn, snap.Question)
	}
	if snap.Transcript != "" {
		t.Errorf("transcript not cleared for the new turn: %q", snap.Transcript)
	}
	if sess.stopCount() == 0 {
		t.Error("previous capture session was not stopped")
	}
}

func TestSilence_DeferredWhileSpeakerActive(t *testing.T) {
	client := &fakeClient{}
	h := newHarness(t, Config{SilenceTimeout: 50 * time.Millisecond}, client)
	sess := h.waitListening(t, 1)

	h.speaker.setSpeaking(true)
	sess.final("short answer")

	// Several silence windows pass while the interviewer's voice plays.
	time.Sleep(250 * time.Millisecond)
	if n := client.requestCount(); n != 0 {
		t.Fatalf("silence submitted while the speaker was active (%d requests)", n)
	}

	// Once the voice stops, the next firing submits.
	h.speaker.setSpeaking(false)
	waitFor(t, "submission after speech ended", func() bool { return client.requestCount() == 1 })
}

func TestCeiling_OverridesSpeakerDeferral(t *testing.T) {
	client := &fakeClient{}
	h := newHarness(t, Config{
		SilenceTimeout: 50 * time.Millisecond,
		CeilingTimeout: 2 * time.Second,
	}, client)
	sess := h.waitListening(t, 1)

	// A stuck Speaking signal must not hold the turn open past the ceiling.
	h.speaker.setSpeaking(true)
	sess.final("answer before cutoff")

	waitFor(t, "ceiling-forced submission", func() bool { return client.requestCount() == 1 })
	if got := client.request(0).Answer; got != "answer before cutoff" {
		t.Errorf("submitted answer: %q", got)
	}
}

func TestCeiling_CountsDownForDisplay(t *testing.T) {
	h := newHarness(t, Config{
		SilenceTimeout: time.Hour,
		CeilingTimeout: 1 * time.Hour,
	}, &fakeClient{})
	h.waitListening(t, 1)

	start := h.ctrl.Snapshot().Remaining
	waitFor(t, "countdown tick", func() bool { return h.ctrl.Snapshot().Remaining < start })
}

func TestEmptyTranscript_FalseStartRestartsListening(t *testing.T) {
	client := &fakeClient{}
	h := newHarness(t, Config{SilenceTimeout: 50 * time.Millisecond}, client)
	h.waitListening(t, 1)

	// Say nothing. The silence timeout must restart listening, not submit.
	h.waitListening(t, 2)

	if n := client.requestCount(); n != 0 {
		t.Errorf("false start made %d backend calls", n)
	}
	if snap := h.ctrl.Snapshot(); snap.Turn != 1 {
		t.Errorf("turn advanced on a false start: %d", snap.Turn)
	}
}

func TestManualDone_SubmitsImmediately(t *testing.T) {
	client := &fakeClient{}
	h := newHarness(t, Config{SilenceTimeout: time.Hour}, client)
	sess := h.waitListening(t, 1)

	sess.final("the whole answer")
	waitFor(t, "fragment applied", func() bool {
		return h.ctrl.Snapshot().Transcript == "the whole answer"
	})

	h.ctrl.Done()
	waitFor(t, "submission", func() bool { return client.requestCount() == 1 })
	if got := client.request(0).Answer; got != "the whole answer" {
		t.Errorf("submitted answer: %q", got)
	}
}

func TestInFlightGuard_SingleSubmissionPerTurn(t *testing.T) {
	client := &fakeClient{
		delay:   200 * time.Millisecond,
		results: []*service.SubmitResult{{FinalReport: "done"}},
	}
	h := newHarness(t, Config{SilenceTimeout: 30 * time.Millisecond}, client)
	sess := h.waitListening(t, 1)

	sess.final("answer")

	// While the submission is in flight, hammer every trigger path.
	waitFor(t, "first submission", func() bool { return client.requestCount() == 1 })
	for i := 0; i < 10; i++ {
		h.ctrl.Done()
		h.ctrl.Retry()
		time.Sleep(5 * time.Millisecond)
	}

	h.waitStatus(t, StatusComplete)
	if n := client.requestCount(); n != 1 {
		t.Errorf("expected exactly 1 submission, got %d", n)
	}
}

func TestFinalReport_CompletesSession(t *testing.T) {
	client := &fakeClient{results: []*service.SubmitResult{
		{FinalReport: "Hire."},
	}}
	h := newHarness(t, Config{}, client)
	sess := h.waitListening(t, 1)

	sess.final("closing answer")
	h.waitStatus(t, StatusComplete)

	if got := h.completions(); len(got) != 1 || got[0] != "Hire." {
		t.Errorf("completion callbacks: %v", got)
	}
	if snap := h.ctrl.Snapshot(); snap.FinalReport != "Hire." {
		t.Errorf("snapshot report: %q", snap.FinalReport)
	}

	// Run must return nil on success.
	select {
	case err := <-h.runDone:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Run did not return after completion")
	}

	// No further listening is ever armed.
	time.Sleep(100 * time.Millisecond)
	if n := h.listener.listenCalls(); n != 1 {
		t.Errorf("listening armed after completion: %d calls", n)
	}
}

func TestSubmissionFailure_IdleThenRetry(t *testing.T) {
	client := &fakeClient{
		errs:    []error{errors.New("backend down")},
		results: []*service.SubmitResult{nil, {NextQuestion: "Q2", QuestionCount: 2}},
	}
	h := newHarness(t, Config{SilenceTimeout: time.Hour}, client)
	sess := h.waitListening(t, 1)

	sess.final("my answer")
	waitFor(t, "fragment applied", func() bool {
		return h.ctrl.Snapshot().Transcript == "my answer"
	})
	h.ctrl.Done()

	h.waitStatus(t, StatusIdle)
	snap := h.ctrl.Snapshot()
	if snap.Notice == "" {
		t.Error("expected a visible failure notice")
	}
	if snap.Turn != 1 {
		t.Errorf("turn advanced on failure: %d", snap.Turn)
	}

	// Done is a no-op outside listening.
	h.ctrl.Done()
	time.Sleep(50 * time.Millisecond)
	if n := client.requestCount(); n != 1 {
		t.Fatalf("requests after idle Done: %d", n)
	}

	// Retry re-arms listening with the transcript preserved.
	h.ctrl.Retry()
	h.waitListening(t, 2)
	if got := h.ctrl.Snapshot().Transcript; got != "my answer" {
		t.Errorf("transcript after Retry: %q", got)
	}

	h.ctrl.Done()
	h.waitListening(t, 3)
	if got := client.request(1).Answer; got != "my answer" {
		t.Errorf("retried answer: %q", got)
	}
	if got := h.ctrl.Snapshot().Question; got != "Q2" {
		t.Errorf("question after retry success: %q", got)
	}
}

func TestVoiceCommand_DoneSubmitsWithoutCommandText(t *testing.T) {
	client := &fakeClient{}
	h := newHarness(t, Config{SilenceTimeout: time.Hour}, client)
	sess := h.waitListening(t, 1)

	sess.final("I built the ingest service.")
	sess.final("I'm done")

	waitFor(t, "submission", func() bool { return client.requestCount() == 1 })
	if got := client.request(0).Answer; got != "I built the ingest service." {
		t.Errorf("command text leaked into the answer: %q", got)
	}
}

func TestVoiceCommand_SkipSubmitsPlaceholder(t *testing.T) {
	client := &fakeClient{}
	h := newHarness(t, Config{SilenceTimeout: time.Hour}, client)
	sess := h.waitListening(t, 1)

	sess.final("skip this question")

	waitFor(t, "submission", func() bool { return client.requestCount() == 1 })
	if got := client.request(0).Answer; got != skipAnswer {
		t.Errorf("skip answer: %q", got)
	}
}

func TestVoiceCommand_RepeatReplaysQuestion(t *testing.T) {
	h := newHarness(t, Config{SilenceTimeout: time.Hour}, &fakeClient{})
	sess := h.waitListening(t, 1)

	sess.final("repeat the question")

	waitFor(t, "question replayed", func() bool {
		spoken := h.speaker.spokenTexts()
		return len(spoken) == 2 && spoken[1] == "Tell me about yourself."
	})
	if h.ctrl.Snapshot().Status != StatusListening {
		t.Error("repeat must not leave the listening state")
	}
}

func TestHistories_AccompanySubmission(t *testing.T) {
	client := &fakeClient{results: []*service.SubmitResult{
		{NextQuestion: "Q2", QuestionCount: 2},
		{NextQuestion: "Q3", QuestionCount: 3},
	}}
	h := newHarness(t, Config{SilenceTimeout: 50 * time.Millisecond}, client)

	sess := h.waitListening(t, 1)
	sess.final("A1")
	sess = h.waitListening(t, 2)
	sess.final("A2")

	waitFor(t, "second submission", func() bool { return client.requestCount() == 2 })
	req := client.request(1)
	if len(req.PriorQuestions) != 1 || req.PriorQuestions[0] != "Tell me about yourself." {
		t.Errorf("prior questions: %v", req.PriorQuestions)
	}
	if len(req.PriorAnswers) != 1 || req.PriorAnswers[0] != "A1" {
		t.Errorf("prior answers: %v", req.PriorAnswers)
	}
}

func TestCaptureWarning_SurfacedNonFatal(t *testing.T) {
	h := newHarness(t, Config{SilenceTimeout: time.Hour}, &fakeClient{})
	sess := h.waitListening(t, 1)

	sess.warns <- errors.New("engine hiccup")

	waitFor(t, "warning notice", func() bool { return h.ctrl.Snapshot().Notice != "" })
	if h.ctrl.Snapshot().Status != StatusListening {
		t.Error("a capture warning must not end the turn")
	}
}

func TestListenFailure_FatalSession(t *testing.T) {
	listener := &fakeListener{err: errors.New("no capture capability")}
	ctrl, err := New(Config{
		SessionID:     "sess-1",
		FirstQuestion: "Q1",
		StartDelay:    -1,
	}, &fakeSpeaker{}, listener, &fakeClient{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = ctrl.Close() })

	runDone := make(chan error, 1)
	go func() { runDone <- ctrl.Run(context.Background()) }()

	select {
	case err := <-runDone:
		if err == nil {
			t.Error("Run should return the capability error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after fatal failure")
	}
	if got := ctrl.Snapshot().Status; got != StatusFailed {
		t.Errorf("status = %q, want %q", got, StatusFailed)
	}
}

func TestClose_ReleasesEverything(t *testing.T) {
	client := &fakeClient{}
	h := newHarness(t, Config{SilenceTimeout: 50 * time.Millisecond}, client)
	sess := h.waitListening(t, 1)

	if err := h.ctrl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	waitFor(t, "capture stop", func() bool { return sess.stopCount() > 0 })

	// Nothing should fire after close.
	time.Sleep(150 * time.Millisecond)
	if n := client.requestCount(); n != 0 {
		t.Errorf("submission after Close: %d requests", n)
	}
	if n := h.listener.listenCalls(); n != 1 {
		t.Errorf("listening re-armed after Close: %d calls", n)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil)
	if err == nil {
		t.Fatal("expected validation errors")
	}
}
