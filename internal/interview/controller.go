// Package interview implements the turn-taking engine that drives a voice
// mock interview.
//
// The Controller owns the session state machine: it voices a question, opens
// a capture session for the answer, decides when the answer is done (silence,
// hard ceiling, or a spoken/manual signal), submits it to the backend, and
// loops on the next question until the backend returns a final report.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/capture"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/service"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/voicecmd"
)

// Status is the controller's current phase.
type Status string

const (
	// StatusSpeaking means the interviewer's question is being voiced.
	StatusSpeaking Status = "speaking"

	// StatusListening means the candidate's answer is being captured.
	StatusListening Status = "listening"

	// StatusSubmitting means the answer is on its way to the backend.
	StatusSubmitting Status = "submitting"

	// StatusIdle means a submission failed and the turn is waiting for a
	// retry signal.
	StatusIdle Status = "idle"

	// StatusComplete is the terminal success state.
	StatusComplete Status = "complete"

	// StatusFailed is the terminal failure state (capability unavailable).
	StatusFailed Status = "failed"
)

// Default turn parameters.
const (
	DefaultTotalTurns      = 5
	DefaultSilenceTimeout  = 4 * time.Second
	DefaultCeilingTimeout  = 2 * time.Minute
	DefaultFalseStartDelay = 1500 * time.Millisecond
	DefaultStartDelay      = 800 * time.Millisecond
)

// skipAnswer is submitted in place of the transcript when the candidate asks
// to skip the question.
const skipAnswer = "I would like to skip this question."

// Snapshot is the view-facing picture of the session at one instant. Every
// state change produces one.
type Snapshot struct {
	Status      Status
	Question    string
	Transcript  string
	Remaining   int // ceiling seconds left in the current listening phase
	Turn        int // 1-based
	TotalTurns  int
	Notice      string // latest user-visible warning or error, empty when none
	FinalReport string
}

// Speaker voices interviewer text. Speak blocks until playback ends and never
// propagates synthesis failures; Speaking reports whether an utterance is
// currently audible.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Speaking() bool
	Cancel()
}

// Listener opens capture sessions. *capture.Supervisor satisfies this.
type Listener interface {
	Listen(ctx context.Context) (capture.Session, error)
}

// Config carries the per-session parameters.
type Config struct {
	// SessionID is the backend's token for this interview.
	SessionID string

	// FirstQuestion seeds the first turn.
	FirstQuestion string

	// TotalTurns is the interview length. Defaults to DefaultTotalTurns.
	TotalTurns int

	// SilenceTimeout ends listening after this much time without a new
	// fragment, provided the interviewer is not speaking.
	SilenceTimeout time.Duration

	// CeilingTimeout is the unconditional per-turn cutoff.
	CeilingTimeout time.Duration

	// FalseStartDelay is the settling pause before listening restarts after
	// an empty-transcript timeout.
	FalseStartDelay time.Duration

	// StartDelay is the pause before the first utterance, giving the speech
	// output layer time to load its voice list. Negative disables it.
	StartDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.TotalTurns <= 0 {
		c.TotalTurns = DefaultTotalTurns
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = DefaultSilenceTimeout
	}
	if c.CeilingTimeout <= 0 {
		c.CeilingTimeout = DefaultCeilingTimeout
	}
	if c.FalseStartDelay <= 0 {
		c.FalseStartDelay = DefaultFalseStartDelay
	}
	if c.StartDelay == 0 {
		c.StartDelay = DefaultStartDelay
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithOnUpdate registers the snapshot callback. It is invoked on every state
// change, possibly from several goroutines, and must not call back into the
// Controller.
func WithOnUpdate(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onUpdate = fn
	}
}

// WithOnComplete registers the completion callback, invoked exactly once with
// the final report when the session ends successfully.
func WithOnComplete(fn func(report string)) Option {
	return func(c *Controller) {
		c.onComplete = fn
	}
}

// WithCommands replaces the spoken-command detector.
func WithCommands(d *voicecmd.Detector) Option {
	return func(c *Controller) {
		c.commands = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller is the turn-taking state machine. All mutable state is guarded
// by mu; blocking work (speech playback, the backend call) always happens
// outside the lock.
type Controller struct {
	cfg      Config
	speaker  Speaker
	listener Listener
	client   service.Client
	commands *voicecmd.Detector
	logger   *slog.Logger

	onUpdate   func(Snapshot)
	onComplete func(string)

	done     chan struct{}
	doneOnce sync.Once

	mu          sync.Mutex
	runCtx      context.Context
	status      Status
	question    string
	transcript  Transcript
	turn        int
	questions   []string
	answers     []string
	notice      string
	finalReport string
	remaining   int
	inFlight    bool
	closed      bool
	terminalErr error

	// gen identifies the current listening phase. Timer firings and
	// fragments carry the gen they were armed under; a mismatch means the
	// phase already ended and the event is stale.
	gen     uint64
	sess    capture.Session
	silence *time.Timer
}

// New creates a Controller. speaker, listener, and client are required.
func New(cfg Config, speaker Speaker, listener Listener, client service.Client, opts ...Option) (*Controller, error) {
	var errs []error
	if speaker == nil {
		errs = append(errs, errors.New("interview: speaker must not be nil"))
	}
	if listener == nil {
		errs = append(errs, errors.New("interview: listener must not be nil"))
	}
	if client == nil {
		errs = append(errs, errors.New("interview: client must not be nil"))
	}
	if cfg.SessionID == "" {
		errs = append(errs, errors.New("interview: cfg.SessionID must not be empty"))
	}
	if cfg.FirstQuestion == "" {
		errs = append(errs, errors.New("interview: cfg.FirstQuestion must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	c := &Controller{
		cfg:      cfg,
		speaker:  speaker,
		listener: listener,
		client:   client,
		commands: voicecmd.New(),
		logger:   slog.Default(),
		done:     make(chan struct{}),
		status:   StatusSpeaking,
		question: cfg.FirstQuestion,
		turn:     1,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Run conducts the interview. It blocks until the session reaches a terminal
// state or ctx is cancelled. Returns nil on a completed interview.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.runCtx = ctx
	first := c.question
	c.mu.Unlock()

	if c.cfg.StartDelay > 0 {
		select {
		case <-time.After(c.cfg.StartDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	go c.speakTurn(first)

	select {
	case <-c.done:
		c.mu.Lock()
		err := c.terminalErr
		c.mu.Unlock()
		return err
	case <-ctx.Done():
		_ = c.Close()
		return ctx.Err()
	}
}

// Done requests immediate submission of the current answer, equivalent to the
// spoken "I'm done". A no-op outside listening or while a submission is in
// flight.
func (c *Controller) Done() {
	c.trySubmit("manual done", "")
}

// Retry re-opens listening after a failed submission, preserving whatever
// transcript was already captured. A no-op unless the controller is idle.
func (c *Controller) Retry() {
	c.mu.Lock()
	if c.closed || c.inFlight || c.status != StatusIdle {
		c.mu.Unlock()
		return
	}
	c.notice = ""
	c.mu.Unlock()
	c.enterListening(true)
}

// Repeat voices the current question again without disturbing the listening
// phase.
func (c *Controller) Repeat() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	q := c.question
	ctx := c.runCtx
	c.mu.Unlock()
	if ctx == nil {
		return
	}
	go func() { _ = c.speaker.Speak(ctx, q) }()
}

// Snapshot returns the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close tears the session down: capture handle first (suppressing its
// restart), then timers, then any in-flight utterance. Late backend responses
// are discarded. Safe to call multiple times.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++
	sess := c.sess
	c.sess = nil
	if c.silence != nil {
		c.silence.Stop()
		c.silence = nil
	}
	c.mu.Unlock()

	if sess != nil {
		_ = sess.Stop()
	}
	c.speaker.Cancel()
	c.doneOnce.Do(func() { close(c.done) })
	return nil
}

// ---- speaking ----

// speakTurn voices the question, then opens the listening phase.
func (c *Controller) speakTurn(question string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.status = StatusSpeaking
	ctx := c.runCtx
	c.mu.Unlock()
	c.publish()

	_ = c.speaker.Speak(ctx, question)

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.enterListening(false)
}

// ---- listening ----

// enterListening opens a capture session and arms both timers. When preserve
// is false the transcript starts clean.
func (c *Controller) enterListening(preserve bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !preserve {
		c.transcript.Clear()
	}
	c.status = StatusListening
	c.gen++
	myGen := c.gen
	c.remaining = int(c.cfg.CeilingTimeout / time.Second)
	ctx := c.runCtx
	c.mu.Unlock()

	sess, err := c.listener.Listen(ctx)
	if err != nil {
		c.fail(fmt.Errorf("interview: speech capture unavailable: %w", err))
		return
	}

	c.mu.Lock()
	if c.closed || c.gen != myGen || c.status != StatusListening {
		c.mu.Unlock()
		_ = sess.Stop()
		return
	}
	c.sess = sess
	c.silence = time.AfterFunc(c.cfg.SilenceTimeout, func() { c.onSilence(myGen) })
	c.mu.Unlock()
	c.publish()

	go c.pump(myGen, sess)
	go c.runCeiling(myGen, ctx)
}

// pump feeds capture output into the state machine until the session's
// channels close.
func (c *Controller) pump(myGen uint64, sess capture.Session) {
	frags := sess.Fragments()
	warns := sess.Warnings()
	for frags != nil || warns != nil {
		select {
		case f, ok := <-frags:
			if !ok {
				frags = nil
				continue
			}
			c.onFragment(myGen, f)
		case w, ok := <-warns:
			if !ok {
				warns = nil
				continue
			}
			c.onWarning(myGen, w)
		}
	}
}

// onFragment appends recognized speech to the transcript and rearms the
// silence timer, intercepting spoken control commands on finals.
func (c *Controller) onFragment(myGen uint64, f capture.Fragment) {
	c.mu.Lock()
	if c.closed || c.gen != myGen || c.status != StatusListening {
		c.mu.Unlock()
		return
	}

	cmd := voicecmd.None
	if f.Final {
		cmd = c.commands.Detect(f.Text)
	}

	if cmd == voicecmd.None {
		if f.Final {
			c.transcript.AppendFinal(f.Text)
		} else {
			c.transcript.SetInterim(f.Text)
		}
	} else {
		// Command fragments never become part of the answer; the interim
		// tail holding the same words is dropped too.
		c.transcript.SetInterim("")
	}
	if c.silence != nil {
		c.silence.Reset(c.cfg.SilenceTimeout)
	}
	c.mu.Unlock()
	c.publish()

	switch cmd {
	case voicecmd.Done:
		c.logger.Info("spoken command", "command", "done")
		c.trySubmit("voice command", "")
	case voicecmd.Skip:
		c.logger.Info("spoken command", "command", "skip")
		c.trySubmit("voice skip", skipAnswer)
	case voicecmd.Repeat:
		c.logger.Info("spoken command", "command", "repeat")
		c.Repeat()
	case voicecmd.Retry:
		// Meaningless while listening; only the idle state accepts it.
	}
}

// onWarning surfaces a non-fatal capture warning. The turn continues.
func (c *Controller) onWarning(myGen uint64, err error) {
	c.mu.Lock()
	if c.closed || c.gen != myGen {
		c.mu.Unlock()
		return
	}
	c.notice = fmt.Sprintf("speech capture: %v", err)
	c.mu.Unlock()
	c.logger.Warn("capture warning", "error", err)
	c.publish()
}

// onSilence fires when no fragment has arrived for the silence timeout.
// While the interviewer's own voice is playing the firing is deferred, so
// playback picked up by the microphone cannot end the turn.
func (c *Controller) onSilence(myGen uint64) {
	c.mu.Lock()
	if c.closed || c.gen != myGen || c.status != StatusListening {
		c.mu.Unlock()
		return
	}
	if c.speaker.Speaking() {
		if c.silence != nil {
			c.silence.Reset(c.cfg.SilenceTimeout)
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.trySubmit("silence", "")
}

// runCeiling counts the hard per-turn limit down once a second. It fires
// unconditionally; a stuck Speaking signal cannot hold a turn open forever.
func (c *Controller) runCeiling(myGen uint64, ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			if c.closed || c.gen != myGen || c.status != StatusListening {
				c.mu.Unlock()
				return
			}
			c.remaining--
			rem := c.remaining
			c.mu.Unlock()
			c.publish()
			if rem <= 0 {
				c.trySubmit("ceiling", "")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ---- submitting ----

// trySubmit moves the turn into submitting. The in-flight guard makes every
// other trigger path a no-op while one submission is outstanding, whatever
// the interleaving of timers, spoken commands, and manual signals.
func (c *Controller) trySubmit(reason string, override string) {
	c.mu.Lock()
	if c.closed || c.inFlight || c.status != StatusListening {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.status = StatusSubmitting
	c.gen++
	sess := c.sess
	c.sess = nil
	if c.silence != nil {
		c.silence.Stop()
		c.silence = nil
	}

	// The question and answer are fixed here, at the moment capture stops.
	// Nothing that happens later can change what this turn submits.
	question := c.question
	answer := c.transcript.String()
	if override != "" {
		answer = override
	}
	turn := c.turn
	c.mu.Unlock()

	if sess != nil {
		_ = sess.Stop()
	}
	c.logger.Info("listening ended", "reason", reason, "turn", turn)
	c.publish()

	go c.submit(question, answer)
}

// submit performs the backend call, or handles the false start when nothing
// was said.
func (c *Controller) submit(question, answer string) {
	c.mu.Lock()
	ctx := c.runCtx
	req := service.SubmitRequest{
		SessionID:      c.cfg.SessionID,
		Question:       question,
		Answer:         answer,
		PriorQuestions: append([]string(nil), c.questions...),
		PriorAnswers:   append([]string(nil), c.answers...),
	}
	c.mu.Unlock()

	if answer == "" {
		// False start: nothing was said. No backend call; listen again on
		// the same turn after a settling pause.
		c.logger.Info("false start, re-arming listening")
		select {
		case <-time.After(c.cfg.FalseStartDelay):
		case <-ctx.Done():
			return
		}
		c.mu.Lock()
		c.inFlight = false
		stale := c.closed || c.status != StatusSubmitting
		c.mu.Unlock()
		if stale {
			return
		}
		c.enterListening(false)
		return
	}

	res, err := c.client.Submit(ctx, req)

	c.mu.Lock()
	c.inFlight = false
	if c.closed {
		// Late response for a torn-down session; discard.
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.status = StatusIdle
		c.notice = fmt.Sprintf("submission failed: %v", err)
		c.mu.Unlock()
		c.logger.Warn("submission failed", "error", err)
		c.publish()
		return
	}

	c.notice = ""
	c.questions = append(c.questions, question)
	c.answers = append(c.answers, answer)

	if res.Done() {
		c.status = StatusComplete
		c.finalReport = res.FinalReport
		onComplete := c.onComplete
		report := res.FinalReport
		c.mu.Unlock()
		c.logger.Info("interview complete")
		c.publish()
		if onComplete != nil {
			onComplete(report)
		}
		c.doneOnce.Do(func() { close(c.done) })
		return
	}

	c.turn++
	c.question = res.NextQuestion
	c.transcript.Clear()
	next := res.NextQuestion
	turn := c.turn
	c.mu.Unlock()
	c.logger.Info("next question", "turn", turn)
	c.publish()

	go c.speakTurn(next)
}

// ---- terminal / view plumbing ----

// fail ends the session on an unrecoverable capability error.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.status = StatusFailed
	c.notice = err.Error()
	c.terminalErr = err
	c.mu.Unlock()
	c.logger.Error("session failed", "error", err)
	c.publish()
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Status:      c.status,
		Question:    c.question,
		Transcript:  c.transcript.String(),
		Remaining:   c.remaining,
		Turn:        c.turn,
		TotalTurns:  c.cfg.TotalTurns,
		Notice:      c.notice,
		FinalReport: c.finalReport,
	}
}

// publish delivers a snapshot to the view callback.
func (c *Controller) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	cb := c.onUpdate
	c.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
}
