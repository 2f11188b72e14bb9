// Package attempt owns one in-progress quiz-taking session: the answer
// map, the question pointer, and the countdown that force-submits when
// time runs out. Exactly one session is live per process; the portal
// enforces that.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/logging"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusAbandoned  Status = "abandoned"
)

var (
	// ErrDeclined is returned when the user backs out of a confirmation
	// prompt. Nothing has changed and nothing was sent.
	ErrDeclined = errors.New("declined by user")
	// ErrNotActive rejects answer and navigation calls once the session
	// left the active state.
	ErrNotActive = errors.New("attempt is not active")
	// ErrFinished rejects submit/abandon after a terminal state.
	ErrFinished = errors.New("attempt already finished")
	// ErrOutOfRange rejects answers for question indexes that do not
	// exist.
	ErrOutOfRange = errors.New("question index out of range")
	// ErrStarted rejects a second Start on the same session.
	ErrStarted = errors.New("session already started")
)

// Backend is the slice of the API the session drives. *api.Client
// satisfies it; tests substitute fakes.
type Backend interface {
	SubmitAnswer(ctx context.Context, attemptID string, ans api.AnswerSubmit) error
	CompleteAttempt(ctx context.Context, attemptID string, answers map[string]string, auto bool) (api.Result, error)
	AbandonAttempt(ctx context.Context, attemptID string) error
}

// TickerFactory lets tests drive the countdown by hand. The returned
// stop func must release the ticker.
type TickerFactory func(time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Config struct {
	Backend Backend
	Log     *logging.Logger
	// Now and NewTicker default to the real clock.
	Now       func() time.Time
	NewTicker TickerFactory
	// Confirm gates manual submission with unanswered questions and
	// every abandon. Nil counts as declined.
	Confirm func(prompt string) bool
	// OnTick fires after each countdown tick with the remaining seconds.
	OnTick func(remaining int)
	// OnExpired fires once when the countdown reaches zero, just before
	// the automatic submission.
	OnExpired func()
	// OnAutoSubmitted and OnAutoSubmitError surface the outcome of the
	// timeout-driven submission, which runs off the timer rather than a
	// user action.
	OnAutoSubmitted   func(api.Result)
	OnAutoSubmitError func(error)
}

// Session holds all mutable attempt state behind one mutex. Methods are
// safe to call from the input loop while the countdown goroutine ticks.
type Session struct {
	cfg Config
	log *logging.Logger

	mu        sync.Mutex
	started   bool
	attemptID string
	quiz      api.Quiz
	questions []api.Question
	answers   map[int]string // question index -> value, last write wins
	current   int
	remaining int
	deadline  time.Time
	status    Status
	result    *api.Result
	expired   bool
	resumed   bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = realTicker
	}
	log := cfg.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Session{cfg: cfg, log: log, status: StatusActive}
}

// Start brings the session up from a backend snapshot, fresh or resumed,
// and launches the one-second countdown. The countdown stops on submit,
// abandon, or ctx cancellation; the caller must cancel ctx (or call
// Close) on view teardown.
func (s *Session) Start(ctx context.Context, snap api.AttemptSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	if len(snap.Questions) == 0 {
		return fmt.Errorf("attempt %s has no questions", snap.AttemptID)
	}
	s.started = true
	s.attemptID = snap.AttemptID
	s.quiz = snap.Quiz
	s.questions = snap.Questions
	s.answers = make(map[int]string, len(snap.Questions))
	for i, q := range snap.Questions {
		if v, ok := snap.Answers[q.ID]; ok && v != "" {
			s.answers[i] = v
		}
	}
	s.current = 0
	if snap.CurrentIndex >= 0 && snap.CurrentIndex < len(snap.Questions) {
		s.current = snap.CurrentIndex
	}
	s.resumed = snap.Resumed
	if snap.Resumed {
		s.remaining = snap.RemainingSeconds
	} else {
		s.remaining = snap.TimeLimitMinutes * 60
	}
	if s.remaining < 0 {
		s.remaining = 0
	}
	s.status = StatusActive
	s.deadline = s.cfg.Now().Add(time.Duration(s.remaining) * time.Second)

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	tick, stop := s.cfg.NewTicker(time.Second)
	go s.countdown(tick, stop)

	s.log.Debug("attempt session started",
		"attempt", s.attemptID, "questions", len(s.questions),
		"remaining_seconds", s.remaining, "resumed", snap.Resumed)
	return nil
}

func (s *Session) countdown(tick <-chan time.Time, stop func()) {
	defer close(s.done)
	defer stop()
	defer s.cancel()

	// A resumed attempt can arrive already out of time.
	if s.expireDue() {
		return
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-tick:
			s.mu.Lock()
			if s.status != StatusActive {
				s.mu.Unlock()
				return
			}
			left := int(s.deadline.Sub(s.cfg.Now()) / time.Second)
			if left < 0 {
				left = 0
			}
			s.remaining = left
			onTick := s.cfg.OnTick
			s.mu.Unlock()

			if onTick != nil {
				onTick(left)
			}
			if s.expireDue() {
				return
			}
		}
	}
}

// expireDue fires the automatic submission exactly once when the clock
// hits zero. Returns true when the countdown should end.
func (s *Session) expireDue() bool {
	s.mu.Lock()
	if s.status != StatusActive || s.remaining > 0 || s.expired {
		fin := s.status != StatusActive
		s.mu.Unlock()
		return fin
	}
	s.expired = true
	s.mu.Unlock()

	if s.cfg.OnExpired != nil {
		s.cfg.OnExpired()
	}
	res, err := s.submit(s.ctx, false)
	if err != nil {
		s.log.Warn("auto-submit failed, answers retained", "attempt", s.AttemptID(), "err", err)
		if s.cfg.OnAutoSubmitError != nil {
			s.cfg.OnAutoSubmitError(err)
		}
		return true
	}
	if s.cfg.OnAutoSubmitted != nil {
		s.cfg.OnAutoSubmitted(res)
	}
	return true
}

// SelectAnswer records the value for the question at index, overwriting
// any prior value. The value is validated against the question type
// before anything is stored or sent; the wire upsert after the local
// write is best effort, since submission carries the full map anyway.
func (s *Session) SelectAnswer(ctx context.Context, index int, value string) error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if index < 0 || index >= len(s.questions) {
		s.mu.Unlock()
		return fmt.Errorf("index %d: %w", index, ErrOutOfRange)
	}
	q := s.questions[index]
	norm, err := normalizeAnswer(q, value)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.answers[index] = norm
	attemptID := s.attemptID
	s.mu.Unlock()

	if err := s.cfg.Backend.SubmitAnswer(ctx, attemptID, wireAnswer(q, norm)); err != nil {
		s.log.Warn("answer save failed, kept locally", "attempt", attemptID, "question", q.ID, "err", err)
	}
	return nil
}

// normalizeAnswer checks a raw value against the question variant and
// returns the canonical form that is stored and graded.
func normalizeAnswer(q api.Question, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("empty answer: %w", api.ErrValidation)
	}
	switch q.Type {
	case api.QuestionMCQ:
		key := strings.ToUpper(v)
		for _, opt := range q.Options {
			if strings.EqualFold(opt.Key, key) {
				return opt.Key, nil
			}
		}
		return "", fmt.Errorf("option %q not offered: %w", value, api.ErrValidation)
	case api.QuestionTrueFalse:
		switch strings.ToLower(v) {
		case "true", "t":
			return "true", nil
		case "false", "f":
			return "false", nil
		}
		return "", fmt.Errorf("answer %q is not true/false: %w", value, api.ErrValidation)
	case api.QuestionShortAnswer:
		return v, nil
	}
	return "", fmt.Errorf("unknown question type %q: %w", q.Type, api.ErrValidation)
}

func wireAnswer(q api.Question, value string) api.AnswerSubmit {
	ans := api.AnswerSubmit{QuestionID: q.ID}
	if q.Type == api.QuestionShortAnswer {
		ans.AnswerText = value
	} else {
		ans.SelectedOption = value
	}
	return ans
}

// GoTo moves the question pointer; out-of-range targets are ignored.
func (s *Session) GoTo(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return
	}
	if index < 0 || index >= len(s.questions) {
		return
	}
	s.current = index
}

func (s *Session) Next() { s.GoTo(s.CurrentIndex() + 1) }
func (s *Session) Prev() { s.GoTo(s.CurrentIndex() - 1) }

// Submit closes the attempt. Manual submission with unanswered questions
// asks for confirmation first; declining aborts with ErrDeclined and no
// side effects. A failed submission leaves the session in
// StatusSubmitting with answers intact so Submit can be called again.
func (s *Session) Submit(ctx context.Context) (api.Result, error) {
	return s.submit(ctx, true)
}

func (s *Session) submit(ctx context.Context, manual bool) (api.Result, error) {
	s.mu.Lock()
	switch s.status {
	case StatusSubmitted, StatusAbandoned:
		s.mu.Unlock()
		return api.Result{}, ErrFinished
	case StatusActive:
		if manual {
			if n := s.unansweredLocked(); n > 0 {
				prompt := fmt.Sprintf("%d of %d questions are unanswered. Submit anyway?", n, len(s.questions))
				s.mu.Unlock()
				if s.cfg.Confirm == nil || !s.cfg.Confirm(prompt) {
					return api.Result{}, ErrDeclined
				}
				s.mu.Lock()
				// The countdown may have beaten us while the prompt was
				// up; never submit twice.
				if s.status != StatusActive {
					st := s.status
					s.mu.Unlock()
					if st == StatusSubmitted {
						return api.Result{}, ErrFinished
					}
					return api.Result{}, fmt.Errorf("attempt state changed to %s during confirmation", st)
				}
			}
		}
	case StatusSubmitting:
		// Retry after a failed submission; no confirmation again.
	}
	s.status = StatusSubmitting
	wire := make(map[string]string, len(s.answers))
	for idx, val := range s.answers {
		wire[s.questions[idx].ID] = val
	}
	attemptID := s.attemptID
	cancel := s.cancel
	s.mu.Unlock()

	if manual && cancel != nil {
		cancel() // stop the countdown; auto path ends its own loop
	}

	res, err := s.cfg.Backend.CompleteAttempt(ctx, attemptID, wire, !manual)
	if err != nil {
		return api.Result{}, fmt.Errorf("submit attempt %s: %w", attemptID, err)
	}
	s.mu.Lock()
	s.status = StatusSubmitted
	s.result = &res
	s.mu.Unlock()
	s.log.Info("attempt submitted", "attempt", attemptID, "score", res.Score, "auto", !manual)
	return res, nil
}

// Abandon discards the attempt after confirmation. The backend is
// notified best-effort: a failed notification is logged and the local
// state is discarded regardless, since the server returns the still-open
// attempt on the next start anyway.
func (s *Session) Abandon(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusSubmitted, StatusAbandoned:
		s.mu.Unlock()
		return ErrFinished
	}
	title := s.quiz.Title
	s.mu.Unlock()

	if s.cfg.Confirm == nil || !s.cfg.Confirm(fmt.Sprintf("Abandon %q? Your answers will be discarded.", title)) {
		return ErrDeclined
	}

	s.mu.Lock()
	if s.status == StatusSubmitted || s.status == StatusAbandoned {
		s.mu.Unlock()
		return ErrFinished
	}
	s.status = StatusAbandoned
	s.answers = map[int]string{}
	attemptID := s.attemptID
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := s.cfg.Backend.AbandonAttempt(ctx, attemptID); err != nil {
		s.log.Warn("abandon notification failed", "attempt", attemptID, "err", err)
	}
	s.log.Info("attempt abandoned", "attempt", attemptID)
	return nil
}

// Close cancels the countdown. Idempotent; safe on every teardown path.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the countdown goroutine has exited; tests use it
// to join before asserting.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Resumed reports whether Start picked up an already-open attempt.
func (s *Session) Resumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumed
}

func (s *Session) AttemptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptID
}

func (s *Session) Quiz() api.Quiz {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiz
}

// Questions returns the ordered question sequence. Callers must not
// mutate it.
func (s *Session) Questions() []api.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions
}

func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Answers returns a copy of the index-keyed answer map.
func (s *Session) Answers() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// AnswerFor returns the recorded answer for a question index.
func (s *Session) AnswerFor(index int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.answers[index]
	return v, ok
}

// Unanswered lists question indexes without an answer, in order.
func (s *Session) Unanswered() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for i := range s.questions {
		if _, ok := s.answers[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

func (s *Session) unansweredLocked() int {
	n := 0
	for i := range s.questions {
		if _, ok := s.answers[i]; !ok {
			n++
		}
	}
	return n
}

// Result returns the graded outcome once submitted.
func (s *Session) Result() (api.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return api.Result{}, false
	}
	return *s.result, true
}
