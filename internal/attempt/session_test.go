package attempt_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/attempt"
)

/* ---------------- fakes ---------------- */

type fakeBackend struct {
	mu              sync.Mutex
	answers         []api.AnswerSubmit
	answerErr       error
	completeCalls   int
	completeAnswers map[string]string
	completeAuto    bool
	completeErr     error
	completeHook    func()
	abandonCalls    int
	abandonErr      error
	result          api.Result
}

func (f *fakeBackend) SubmitAnswer(_ context.Context, _ string, ans api.AnswerSubmit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answerErr != nil {
		return f.answerErr
	}
	f.answers = append(f.answers, ans)
	return nil
}

func (f *fakeBackend) CompleteAttempt(_ context.Context, _ string, answers map[string]string, auto bool) (api.Result, error) {
	f.mu.Lock()
	hook := f.completeHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.completeAnswers = answers
	f.completeAuto = auto
	if f.completeErr != nil {
		return api.Result{}, f.completeErr
	}
	return f.result, nil
}

func (f *fakeBackend) AbandonAttempt(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandonCalls++
	return f.abandonErr
}

func (f *fakeBackend) completed() (int, map[string]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeCalls, f.completeAnswers, f.completeAuto
}

func (f *fakeBackend) savedAnswers() []api.AnswerSubmit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.AnswerSubmit(nil), f.answers...)
}

// fakeTimer is both the clock and the tick source, driven by the test.
type fakeTimer struct {
	mu      sync.Mutex
	now     time.Time
	tick    chan time.Time
	stopped bool
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{now: time.Unix(1_700_000_000, 0), tick: make(chan time.Time, 64)}
}

func (f *fakeTimer) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTimer) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fakeTimer) Tick() { f.tick <- f.Now() }

func (f *fakeTimer) factory(time.Duration) (<-chan time.Time, func()) {
	return f.tick, func() {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
	}
}

func (f *fakeTimer) tickerStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

/* ---------------- seeding ---------------- */

func threeQuestionSnapshot() api.AttemptSnapshot {
	return api.AttemptSnapshot{
		AttemptID: "at-1",
		Quiz:      api.Quiz{ID: "quiz-1", Title: "Chapter One"},
		Questions: []api.Question{
			{ID: "q1", Type: api.QuestionMCQ, Text: "Pick one", Order: 1, Options: []api.Option{
				{Key: "A", Text: "first"}, {Key: "B", Text: "second"}, {Key: "C", Text: "third"}, {Key: "D", Text: "fourth"},
			}},
			{ID: "q2", Type: api.QuestionTrueFalse, Text: "Yes or no", Order: 2},
			{ID: "q3", Type: api.QuestionShortAnswer, Text: "Say it", Order: 3},
		},
		TimeLimitMinutes: 1,
	}
}

type harness struct {
	backend *fakeBackend
	timer   *fakeTimer
	sess    *attempt.Session
	ticks   chan int
	expired chan struct{}
	auto    chan api.Result
	autoErr chan error
	confirm func(string) bool
}

func seedSession(t *testing.T, snap api.AttemptSnapshot) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{result: api.Result{AttemptID: snap.AttemptID, Score: 66.7}},
		timer:   newFakeTimer(),
		ticks:   make(chan int, 256),
		expired: make(chan struct{}, 1),
		auto:    make(chan api.Result, 1),
		autoErr: make(chan error, 1),
	}
	h.sess = attempt.New(attempt.Config{
		Backend:           h.backend,
		Now:               h.timer.Now,
		NewTicker:         h.timer.factory,
		Confirm:           func(p string) bool { return h.confirm != nil && h.confirm(p) },
		OnTick:            func(r int) { h.ticks <- r },
		OnExpired:         func() { h.expired <- struct{}{} },
		OnAutoSubmitted:   func(r api.Result) { h.auto <- r },
		OnAutoSubmitError: func(err error) { h.autoErr <- err },
	})
	if err := h.sess.Start(context.Background(), snap); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(h.sess.Close)
	return h
}

// step advances the fake clock one second, delivers a tick, and waits for
// the session to process it.
func (h *harness) step(t *testing.T) int {
	t.Helper()
	h.timer.Advance(time.Second)
	h.timer.Tick()
	select {
	case r := <-h.ticks:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("tick not processed")
		return -1
	}
}

func waitDone(t *testing.T, s *attempt.Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("countdown goroutine did not exit")
	}
}

/* ---------------- tests ---------------- */

func TestLastAnswerWins(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	ctx := context.Background()

	for _, v := range []string{"A", "c", "B"} {
		if err := h.sess.SelectAnswer(ctx, 0, v); err != nil {
			t.Fatalf("select %q: %v", v, err)
		}
	}
	if got, _ := h.sess.AnswerFor(0); got != "B" {
		t.Fatalf("answer = %q, want last write B", got)
	}
	if err := h.sess.SelectAnswer(ctx, 1, "TRUE"); err != nil {
		t.Fatal(err)
	}
	if err := h.sess.SelectAnswer(ctx, 1, "f"); err != nil {
		t.Fatal(err)
	}
	if got, _ := h.sess.AnswerFor(1); got != "false" {
		t.Fatalf("true_false answer = %q, want false", got)
	}
	saved := h.backend.savedAnswers()
	if len(saved) != 5 {
		t.Fatalf("wire upserts = %d, want 5", len(saved))
	}
}

func TestCountdownInitAndDecay(t *testing.T) {
	snap := threeQuestionSnapshot()
	snap.TimeLimitMinutes = 2
	h := seedSession(t, snap)

	if got := h.sess.Remaining(); got != 120 {
		t.Fatalf("initial remaining = %d, want 120", got)
	}
	for i := 1; i <= 5; i++ {
		if got := h.step(t); got != 120-i {
			t.Fatalf("after %d ticks remaining = %d, want %d", i, got, 120-i)
		}
	}
	if got := h.sess.Remaining(); got != 115 {
		t.Fatalf("remaining = %d, want 115", got)
	}
}

func TestAutoSubmitExactlyOnceAtZero(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	ctx := context.Background()
	if err := h.sess.SelectAnswer(ctx, 0, "B"); err != nil {
		t.Fatal(err)
	}

	h.timer.Advance(61 * time.Second)
	h.timer.Tick()
	if r := <-h.ticks; r != 0 {
		t.Fatalf("expiry tick remaining = %d, want 0 (clamped)", r)
	}
	select {
	case <-h.expired:
	case <-time.After(2 * time.Second):
		t.Fatal("OnExpired never fired")
	}
	select {
	case res := <-h.auto:
		if res.AttemptID != "at-1" {
			t.Fatalf("auto result: %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("auto-submit never completed")
	}
	waitDone(t, h.sess)

	if !h.timer.tickerStopped() {
		t.Fatal("countdown ticker not released")
	}
	if got := h.sess.Status(); got != attempt.StatusSubmitted {
		t.Fatalf("status = %s, want submitted", got)
	}
	calls, _, auto := h.backend.completed()
	if calls != 1 || !auto {
		t.Fatalf("complete calls = %d auto=%v, want exactly one auto submit", calls, auto)
	}
	// Stray ticks after completion must do nothing.
	h.timer.Tick()
	time.Sleep(20 * time.Millisecond)
	if calls, _, _ := h.backend.completed(); calls != 1 {
		t.Fatalf("post-completion tick caused another submit: %d", calls)
	}
	if len(h.ticks) != 0 {
		t.Fatalf("post-completion tick reached the callback")
	}
}

func TestScenarioTimerExpiryAutoSubmits(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	ctx := context.Background()

	sawSubmitting := false
	h.backend.completeHook = func() {
		if h.sess.Status() == attempt.StatusSubmitting {
			sawSubmitting = true
		}
	}

	if err := h.sess.SelectAnswer(ctx, 0, "B"); err != nil {
		t.Fatal(err)
	}
	if err := h.sess.SelectAnswer(ctx, 1, "true"); err != nil {
		t.Fatal(err)
	}
	// question index 2 deliberately skipped

	for i := 0; i < 60; i++ {
		h.step(t)
	}
	select {
	case <-h.auto:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry did not auto-submit")
	}
	waitDone(t, h.sess)

	_, wire, auto := h.backend.completed()
	if !auto {
		t.Fatal("submission not marked automatic")
	}
	want := map[string]string{"q1": "B", "q2": "true"}
	if len(wire) != len(want) {
		t.Fatalf("wire answers = %v, want %v", wire, want)
	}
	for k, v := range want {
		if wire[k] != v {
			t.Fatalf("wire[%s] = %q, want %q", k, wire[k], v)
		}
	}
	if _, ok := wire["q3"]; ok {
		t.Fatal("skipped question leaked into submission")
	}
	if !sawSubmitting {
		t.Fatal("session never passed through submitting")
	}
	if h.sess.Status() != attempt.StatusSubmitted {
		t.Fatalf("final status = %s", h.sess.Status())
	}
}

func TestManualSubmitConfirmationGate(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	ctx := context.Background()
	if err := h.sess.SelectAnswer(ctx, 0, "A"); err != nil {
		t.Fatal(err)
	}

	var prompt string
	h.confirm = func(p string) bool { prompt = p; return false }
	_, err := h.sess.Submit(ctx)
	if !errors.Is(err, attempt.ErrDeclined) {
		t.Fatalf("declined submit: %v", err)
	}
	if !strings.Contains(prompt, "2 of 3") {
		t.Fatalf("prompt = %q, want unanswered count", prompt)
	}
	if h.sess.Status() != attempt.StatusActive {
		t.Fatalf("status changed on declined submit: %s", h.sess.Status())
	}
	if calls, _, _ := h.backend.completed(); calls != 0 {
		t.Fatalf("network call issued on declined submit")
	}
	// Countdown still alive after declining.
	if got := h.step(t); got != 59 {
		t.Fatalf("countdown dead after declined submit: remaining %d", got)
	}

	h.confirm = func(string) bool { return true }
	res, err := h.sess.Submit(ctx)
	if err != nil {
		t.Fatalf("confirmed submit: %v", err)
	}
	if res.Score != 66.7 {
		t.Fatalf("score = %v", res.Score)
	}
	if h.sess.Status() != attempt.StatusSubmitted {
		t.Fatalf("status = %s", h.sess.Status())
	}
	if calls, _, auto := h.backend.completed(); calls != 1 || auto {
		t.Fatalf("complete calls=%d auto=%v", calls, auto)
	}
	waitDone(t, h.sess)
	if !h.timer.tickerStopped() {
		t.Fatal("ticker leaked after manual submit")
	}
}

func TestManualSubmitAllAnsweredSkipsConfirmation(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	ctx := context.Background()
	for i, v := range []string{"B", "true", "gravity"} {
		if err := h.sess.SelectAnswer(ctx, i, v); err != nil {
			t.Fatal(err)
		}
	}
	h.confirm = func(string) bool {
		t.Error("confirmation requested with all questions answered")
		return true
	}
	if _, err := h.sess.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestFailedSubmitKeepsAnswersForRetry(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	ctx := context.Background()
	for i, v := range []string{"B", "true", "gravity"} {
		if err := h.sess.SelectAnswer(ctx, i, v); err != nil {
			t.Fatal(err)
		}
	}
	h.backend.completeErr = errors.New("backend down")
	if _, err := h.sess.Submit(ctx); err == nil {
		t.Fatal("submit succeeded against dead backend")
	}
	if h.sess.Status() != attempt.StatusSubmitting {
		t.Fatalf("status = %s, want submitting for retry", h.sess.Status())
	}
	if got := h.sess.Answers(); len(got) != 3 {
		t.Fatalf("answers lost on failed submit: %v", got)
	}

	h.backend.mu.Lock()
	h.backend.completeErr = nil
	h.backend.mu.Unlock()
	h.confirm = func(string) bool {
		t.Error("retry asked for confirmation again")
		return true
	}
	if _, err := h.sess.Submit(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if h.sess.Status() != attempt.StatusSubmitted {
		t.Fatalf("status after retry = %s", h.sess.Status())
	}
}

func TestAutoSubmitFailureRecoverable(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	ctx := context.Background()
	if err := h.sess.SelectAnswer(ctx, 0, "B"); err != nil {
		t.Fatal(err)
	}
	h.backend.completeErr = errors.New("flaky")

	h.timer.Advance(2 * time.Minute)
	h.timer.Tick()
	select {
	case <-h.autoErr:
	case <-time.After(2 * time.Second):
		t.Fatal("auto-submit error not surfaced")
	}
	waitDone(t, h.sess)
	if h.sess.Status() != attempt.StatusSubmitting {
		t.Fatalf("status = %s, want submitting", h.sess.Status())
	}

	h.backend.mu.Lock()
	h.backend.completeErr = nil
	h.backend.mu.Unlock()
	if _, err := h.sess.Submit(ctx); err != nil {
		t.Fatalf("manual retry after failed auto-submit: %v", err)
	}
	if _, _, auto := h.backend.completed(); auto {
		t.Fatal("retry still marked automatic")
	}
}

func TestAbandon(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	ctx := context.Background()
	if err := h.sess.SelectAnswer(ctx, 0, "B"); err != nil {
		t.Fatal(err)
	}

	h.confirm = func(string) bool { return false }
	if err := h.sess.Abandon(ctx); !errors.Is(err, attempt.ErrDeclined) {
		t.Fatalf("declined abandon: %v", err)
	}
	if h.sess.Status() != attempt.StatusActive {
		t.Fatal("declined abandon changed state")
	}

	h.confirm = func(string) bool { return true }
	if err := h.sess.Abandon(ctx); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if h.sess.Status() != attempt.StatusAbandoned {
		t.Fatalf("status = %s", h.sess.Status())
	}
	if len(h.sess.Answers()) != 0 {
		t.Fatal("local answers not discarded")
	}
	h.backend.mu.Lock()
	calls := h.backend.abandonCalls
	h.backend.mu.Unlock()
	if calls != 1 {
		t.Fatalf("abandon notifications = %d", calls)
	}
	waitDone(t, h.sess)
	if !h.timer.tickerStopped() {
		t.Fatal("ticker leaked after abandon")
	}
	if err := h.sess.Abandon(ctx); !errors.Is(err, attempt.ErrFinished) {
		t.Fatalf("abandon after abandoned: %v", err)
	}
}

func TestResumeRehydratesState(t *testing.T) {
	snap := threeQuestionSnapshot()
	snap.Resumed = true
	snap.Answers = map[string]string{"q1": "C", "q2": "false"}
	snap.CurrentIndex = 2
	snap.RemainingSeconds = 30
	h := seedSession(t, snap)

	if got := h.sess.Remaining(); got != 30 {
		t.Fatalf("remaining = %d, want 30 from snapshot", got)
	}
	if got := h.sess.CurrentIndex(); got != 2 {
		t.Fatalf("current = %d, want 2 from snapshot", got)
	}
	if v, _ := h.sess.AnswerFor(0); v != "C" {
		t.Fatalf("rehydrated answer = %q", v)
	}
	if un := h.sess.Unanswered(); len(un) != 1 || un[0] != 2 {
		t.Fatalf("unanswered = %v", un)
	}
	if got := h.step(t); got != 29 {
		t.Fatalf("resumed countdown remaining = %d", got)
	}
}

func TestResumeOutOfTimeAutoSubmitsImmediately(t *testing.T) {
	snap := threeQuestionSnapshot()
	snap.Resumed = true
	snap.Answers = map[string]string{"q1": "B"}
	snap.RemainingSeconds = 0
	h := seedSession(t, snap)

	select {
	case <-h.auto:
	case <-time.After(2 * time.Second):
		t.Fatal("out-of-time resume did not auto-submit")
	}
	if calls, _, auto := h.backend.completed(); calls != 1 || !auto {
		t.Fatalf("calls=%d auto=%v", calls, auto)
	}
}

func TestAnswerValidation(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	ctx := context.Background()

	cases := []struct {
		index int
		value string
	}{
		{0, "E"},   // option not offered
		{0, ""},    // empty
		{1, "yes"}, // not a boolean token
		{2, "   "}, // blank text
	}
	for _, tc := range cases {
		if err := h.sess.SelectAnswer(ctx, tc.index, tc.value); !errors.Is(err, api.ErrValidation) {
			t.Fatalf("index %d value %q: want validation error, got %v", tc.index, tc.value, err)
		}
	}
	if err := h.sess.SelectAnswer(ctx, 7, "B"); !errors.Is(err, attempt.ErrOutOfRange) {
		t.Fatalf("out of range: %v", err)
	}
	if len(h.backend.savedAnswers()) != 0 {
		t.Fatal("invalid answers reached the wire")
	}

	// Normalization of accepted shapes.
	if err := h.sess.SelectAnswer(ctx, 0, "b"); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.sess.AnswerFor(0); v != "B" {
		t.Fatalf("mcq key not normalized: %q", v)
	}
	if err := h.sess.SelectAnswer(ctx, 1, "T"); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.sess.AnswerFor(1); v != "true" {
		t.Fatalf("boolean token not normalized: %q", v)
	}
}

func TestAnswerSaveFailureKeptLocally(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	h.backend.answerErr = errors.New("write failed")
	if err := h.sess.SelectAnswer(context.Background(), 0, "B"); err != nil {
		t.Fatalf("transient save failure surfaced: %v", err)
	}
	if v, ok := h.sess.AnswerFor(0); !ok || v != "B" {
		t.Fatal("local answer lost on save failure")
	}
}

func TestNavigationBounds(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	h.sess.GoTo(2)
	if h.sess.CurrentIndex() != 2 {
		t.Fatal("goto failed")
	}
	h.sess.GoTo(99)
	h.sess.GoTo(-1)
	if h.sess.CurrentIndex() != 2 {
		t.Fatal("out-of-range goto moved the pointer")
	}
	h.sess.Next() // at last question, no-op
	if h.sess.CurrentIndex() != 2 {
		t.Fatal("next past the end moved the pointer")
	}
	h.sess.Prev()
	h.sess.Prev()
	h.sess.Prev() // at first question, no-op
	if h.sess.CurrentIndex() != 0 {
		t.Fatalf("prev sequence landed on %d", h.sess.CurrentIndex())
	}
}

func TestCloseReleasesCountdown(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	h.sess.Close()
	waitDone(t, h.sess)
	if !h.timer.tickerStopped() {
		t.Fatal("ticker not released on teardown")
	}
	if calls, _, _ := h.backend.completed(); calls != 0 {
		t.Fatal("teardown triggered a submit")
	}
}

func TestStartTwiceRejected(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	err := h.sess.Start(context.Background(), threeQuestionSnapshot())
	if !errors.Is(err, attempt.ErrStarted) {
		t.Fatalf("second start: %v", err)
	}
}

func TestSelectAnswerAfterTerminalRejected(t *testing.T) {
	h := seedSession(t, threeQuestionSnapshot())
	ctx := context.Background()
	for i, v := range []string{"B", "true", "x"} {
		if err := h.sess.SelectAnswer(ctx, i, v); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.sess.Submit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.sess.SelectAnswer(ctx, 0, "A"); !errors.Is(err, attempt.ErrNotActive) {
		t.Fatalf("answer after submit: %v", err)
	}
	if _, err := h.sess.Submit(ctx); !errors.Is(err, attempt.ErrFinished) {
		t.Fatalf("submit after submit: %v", err)
	}
}
