package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/attempt"
	"github.com/quizdesk/quizdesk/internal/portal"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "quiz taking (student role)",
}

var quizzesCmd = &cobra.Command{
	Use:   "quizzes",
	Short: "list quizzes available to take",
	Args:  cobra.NoArgs,
	RunE:  runQuizzes,
}

var takeCmd = &cobra.Command{
	Use:   "take <quiz-id>",
	Short: "take a quiz, or resume your open attempt",
	Args:  cobra.ExactArgs(1),
	RunE:  runTake,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "list your past attempts",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "show your statistics and topic mastery",
	Args:  cobra.NoArgs,
	RunE:  runProgress,
}

func init() {
	studentCmd.AddCommand(quizzesCmd, takeCmd, historyCmd, progressCmd)
}

func runQuizzes(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewStudentHome)
	if err != nil {
		return err
	}
	defer app.Close()

	list, err := app.Client.AvailableQuizzes(cmd.Context())
	if err != nil {
		return err
	}
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ID\tTITLE\tQUESTIONS\tMINUTES\tBEST")
	for _, q := range list {
		best := "-"
		switch {
		case q.PreviousScore != nil:
			best = fmt.Sprintf("%.1f%%", *q.PreviousScore)
		case q.PreviouslyAttempted:
			best = "attempted"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", q.ID, q.Title, q.TotalQuestions, q.TimeLimitMinutes, best)
	}
	tw.Flush()
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewHistory)
	if err != nil {
		return err
	}
	defer app.Close()

	items, err := app.Client.AttemptHistory(cmd.Context())
	if err != nil {
		return err
	}
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "QUIZ\tSTATUS\tSCORE\tSTARTED\tCOMPLETED")
	for _, it := range items {
		completed := "-"
		if it.CompletedAt != nil {
			completed = formatTime(*it.CompletedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			it.QuizTitle, it.Status, formatScore(it.Score), formatTime(it.StartedAt), completed)
	}
	tw.Flush()
	return nil
}

func runProgress(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewProgress)
	if err != nil {
		return err
	}
	defer app.Close()

	p, err := app.Client.Progress(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	s := p.Statistics
	fmt.Fprintf(out, "Attempts:      %d across %d quizzes\n", s.TotalAttempts, s.QuizzesTaken)
	fmt.Fprintf(out, "Average score: %.1f%%\n", s.AverageScore)
	fmt.Fprintf(out, "Best score:    %.1f%%\n", s.BestScore)
	if len(p.TopicMastery) > 0 {
		fmt.Fprintln(out)
		tw := newTable(out)
		fmt.Fprintln(tw, "TOPIC\tCORRECT\tACCURACY\tMASTERY")
		for _, tm := range p.TopicMastery {
			fmt.Fprintf(tw, "%s\t%d/%d\t%.0f%%\t%s\n",
				tm.Topic, tm.CorrectAnswers, tm.TotalQuestions, tm.Accuracy, tm.MasteryLevel)
		}
		tw.Flush()
	}
	return nil
}

const takeHelp = `commands:
  <answer>    answer the current question (option key, true/false, or text)
  :n  :p      next / previous question
  :g N        jump to question N
  :list       overview of answered questions
  :submit     finish and grade the attempt
  :abandon    discard the attempt
  :q          leave; the attempt stays open and can be resumed
`

func runTake(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewAttempt)
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	var outMu sync.Mutex
	say := func(format string, a ...interface{}) {
		outMu.Lock()
		fmt.Fprintf(out, format, a...)
		outMu.Unlock()
	}

	// One goroutine owns stdin. Confirmation prompts consume from the
	// same channel as the main loop, so a y/N reply is never stolen by
	// the reader.
	lines := make(chan string)
	readErrs := make(chan error, 1)
	go func() {
		for {
			line, err := in.ReadString('\n')
			if err != nil {
				readErrs <- err
				return
			}
			lines <- strings.TrimSpace(line)
		}
	}()

	cfg := attempt.Config{
		Confirm: func(prompt string) bool {
			say("%s [y/N]: ", prompt)
			select {
			case line := <-lines:
				l := strings.ToLower(line)
				return l == "y" || l == "yes"
			case err := <-readErrs:
				readErrs <- err
				return false
			}
		},
		OnTick: func(remaining int) {
			if remaining == 300 || remaining == 60 || remaining == 30 || remaining == 10 {
				say("\n%s left\n", formatClock(remaining))
			}
		},
		OnExpired: func() {
			say("\ntime is up, submitting your answers\n")
		},
		OnAutoSubmitError: func(err error) {
			say("automatic submission failed: %v\nyour answers are safe; type :submit to retry\n", err)
		},
	}

	sess, err := app.BeginAttempt(cmd.Context(), args[0], cfg)
	if err != nil {
		return err
	}
	defer app.EndAttempt()

	if sess.Resumed() {
		say("resuming your open attempt (%d of %d answered)\n", len(sess.Answers()), len(sess.Questions()))
	}
	say("%s: %d questions, %s on the clock (:help lists commands)\n",
		sess.Quiz().Title, len(sess.Questions()), formatClock(sess.Remaining()))

	doneCh := sess.Done()
	for {
		switch sess.Status() {
		case attempt.StatusSubmitted:
			if res, ok := sess.Result(); ok {
				outMu.Lock()
				printResult(out, res)
				outMu.Unlock()
			}
			return nil
		case attempt.StatusAbandoned:
			say("attempt abandoned\n")
			return nil
		case attempt.StatusActive:
			showCurrent(say, sess)
		}

		select {
		case <-doneCh:
			doneCh = nil // countdown finished; the status switch decides
		case line := <-lines:
			if quit := handleTakeInput(cmd.Context(), sess, say, line); quit {
				return nil
			}
		case err := <-readErrs:
			if errors.Is(err, io.EOF) {
				say("input closed; the attempt stays open, resume with the same command\n")
				return nil
			}
			return err
		}
	}
}

func showCurrent(say func(string, ...interface{}), sess *attempt.Session) {
	i := sess.CurrentIndex()
	qs := sess.Questions()
	q := qs[i]

	hdr := fmt.Sprintf("\n[%d/%d, %s left]", i+1, len(qs), formatClock(sess.Remaining()))
	if v, ok := sess.AnswerFor(i); ok {
		hdr += fmt.Sprintf(" answered: %s", v)
	}
	say("%s\n%s\n", hdr, q.Text)
	for _, opt := range q.Options {
		say("  %s) %s\n", opt.Key, opt.Text)
	}
	if q.Type == api.QuestionTrueFalse {
		say("  true / false\n")
	}
	say("> ")
}

// handleTakeInput runs one command or answer. It reports whether the
// loop should exit with the attempt still open.
func handleTakeInput(ctx context.Context, sess *attempt.Session, say func(string, ...interface{}), line string) bool {
	switch {
	case line == "":
	case line == ":q" || line == ":quit":
		say("answers saved; resume with `quizdesk student take %s`\n", sess.Quiz().ID)
		return true
	case line == ":n" || line == ":next":
		sess.Next()
	case line == ":p" || line == ":prev":
		sess.Prev()
	case strings.HasPrefix(line, ":g"):
		arg := strings.TrimPrefix(strings.TrimPrefix(line, ":goto"), ":g")
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			say("usage: :g <question number>\n")
			return false
		}
		sess.GoTo(n - 1)
	case line == ":list":
		for i, q := range sess.Questions() {
			mark := " "
			if _, ok := sess.AnswerFor(i); ok {
				mark = "x"
			}
			say(" [%s] %2d. %s\n", mark, i+1, q.Text)
		}
	case line == ":submit":
		_, err := sess.Submit(ctx)
		switch {
		case err == nil, errors.Is(err, attempt.ErrDeclined):
		case errors.Is(err, attempt.ErrFinished):
			say("the attempt is already finished\n")
		default:
			say("submit failed: %v\nyour answers are safe; try :submit again\n", err)
		}
	case line == ":abandon":
		err := sess.Abandon(ctx)
		switch {
		case err == nil, errors.Is(err, attempt.ErrDeclined):
		case errors.Is(err, attempt.ErrFinished):
			say("the attempt is already finished\n")
		default:
			say("abandon failed: %v\n", err)
		}
	case line == ":help":
		say("%s", takeHelp)
	case strings.HasPrefix(line, ":"):
		say("unknown command %q (:help lists them)\n", line)
	default:
		idx := sess.CurrentIndex()
		if err := sess.SelectAnswer(ctx, idx, answerValue(sess.Questions()[idx], line)); err != nil {
			say("%v\n", err)
			return false
		}
		sess.Next()
	}
	return false
}

// answerValue maps a bare option number ("1".."4") to its key for
// multiple choice; everything else passes through untouched.
func answerValue(q api.Question, line string) string {
	if q.Type != api.QuestionMCQ {
		return line
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(q.Options) {
		return line
	}
	return q.Options[n-1].Key
}
