package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/quizdesk/quizdesk/internal/api"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func formatScore(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *s)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printPDFTable(w io.Writer, docs []api.PDF) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPAGES\tWORDS\tUPLOADED")
	for _, d := range docs {
		status := d.Status
		if d.Status == api.PDFStatusFailed && d.ErrorMessage != "" {
			status = "failed: " + d.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			d.ID, d.Title, status, d.PageCount, d.WordCount, formatTime(d.CreatedAt))
	}
	tw.Flush()
}

func printQuizTable(w io.Writer, quizzes []api.Quiz) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tQUESTIONS\tEST MIN\tCREATED")
	for _, q := range quizzes {
		status := q.Status
		if q.Status == api.QuizStatusFailed && q.ErrorMessage != "" {
			status = "failed: " + q.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			q.ID, q.Title, status, q.TotalQuestions, q.EstimatedTime, formatTime(q.CreatedAt))
	}
	tw.Flush()
}

func printQuestion(w io.Writer, q api.Question, withKey bool) {
	fmt.Fprintf(w, "%d. [%s/%s] %s\n", q.Order, q.Type, q.Difficulty, q.Text)
	for _, opt := range q.Options {
		fmt.Fprintf(w, "     %s) %s\n", opt.Key, opt.Text)
	}
	if withKey {
		fmt.Fprintf(w, "     answer: %s\n", q.CorrectAnswer)
		if q.Explanation != "" {
			fmt.Fprintf(w, "     why: %s\n", q.Explanation)
		}
	}
}

func printResult(w io.Writer, res api.Result) {
	fmt.Fprintf(w, "\n%s\n", res.QuizTitle)
	fmt.Fprintf(w, "Score: %.1f%% (%d/%d correct, %s)\n",
		res.Score, res.CorrectAnswers, res.TotalQuestions,
		formatClock(res.TimeTakenSeconds))
	if len(res.TopicPerformance) > 0 {
		tw := newTable(w)
		fmt.Fprintln(tw, "TOPIC\tCORRECT\tACCURACY\tPERFORMANCE")
		for _, tp := range res.TopicPerformance {
			fmt.Fprintf(tw, "%s\t%d/%d\t%.0f%%\t%s\n",
				tp.Topic, tp.CorrectAnswers, tp.TotalQuestions, tp.Accuracy, tp.Performance)
		}
		tw.Flush()
	}
	for _, rec := range res.Recommendations {
		fmt.Fprintf(w, "- %s\n", rec)
	}
}

func printActivity(w io.Writer, entries []api.ActivityEntry) {
	for _, e := range entries {
		line := strings.TrimSpace(e.Subject + " " + e.Detail)
		fmt.Fprintf(w, "%s  %-18s %s\n", formatTime(e.Timestamp), e.Kind, line)
	}
}
