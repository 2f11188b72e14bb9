package stub

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/quizdesk/quizdesk/internal/api"
)

// grade scores a finished attempt against the quiz's answer keys and
// assembles the result payload: overall percent, per-topic breakdown
// and recommendation strings.
func grade(a Attempt, quiz QuizRecord, completedAt time.Time) api.Result {
	correct := 0
	type tally struct{ total, correct int }
	topics := map[string]*tally{}

	for _, q := range quiz.Questions {
		t := topics[q.Topic]
		if t == nil {
			t = &tally{}
			topics[q.Topic] = t
		}
		t.total++
		given, answered := a.Answers[q.ID]
		if !answered {
			continue
		}
		if answerCorrect(q, given) {
			correct++
			t.correct++
		}
	}

	total := len(quiz.Questions)
	score := 0.0
	if total > 0 {
		score = round2(float64(correct) / float64(total) * 100)
	}

	perf := make([]api.TopicPerformance, 0, len(topics))
	for topic, t := range topics {
		acc := round2(float64(t.correct) / float64(t.total) * 100)
		perf = append(perf, api.TopicPerformance{
			Topic:          topic,
			TotalQuestions: t.total,
			CorrectAnswers: t.correct,
			Accuracy:       acc,
			Performance:    performanceLabel(acc),
		})
	}
	sort.Slice(perf, func(i, j int) bool { return perf[i].Topic < perf[j].Topic })

	return api.Result{
		AttemptID:        a.ID,
		QuizID:           quiz.ID,
		QuizTitle:        quiz.Title,
		Score:            score,
		CorrectAnswers:   correct,
		TotalQuestions:   total,
		CompletedAt:      completedAt,
		TimeTakenSeconds: int(completedAt.Sub(a.StartedAt) / time.Second),
		TopicPerformance: perf,
		Recommendations:  recommendations(score, perf),
	}
}

func answerCorrect(q api.Question, given string) bool {
	switch q.Type {
	case api.QuestionMCQ, api.QuestionTrueFalse, api.QuestionShortAnswer:
		return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(q.CorrectAnswer))
	}
	return false
}

func performanceLabel(accuracy float64) string {
	switch {
	case accuracy >= 80:
		return "excellent"
	case accuracy >= 60:
		return "good"
	default:
		return "needs_improvement"
	}
}

func masteryLabel(accuracy float64) string {
	switch {
	case accuracy >= 85:
		return "mastered"
	case accuracy >= 65:
		return "proficient"
	default:
		return "learning"
	}
}

func recommendations(score float64, perf []api.TopicPerformance) []string {
	var out []string
	for _, p := range perf {
		if p.Accuracy < 60 {
			out = append(out, fmt.Sprintf("Review the material on %s.", p.Topic))
		}
	}
	if len(out) == 0 {
		if score >= 80 {
			out = append(out, "Great work. Keep practicing to maintain your mastery.")
		} else {
			out = append(out, "Solid effort. Revisit the explanations for the questions you missed.")
		}
	}
	return out
}

func sortMastery(ms []api.TopicMastery) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].Topic < ms[j].Topic })
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
