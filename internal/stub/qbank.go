package stub

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/quizdesk/quizdesk/internal/api"
)

// buildQuestions fabricates a quiz from the document title. Real
// generation reads the extracted text; the stub only needs questions
// that are stable, gradeable and spread across the requested
// difficulty mix.
func buildQuestions(doc PDF, total int, mix api.DifficultyMix) ([]api.Question, api.DifficultyMix) {
	if total <= 0 {
		total = 5
	}
	topics := topicsFromTitle(doc.Title)
	difficulties := spreadDifficulty(total, mix)

	realized := api.DifficultyMix{}
	out := make([]api.Question, 0, total)
	for i := 0; i < total; i++ {
		topic := topics[i%len(topics)]
		q := api.Question{
			ID:         uuid.NewString(),
			Order:      i + 1,
			Topic:      topic,
			Difficulty: difficulties[i],
		}
		switch i % 5 {
		case 0, 1, 2:
			q.Type = api.QuestionMCQ
			q.Text = fmt.Sprintf("Which statement best describes %s as presented in %q?", topic, doc.Title)
			q.Options = []api.Option{
				{Key: "A", Text: fmt.Sprintf("%s is a central concept of the material", topic)},
				{Key: "B", Text: fmt.Sprintf("%s is mentioned only in passing", topic)},
				{Key: "C", Text: fmt.Sprintf("%s contradicts the main argument", topic)},
				{Key: "D", Text: fmt.Sprintf("%s is left undefined", topic)},
			}
			q.CorrectAnswer = string(rune('A' + i%4))
			q.Explanation = fmt.Sprintf("The section on %s develops it as option %s states.", topic, q.CorrectAnswer)
		case 3:
			q.Type = api.QuestionTrueFalse
			if i%2 == 0 {
				q.Text = fmt.Sprintf("The material treats %s as a core concept.", topic)
				q.CorrectAnswer = "true"
			} else {
				q.Text = fmt.Sprintf("The material dismisses %s as irrelevant.", topic)
				q.CorrectAnswer = "false"
			}
			q.Explanation = fmt.Sprintf("See the discussion of %s.", topic)
		case 4:
			q.Type = api.QuestionShortAnswer
			q.Text = fmt.Sprintf("In one word, name the concept the section about %s centers on.", topic)
			q.CorrectAnswer = strings.ToLower(firstWord(topic))
			q.Explanation = fmt.Sprintf("The expected answer is %q.", q.CorrectAnswer)
		}
		switch q.Difficulty {
		case "easy":
			realized.Easy++
		case "hard":
			realized.Hard++
		default:
			realized.Medium++
		}
		out = append(out, q)
	}
	return out, realized
}

// spreadDifficulty turns a requested mix into one label per question.
// A zero mix falls back to 40/40/20; a mix that does not sum to total
// is scaled, with the remainder going to medium.
func spreadDifficulty(total int, mix api.DifficultyMix) []string {
	sum := mix.Easy + mix.Medium + mix.Hard
	var easy, hard int
	if sum <= 0 {
		easy = total * 2 / 5
		hard = total / 5
	} else {
		easy = total * mix.Easy / sum
		hard = total * mix.Hard / sum
	}
	medium := total - easy - hard

	out := make([]string, 0, total)
	for i := 0; i < easy; i++ {
		out = append(out, "easy")
	}
	for i := 0; i < medium; i++ {
		out = append(out, "medium")
	}
	for i := 0; i < hard; i++ {
		out = append(out, "hard")
	}
	return out
}

// topicsFromTitle extracts capitalized topic phrases from the document
// title, falling back to a generic one.
func topicsFromTitle(title string) []string {
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.' || r == ','
	})
	var topics []string
	for _, f := range fields {
		if len(f) < 4 {
			continue
		}
		topics = append(topics, titleCase(f))
		if len(topics) == 4 {
			break
		}
	}
	if len(topics) == 0 {
		topics = []string{"General Knowledge"}
	}
	return topics
}

func titleCase(s string) string {
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}
