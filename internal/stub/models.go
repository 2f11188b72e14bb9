// Package stub is an in-repo stand-in for the quiz platform backend. It
// serves the same REST surface the production service exposes, over
// in-memory or SQL storage, with a fake processing pipeline that moves
// documents and quizzes through their statuses. Integration tests and
// local development run against it; it never pretends to parse PDFs or
// call a model.
package stub

import (
	"time"

	"github.com/quizdesk/quizdesk/internal/api"
)

// User is the server-side account record. PasswordHash never leaves the
// store.
type User struct {
	api.User
	PasswordHash string `json:"-"`
}

// PDF couples the wire document with the blob key the upload was stored
// under.
type PDF struct {
	api.PDF
	BlobKey string `json:"-"`
}

// QuizRecord is the full quiz: wire fields plus the questions with
// answer keys. Student-facing payloads strip the keys before encoding.
type QuizRecord struct {
	api.Quiz
	Questions []api.Question `json:"questions"`
}

// Attempt is one student run at a quiz.
type Attempt struct {
	ID               string            `json:"id"`
	QuizID           string            `json:"quiz_id"`
	UserID           string            `json:"user_id"`
	Status           string            `json:"status"` // in_progress|completed|abandoned
	Answers          map[string]string `json:"answers"`
	Score            *float64          `json:"score,omitempty"`
	CorrectAnswers   int               `json:"correct_answers"`
	Auto             bool              `json:"auto"`
	TimeLimitMinutes int               `json:"time_limit_minutes"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// RemainingSeconds computes the attempt clock at now, clamped at zero.
func (a Attempt) RemainingSeconds(now time.Time) int {
	deadline := a.StartedAt.Add(time.Duration(a.TimeLimitMinutes) * time.Minute)
	left := int(deadline.Sub(now) / time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// StripKeys removes grading fields from questions before they reach a
// student.
func StripKeys(qs []api.Question) []api.Question {
	out := make([]api.Question, len(qs))
	copy(out, qs)
	for i := range out {
		out[i].CorrectAnswer = ""
		out[i].Explanation = ""
	}
	return out
}
