package stub

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/rbac"
)

func availableQuizzesHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := rbac.SubjectFromContext(r.Context())
		quizzes, err := store.ListQuizzes()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list quizzes")
			return
		}
		mine, err := store.ListAttemptsByUser(userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list attempts")
			return
		}

		out := make([]api.AvailableQuiz, 0, len(quizzes))
		for _, q := range quizzes {
			if q.Status != api.QuizStatusPublished {
				continue
			}
			item := api.AvailableQuiz{Quiz: q.Quiz, TimeLimitMinutes: q.EstimatedTime}
			for _, a := range mine {
				if a.QuizID != q.ID || a.Status != api.AttemptCompleted {
					continue
				}
				item.PreviouslyAttempted = true
				if a.Score != nil && (item.PreviousScore == nil || *a.Score > *item.PreviousScore) {
					s := *a.Score
					item.PreviousScore = &s
				}
			}
			out = append(out, item)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// startQuizHandler opens an attempt, or returns the student's still-open
// one with saved answers, the index of the first unanswered question and
// the remaining clock.
func startQuizHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := rbac.SubjectFromContext(r.Context())
		quiz, err := store.GetQuiz(chi.URLParam(r, "quizID"))
		if err != nil || quiz.Status != api.QuizStatusPublished {
			writeError(w, http.StatusNotFound, "quiz not available")
			return
		}

		now := time.Now().UTC()
		attempt, resumed, err := store.OpenAttempt(quiz.ID, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "find attempt")
			return
		}
		if !resumed {
			attempt = Attempt{
				ID:               uuid.NewString(),
				QuizID:           quiz.ID,
				UserID:           userID,
				Status:           api.AttemptInProgress,
				Answers:          map[string]string{},
				TimeLimitMinutes: quiz.EstimatedTime,
				StartedAt:        now,
			}
			if err := store.PutAttempt(attempt); err != nil {
				writeError(w, http.StatusInternalServerError, "store attempt")
				return
			}
		}

		writeJSON(w, http.StatusOK, api.AttemptSnapshot{
			AttemptID:        attempt.ID,
			Quiz:             quiz.Quiz,
			Questions:        StripKeys(quiz.Questions),
			Answers:          attempt.Answers,
			CurrentIndex:     firstUnanswered(quiz.Questions, attempt.Answers),
			StartedAt:        attempt.StartedAt,
			TimeLimitMinutes: attempt.TimeLimitMinutes,
			RemainingSeconds: attempt.RemainingSeconds(now),
			Resumed:          resumed,
		})
	}
}

func submitAnswerHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attempt, ok := loadOwnAttempt(w, r, store)
		if !ok {
			return
		}
		if attempt.Status != api.AttemptInProgress {
			writeError(w, http.StatusConflict, "attempt is closed")
			return
		}
		var req api.AnswerSubmit
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		value := req.SelectedOption
		if value == "" {
			value = req.AnswerText
		}
		if req.QuestionID == "" || strings.TrimSpace(value) == "" {
			writeError(w, http.StatusBadRequest, "question_id and an answer value are required")
			return
		}
		quiz, err := store.GetQuiz(attempt.QuizID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "load quiz")
			return
		}
		if !questionInQuiz(quiz, req.QuestionID) {
			writeError(w, http.StatusBadRequest, "question does not belong to this quiz")
			return
		}
		if attempt.Answers == nil {
			attempt.Answers = map[string]string{}
		}
		attempt.Answers[req.QuestionID] = value
		if err := store.PutAttempt(attempt); err != nil {
			writeError(w, http.StatusInternalServerError, "store answer")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func completeAttemptHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attempt, ok := loadOwnAttempt(w, r, store)
		if !ok {
			return
		}
		quiz, err := store.GetQuiz(attempt.QuizID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "load quiz")
			return
		}

		switch attempt.Status {
		case api.AttemptCompleted:
			// repeated submit gets the same result back
			writeJSON(w, http.StatusOK, grade(attempt, quiz, *attempt.CompletedAt))
			return
		case api.AttemptAbandoned:
			writeError(w, http.StatusConflict, "attempt was abandoned")
			return
		}

		var req api.CompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if attempt.Answers == nil {
			attempt.Answers = map[string]string{}
		}
		for qid, val := range req.Answers {
			if questionInQuiz(quiz, qid) && strings.TrimSpace(val) != "" {
				attempt.Answers[qid] = val
			}
		}

		now := time.Now().UTC()
		result := grade(attempt, quiz, now)
		attempt.Status = api.AttemptCompleted
		attempt.Score = &result.Score
		attempt.CorrectAnswers = result.CorrectAnswers
		attempt.Auto = req.Auto
		attempt.CompletedAt = &now
		if err := store.PutAttempt(attempt); err != nil {
			writeError(w, http.StatusInternalServerError, "store attempt")
			return
		}
		_ = store.AppendActivity(api.ActivityEntry{
			Kind: "attempt_completed", Subject: quiz.Title, Timestamp: now,
		})
		writeJSON(w, http.StatusOK, result)
	}
}

func abandonAttemptHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attempt, ok := loadOwnAttempt(w, r, store)
		if !ok {
			return
		}
		switch attempt.Status {
		case api.AttemptAbandoned:
			// idempotent
		case api.AttemptInProgress:
			now := time.Now().UTC()
			attempt.Status = api.AttemptAbandoned
			attempt.CompletedAt = &now
			if err := store.PutAttempt(attempt); err != nil {
				writeError(w, http.StatusInternalServerError, "store attempt")
				return
			}
		default:
			writeError(w, http.StatusConflict, "attempt already completed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func historyHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := rbac.SubjectFromContext(r.Context())
		attempts, err := store.ListAttemptsByUser(userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list attempts")
			return
		}
		out := make([]api.HistoryItem, 0, len(attempts))
		for _, a := range attempts {
			item := api.HistoryItem{
				AttemptID:   a.ID,
				QuizID:      a.QuizID,
				QuizTitle:   "(deleted quiz)",
				Status:      a.Status,
				Score:       a.Score,
				StartedAt:   a.StartedAt,
				CompletedAt: a.CompletedAt,
			}
			if quiz, err := store.GetQuiz(a.QuizID); err == nil {
				item.QuizTitle = quiz.Title
			}
			out = append(out, item)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func progressHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := rbac.SubjectFromContext(r.Context())
		attempts, err := store.ListAttemptsByUser(userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list attempts")
			return
		}

		var out api.Progress
		type tally struct{ total, correct int }
		topics := map[string]*tally{}
		quizzesSeen := map[string]bool{}
		scoreSum := 0.0

		for _, a := range attempts {
			if a.Status != api.AttemptCompleted {
				continue
			}
			out.Statistics.TotalAttempts++
			quizzesSeen[a.QuizID] = true
			if a.Score != nil {
				scoreSum += *a.Score
				if *a.Score > out.Statistics.BestScore {
					out.Statistics.BestScore = *a.Score
				}
			}
			quiz, err := store.GetQuiz(a.QuizID)
			if err != nil {
				continue
			}
			for _, q := range quiz.Questions {
				given, answered := a.Answers[q.ID]
				t := topics[q.Topic]
				if t == nil {
					t = &tally{}
					topics[q.Topic] = t
				}
				t.total++
				if answered && answerCorrect(q, given) {
					t.correct++
				}
			}
		}
		out.Statistics.QuizzesTaken = len(quizzesSeen)
		if out.Statistics.TotalAttempts > 0 {
			out.Statistics.AverageScore = round2(scoreSum / float64(out.Statistics.TotalAttempts))
		}
		for topic, t := range topics {
			acc := round2(float64(t.correct) / float64(t.total) * 100)
			out.TopicMastery = append(out.TopicMastery, api.TopicMastery{
				Topic:          topic,
				TotalQuestions: t.total,
				CorrectAnswers: t.correct,
				Accuracy:       acc,
				MasteryLevel:   masteryLabel(acc),
			})
		}
		sortMastery(out.TopicMastery)
		writeJSON(w, http.StatusOK, out)
	}
}

// loadOwnAttempt fetches the attempt in the URL and verifies it belongs
// to the caller. Foreign attempts read as missing.
func loadOwnAttempt(w http.ResponseWriter, r *http.Request, store Store) (Attempt, bool) {
	attempt, err := store.GetAttempt(chi.URLParam(r, "attemptID"))
	if err != nil || attempt.UserID != rbac.SubjectFromContext(r.Context()) {
		writeError(w, http.StatusNotFound, "attempt not found")
		return Attempt{}, false
	}
	return attempt, true
}

func questionInQuiz(quiz QuizRecord, questionID string) bool {
	for _, q := range quiz.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

func firstUnanswered(questions []api.Question, answers map[string]string) int {
	for i, q := range questions {
		if _, ok := answers[q.ID]; !ok {
			return i
		}
	}
	if len(questions) == 0 {
		return 0
	}
	return len(questions) - 1
}
