package stub

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/logging"
	"github.com/quizdesk/quizdesk/internal/storage"
)

func uploadPDFHandler(store Store, blobs storage.BlobStore, pipe *Pipeline, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, api.MaxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "bad multipart form")
			return
		}
		title := strings.TrimSpace(r.FormValue("title"))
		if title == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()
		if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
			writeError(w, http.StatusBadRequest, "only .pdf files are accepted")
			return
		}

		id := uuid.NewString()
		blobKey := "pdfs/" + id + ".pdf"
		if _, err := blobs.Put(blobKey, file); err != nil {
			log.Error("store upload", "err", err)
			writeError(w, http.StatusInternalServerError, "store upload")
			return
		}
		doc := PDF{
			PDF: api.PDF{
				ID:               id,
				Filename:         blobKey,
				OriginalFilename: header.Filename,
				Title:            title,
				Description:      strings.TrimSpace(r.FormValue("description")),
				Status:           api.PDFStatusUploaded,
				CreatedAt:        time.Now().UTC(),
			},
			BlobKey: blobKey,
		}
		if err := store.PutPDF(doc); err != nil {
			writeError(w, http.StatusInternalServerError, "store pdf")
			return
		}
		_ = store.AppendActivity(api.ActivityEntry{
			Kind: "pdf_uploaded", Subject: doc.Title, Timestamp: doc.CreatedAt,
		})
		pipe.ProcessPDF(id)
		writeJSON(w, http.StatusCreated, doc.PDF)
	}
}

func listPDFsHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := store.ListPDFs()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list pdfs")
			return
		}
		out := make([]api.PDF, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.PDF)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getPDFHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := store.GetPDF(chi.URLParam(r, "pdfID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "pdf not found")
			return
		}
		writeJSON(w, http.StatusOK, doc.PDF)
	}
}

// deletePDFHandler removes the document, its stored file and every quiz
// generated from it, the same cascade the real platform applies.
func deletePDFHandler(store Store, blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "pdfID")
		doc, err := store.GetPDF(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "pdf not found")
			return
		}
		quizzes, err := store.ListQuizzes()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list quizzes")
			return
		}
		for _, q := range quizzes {
			if q.PDFID == id {
				_ = store.DeleteQuiz(q.ID)
			}
		}
		if err := store.DeletePDF(id); err != nil {
			writeError(w, http.StatusInternalServerError, "delete pdf")
			return
		}
		_ = blobs.Delete(doc.BlobKey)
		w.WriteHeader(http.StatusNoContent)
	}
}

func generateQuizHandler(store Store, pipe *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pdfID := chi.URLParam(r, "pdfID")
		var req api.GenerateQuizRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		if req.TotalQuestions < 1 || req.TotalQuestions > 50 {
			writeError(w, http.StatusBadRequest, "total_questions must be between 1 and 50")
			return
		}
		doc, err := store.GetPDF(pdfID)
		if err != nil {
			writeError(w, http.StatusNotFound, "pdf not found")
			return
		}
		if doc.Status != api.PDFStatusProcessed {
			writeError(w, http.StatusBadRequest, "pdf is not processed yet")
			return
		}
		quiz := QuizRecord{
			Quiz: api.Quiz{
				ID:             uuid.NewString(),
				PDFID:          pdfID,
				Title:          strings.TrimSpace(req.Title),
				Description:    strings.TrimSpace(req.Description),
				Status:         api.QuizStatusGenerating,
				TotalQuestions: req.TotalQuestions,
				Difficulty:     req.Difficulty,
				CreatedAt:      time.Now().UTC(),
			},
		}
		if err := store.PutQuiz(quiz); err != nil {
			writeError(w, http.StatusInternalServerError, "store quiz")
			return
		}
		pipe.GenerateQuiz(quiz.ID)
		writeJSON(w, http.StatusCreated, quiz.Quiz)
	}
}

func listQuizzesHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizzes, err := store.ListQuizzes()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list quizzes")
			return
		}
		out := make([]api.Quiz, 0, len(quizzes))
		for _, q := range quizzes {
			out = append(out, q.Quiz)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getQuizHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quiz, err := store.GetQuiz(chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "quiz not found")
			return
		}
		writeJSON(w, http.StatusOK, api.QuizDetail{Quiz: quiz.Quiz, Questions: quiz.Questions})
	}
}

func updateQuestionHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd api.QuestionUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if upd.CorrectAnswer != "" && len(upd.Options) > 0 && !optionKeyExists(upd.Options, upd.CorrectAnswer) {
			writeError(w, http.StatusBadRequest, "correct_answer must match an option key")
			return
		}
		q, err := store.UpdateQuestion(chi.URLParam(r, "questionID"), upd)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "question not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "update question")
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func deleteQuestionHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuestion(chi.URLParam(r, "questionID")); err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "question not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "delete question")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func publishQuizHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quiz, err := store.GetQuiz(chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "quiz not found")
			return
		}
		switch quiz.Status {
		case api.QuizStatusPublished:
			// idempotent
		case api.QuizStatusGenerated, api.QuizStatusArchived:
			if len(quiz.Questions) == 0 {
				writeError(w, http.StatusConflict, "quiz has no questions")
				return
			}
			now := time.Now().UTC()
			quiz.Status = api.QuizStatusPublished
			quiz.PublishedAt = &now
			if err := store.PutQuiz(quiz); err != nil {
				writeError(w, http.StatusInternalServerError, "store quiz")
				return
			}
			_ = store.AppendActivity(api.ActivityEntry{
				Kind: "quiz_published", Subject: quiz.Title, Timestamp: now,
			})
		default:
			writeError(w, http.StatusConflict, "quiz is not ready to publish")
			return
		}
		writeJSON(w, http.StatusOK, quiz.Quiz)
	}
}

func archiveQuizHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quiz, err := store.GetQuiz(chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "quiz not found")
			return
		}
		switch quiz.Status {
		case api.QuizStatusArchived:
			// idempotent
		case api.QuizStatusPublished:
			quiz.Status = api.QuizStatusArchived
			if err := store.PutQuiz(quiz); err != nil {
				writeError(w, http.StatusInternalServerError, "store quiz")
				return
			}
		default:
			writeError(w, http.StatusConflict, "only published quizzes can be archived")
			return
		}
		writeJSON(w, http.StatusOK, quiz.Quiz)
	}
}

func deleteQuizHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuiz(chi.URLParam(r, "quizID")); err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "quiz not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "delete quiz")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func analyticsOverviewHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out api.AnalyticsOverview

		roles, err := store.CountUsersByRole()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "count users")
			return
		}
		out.Counts.Users.Students = roles[api.RoleStudent]
		out.Counts.Users.Admins = roles[api.RoleAdmin]
		for _, n := range roles {
			out.Counts.Users.Total += n
		}

		docs, err := store.ListPDFs()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list pdfs")
			return
		}
		out.Counts.PDFs.Total = len(docs)
		for _, d := range docs {
			switch d.Status {
			case api.PDFStatusProcessed:
				out.Counts.PDFs.Processed++
			case api.PDFStatusFailed:
				out.Counts.PDFs.Failed++
			}
		}

		quizzes, err := store.ListQuizzes()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list quizzes")
			return
		}
		out.Counts.Quizzes.Total = len(quizzes)
		for _, q := range quizzes {
			if q.Status == api.QuizStatusPublished {
				out.Counts.Quizzes.Published++
			}
		}

		attempts, err := store.ListAttempts()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list attempts")
			return
		}
		out.Counts.Attempts.Total = len(attempts)
		scoreSum := 0.0
		for _, a := range attempts {
			if a.Status == api.AttemptCompleted && a.Score != nil {
				out.Counts.Attempts.Completed++
				scoreSum += *a.Score
			}
		}
		if out.Counts.Attempts.Completed > 0 {
			out.Counts.Attempts.AverageScore = round2(scoreSum / float64(out.Counts.Attempts.Completed))
		}

		recent, err := store.RecentActivity(10)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "recent activity")
			return
		}
		out.RecentActivity = recent
		writeJSON(w, http.StatusOK, out)
	}
}

func quizAnalyticsHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quiz, err := store.GetQuiz(chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "quiz not found")
			return
		}
		attempts, err := store.ListAttemptsByQuiz(quiz.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list attempts")
			return
		}

		out := api.QuizAnalytics{
			QuizID:   quiz.ID,
			Title:    quiz.Title,
			Attempts: len(attempts),
		}
		scoreSum := 0.0
		answered := map[string]int{}
		correct := map[string]int{}
		for _, a := range attempts {
			if a.Status != api.AttemptCompleted {
				continue
			}
			out.Completed++
			if a.Score != nil {
				scoreSum += *a.Score
			}
			for _, q := range quiz.Questions {
				given, ok := a.Answers[q.ID]
				if !ok {
					continue
				}
				answered[q.ID]++
				if answerCorrect(q, given) {
					correct[q.ID]++
				}
			}
		}
		if out.Completed > 0 {
			out.AverageScore = round2(scoreSum / float64(out.Completed))
		}
		if out.Attempts > 0 {
			out.CompletionRate = round2(float64(out.Completed) / float64(out.Attempts) * 100)
		}
		for _, q := range quiz.Questions {
			stat := api.QuestionStat{
				QuestionID: q.ID,
				Order:      q.Order,
				Answered:   answered[q.ID],
				Correct:    correct[q.ID],
			}
			if stat.Answered > 0 {
				stat.CorrectRate = round2(float64(stat.Correct) / float64(stat.Answered) * 100)
			}
			out.QuestionStats = append(out.QuestionStats, stat)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func optionKeyExists(opts []api.Option, key string) bool {
	for _, o := range opts {
		if strings.EqualFold(o.Key, key) {
			return true
		}
	}
	return false
}
