package stub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quizdesk/quizdesk/internal/logging"
	"github.com/quizdesk/quizdesk/internal/rbac"
	"github.com/quizdesk/quizdesk/internal/storage"
)

// NewRouter wires the full REST surface: public auth endpoints, then
// JWT-protected admin and student groups gated per permission.
func NewRouter(store Store, blobs storage.BlobStore, auth *AuthService, pipe *Pipeline, log *logging.Logger, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Route("/api", func(root chi.Router) {
		root.Post("/auth/login", loginHandler(store, auth))
		root.Post("/auth/register", registerHandler(store, auth))

		root.Group(func(pr chi.Router) {
			pr.Use(JWTMiddleware(auth))

			pr.Get("/auth/me", meHandler(store))
			pr.Post("/auth/logout", logoutHandler())

			pr.Route("/admin", func(ar chi.Router) {
				ar.With(rbac.Require("pdf:manage")).
					Post("/pdf/upload", uploadPDFHandler(store, blobs, pipe, log))
				ar.With(rbac.Require("pdf:manage")).
					Get("/pdf/list", listPDFsHandler(store))
				ar.With(rbac.Require("pdf:manage")).
					Get("/pdf/{pdfID}", getPDFHandler(store))
				ar.With(rbac.Require("pdf:manage")).
					Delete("/pdf/{pdfID}", deletePDFHandler(store, blobs))

				ar.With(rbac.Require("quiz:manage")).
					Post("/quiz/generate/{pdfID}", generateQuizHandler(store, pipe))
				ar.With(rbac.Require("quiz:manage")).
					Get("/quiz/list", listQuizzesHandler(store))
				ar.With(rbac.Require("quiz:manage")).
					Get("/quiz/{quizID}", getQuizHandler(store))
				ar.With(rbac.Require("quiz:manage")).
					Post("/quiz/{quizID}/publish", publishQuizHandler(store))
				ar.With(rbac.Require("quiz:manage")).
					Post("/quiz/{quizID}/archive", archiveQuizHandler(store))
				ar.With(rbac.Require("quiz:manage")).
					Delete("/quiz/{quizID}", deleteQuizHandler(store))

				ar.With(rbac.Require("question:manage")).
					Put("/question/{questionID}", updateQuestionHandler(store))
				ar.With(rbac.Require("question:manage")).
					Delete("/question/{questionID}", deleteQuestionHandler(store))

				ar.With(rbac.Require("analytics:view")).
					Get("/analytics/overview", analyticsOverviewHandler(store))
				ar.With(rbac.RequireAny("analytics:view", "quiz:manage")).
					Get("/analytics/quiz/{quizID}", quizAnalyticsHandler(store))
			})

			pr.Route("/student", func(sr chi.Router) {
				sr.With(rbac.Require("quiz:take")).
					Get("/quizzes/available", availableQuizzesHandler(store))
				sr.With(rbac.Require("quiz:take")).
					Get("/quiz/{quizID}", startQuizHandler(store))
				sr.With(rbac.Require("attempt:save")).
					Post("/attempt/{attemptID}/answer", submitAnswerHandler(store))
				sr.With(rbac.Require("attempt:submit")).
					Post("/attempt/{attemptID}/complete", completeAttemptHandler(store))
				sr.With(rbac.Require("attempt:abandon")).
					Post("/attempt/{attemptID}/abandon", abandonAttemptHandler(store))
				sr.With(rbac.Require("attempt:view-own")).
					Get("/attempts/history", historyHandler(store))
				sr.With(rbac.Require("progress:view")).
					Get("/progress", progressHandler(store))
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
