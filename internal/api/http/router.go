package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/rbac"
	"github.com/examhall/examhall/internal/submission"
)

// Deps carries everything the API surface needs; the caller owns the
// lifecycle of each.
type Deps struct {
	DB          *sql.DB
	Driver      string
	Auth        *auth.Service
	Exams       exam.Store
	Submissions submission.Store
	BcryptCost  int
	CORSOrigins []string
}

// NewRouter assembles the /api route tree. Every protected route passes the
// JWT middleware first and then a per-route permission check.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", HealthHandler(d.DB, d.Driver))

		r.Post("/auth/signup", SignupHandler(d.DB, d.Auth, d.BcryptCost))
		r.Post("/auth/login", LoginHandler(d.DB, d.Auth))

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(d.Auth))

			pr.Route("/exams", func(er chi.Router) {
				er.With(rbac.Require("exam:view")).Get("/", ListExamsHandler(d.Exams))
				er.With(rbac.Require("exam:create")).Post("/", CreateExamHandler(d.Exams))
				er.With(rbac.Require("exam:delete")).Delete("/{examID}", DeleteExamHandler(d.Exams))
				er.With(rbac.Require("question:create")).Post("/{examID}/questions", AddQuestionsHandler(d.Exams))
				er.With(rbac.Require("exam:view")).Get("/{examID}/questions", GetExamQuestionsHandler(d.Exams))
				er.With(rbac.Require("exam:view")).Get("/{examID}/leaderboard", LeaderboardHandler(d.Submissions))
				er.With(rbac.Require("analysis:view")).Get("/{examID}/analysis", AnalysisHandler(d.Exams, d.Submissions))
			})

			pr.Route("/submissions", func(sr chi.Router) {
				sr.With(rbac.Require("submission:create")).Post("/{examID}/submit", SubmitHandler(d.Submissions))
				sr.With(rbac.Require("result:view")).Get("/{examID}/results/{studentID}", ResultHandler(d.Exams, d.Submissions))
			})

			pr.Route("/admin", func(ar chi.Router) {
				ar.Use(rbac.Require("admin:manage"))
				ar.Get("/users", AdminListUsersHandler(d.DB))
				ar.Post("/users", AdminCreateUserHandler(d.DB, d.BcryptCost))
				ar.Patch("/users/{userID}/role", AdminChangeRoleHandler(d.DB))
				ar.Delete("/users/{userID}", AdminDeleteUserHandler(d.DB))
				ar.Get("/exams", AdminListExamsHandler(d.Exams))
				ar.Get("/stats", AdminStatsHandler(d.DB))
			})

			pr.Route("/me", func(mr chi.Router) {
				mr.With(rbac.Require("profile:update")).Patch("/", UpdateMeHandler(d.DB))
				mr.With(rbac.Require("profile:delete")).Delete("/", DeleteMeHandler(d.DB))
				mr.With(rbac.Require("profile:read")).Get("/results", MyResultsHandler(d.Submissions))
				mr.With(rbac.Require("profile:read")).Get("/upcoming-exams", UpcomingExamsHandler(d.Exams))
				mr.With(rbac.Require("exam:create")).Get("/exams", MyExamsHandler(d.Exams))
				mr.With(rbac.Require("profile:update")).Post("/password", ChangePasswordHandler(d.DB, d.BcryptCost))
			})
		})
	})
	return r
}
