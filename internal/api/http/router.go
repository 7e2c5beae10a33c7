package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/quiz-note/quiznote/internal/auth"
	"github.com/quiz-note/quiznote/internal/quiz"
	"github.com/quiz-note/quiznote/internal/storage"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Log       *zap.Logger
	Auth      *auth.Service
	Store     Store
	Sessions  *quiz.Registry
	Snapshots *storage.SnapshotStore
	Events    EventSource

	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/magic-link", MagicLinkHandler(d.Auth, d.Log))
	r.Get("/auth/verify", VerifyHandler(d.Auth))
	r.Post("/auth/verify", VerifyHandler(d.Auth))
	r.Post("/auth/refresh", RefreshHandler(d.Auth))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.Post("/auth/logout", LogoutHandler(d.Auth))

		pr.Route("/api", func(ar chi.Router) {
			ar.Route("/certificates", func(cr chi.Router) {
				cr.Get("/", ListCertificatesHandler(d.Store))
				cr.Post("/", CreateCertificateHandler(d.Store))
				cr.Route("/{certificateID}", func(ir chi.Router) {
					ir.Get("/", GetCertificateHandler(d.Store))
					ir.Put("/", UpdateCertificateHandler(d.Store))
					ir.Delete("/", DeleteCertificateHandler(d.Store))
					ir.Get("/questions", ListQuestionsHandler(d.Store))
					ir.Post("/questions", CreateQuestionHandler(d.Store))
				})
			})

			ar.Route("/questions/{questionID}", func(qr chi.Router) {
				qr.Get("/", GetQuestionHandler(d.Store))
				qr.Put("/", UpdateQuestionHandler(d.Store))
				qr.Delete("/", DeleteQuestionHandler(d.Store))
			})

			ar.Route("/quiz/sessions", func(sr chi.Router) {
				sr.Post("/", StartSessionHandler(d.Store, d.Sessions))
				sr.Route("/{sessionID}", func(ir chi.Router) {
					ir.Get("/", GetSessionHandler(d.Sessions))
					ir.Post("/select", SelectOptionHandler(d.Sessions))
					ir.Post("/next", NextQuestionHandler(d.Sessions))
					ir.Post("/restart", RestartSessionHandler(d.Sessions))
				})
			})

			ar.Route("/data", func(dr chi.Router) {
				dr.Get("/export", ExportDataHandler(d.Store, d.Snapshots, d.Log))
				dr.Post("/import", ImportDataHandler(d.Store, d.Log))
				dr.Get("/snapshots", ListSnapshotsHandler(d.Snapshots))
				dr.Get("/sync", SyncStatusHandler(d.Events))
			})
		})
	})

	return r
}
