package api

import (
	"net/http"
	"time"

	"sheet_judge/internal/api/handler"
	"sheet_judge/internal/app/service"
	"sheet_judge/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/jwtauth/v5"
	"github.com/klauspost/compress/gzhttp"
)

// judging runs every test case back to back, so this is well above one sandbox run
const requestTimeout = 120 * time.Second

type RouterConfig struct {
	TokenAuth      *jwtauth.JWTAuth
	Logger         *httplog.Logger
	AllowedOrigins []string
	ExposeDebug    bool // non-production: 503 bodies carry the collaborator error
}

func NewRouter(
	cfg RouterConfig,
	problemService *service.ProblemService,
	submissionService *service.SubmissionService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(httplog.RequestLogger(cfg.Logger))
	r.Use(logger.Middleware)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Searches "Authorization: Bearer T"; Authenticator/OptionalAuth decide what a miss means.
	r.Use(jwtauth.Verifier(cfg.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		problemHandler := handler.NewProblemHandler(problemService)
		v1.Route("/sheets", problemHandler.RegisterRoutes)

		submissionHandler := handler.NewSubmissionHandler(submissionService, cfg.ExposeDebug)
		v1.Route("/submissions", submissionHandler.RegisterRoutes)
	})

	return gzhttp.GzipHandler(r)
}
