package api

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/presenca/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/presenca/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/presenca/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/presenca/internal/auth"
	"github.com/saturnino-fabrica-de-software/presenca/internal/config"
	"github.com/saturnino-fabrica-de-software/presenca/internal/engine"
	"github.com/saturnino-fabrica-de-software/presenca/internal/enroll"
	"github.com/saturnino-fabrica-de-software/presenca/internal/gallery"
	"github.com/saturnino-fabrica-de-software/presenca/internal/ledger"
	"github.com/saturnino-fabrica-de-software/presenca/internal/matcher"
	"github.com/saturnino-fabrica-de-software/presenca/internal/provider"
	"github.com/saturnino-fabrica-de-software/presenca/internal/repository"
	"github.com/saturnino-fabrica-de-software/presenca/internal/vision"
)

type Dependencies struct {
	Config    *config.Config
	DB        *pgxpool.Pool
	FaceModel provider.FaceModel
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
	scheduler   *gocron.Scheduler
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Presenca API",
		BodyLimit:    12 * 1024 * 1024,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Swagger documentation (no auth required)
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	if r.deps == nil {
		return
	}

	// Health check endpoints (no auth required)
	healthHandler := handler.NewHealthHandler(r.deps.DB, r.deps.FaceModel)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// Repositories
	studentRepo := repository.NewStudentRepository(r.deps.DB)
	sessionRepo := repository.NewSessionRepository(r.deps.DB)

	// Recognition pipeline
	normalizer := vision.NewNormalizer()
	detector := vision.NewDetector(r.deps.FaceModel)
	extractor := vision.NewExtractor(r.deps.FaceModel)
	galleryCache := gallery.New(studentRepo, r.deps.Config.GalleryTTL, r.logger)
	faceMatcher := matcher.New(r.deps.Config.MatchThreshold)

	// Services
	ledgerService := ledger.NewService(sessionRepo, studentRepo, r.logger)
	attendanceEngine := engine.New(
		r.deps.FaceModel,
		normalizer,
		detector,
		extractor,
		galleryCache,
		faceMatcher,
		ledgerService,
		r.logger,
	)
	enrollService := enroll.NewService(studentRepo, normalizer, detector, extractor, galleryCache, r.logger)

	// Gallery sweep keeps abandoned partitions from pinning memory
	r.scheduler = gocron.NewScheduler(time.UTC)
	if _, err := r.scheduler.Every(5).Minutes().Do(galleryCache.Sweep); err != nil {
		r.logger.Error("schedule gallery sweep", slog.Any("error", err))
	}
	r.scheduler.StartAsync()

	// API v1 group with authentication
	v1 := r.app.Group("/v1")

	jwtService := auth.NewJWTService(
		r.deps.Config.JWTSecret,
		r.deps.Config.JWTIssuer,
		24*time.Hour,
	)
	v1.Use(middleware.Auth(middleware.AuthDependencies{
		JWTService: jwtService,
		Logger:     r.logger,
	}))

	// Rate limiting (per operator) - must come after auth
	r.rateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	v1.Use(r.rateLimiter.Handler())

	// Student routes
	studentHandler := handler.NewStudentHandler(enrollService, r.logger)
	v1.Post("/students", studentHandler.Register)
	v1.Get("/students", studentHandler.List)
	v1.Get("/students/:student_id", studentHandler.Get)
	v1.Post("/students/:student_id/embeddings", studentHandler.AddEmbeddings)
	v1.Delete("/students/:student_id", studentHandler.Delete)

	// Session routes
	sessionHandler := handler.NewSessionHandler(ledgerService, attendanceEngine, r.logger)
	v1.Post("/sessions", sessionHandler.Create)
	v1.Get("/sessions/:id", sessionHandler.Get)
	v1.Post("/sessions/:id/frames", sessionHandler.ProcessFrame)
	v1.Post("/sessions/:id/finalize", sessionHandler.Finalize)

	// Model routes
	modelHandler := handler.NewModelHandler(r.deps.FaceModel, r.deps.Config.MatchThreshold)
	v1.Get("/models/status", modelHandler.Status)
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}

	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
