package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/db"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/docstore"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/events"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/handlers"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/logging"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/media"
	mw "github.com/SalithaMarasinghe/Pin-Potha/internal/middleware"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/models"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/services"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/view"
)

func mustGetenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func main() {
	_ = godotenv.Load()

	logger := logging.New(logging.Config{
		Dev:  os.Getenv("APP_ENV") != "production",
		File: os.Getenv("LOG_FILE"),
	})
	defer logger.Sync()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}
	port := mustGetenv("PORT", "8080")

	// At-rest encryption is all or nothing: the content key and the blind
	// index key come together or not at all.
	var enc records.Encryptor
	var emails models.EmailCodec
	encKey, blindKey := os.Getenv("ENCRYPTION_KEY"), os.Getenv("BLIND_INDEX_KEY")
	switch {
	case encKey != "" && blindKey != "":
		svc, err := services.NewEncryptionService(encKey, blindKey)
		if err != nil {
			logger.Fatal("invalid encryption keys", zap.Error(err))
		}
		enc, emails = svc, svc
	case encKey != "" || blindKey != "":
		logger.Fatal("ENCRYPTION_KEY and BLIND_INDEX_KEY must be set together")
	default:
		logger.Warn("encryption keys not set; content and emails are stored in plaintext")
	}

	// Postgres when configured, in-memory otherwise.
	var store docstore.Store
	var users models.UserStore
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		dbConn, err := db.Connect(ctx, databaseURL)
		cancel()
		if err != nil {
			logger.Fatal("failed to open db", zap.Error(err))
		}
		if err := db.RunMigrations(dbConn); err != nil {
			logger.Fatal("failed migrations", zap.Error(err))
		}
		store = docstore.NewPostgres(dbConn)
		users = models.NewPGUserStore(dbConn, emails)
	} else {
		logger.Warn("DATABASE_URL not set; records are kept in memory and lost on restart")
		store = docstore.NewMemory()
		users = models.NewMemUserStore()
	}

	blobs, err := media.NewDiskStore(mustGetenv("MEDIA_DIR", "./media"), mustGetenv("MEDIA_BASE_URL", "/media"), logger)
	if err != nil {
		logger.Fatal("failed to prepare media dir", zap.Error(err))
	}

	hub := events.NewHub(logger)
	cache := view.NewCache()
	tracker := media.NewTracker(blobs, logger)
	entrySvc := records.NewEntryService(store, cache, tracker, hub, enc, logger)
	habitSvc := records.NewHabitService(store, cache, hub, enc, logger)
	importer := records.NewImporter(entrySvc, habitSvc, logger)

	var google handlers.GoogleVerifier
	if clientID := os.Getenv("GOOGLE_CLIENT_ID"); clientID != "" {
		google = services.NewGoogleVerifier(clientID)
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set; google sign-in is disabled")
	}

	authHandler := handlers.NewAuthHandler(users, google, []byte(jwtSecret), logger)
	userHandler := handlers.NewUserHandler(users, logger)
	entryHandler := handlers.NewEntryHandler(entrySvc, blobs, logger)
	habitHandler := handlers.NewHabitHandler(habitSvc, logger)
	summaryHandler := handlers.NewSummaryHandler(habitSvc, logger)
	importHandler := handlers.NewImportHandler(importer, logger)
	healthHandler := handlers.NewHealthHandler(store, hub, logger)
	eventsHandler := handlers.NewEventsHandler(hub, entrySvc, habitSvc, logger)
	authMW := mw.NewAuthMiddleware([]byte(jwtSecret))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mw.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler.Get)
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(blobs.Dir()))))

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/signup", authHandler.Signup)
		api.Post("/auth/login", authHandler.Login)
		api.Post("/auth/google", authHandler.Google)
		api.Group(func(pr chi.Router) {
			pr.Use(authMW.RequireAuth)
			pr.Get("/me", userHandler.GetMe)
			pr.Put("/me", userHandler.UpdateMe)

			pr.Get("/entries", entryHandler.List)
			pr.Post("/entries", entryHandler.Create)
			pr.Get("/entries/{id}", entryHandler.Get)
			pr.Put("/entries/{id}", entryHandler.Update)
			pr.Delete("/entries/{id}", entryHandler.Delete)

			pr.Get("/habits", habitHandler.List)
			pr.Post("/habits", habitHandler.Create)
			pr.Get("/habits/{id}", habitHandler.Get)
			pr.Put("/habits/{id}", habitHandler.Update)
			pr.Delete("/habits/{id}", habitHandler.Delete)
			pr.Get("/habits/{id}/entries", habitHandler.ListEntries)
			pr.Post("/habits/{id}/entries", habitHandler.CreateEntry)
			pr.Put("/habits/{id}/entries/{entryID}", habitHandler.UpdateEntry)
			pr.Delete("/habits/{id}/entries/{entryID}", habitHandler.DeleteEntry)

			pr.Get("/summary", summaryHandler.Get)
			pr.Post("/import", importHandler.Import)
			pr.Get("/events", eventsHandler.Stream)
		})
	})

	srv := &http.Server{Addr: ":" + port, Handler: r}
	go func() {
		logger.Info("server starting", zap.String("addr", ":"+port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown initiated")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = store.Close()
	logger.Info("server stopped")
}
