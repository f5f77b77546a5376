package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/auth"
	"github.com/mltutor/backend/internal/chat"
	"github.com/mltutor/backend/internal/config"
	"github.com/mltutor/backend/internal/database"
	"github.com/mltutor/backend/internal/generator"
	"github.com/mltutor/backend/internal/index"
	"github.com/mltutor/backend/internal/ingest"
	"github.com/mltutor/backend/internal/kb"
	"github.com/mltutor/backend/internal/middleware"
	"github.com/mltutor/backend/internal/quiz"
	"github.com/mltutor/backend/internal/retrieval"
)

const collectionName = "knowledge_base"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if os.Getenv("LOG_LEVEL") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Indexes.
	embedder, err := index.NewEmbedder(cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build embedder")
	}
	dense, err := index.NewDense(cfg.Index.Dir, index.EmbeddingFunc(embedder), cfg.Index.BatchSize, cfg.Index.MaxChunkChars)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open vector index")
	}
	keyword := index.NewKeyword()

	// Knowledge-base build pipeline and worker.
	pipeline := ingest.NewPipeline(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	taskStore := kb.NewTaskStore(db)
	versionStore := kb.NewVersionStore(db)
	builder := kb.NewService(pipeline, dense, keyword, versionStore, collectionName)
	worker := kb.NewWorker(taskStore, builder, 0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	worker.Start(ctx)

	// Services.
	llm := generator.NewClient(cfg.LLM)
	expanded := retrieval.NewHybrid(dense, keyword, collectionName, cfg.Retrieval.TopK, cfg.Retrieval.NumQueries, true)
	plain := retrieval.NewHybrid(dense, keyword, collectionName, cfg.Retrieval.TopK, cfg.Retrieval.NumQueries, false)

	chatService := chat.NewService(expanded, plain, llm, cfg.Retrieval.MaxDocs)
	quizService := quiz.NewService(keyword, llm, quiz.NewStore(db), cfg.Quiz)

	// Handlers.
	authHandler := auth.NewHandler(db)
	kbHandler := kb.NewHandler(worker, taskStore, versionStore, cfg.Ingest.UploadDir)
	chatHandler := chat.NewHandler(chatService)
	quizHandler := quiz.NewHandler(quizService)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")

	protected.HandleFunc("/documents/upload", kbHandler.Upload).Methods("POST")
	protected.HandleFunc("/documents/tasks/{id}", kbHandler.GetTask).Methods("GET")
	protected.HandleFunc("/documents/versions", kbHandler.ListVersions).Methods("GET")

	protected.HandleFunc("/chat", chatHandler.Chat).Methods("POST")

	protected.HandleFunc("/quiz/generate", quizHandler.Generate).Methods("POST")
	protected.HandleFunc("/quiz/submit", quizHandler.Submit).Methods("POST")
	protected.HandleFunc("/report/overview", quizHandler.ReportOverview).Methods("GET")
	protected.HandleFunc("/report/feedback", quizHandler.Feedback).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: c.Handler(r),
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	worker.Wait()
}
