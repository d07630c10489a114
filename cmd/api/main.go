package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/mlr-studio/internal/application"
	appanalysis "github.com/bryanwahyu/mlr-studio/internal/application/analysis"
	appguide "github.com/bryanwahyu/mlr-studio/internal/application/guidelines"
	appimages "github.com/bryanwahyu/mlr-studio/internal/application/images"
	appprompts "github.com/bryanwahyu/mlr-studio/internal/application/prompts"
	appuploads "github.com/bryanwahyu/mlr-studio/internal/application/uploads"
	"github.com/bryanwahyu/mlr-studio/internal/config"
	"github.com/bryanwahyu/mlr-studio/internal/domain/images"
	"github.com/bryanwahyu/mlr-studio/internal/domain/uploads"
	"github.com/bryanwahyu/mlr-studio/internal/infra/ai/imagegen"
	llm "github.com/bryanwahyu/mlr-studio/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/mlr-studio/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/mlr-studio/internal/infra/db/postgres"
	"github.com/bryanwahyu/mlr-studio/internal/infra/guidestore"
	"github.com/bryanwahyu/mlr-studio/internal/infra/httpserver"
	"github.com/bryanwahyu/mlr-studio/internal/infra/storage"
	"github.com/bryanwahyu/mlr-studio/internal/middleware"
)

type objectStore interface {
	images.ObjectStore
	Check(ctx context.Context) error
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	db, repo, chunks, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("%s connect error: %v", cfg.Database.Driver, err)
	}
	defer db.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("%s init error: %v", cfg.Storage.Driver, err)
	}

	snapshots, err := guidestore.New(cfg.Guidelines.Dir)
	if err != nil {
		log.Fatalf("guideline store error: %v", err)
	}

	providers := make(map[string]appprompts.Provider)
	for name, p := range cfg.AI.Providers {
		if p.APIKey == "" {
			log.Printf("event=provider_skipped provider=%s reason=missing_api_key", name)
			continue
		}
		providers[name] = appprompts.Provider{
			Client:       llm.NewClient(p.APIKey, p.BaseURL, p.DefaultModel),
			DefaultModel: p.DefaultModel,
			Models:       p.Models,
		}
	}
	text := providers[cfg.AI.Text.Provider]
	vision := providers[cfg.AI.Vision.Provider]

	clock := application.SystemClock{}
	guidelineSvc := appguide.NewService(snapshots)
	guidelineSvc.Namespace = cfg.Guidelines.Namespace

	promptSvc := &appprompts.Service{
		LLM:             text.Client,
		Model:           orDefault(cfg.AI.Text.Model, text.DefaultModel),
		Providers:       providers,
		DefaultProvider: cfg.AI.DefaultProvider,
	}
	producer := &appimages.Producer{
		Model:  imagegen.NewClient(cfg.AI.Image.BaseURL, cfg.AI.Image.APIKey, cfg.AI.Image.Model),
		Store:  store,
		HTTP:   &http.Client{Timeout: 60 * time.Second},
		Clock:  clock,
		Width:  cfg.AI.Image.Width,
		Height: cfg.AI.Image.Height,
		Steps:  cfg.AI.Image.Steps,
		TTL:    cfg.Storage.PresignTTL,
	}
	browser := &appimages.Browser{Store: store, Clock: clock, TTL: cfg.Storage.PresignTTL}
	analysisSvc := &appanalysis.Service{
		LLM:         vision.Client,
		Model:       orDefault(cfg.AI.Vision.Model, vision.DefaultModel),
		VisionModel: cfg.AI.Vision.Model,
		Resolver:    images.PublicResolver{Bucket: store.Bucket(), BaseURL: cfg.Storage.PublicBaseURL},
		Parallelism: cfg.AI.PerCategoryParallelism,
	}
	uploadSvc := &appuploads.Service{Repo: repo, Store: store, Clock: clock, TTL: cfg.Storage.PresignTTL}
	if chunks != nil {
		if p, ok := cfg.AI.Providers[cfg.AI.Embedding.Provider]; ok && p.APIKey != "" {
			embedder := llm.NewClient(p.APIKey, p.BaseURL, p.DefaultModel)
			embedder.EmbeddingModel = cfg.AI.Embedding.Model
			uploadSvc.Chunks, uploadSvc.Embedder, uploadSvc.ChunkSize = chunks, embedder, cfg.AI.ChunkSize
		} else {
			log.Printf("event=chunks_disabled reason=missing_embedding_provider provider=%s", cfg.AI.Embedding.Provider)
		}
	}

	keys := middleware.APIKeys{}
	for key, k := range cfg.Auth.APIKeys {
		keys[key] = middleware.User{ID: k.UserID, Role: middleware.Role(k.Role)}
	}

	handler := httpserver.NewRouter(httpserver.Deps{
		Guidelines: guidelineSvc,
		Prompts:    promptSvc,
		Producer:   producer,
		Browser:    browser,
		Analysis:   analysisSvc,
		Uploads:    uploadSvc,
		Auth:       middleware.Chain{keys, middleware.JWT{Secret: []byte(cfg.Auth.JWTSecret)}},
		RateLimit: httpserver.RateLimit{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
			Disabled: cfg.RateLimit.Disabled,
		},
		Health: map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: db},
			"storage":  store,
		},
		CORSOrigins: cfg.Server.CORSOrigins,
		Clock:       clock,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // streamed completions and per-category analyses
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// openRepository also returns the chunk store, nil when the database has no
// vector support.
func openRepository(ctx context.Context, cfg *config.Config) (*sql.DB, uploads.Repository, uploads.ChunkRepository, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Printf("event=chunks_disabled reason=no_vector_support driver=mysql")
		return db, mysqlp.NewDocumentRepository(db), nil, nil
	default:
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pgp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		var chunks uploads.ChunkRepository
		if err := pgp.MigrateChunks(ctx, db); err != nil {
			log.Printf("event=chunks_disabled reason=pgvector_unavailable error=%q", err)
		} else {
			chunks = pgp.NewChunkRepository(db)
		}
		return db, pgp.NewDocumentRepository(db), chunks, nil
	}
}

func openStore(ctx context.Context, cfg *config.Config) (objectStore, error) {
	s := cfg.Storage
	if s.Driver == "minio" {
		return storage.NewMinio(ctx, s.Endpoint, s.Region, s.BucketName, s.AccessKey, s.SecretKey, s.UseSSL)
	}
	return storage.NewS3(ctx, s.Region, s.BucketName, s.AccessKey, s.SecretKey, s.Endpoint)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
