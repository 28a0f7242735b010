package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/specforge/specforge/internal/config"
	"github.com/specforge/specforge/internal/handler"
	"github.com/specforge/specforge/internal/ingest"
	"github.com/specforge/specforge/internal/service/ai"
	"github.com/specforge/specforge/internal/service/orchestrator"
	"github.com/specforge/specforge/internal/service/session"
	speechservice "github.com/specforge/specforge/internal/service/speech"
	"github.com/specforge/specforge/internal/service/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Session persistence: sqlite under the data dir, in-memory
	// fallback when it cannot be opened.
	var store session.Store
	sqliteStore, err := session.NewSQLiteStore(cfg.Store.DataDir)
	if err != nil {
		log.Printf("warning: failed to open session database: %v", err)
		log.Println("continuing with in-memory sessions only")
		store = session.NewMemoryStore()
	} else {
		defer sqliteStore.Close()
		store = sqliteStore
	}

	// Object storage for uploaded images; inline fallback when absent.
	var blobs *storage.ObjectStore
	if cfg.Storage.Enabled {
		blobs, err = storage.New(ctx, cfg.Storage)
		if err != nil {
			log.Printf("warning: failed to initialize object storage: %v", err)
			log.Println("continuing with inline image fallback only")
			blobs = nil
		} else {
			log.Println("object storage initialized successfully")
		}
	} else {
		log.Println("object storage credentials not configured, images stay inline")
	}

	var blobDeleter session.BlobDeleter
	if blobs != nil {
		blobDeleter = blobs
	}
	sessions := session.NewService(store, blobDeleter, 0)
	defer sessions.Close()

	if !cfg.AI.Enabled() {
		log.Fatal("model credentials not configured: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}
	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}
	log.Println("AI service initialized successfully")

	var uploader orchestrator.Uploader
	if blobs != nil {
		uploader = blobs
	}
	orch := orchestrator.NewService(sessions, aiService, uploader)

	var speechService *speechservice.Service
	if cfg.Speech.Enabled {
		speechService = speechservice.NewService(cfg.Speech)
		log.Println("speech service initialized successfully")
	} else {
		log.Println("speech credentials not configured, skipping synthesis")
	}

	router := handler.NewRouter(sessions, orch, ingest.NewPipeline(), speechService)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("SpecForge backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
