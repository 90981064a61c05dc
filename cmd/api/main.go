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

	"github.com/thegovlab/reboot-chat/backend/internal/config"
	"github.com/thegovlab/reboot-chat/backend/internal/handler"
	"github.com/thegovlab/reboot-chat/backend/internal/model/document"
	"github.com/thegovlab/reboot-chat/backend/internal/service/ai"
	"github.com/thegovlab/reboot-chat/backend/internal/service/chat"
	"github.com/thegovlab/reboot-chat/backend/internal/service/search"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	documents, err := loadDocuments(cfg.Search)
	if err != nil {
		log.Fatalf("failed to load content corpus: %v", err)
	}

	searchService, err := search.NewService(documents, search.Config{
		Limit:     cfg.Search.Limit,
		CacheSize: cfg.Search.CacheSize,
	})
	if err != nil {
		log.Fatalf("failed to build search index: %v", err)
	}

	// Initialize AI service
	var chatService *chat.Service
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality, check the ARK_* environment variables")
		} else {
			chatService, err = chat.NewService(searchService, aiService, cfg.Chat.HistoryLimit)
			if err != nil {
				log.Fatalf("failed to initialize chat service: %v", err)
			}
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark credentials not configured, /api/chat will answer 503")
	}

	router := handler.NewRouter(handler.Dependencies{
		Documents:     documents,
		SearchService: searchService,
		ChatService:   chatService,
		Server:        cfg.Server,
		RateLimit:     cfg.RateLimit,
	})

	startServer(ctx, cfg.Server, router)
}

// loadDocuments reads the corpus export when one is configured and falls back
// to the built-in seed otherwise.
func loadDocuments(cfg config.SearchConfig) (document.Store, error) {
	if cfg.CorpusPath == "" {
		log.Println("SEARCH_CORPUS_PATH not set, using the built-in seed corpus")
		return document.NewMemoryStore(document.Seed()), nil
	}
	store, err := document.LoadFile(cfg.CorpusPath)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded %d documents from %s", len(store.List()), cfg.CorpusPath)
	return store, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Reboot chat backend listening on %s", addr)
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
