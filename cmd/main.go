package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MimeLyc/subtrans-engine/internal/config"
	"github.com/MimeLyc/subtrans-engine/internal/engine"
	"github.com/MimeLyc/subtrans-engine/internal/httpapi"
	"github.com/MimeLyc/subtrans-engine/internal/library"
	"github.com/MimeLyc/subtrans-engine/internal/llm"
	"github.com/MimeLyc/subtrans-engine/internal/persistence"
	"github.com/MimeLyc/subtrans-engine/internal/progress"
	"github.com/MimeLyc/subtrans-engine/internal/provider"
	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
	"github.com/MimeLyc/subtrans-engine/internal/tasks"
	"github.com/MimeLyc/subtrans-engine/pkg/log"
)

type engineRunner interface {
	Start() error
	Stop()
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	settingsPath := config.RuntimeSettingsFilePath()
	opts := make([]config.Option, 0, 1)
	if settings, err := config.LoadRuntimeSettingsFile(settingsPath); err == nil {
		opts = append(opts, config.WithRuntimeSettings(settings))
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		stdlog.Fatal("Failed to load configuration: ", err)
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))

	if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
		log.Fatal("Failed to create data directory %s: %v", cfg.System.DataDir, err)
	}
	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		log.Fatal("Failed to open database %s: %v", cfg.DBPath(), err)
	}
	defer store.Close()

	retryPolicy := provider.RetryPolicy{
		MaxAttempts: cfg.Translate.RetryAttempts,
		BaseDelay:   time.Duration(cfg.Translate.RetryBaseDelayMS) * time.Millisecond,
	}
	translator := &switchableTranslator{}
	if err := translator.configure(cfg.LLM, retryPolicy); err != nil {
		log.Fatal("Failed to configure the provider client: %v", err)
	}

	scanner := library.NewScanner(cfg.Library.ContentDir)
	source := library.NewSource(scanner, subtitle.NewReader())

	eng, err := engine.New(engine.Options{
		Source:               source,
		Translator:           translator,
		Registry:             tasks.NewRegistry(cfg.Translate.TaskWorkers, store),
		Bus:                  progress.NewBus(0),
		Translations:         store,
		Checkpoints:          store,
		ChunkSize:            cfg.Translate.ChunkSize,
		ContextWindow:        cfg.Translate.ContextWindow,
		GlossaryDir:          cfg.Library.GlossaryDir,
		WriteTranslatedFiles: cfg.Library.WriteTranslatedFiles,
		EvictionCron:         cfg.Translate.EvictionCron,
		Retention:            time.Duration(cfg.Translate.RetentionHours) * time.Hour,
	})
	if err != nil {
		log.Fatal("Failed to build the engine: %v", err)
	}

	srvOpts := make([]httpapi.Option, 0, 2)
	if settingsStore, err := config.NewRuntimeSettingsStore(settingsPath, cfg.RuntimeSettings()); err != nil {
		log.Warn("Runtime settings endpoint disabled: %v", err)
	} else {
		baseLLM := cfg.LLM
		srvOpts = append(srvOpts,
			httpapi.WithRuntimeSettingsStore(settingsStore),
			httpapi.WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
				llmCfg := baseLLM
				llmCfg.APIURL = next.LLMAPIURL
				llmCfg.APIKey = next.LLMAPIKey
				llmCfg.Model = next.LLMModel
				return translator.configure(llmCfg, retryPolicy)
			}),
		)
	}
	srv := httpapi.NewServer(eng, scanner, source, srvOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runWithComponents(ctx, cfg, eng, srv); err != nil {
		log.Fatal("Engine exited with error: %v", err)
	}
}

// runWithComponents starts the engine and the HTTP server, then blocks until
// the context is cancelled or the server fails. Split from main so tests can
// drive it with fakes.
func runWithComponents(ctx context.Context, cfg *config.Config, eng engineRunner, httpSrv httpServer) error {
	if err := eng.Start(); err != nil {
		return err
	}
	defer eng.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening on %s", cfg.HTTP.Addr)
		err := httpSrv.ListenAndServe(cfg.HTTP.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// switchableTranslator lets the settings endpoint swap the provider client
// at runtime without rebuilding the engine. In-flight chunks finish on the
// adapter they started with.
type switchableTranslator struct {
	mu      sync.RWMutex
	current provider.Translator
}

func (t *switchableTranslator) configure(llmCfg config.LLMConfig, policy provider.RetryPolicy) error {
	client, err := llm.NewClient(&llm.Config{
		APIKey:      llmCfg.APIKey,
		APIURL:      llmCfg.APIURL,
		Model:       llmCfg.Model,
		MaxTokens:   llmCfg.MaxTokens,
		Temperature: llmCfg.Temperature,
		Timeout:     llmCfg.Timeout,
		SiteURL:     llmCfg.SiteURL,
		AppName:     llmCfg.AppName,
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.current = provider.NewAdapter(client, policy)
	t.mu.Unlock()
	return nil
}

func (t *switchableTranslator) TranslateChunk(ctx context.Context, req provider.Request) (*provider.Result, error) {
	t.mu.RLock()
	current := t.current
	t.mu.RUnlock()
	if current == nil {
		return nil, fmt.Errorf("provider client is not configured")
	}
	return current.TranslateChunk(ctx, req)
}
