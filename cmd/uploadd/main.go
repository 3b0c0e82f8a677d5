package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sir_venger/upload_lite/internal/app/uploadhttp"
	"github.com/sir_venger/upload_lite/internal/assembler"
	"github.com/sir_venger/upload_lite/internal/chunkstore"
	"github.com/sir_venger/upload_lite/internal/config"
	"github.com/sir_venger/upload_lite/internal/objectstore"
	"github.com/sir_venger/upload_lite/internal/registry"
	"github.com/sir_venger/upload_lite/internal/repo/session"
	"github.com/sir_venger/upload_lite/internal/usecase/uploadsvc"
	"github.com/sir_venger/upload_lite/pkg/digest"
)

// main инициализирует сервис загрузки и обеспечивает корректное завершение по сигналу.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	algo, err := digest.New(cfg.DigestAlgo)
	if err != nil {
		log.Fatal(err)
	}

	chunks, err := buildChunkStore(cfg, algo)
	if err != nil {
		log.Fatal(err)
	}
	defer chunks.Close()

	objects, err := buildObjectStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	store, err := buildSessionStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	reg := registry.New(store)
	if err := reg.Restore(ctx); err != nil {
		log.Fatal(err)
	}

	engine := &assembler.Engine{
		Registry: reg,
		Chunks:   chunks,
		Objects:  objects,
		Algo:     algo,
	}
	uploads := uploadsvc.New(uploadsvc.Deps{
		Registry:  reg,
		Chunks:    chunks,
		Assembler: engine,
	})

	// Фоновое сметание протухших сессий вместе с их частями.
	stopSweep := reg.StartSweep(cfg.SessionTTL, cfg.SweepInterval, func(sessionID string) {
		if err := chunks.DeleteSession(context.Background(), sessionID); err != nil {
			log.Printf("sweep: delete chunks of %s: %v", sessionID, err)
		}
	})
	defer stopSweep()

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: uploadhttp.New(uploads, cfg.MaxChunkSize),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("UPLOAD shutdown error: %v", err)
		}
	}()

	log.Printf("UPLOAD listening on %s (chunks=%s, objects=%s, algo=%s)",
		cfg.ListenAddr, cfg.ChunkBackend, cfg.ObjectBackend, cfg.DigestAlgo)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("UPLOAD final shutdown error: %v", err)
	}
}

// buildChunkStore выбирает бэкенд хранения частей по конфигурации.
func buildChunkStore(cfg *config.Config, algo digest.Algo) (chunkstore.Store, error) {
	switch cfg.ChunkBackend {
	case "", "disk":
		return chunkstore.NewDisk(cfg.ChunksDir, algo)
	case "bolt":
		return chunkstore.NewBolt(cfg.BoltPath, algo)
	default:
		return nil, fmt.Errorf("unknown chunk backend %q", cfg.ChunkBackend)
	}
}

// buildObjectStore выбирает бэкенд хранения собранных объектов.
func buildObjectStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	switch cfg.ObjectBackend {
	case "", "disk":
		return objectstore.NewDisk(cfg.ObjectsDir)
	case "s3":
		return objectstore.NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown object backend %q", cfg.ObjectBackend)
	}
}

// buildSessionStore выбирает хранилище метаданных сессий: Postgres по DSN
// либо чисто память, когда DSN не задан.
func buildSessionStore(ctx context.Context, cfg *config.Config) (registry.Store, error) {
	dsn := strings.TrimSpace(cfg.MetaDSN)
	if dsn == "" || strings.HasPrefix(dsn, "memory://") {
		log.Println("meta_dsn is empty, sessions are kept in memory only")
		return session.NewMemoryStore(), nil
	}

	return session.NewPGStore(ctx, dsn)
}
