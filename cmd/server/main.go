// OpenMeet server - records meetings and drives the local
// transcription/diarization/summarization pipeline
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/divyashie/openmeet/internal/audio"
	"github.com/divyashie/openmeet/internal/config"
	"github.com/divyashie/openmeet/internal/engine/ollama"
	"github.com/divyashie/openmeet/internal/engine/pyannote"
	"github.com/divyashie/openmeet/internal/engine/whisper"
	"github.com/divyashie/openmeet/internal/logging"
	"github.com/divyashie/openmeet/internal/orchestrator"
	"github.com/divyashie/openmeet/internal/server"
	"github.com/divyashie/openmeet/internal/store"
)

func main() {
	cfg := config.Load()
	if path := os.Getenv("OPENMEET_CONFIG"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			slog.Error("loading config file", "path", path, "error", err)
			os.Exit(1)
		}
	}
	logging.Setup(cfg.LogLevel, cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.RecordingsDir(), 0755); err != nil {
		slog.Error("creating data directory", "dir", cfg.RecordingsDir(), "error", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DatabasePath())
	if err != nil {
		slog.Error("opening session store", "path", cfg.DatabasePath(), "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	transcriber := whisper.New(whisper.Config{
		Binary:     cfg.WhisperBinary,
		Model:      cfg.WhisperModel,
		Language:   cfg.Language,
		Threads:    cfg.WhisperThreads,
		SampleRate: cfg.SampleRate,
		Timeout:    cfg.WhisperTimeout,
	})
	diarizer := pyannote.New(pyannote.Config{
		URL:     cfg.PyannoteURL,
		Timeout: cfg.PyannoteTimeout,
	})
	summarizer := ollama.New(ollama.Config{
		URL:     cfg.OllamaURL,
		Model:   cfg.OllamaModel,
		Format:  cfg.SummaryFormat,
		Timeout: cfg.OllamaTimeout,
	})

	manager := orchestrator.New(cfg, transcriber, diarizer, summarizer, db,
		func() orchestrator.CaptureSource {
			return audio.NewCapturer(cfg.SampleRate, cfg.ChunkDuration, cfg.ChunkOverlap)
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)

	srv := server.New(manager, db)
	httpServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     srv.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("openmeet server starting",
			"http", cfg.HTTPAddr, "data_dir", cfg.DataDir,
			"whisper", cfg.WhisperBinary, "pyannote", cfg.PyannoteURL, "ollama", cfg.OllamaURL)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
}
