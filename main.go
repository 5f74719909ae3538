package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Tutortoise/photo-inference-service/config"
	"github.com/Tutortoise/photo-inference-service/diag"
	"github.com/Tutortoise/photo-inference-service/inference"
	"github.com/Tutortoise/photo-inference-service/lifecycle"
	"github.com/Tutortoise/photo-inference-service/normalize"
	"github.com/Tutortoise/photo-inference-service/onnx"
	"github.com/Tutortoise/photo-inference-service/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config.toml"
	}
	configPath := flag.String("config", defaultConfig, "Path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if closer := setupLogging(cfg.Log); closer != nil {
		defer closer.Close()
	}

	warnings := diag.Default()
	backend := onnx.NewBackend(onnx.Config{
		LibraryPath:    cfg.Runtime.LibraryPath,
		ModelDir:       cfg.Model.Dir,
		IntraOpThreads: cfg.Runtime.IntraOpThreads,
		PoolSize:       cfg.Runtime.PoolSize,
		Diagnostics:    warnings,
	})
	defer backend.Close()

	manager := lifecycle.NewManager(backend, loadParams(cfg.Model))
	runner := inference.NewRunner(manager).WithDiagnostics(warnings)
	p := pipeline.New(normalize.New(cfg.Storage.ImageDir), runner, manager, cfg.Log.Debug)

	manager.OnTransition(p.ObserveModel)
	manager.OnTransition(func(s lifecycle.Status) {
		log.Printf("Model lifecycle: %s", s.Stage)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.Start(ctx)

	state := &AppState{
		Pipeline:   p,
		Backend:    backend,
		Diag:       warnings,
		CaptureDir: cfg.Storage.CaptureDir,
		MaxUpload:  int64(cfg.Server.MaxUploadMB) << 20,
	}

	srv := &http.Server{
		Handler:      state.routes(),
		Addr:         cfg.Server.Addr,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on %s (%s model)", srv.Addr, cfg.Model.Kind)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("Server error: %v", err)
	}
	<-manager.Done()
}

func setupLogging(cfg config.LogConfig) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.File == "" {
		return nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator
}

func loadParams(m config.ModelConfig) inference.LoadParams {
	params := inference.LoadParams{
		Kind:           inference.KindClassifier,
		Version:        m.Version,
		Alpha:          m.Alpha,
		TopK:           m.TopK,
		Name:           m.Name,
		ScoreThreshold: m.ScoreThreshold,
		IoUThreshold:   m.IoUThreshold,
		MaxDetections:  m.MaxDetections,
	}
	if m.Kind == config.ModelKindDetector {
		params.Kind = inference.KindDetector
	}
	return params
}
