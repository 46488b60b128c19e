package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rzpsarthak13/dynamoplus/internal/api"
	"github.com/rzpsarthak13/dynamoplus/internal/client"
	"github.com/rzpsarthak13/dynamoplus/internal/registry"
	"github.com/rzpsarthak13/dynamoplus/pkg/dynamoplus"
)

func main() {
	configPath := flag.String("config", os.Getenv("DYNAMOPLUS_CONFIG"), "path to a YAML or JSON config file; DYNAMOPLUS_* env vars are used when empty")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	// A missing .env file is fine; the process environment is used as is.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[SERVER] WARNING: could not load %s: %v", *envFile, err)
	}

	// 1. Load configuration
	configMgr := registry.NewConfigManager()
	var err error
	if *configPath != "" {
		err = configMgr.LoadFromFile(*configPath)
	} else {
		err = configMgr.LoadFromEnv()
	}
	if err != nil {
		log.Fatalf("[SERVER] Failed to load configuration: %v", err)
	}
	config := configMgr.GetConfig()

	// 2. Create the store
	impl, err := client.NewFromManager(configMgr)
	if err != nil {
		log.Fatalf("[SERVER] Failed to create client: %v", err)
	}
	defer func() {
		if err := impl.Close(); err != nil {
			log.Printf("[SERVER] Error closing client: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Start the drainer in async mode
	var drainer *dynamoplus.Drainer
	if impl.Store().Async() {
		drainer = dynamoplus.NewDrainer("changes", impl.Queue(), impl.Store(), dynamoplus.DrainerConfig{
			DrainRate:       config.Indexing.DrainRate,
			BatchSize:       config.Indexing.BatchSize,
			MaxRetries:      config.Indexing.MaxRetries,
			RetryBackoff:    config.Indexing.RetryBackoffBase,
			RetryBackoffMax: config.Indexing.RetryBackoffMax,
		})
		if err := drainer.Start(ctx); err != nil {
			log.Fatalf("[SERVER] Failed to start drainer: %v", err)
		}
	}

	// 4. Serve HTTP
	server := &http.Server{
		Addr:         config.Server.Address,
		Handler:      api.NewHandler(impl.Store()).Router(),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	go func() {
		log.Printf("[SERVER] Listening on %s (storage: %s, catalog: %s, indexing: %s)",
			config.Server.Address, config.Storage.Type, config.Catalog.Type, config.Indexing.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[SERVER] Server error: %v", err)
		}
	}()

	// 5. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[SERVER] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[SERVER] Error during shutdown: %v", err)
	}
	if drainer != nil {
		if err := drainer.Stop(); err != nil {
			log.Printf("[SERVER] Error stopping drainer: %v", err)
		}
	}
	log.Println("[SERVER] Stopped")
}
