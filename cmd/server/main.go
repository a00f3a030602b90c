package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pedrofnts/konver-app-sub001/internal/api"
	"github.com/pedrofnts/konver-app-sub001/internal/config"
	"github.com/pedrofnts/konver-app-sub001/internal/core"
	"github.com/pedrofnts/konver-app-sub001/internal/evolution"
	"github.com/pedrofnts/konver-app-sub001/internal/store"
	"github.com/pedrofnts/konver-app-sub001/internal/whatsapp"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Evolution API gateway client, injected everywhere it is needed.
	gateway := evolution.NewClient(evolution.Config{
		BaseURL: config.AppConfig.EvolutionAPIURL,
		APIKey:  config.AppConfig.EvolutionAPIKey,
		Timeout: config.AppConfig.EvolutionHTTPTimeout,
	})

	// Connection monitors for WhatsApp instances
	whatsappManager := whatsapp.NewManager(gateway, whatsapp.DefaultIntervals(), nil)
	defer whatsappManager.StopAll()

	// Core services
	feedbackService := core.NewFeedbackService(dbStore)
	relayService := core.NewRelayService(config.AppConfig.N8NWebhookURL, config.AppConfig.ChatTimeout)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(dbStore, feedbackService, relayService, gateway, whatsappManager)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: config.AppConfig.ChatTimeout + 20*time.Second, // Relay responses can take minutes
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish before forcing exit.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
