package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"gigchat/auth"
	"gigchat/httpapi"
	"gigchat/jobs"
	"gigchat/moderation"
	"gigchat/projection"
	"gigchat/repositories"
	"gigchat/runtime"
	"gigchat/runtime/workers"
	"gigchat/services"
	"gigchat/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database cleanup
// included) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Stores, trackers and the delivery pipeline
	censoredChar, err := CharacterRune(config.CharReplacement)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	moderator, err := moderation.NewDefaultModerator(censoredChar)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}

	rooms := repositories.NewRoomRegistry(log)
	store := repositories.NewMessageStore(db, rooms, log)
	unread := projection.NewUnreadTracker(store, rooms, log)
	presence := runtime.NewPresenceTracker(log)
	supervisor := workers.NewSupervisor(log, config.RestartInterval)

	orchestrator := runtime.NewOrchestrator(
		log, supervisor, rooms, store, unread, presence, moderator,
		config.EventBufferSize, config.BackfillPageSize, config.SubscriptionBuffer,
	)
	chatService := services.NewChatService(orchestrator)

	// 4. Collaborators
	authService := auth.NewService([]byte(config.AuthSecret), config.TokenTTL, log)
	if config.SeedDemoUsers {
		if err := authService.SeedDemoUsers(); err != nil {
			return fmt.Errorf("demo user seed failed: %w", err)
		}
	}
	jobService := jobs.NewService(chatService, log)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start the engine
	orchestrator.Start(ctx)

	// 7. HTTP & stream server
	streamHandler := ws.NewHandler(chatService, authService, config.ConnectionBufferSize, log)
	handlers := httpapi.NewHandlers(chatService, authService, jobService, log)
	router := httpapi.SetupRouter(handlers, streamHandler, authService)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
