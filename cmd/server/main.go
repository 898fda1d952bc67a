package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chatcore/auth"
	"chatcore/internal"
	"chatcore/observability"
	"chatcore/repositories"
	"chatcore/runtime"
	"chatcore/runtime/workers"
	"chatcore/services"
	transport "chatcore/transport/http"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting, so every defer (database close, index close) executes before
// the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()

	// 3. Runtime core: registry, presence, router
	registry := runtime.NewRegistry()
	presence := runtime.NewPresence(config.TypingTTL)
	stats := observability.NewDeliveryStats()
	router := runtime.NewRouter(log, registry, presence, stats, config.DeliveryTimeout)

	// 4. Services over the repositories
	conversationRepository := repositories.NewConversationRepository(db)
	messageRepository := repositories.NewMessageRepository(db)
	messageIndex := repositories.NewMessageIndex(indexWriter, log)
	userRepository := repositories.NewUserRepository(db)

	chatService := services.NewChatService(log, conversationRepository, messageRepository, messageIndex)
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)

	// 5. Supervised background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewPresenceJanitor(presence, config.PresenceSweepInterval, log),
		workers.NewDeliveryReporter(stats, config.StatsInterval, log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	if config.DebugPort != nil {
		internal.StartDebugServer(db, *config.DebugPort, internal.ChatMapper, func() map[string]any {
			snap := stats.Snapshot()
			return map[string]any{
				"delivered": snap.Delivered,
				"dropped":   snap.Dropped,
				"failed":    snap.Failed,
			}
		})
	}

	// 6. Transport
	server := transport.NewServer(log, chatService, authService, registry, presence, router,
		config.ConnectionBufferSize, config.MediaDir)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address)
		if err := server.Listen(address); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup
	if err := server.Shutdown(); err != nil {
		log.Warn("HTTP shutdown failed", "error", err)
	}
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return exitOK, nil
}
