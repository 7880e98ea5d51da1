package main

import (
	"chat-relay/auth"
	"chat-relay/domain/event"
	grpcserver "chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/rest"
	"chat-relay/infrastructure/storage"
	"chat-relay/infrastructure/websocket"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat-relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Returning instead of exiting lets the deferred closes flush badger and bluge.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage (BadgerDB + Bluge)
	db, err := storage.Open(config.BadgerFilepath)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	messageRepository, err := storage.NewMessageRepository(db, log, config.LimitMessages)
	if err != nil {
		return exitRuntime, err
	}
	defer messageRepository.Close()
	userRepository, err := storage.NewUserRepository(db, log)
	if err != nil {
		return exitRuntime, err
	}
	defer userRepository.Close()
	groupRepository, err := storage.NewGroupRepository(db, log)
	if err != nil {
		return exitRuntime, err
	}
	defer groupRepository.Close()
	messageIndex := storage.NewMessageIndex(blugeWriter, log)

	// 3. Moderation
	censored, err := moderation.NewCensoredLoader(moderation.Dictionaries).
		LoadAll("censored", config.ExtraCensoredWords()...)
	if err != nil {
		return exitConfig, fmt.Errorf("censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, charReplacement, log)
	if err != nil {
		return exitConfig, err
	}

	// 4. Realtime core & services
	monitor := observability.NewMonitor(log)
	registry := runtime.NewRegistry(log, monitor, config.SendTimeout)
	monitor.TrackGroups(registry.Len)
	events := make(chan event.Envelope, config.IndexBufferSize)
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)

	chatService := services.NewChatService(log, messageRepository, groupRepository, userRepository,
		messageIndex, registry, moderator, monitor, events, config.MaxContentLength, config.StoreTimeout)
	authService := services.NewAuthService(log, userRepository, tokens)
	userService := services.NewUserService(log, userRepository)
	groupService := services.NewGroupService(log, groupRepository, userRepository)

	// 5. Background workers
	supervisor := workers.NewSupervisor(log, config.RestartInterval).Add(
		workers.NewEventFanout(log, events, config.SinkTimeout, sink.NewIndexSink(messageIndex, log)),
		workers.NewHealthMonitoringWorker(log, monitor, config.MetricInterval),
		workers.NewChannelCapacityWorker(log, monitor, config.MetricInterval, config.LowCapacityThreshold,
			workers.NamedChannel{Name: "events", Channel: events}),
	)
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		supervisor.Run(ctx)
	}()

	// 6. HTTP (REST + websocket)
	liveCtx, closeLive := context.WithCancel(context.Background())
	defer closeLive()
	mux := http.NewServeMux()
	rest.NewAPI(log, authService, userService, groupService, chatService, tokens, monitor).Register(mux)
	mux.Handle("GET /ws/{groupID}", websocket.NewHandler(liveCtx, log, registry, chatService, authService, monitor,
		websocket.Settings{
			SendBufferSize:  config.ConnectionBufferSize,
			MaxMessageSize:  int64(config.MaxMessageSize),
			WriteWait:       config.SendTimeout,
			PongWait:        60 * time.Second,
			RateLimitBurst:  config.RateLimitBurst,
			RateLimitRefill: config.RateLimitRefillInterval,
			AllowedOrigins:  config.Origins(),
		}))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           rest.Chain(mux, rest.NewRecoverer(log), rest.NewRequestLogger(log)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 3)
	go func() {
		log.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. gRPC health
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GRPCPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	healthServer := grpcserver.NewHealthServer(log)
	go func() {
		if err := healthServer.Serve(listener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 8. Badger inspector, debug only
	var debugServer *http.Server
	if config.DebugPort > 0 && log.Enabled(ctx, slog.LevelDebug) {
		debugServer = internal.NewDebugServer(log, db, fmt.Sprintf("localhost:%d", config.DebugPort), "/inspect",
			func() any { return monitor.GetLatest() })
		go func() {
			log.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://%s/inspect", debugServer.Addr))
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("debug server error: %w", err)
			}
		}()
	}

	// 9. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err = <-errChan:
		log.Error("Server failure", "error", err)
		code = exitRuntime
	}

	// 10. Graceful shutdown
	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	healthServer.SetServing(false)
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("HTTP shutdown incomplete", "error", shutdownErr)
	}
	// Hijacked websocket connections are not tracked by the HTTP server
	closeLive()
	if debugServer != nil {
		_ = debugServer.Shutdown(shutdownCtx)
	}
	healthServer.Shutdown()

	stop()
	supervisor.Stop()
	select {
	case <-supervisorDone:
	case <-shutdownCtx.Done():
		log.Warn("Workers did not stop in time")
	}
	log.Info("Program stopped cleanly")

	return code, err
}
