package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/sarthi/internal/api"
	"github.com/npezzotti/sarthi/internal/config"
	"github.com/npezzotti/sarthi/internal/database"
	"github.com/npezzotti/sarthi/internal/server"
	"github.com/npezzotti/sarthi/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr             string
	dsn              string
	signingKey       string
	allowedOrigins   stringSliceFlag
	storeTimeout     time.Duration
	maxMessageLength int
	messageRate      float64
	messageBurst     int
	runMigrations    bool
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=sarthi sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&storeTimeout, "store-timeout", config.DefaultStoreTimeout, "deadline for each database call")
	flag.IntVar(&maxMessageLength, "max-message-length", config.DefaultMaxMessageLength, "maximum chat message length in characters")
	flag.Float64Var(&messageRate, "message-rate", config.DefaultMessageRate, "chat messages per second allowed per connection")
	flag.IntVar(&messageBurst, "message-burst", config.DefaultMessageBurst, "chat message burst allowed per connection")
	flag.BoolVar(&runMigrations, "migrate", false, "apply database migrations on startup")
	flag.Parse()

	logger := log.New(os.Stderr, "[sarthi] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins,
		config.WithStoreTimeout(storeTimeout),
		config.WithMaxMessageLength(maxMessageLength),
		config.WithMessageRate(messageRate, messageBurst),
	)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgSarthiRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if runMigrations {
		logger.Println("applying migrations...")
		if err := dbConn.Migrate(); err != nil {
			logger.Fatal("migrate:", err)
		}
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, dbConn, statsUpdater,
		server.WithStoreTimeout(cfg.StoreTimeout),
		server.WithMaxMessageLength(cfg.MaxMessageLength),
		server.WithMessageRate(cfg.MessageRate, cfg.MessageBurst),
	)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewSarthiApp(mux, logger, chatServer, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
