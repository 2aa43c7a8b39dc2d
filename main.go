package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quizgamego/internal/config"
	"quizgamego/internal/database/db_client"
	"quizgamego/internal/http/http_server"
	"quizgamego/internal/redis/redis_client"
	"quizgamego/internal/services/store"
	"quizgamego/internal/storeclient"
	"quizgamego/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var storeService store.IStoreService

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Postgres db client
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 4. Store service over Postgres
	storeService = store.NewStoreService(pgDb)

	// 5. Optional Redis relay for multi-instance room fan-out
	var relay *ws.RedisRelay
	if cfg.RedisHost != "" {
		redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		relay = ws.NewRedisRelay(redisClient)
		Log.Debug("Redis relay enabled")
	}

	// 6. Store API client used by the realtime core
	storeClient := storeclient.New(cfg.StoreBaseURL, cfg.StoreTimeout)

	// 7. Initialize the WS server
	wsSrv := ws.NewServer(ws.Options{
		ClassCapacity:    cfg.ClassCapacity,
		ConnectionLimit:  cfg.ConnectionLimit,
		CreateGraceWait:  cfg.CreateGraceWait,
		PositionWindow:   cfg.PositionThrottle,
		WhiteboardWindow: cfg.WhiteboardThrottle,
		CallTimeout:      cfg.StoreTimeout,
	}, storeClient, storeClient, storeClient, relay)

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, storeService)
	go func() {
		<-ctx.Done()
		if err := httpServer.Dispose(); err != nil {
			Log.Error("http_dispose", zap.Error(err))
		}
	}()
	if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
