package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bridge-settle.backend/internal/config"
	"bridge-settle.backend/internal/domain/entities"
	"bridge-settle.backend/internal/infrastructure/alerts"
	"bridge-settle.backend/internal/infrastructure/blockchain"
	"bridge-settle.backend/internal/infrastructure/jobs"
	"bridge-settle.backend/internal/infrastructure/repositories"
	"bridge-settle.backend/internal/infrastructure/ruleconfig"
	"bridge-settle.backend/internal/interfaces/http/handlers"
	"bridge-settle.backend/internal/interfaces/http/middleware"
	"bridge-settle.backend/internal/usecases/matcher"
	"bridge-settle.backend/internal/usecases/reconcile"
	"bridge-settle.backend/internal/usecases/ruleeval"
	"bridge-settle.backend/internal/usecases/sequencer"
	"bridge-settle.backend/internal/usecases/store"
	"bridge-settle.backend/pkg/jwt"
	"bridge-settle.backend/pkg/logger"
	"bridge-settle.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(context.Background(), "failed to initialize redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		logger.Warn(context.Background(), "database not available, endpoints will return errors", zap.Error(err))
	} else {
		logger.Info(context.Background(), "connected to postgres via gorm")
	}

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)

	bridgeTxRepo := repositories.NewBridgeTransactionRepository(db)
	serialRepo := repositories.NewSerialRelationRepository(db)
	transferRepo := repositories.NewTransferRepository(sqlDB, db)
	uow := repositories.NewUnitOfWork(db)

	ruleLoader := ruleconfig.NewLoader(cfg.Bridge.RuleConfigDir)
	if err := ruleLoader.Reload(); err != nil {
		logger.Warn(context.Background(), "initial rule config load failed, starting with an empty rule set", zap.Error(err))
	}
	reloadCtx, stopReload := context.WithCancel(context.Background())
	defer stopReload()
	go ruleLoader.WatchSIGHUP(reloadCtx)

	evaluator := ruleeval.NewDispatcher(ruleLoader)
	matchCache := matcher.NewMemoryMatchCache(cfg.Bridge.SweepLookback, 1000)

	sourceSweep := matcher.NewSourceSweep(
		transferRepo, bridgeTxRepo, uow, evaluator, matchCache,
		[]entities.TransferVersion{entities.VersionV1Source, entities.VersionV2Source},
		cfg.Bridge.SweepLookback, cfg.Bridge.SweepBatchSize,
	)
	destSweep := matcher.NewDestSweep(
		transferRepo, bridgeTxRepo, uow, matchCache,
		[]entities.TransferVersion{entities.VersionV1Dest, entities.VersionV2Dest},
		cfg.Bridge.SweepBatchSize,
	)

	inflightStore := store.New(serialRepo)
	exclusivity := store.NewExclusivity(cfg.Bridge.ExclusivityLockTTL)

	clientFactory := blockchain.NewClientFactory()
	nonceManager := blockchain.NewNonceManager()

	signerEntries, err := blockchain.LoadSignerEntries(cfg.Bridge.SignerConfigPath)
	if err != nil {
		logger.Warn(context.Background(), "failed to load signer config, no accounts will be available", zap.Error(err))
	}
	accountResolver := blockchain.NewAccountResolver(
		clientFactory, nonceManager, serialRepo, cfg.Signer.EncryptionKey, cfg.Bridge.FeeComputeTimeout, signerEntries,
	)

	alerter := alerts.NewTelegramAlerter(cfg.Alerts.TelegramBotToken, cfg.Alerts.TelegramChatID)

	seq := sequencer.New(bridgeTxRepo, uow, inflightStore, exclusivity, accountResolver, nil, alerter, cfg.Bridge.MaxLossBps)

	rpcURLs := chainRPCURLs(cfg)
	receiptFetcher := blockchain.NewChainReceiptFetcher(clientFactory, rpcURLs)
	reconciler := reconcile.New(serialRepo, bridgeTxRepo, uow, receiptFetcher, alerter)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), cfg.Bridge.FeeComputeTimeout*4)
	advanced, err := reconciler.Run(startupCtx)
	cancelStartup()
	if err != nil {
		logger.Error(context.Background(), "startup reconciliation failed", zap.Error(err))
	} else if advanced > 0 {
		logger.Info(context.Background(), "startup reconciliation advanced rows", zap.Int("count", advanced))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sourceSweepJob := jobs.NewSweepJob("source-sweep", sourceSweep, cfg.Bridge.SourceSweepInterval)
	destSweepJob := jobs.NewSweepJob("dest-sweep", destSweep, cfg.Bridge.DestSweepInterval)
	pollJob := jobs.NewSequencerPollJob(inflightStore, seq, cfg.Bridge.SequencerBatchLimit, cfg.Bridge.SequencerPollInterval)
	confirmJob := jobs.NewReceiptConfirmJob(reconciler, cfg.Bridge.ReceiptConfirmBatchSize, cfg.Bridge.ReceiptConfirmInterval)

	go sourceSweepJob.Start(ctx)
	go destSweepJob.Start(ctx)
	go pollJob.Start(ctx)
	go confirmJob.Start(ctx)

	adminHandler := handlers.NewAdminHandler(bridgeTxRepo,
		map[string]jobs.Runner{"source": sourceSweep},
		map[string]jobs.Runner{"dest": destSweep},
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	registerRoutes(r, routeDeps{
		adminHandler:   adminHandler,
		authMiddleware: middleware.AuthMiddleware(jwtService),
	})

	logger.Info(context.Background(), "registered routes")
	for _, route := range r.Routes() {
		logger.Info(context.Background(), "route", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info(context.Background(), "shutting down")
		sourceSweepJob.Stop()
		destSweepJob.Stop()
		pollJob.Stop()
		confirmJob.Stop()
		cancel()
	}()

	logger.Info(context.Background(), "settlement engine starting", zap.String("port", cfg.Server.Port))

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// chainRPCURLs merges the two named testnet RPC fields into the generic
// RPCURLs map, so a deployment that only set the legacy fields still gets
// a working ChainReceiptFetcher.
func chainRPCURLs(cfg *config.Config) map[string]string {
	urls := make(map[string]string, len(cfg.Blockchain.RPCURLs)+2)
	for k, v := range cfg.Blockchain.RPCURLs {
		urls[k] = v
	}
	if cfg.Blockchain.BaseSepoliaRPC != "" {
		if _, ok := urls["84532"]; !ok {
			urls["84532"] = cfg.Blockchain.BaseSepoliaRPC
		}
	}
	if cfg.Blockchain.BSCSepoliaRPC != "" {
		if _, ok := urls["97"]; !ok {
			urls["97"] = cfg.Blockchain.BSCSepoliaRPC
		}
	}
	return urls
}
