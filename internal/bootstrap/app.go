package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docspace/internal/ai"
	appsvc "docspace/internal/app"
	"docspace/internal/cache"
	"docspace/internal/config"
	"docspace/internal/embedding"
	"docspace/internal/model"
	mysqlClient "docspace/internal/platform/mysql"
	rabbitmqClient "docspace/internal/platform/rabbitmq"
	redisClient "docspace/internal/platform/redis"
	"docspace/internal/repository"
	"docspace/internal/worker"
)

type App struct {
	Config     *config.Config
	MySQL      *gorm.DB
	Redis      *redis.Client
	MQConn     *amqp.Connection
	FileWorker *worker.FileProcessWorker

	AuthService      *appsvc.AuthService
	WorkspaceService *appsvc.WorkspaceService
	IngestService    *appsvc.IngestService
	SearchService    *appsvc.SearchService
	AskService       *appsvc.AskService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Workspace{},
		&model.WorkspaceMember{},
		&model.File{},
		&model.Chunk{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(mysqlDB)
	workspaceRepo := repository.NewWorkspaceRepository(mysqlDB)
	fileRepo := repository.NewFileRepository(mysqlDB)
	chunkRepo := repository.NewChunkRepository(mysqlDB)

	searchCache := cache.NewSearchCache(redisCli, time.Duration(cfg.Redis.SearchCacheTTLSeconds)*time.Second)
	jobPublisher := rabbitmqClient.NewJobPublisher(mqConn, cfg.RabbitMQ.FileProcessQueue)

	remote := embedding.NewRemoteProvider(embedding.RemoteConfig{
		BaseURL:   cfg.Embedding.RemoteBaseURL,
		APIKey:    cfg.Embedding.RemoteAPIKey,
		Model:     cfg.Embedding.RemoteModel,
		Dimension: cfg.Embedding.RemoteDimension,
		Timeout:   time.Duration(cfg.Embedding.BatchTimeoutSeconds) * time.Second,
	})
	local := embedding.NewLocalProvider(cfg.Embedding.LocalDimension)

	// The primary is explicit per configuration, never inferred at
	// call time; the other profile is the fallback.
	var primary, fallback embedding.Provider = remote, local
	if cfg.Embedding.Primary == local.Name() {
		primary, fallback = local, remote
	}
	providers := map[string]embedding.Provider{
		remote.Name(): remote,
		local.Name():  local,
	}

	authService := appsvc.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	workspaceService := appsvc.NewWorkspaceService(workspaceRepo, fileRepo, chunkRepo, searchCache)
	ingestService := appsvc.NewIngestService(fileRepo, chunkRepo, workspaceRepo, jobPublisher, searchCache, appsvc.IngestOptions{
		Primary:      primary,
		Fallback:     fallback,
		BatchSize:    cfg.Embedding.BatchSize,
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		MaxFileBytes: cfg.Ingest.MaxFileBytes,
	})
	searchService := appsvc.NewSearchService(chunkRepo, workspaceRepo, providers, searchCache,
		cfg.Search.DefaultTopK, cfg.Search.MaxTopK)
	askService := appsvc.NewAskService(searchService, ai.NewOpenAICompatibleClient(), ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})

	fileWorker := worker.NewFileProcessWorker(mqConn, ingestService, cfg.RabbitMQ.FileProcessQueue)
	if err := fileWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start file process worker failed: %w", err)
	}

	return &App{
		Config:           cfg,
		MySQL:            mysqlDB,
		Redis:            redisCli,
		MQConn:           mqConn,
		FileWorker:       fileWorker,
		AuthService:      authService,
		WorkspaceService: workspaceService,
		IngestService:    ingestService,
		SearchService:    searchService,
		AskService:       askService,
		StartedAt:        time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.FileWorker != nil {
		a.FileWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
