// Package app 提供应用生命周期管理
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/windfall-labs/windfall-raffle/internal/blockchain"
	"github.com/windfall-labs/windfall-raffle/internal/cache"
	"github.com/windfall-labs/windfall-raffle/internal/config"
	"github.com/windfall-labs/windfall-raffle/internal/contract"
	"github.com/windfall-labs/windfall-raffle/internal/handler"
	"github.com/windfall-labs/windfall-raffle/internal/handler/event"
	"github.com/windfall-labs/windfall-raffle/internal/kafka"
	"github.com/windfall-labs/windfall-raffle/internal/publisher"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
	"github.com/windfall-labs/windfall-raffle/internal/router"
	"github.com/windfall-labs/windfall-raffle/internal/service"
	"github.com/windfall-labs/windfall-raffle/internal/worker"
	"github.com/windfall-labs/windfall-raffle/pkg/id"
	"github.com/windfall-labs/windfall-raffle/pkg/lock"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

const serviceName = "windfall-raffle"

// App 应用实例
type App struct {
	cfg *config.Config

	// 基础设施
	db      *gorm.DB
	rdb     *redis.Client
	idGen   *id.Generator
	locker  *lock.RaffleLocker
	chainCl *blockchain.Client

	// HTTP
	httpServer    *http.Server
	healthHandler *handler.HealthHandler

	// Kafka
	producer *kafka.Producer
	consumer *kafka.ConsumerGroup

	// 协作方 (链上适配器或本地替身)
	custody  service.CollateralCustody
	transfer service.ValueTransfer
	oracle   service.RandomnessOracle
	devOrcl  *localOracle

	// 仓储层
	repo       *repository.Repository
	raffleRepo repository.RaffleRepository
	entryRepo  repository.EntryRepository
	claimRepo  repository.ClaimRepository
	randomRepo repository.RandomnessRepository

	// 服务层
	raffleSvc     service.RaffleService
	entrySvc      service.EntryService
	randomnessSvc service.RandomnessService

	// Workers
	expiryWorker *worker.RaffleExpiryWorker
	stuckMonitor *worker.StuckDrawMonitor

	// 生命周期
	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建应用实例
func New(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run 启动应用
func (a *App) Run() error {
	logger.Info("starting service", "service", serviceName)

	if err := a.initInfra(); err != nil {
		return fmt.Errorf("init infra: %w", err)
	}

	a.initRepositories()

	if err := a.initKafka(); err != nil {
		return fmt.Errorf("init kafka: %w", err)
	}

	if err := a.initCollaborators(); err != nil {
		return fmt.Errorf("init collaborators: %w", err)
	}

	a.initServices()
	a.initWorkers()

	if err := a.startHTTPServer(); err != nil {
		return fmt.Errorf("start http: %w", err)
	}

	a.startWorkers()

	if err := a.startConsumers(); err != nil {
		return fmt.Errorf("start consumers: %w", err)
	}

	a.healthHandler.SetReady(true)
	a.waitForShutdown()

	return nil
}

// initInfra 初始化基础设施
func (a *App) initInfra() error {
	var err error

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		a.cfg.Database.Host,
		a.cfg.Database.Port,
		a.cfg.Database.User,
		a.cfg.Database.Password,
		a.cfg.Database.Database,
	)
	a.db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(a.cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(a.cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(a.cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)

	if err := AutoMigrate(a.db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("database migrated")

	a.rdb = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", a.cfg.Redis.Host, a.cfg.Redis.Port),
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})

	a.locker = lock.NewRaffleLocker(a.rdb, serviceName, time.Duration(a.cfg.Raffle.LockExpirySec)*time.Second)

	a.idGen, err = id.NewGenerator(a.cfg.Node.ID)
	if err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}

	return nil
}

// initRepositories 初始化仓储层
func (a *App) initRepositories() {
	a.repo = repository.NewRepository(a.db)
	a.raffleRepo = repository.NewRaffleRepository(a.db)
	a.entryRepo = repository.NewEntryRepository(a.db)
	a.claimRepo = repository.NewClaimRepository(a.db)
	a.randomRepo = repository.NewRandomnessRepository(a.db)
}

// initKafka 初始化 Kafka
func (a *App) initKafka() error {
	if !a.cfg.Kafka.Enabled {
		logger.Warn("kafka is disabled")
		return nil
	}

	var err error

	pcfg := a.cfg.Kafka.Producer
	a.producer, err = kafka.NewProducer(&kafka.ProducerConfig{
		Brokers:       a.cfg.Kafka.Brokers,
		RequiredAcks:  sarama.RequiredAcks(pcfg.RequiredAcks),
		MaxRetry:      pcfg.MaxRetry,
		FlushMessages: pcfg.FlushMessages,
		FlushBytes:    pcfg.FlushBytes,
		FlushFreq:     time.Duration(pcfg.FlushFreqMs) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}
	logger.Info("kafka producer created")

	initialOffset := sarama.OffsetNewest
	if a.cfg.Kafka.Consumer.InitialOffset == "oldest" {
		initialOffset = sarama.OffsetOldest
	}
	a.consumer, err = kafka.NewConsumerGroup(&kafka.ConsumerConfig{
		Brokers:       a.cfg.Kafka.Brokers,
		GroupID:       a.cfg.Kafka.GroupID,
		Topics:        []string{kafka.TopicRandomnessFulfilled},
		InitialOffset: initialOffset,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	a.consumer.UseDeadLetter(a.producer)
	logger.Info("kafka consumer created")

	return nil
}

// initCollaborators 初始化链上协作方
// 链上交互关闭时换用本地替身，业务流程不受影响
func (a *App) initCollaborators() error {
	if !a.cfg.Chain.Enabled {
		logger.Warn("chain interaction disabled, using dev collaborators")
		a.custody = devCustody{}
		a.transfer = devTransfer{}
		a.devOrcl = newLocalOracle(500 * time.Millisecond)
		a.oracle = a.devOrcl
		return nil
	}

	var err error
	a.chainCl, err = blockchain.NewClient(&blockchain.ClientConfig{
		RPCURL:     a.cfg.Chain.RPCURL,
		ChainID:    a.cfg.Chain.ChainID,
		PrivateKey: a.cfg.Chain.PrivateKey,
	})
	if err != nil {
		return fmt.Errorf("init chain client: %w", err)
	}

	escrow, err := contract.NewEscrowContract(common.HexToAddress(a.cfg.Chain.EscrowContract), a.chainCl.Backend())
	if err != nil {
		return fmt.Errorf("bind escrow contract: %w", err)
	}
	escrowAdapter := contract.NewEscrowAdapter(escrow, a.chainCl)
	a.custody = escrowAdapter
	a.transfer = escrowAdapter

	vrf, err := contract.NewVRFCoordinatorContract(common.HexToAddress(a.cfg.Chain.VRFCoordinator), a.chainCl.Backend())
	if err != nil {
		return fmt.Errorf("bind vrf coordinator: %w", err)
	}
	a.oracle = contract.NewVRFAdapter(vrf, a.chainCl, a.chainCl.Address())

	return nil
}

// initServices 初始化服务层
func (a *App) initServices() {
	access := service.NewStaticAccessControl(a.cfg.Raffle.Owner, a.cfg.Raffle.Operators)
	payout := service.NewPayoutEngine(a.custody, a.transfer, a.cfg.Raffle.PlatformWallet)

	// producer 为 nil 时发布者静默跳过
	// 注意不能把有类型的 nil 指针塞进接口，否则判空失效
	var pub *publisher.RafflePublisher
	if a.producer != nil {
		pub = publisher.NewRafflePublisher(a.producer)
	} else {
		pub = publisher.NewRafflePublisher(nil)
	}

	a.randomnessSvc = service.NewRandomnessService(
		a.raffleRepo, a.entryRepo, a.randomRepo,
		a.oracle, payout, a.locker, pub, access,
	)
	if a.devOrcl != nil {
		a.devOrcl.Bind(a.randomnessSvc)
	}

	a.raffleSvc = service.NewRaffleService(
		a.raffleRepo, a.custody, payout, a.randomnessSvc,
		a.locker, pub, access, a.idGen,
	)
	a.raffleSvc = service.NewCachedRaffleService(a.raffleSvc, cache.NewRaffleCache(a.rdb))

	a.entrySvc = service.NewEntryService(
		a.raffleRepo, a.entryRepo, a.claimRepo, a.repo,
		payout, a.locker, pub, access,
	)
}

// initWorkers 初始化后台任务
func (a *App) initWorkers() {
	if a.cfg.Worker.Expiry.Enabled {
		a.expiryWorker = worker.NewRaffleExpiryWorker(
			&worker.ExpiryWorkerConfig{
				CheckInterval: time.Duration(a.cfg.Worker.Expiry.CheckIntervalSec) * time.Second,
				BatchSize:     a.cfg.Worker.Expiry.BatchSize,
				Operator:      a.cfg.Raffle.Owner,
			},
			a.raffleRepo,
			a.raffleSvc,
		)
	}

	if a.cfg.Worker.StuckDraw.Enabled {
		a.stuckMonitor = worker.NewStuckDrawMonitor(
			&worker.StuckDrawMonitorConfig{
				CheckInterval: time.Duration(a.cfg.Worker.StuckDraw.CheckIntervalSec) * time.Second,
				StuckAfter:    time.Duration(a.cfg.Worker.StuckDraw.StuckAfterSec) * time.Second,
				BatchSize:     a.cfg.Worker.StuckDraw.BatchSize,
			},
			a.randomRepo,
		)
	}
}

// startHTTPServer 启动 HTTP 服务器
func (a *App) startHTTPServer() error {
	if a.cfg.Service.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	a.healthHandler = handler.NewHealthHandler(&handler.HealthDeps{
		Database: sqlDB,
		Redis:    redisPinger{a.rdb},
	})

	r := router.New(engine)
	r.RegisterMiddleware()
	r.RegisterRoutes(
		a.healthHandler,
		handler.NewRaffleHandler(a.raffleSvc),
		handler.NewEntryHandler(a.entrySvc),
		handler.NewDrawHandler(a.randomnessSvc, a.randomRepo),
	)

	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Service.HTTPPort),
		Handler: engine,
	}

	go func() {
		logger.Info("http server listening", "port", a.cfg.Service.HTTPPort)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http serve error", "error", err)
		}
	}()

	return nil
}

// startWorkers 启动后台任务
func (a *App) startWorkers() {
	if a.expiryWorker != nil {
		a.expiryWorker.Start(a.ctx)
	}
	if a.stuckMonitor != nil {
		a.stuckMonitor.Start(a.ctx)
	}
}

// startConsumers 启动 Kafka 消费者
func (a *App) startConsumers() error {
	if a.consumer == nil {
		return nil
	}

	fulfillment := event.NewFulfillmentHandler(a.randomnessSvc)
	a.consumer.RegisterHandler(fulfillment.Topic(), fulfillment)

	if err := a.consumer.Start(a.ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	logger.Info("kafka consumer started")

	return nil
}

// waitForShutdown 等待关闭信号
func (a *App) waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	a.shutdown()
}

// shutdown 优雅关闭
func (a *App) shutdown() {
	a.cancel()

	if a.healthHandler != nil {
		a.healthHandler.SetReady(false)
	}

	if a.expiryWorker != nil {
		a.expiryWorker.Stop()
	}
	if a.stuckMonitor != nil {
		a.stuckMonitor.Stop()
	}

	if a.consumer != nil {
		a.consumer.Stop()
	}
	if a.producer != nil {
		a.producer.Close()
	}

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	if a.chainCl != nil {
		a.chainCl.Close()
	}

	if a.rdb != nil {
		a.rdb.Close()
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logger.Info("service stopped")
}

// redisPinger 适配健康检查的 Ping 接口
type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
