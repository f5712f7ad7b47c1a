package app

import (
	"coder_assessment_backend/internal/config"
	"coder_assessment_backend/internal/controller"
	"coder_assessment_backend/internal/repository"
	"coder_assessment_backend/internal/service"
	"coder_assessment_backend/pkg/configwatcher"
	"coder_assessment_backend/pkg/database"
	"coder_assessment_backend/pkg/logger"
	"coder_assessment_backend/pkg/monitoring"
	"coder_assessment_backend/pkg/security"
	"coder_assessment_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigFile      string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	test       *repository.TestRepository
	question   *repository.QuestionRepository
	submission *repository.SubmissionRepository
	quizResult *repository.QuizResultRepository
	draft      *repository.DraftRepository
	cache      *repository.CacheRepository
}

type services struct {
	bank       *service.QuestionBankService
	test       *service.TestService
	judge      *service.JudgeService
	archive    *service.ArchiveService
	submission *service.SubmissionService
	delivery   *service.DeliveryService
}

type controllers struct {
	bank       *controller.QuestionBankController
	test       *controller.TestController
	attempt    *controller.AttemptController
	quiz       *controller.QuizController
	submission *controller.SubmissionController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// applyConfig 热更新：替换当前配置并通知各服务
func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	a.Config = cfg
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		test:       repository.NewTestRepository(db),
		question:   repository.NewQuestionRepository(db),
		submission: repository.NewSubmissionRepository(db),
		quizResult: repository.NewQuizResultRepository(db),
		draft:      repository.NewDraftRepository(rdb),
		cache:      repository.NewCacheRepository(rdb),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.bank = service.NewQuestionBankService(repos.question)
	s.test = service.NewTestService(repos.test, repos.draft, repos.cache, s.bank,
		cfg.Assessment.TestCacheTTL(), cfg.Assessment.DraftTTL())
	s.judge = service.NewJudgeService(cfg.Judge)

	// 接口变量保持 nil，避免带类型的空指针
	var archiver service.Archiver
	if cfg.Assessment.ArchiveSubmissions {
		s.archive = service.NewArchiveService(cfg)
		archiver = s.archive
	}
	s.submission = service.NewSubmissionService(repos.submission, repos.quizResult, repos.cache, s.test,
		archiver, cfg.Assessment.SubmitLockTTL())
	s.delivery = service.NewDeliveryService(s.test, s.bank, s.judge, s.submission, s.submission, cfg.Assessment)

	a.RegisterConfigCallback(func(c *config.Config) {
		s.delivery.ApplyConfig(c.Assessment)
		s.judge.SetRate(c.Judge)
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		bank:       controller.NewQuestionBankController(s.bank),
		test:       controller.NewTestController(s.test),
		attempt:    controller.NewAttemptController(s.delivery),
		quiz:       controller.NewQuizController(s.delivery),
		submission: controller.NewSubmissionController(s.submission),
		health:     controller.NewHealthController(db, rdb, s.delivery),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 6000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 启动配置热更新监听
func (a *App) startBackgroundTasks(ctx context.Context) {
	if a.ConfigFile == "" {
		return
	}
	go func() {
		if err := configwatcher.WatchConfig(ctx, a.ConfigFile, a.applyConfig); err != nil {
			logger.Log.Error("config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config:     cfg,
		ConfigFile: filepath.Join(configDir, "config.yaml"),
		DB:         db,
	}

	// 仅迁移模式不需要 Redis 与路由
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	app.Redis = rdb

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("coder-assessment", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	// 本地归档文件
	if cfg.Storage.Type == "local" && cfg.Assessment.ArchiveSubmissions {
		router.Static("/archives", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	a.startBackgroundTasks(bgCtx)

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 停止所有作答计时器，进行中的作答不会被自动提交
	if a.services != nil {
		attempts, quizzes := a.services.delivery.ActiveCounts()
		a.services.delivery.Shutdown()
		logger.Log.Info("Delivery sessions stopped", zap.Int("attempts", attempts), zap.Int("quizzes", quizzes))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
