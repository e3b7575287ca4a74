package setup

import (
	"github.com/gatewarden/gatewarden/internal/redis"
	"github.com/gatewarden/gatewarden/internal/setup/config"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config // Application configuration
	Logger       *zap.Logger    // Main application logger
	RedisManager *redis.Manager // Redis connection manager
	TaskClient   rueidis.Client // Redis client for persisted task control state
	StatsClient  rueidis.Client // Redis client for verification counters
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp() (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, err := NewLogger(&cfg.Debug)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration", zap.String("configDir", configDir))

	// Redis manager provides connection pools for the persistence subsystems
	redisManager := redis.NewManager(&cfg.Redis, logger)

	taskClient, err := redisManager.GetClient(redis.TaskStateDBIndex)
	if err != nil {
		return nil, err
	}

	statsClient, err := redisManager.GetClient(redis.StatsDBIndex)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		RedisManager: redisManager,
		TaskClient:   taskClient,
		StatsClient:  statsClient,
	}, nil
}

// CleanupApp closes connections and flushes logs before shutdown.
func (a *App) CleanupApp() {
	a.RedisManager.Close()
	_ = a.Logger.Sync()
}
