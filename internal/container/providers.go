package container

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/access"
	"github.com/garyjia/campus-assistant/internal/application/broadcast"
	"github.com/garyjia/campus-assistant/internal/application/dispatcher"
	"github.com/garyjia/campus-assistant/internal/application/lifecycle"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/application/service"
	"github.com/garyjia/campus-assistant/internal/application/workflow"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
	"github.com/garyjia/campus-assistant/internal/infrastructure/datetime"
	infraLark "github.com/garyjia/campus-assistant/internal/infrastructure/external/lark"
	"github.com/garyjia/campus-assistant/internal/infrastructure/metrics"
	"github.com/garyjia/campus-assistant/internal/infrastructure/persistence/repository"
	"github.com/garyjia/campus-assistant/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/campus-assistant/internal/infrastructure/report"
	"github.com/garyjia/campus-assistant/internal/infrastructure/session"
	"github.com/garyjia/campus-assistant/internal/infrastructure/worker"
	"github.com/garyjia/campus-assistant/internal/interfaces/bot"
	"github.com/garyjia/campus-assistant/pkg/database"
	"github.com/garyjia/campus-assistant/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Events *repository.EventRepository
	Tasks  *repository.TaskRepository
	Users  *repository.UserRepository
}

// SessionBundle holds the workflow session store. Sweeper is nil when the
// backend expires sessions by itself.
type SessionBundle struct {
	Store   port.SessionStore
	Redis   *redis.Client
	Sweeper worker.Sweeper
}

// LarkBundle holds all Lark-related components.
type LarkBundle struct {
	SDK       *infraLark.SDKClient
	Client    *infraLark.Client
	Messenger *infraLark.Messenger
	Sender    *infraLark.Sender
	Media     *infraLark.MediaImporter
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Records      *lifecycle.Service
	Reports      service.ReportService
	Notification service.NotificationService
	Broadcaster  *broadcast.Broadcaster
	Engine       workflow.WorkflowEngine
	Gate         *access.Gate
}

// ProvideDatabase opens the SQLite database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(database.EmbeddedMigrations()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on top of the transaction manager.
func ProvideRepositories(db *sqlite.DB, loc *time.Location, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Events: repository.NewEventRepository(db, loc, logger),
		Tasks:  repository.NewTaskRepository(db, loc, logger),
		Users:  repository.NewUserRepository(db, loc, logger),
	}, nil
}

// ProvideSessionStore creates the configured session backend.
func ProvideSessionStore(ctx context.Context, cfg *SessionConfig, logger *zap.Logger) (*SessionBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("session config is required")
	}

	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := session.NewRedisStore(client, session.WithTTL(cfg.TTL), session.WithPrefix(cfg.RedisPrefix))
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Using Redis session store", zap.String("addr", cfg.RedisAddr))
		return &SessionBundle{Store: store, Redis: client}, nil

	case "memory", "":
		store := session.NewMemoryStore(session.WithMemoryTTL(cfg.TTL))
		logger.Info("Using in-memory session store", zap.Duration("ttl", cfg.TTL))
		return &SessionBundle{Store: store, Sweeper: store}, nil
	}

	return nil, fmt.Errorf("unknown session backend: %q", cfg.Backend)
}

// ProvideLarkClients creates the Lark SDK client and its adapters.
func ProvideLarkClients(cfg *LarkConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	sdk := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.APITimeout,
	}, logger)
	client := infraLark.NewClient(sdk, logger)

	return &LarkBundle{
		SDK:       sdk,
		Client:    client,
		Messenger: infraLark.NewMessenger(client, logger),
		Sender:    infraLark.NewSender(client, logger),
		Media:     infraLark.NewMediaImporter(sdk, logger),
	}, nil
}

// ProvideDispatcher creates the in-process domain event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(logger.Sugar())), nil
}

// ServiceDeps holds dependencies for creating application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Sessions   port.SessionStore
	Lark       *LarkBundle
	Dispatcher dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	Parser     *datetime.Parser
	Broadcast  *BroadcastConfig
	Access     *AccessConfig
	Logger     *zap.Logger
}

// ProvideServices creates the workflow engine and the services around it,
// and subscribes event handlers to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service deps are required")
	}
	if deps.Repos == nil || deps.Lark == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("repositories, lark clients and dispatcher are required")
	}

	loc := deps.Parser.Location()
	sugar := utils.NewSugarAdapter(deps.Logger)

	records := lifecycle.NewService(deps.Repos.Events, deps.Repos.Tasks, deps.Logger,
		lifecycle.WithLocation(loc),
		lifecycle.WithDispatcher(deps.Dispatcher),
	)

	reports := service.NewReportService(records, deps.Repos.Users,
		report.NewExcelWriter(loc, deps.Logger), deps.Parser, sugar)

	notification := service.NewNotificationService(deps.Repos.Tasks, deps.Repos.Users,
		deps.Lark.Messenger, bot.OpenTaskPayload, sugar)
	notification.Register(deps.Dispatcher)

	broadcaster := broadcast.New(deps.Lark.Sender, deps.Logger,
		broadcast.WithPause(deps.Broadcast.Pause),
		broadcast.WithDefaultRetryAfter(deps.Broadcast.DefaultRetryAfter),
		broadcast.WithConcurrency(deps.Broadcast.Concurrency),
		broadcast.WithObserver(deps.Metrics),
	)

	engine := workflow.NewEngine(deps.Sessions, deps.Parser, deps.Logger,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithObserver(deps.Metrics),
		workflow.WithCommitter(domainwf.KindEventCreate,
			workflow.NewEventCommitter(deps.Repos.Events, deps.Repos.Users, deps.Parser, time.Now)),
		workflow.WithCommitter(domainwf.KindTaskCreate,
			workflow.NewTaskCommitter(deps.Repos.Tasks, deps.Repos.Users, deps.Parser, time.Now)),
		workflow.WithCommitter(domainwf.KindAnnouncementCreate,
			workflow.NewAnnouncementCommitter(deps.Repos.Users, broadcaster, deps.Broadcast.FailureSample)),
	)

	gate, err := access.NewGate(deps.Repos.Users, access.Config{
		AllowedCommands:  deps.Access.AllowedCommands,
		CallbackPatterns: deps.Access.CallbackPatterns,
	}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create access gate: %w", err)
	}

	return &ServiceBundle{
		Records:      records,
		Reports:      reports,
		Notification: notification,
		Broadcaster:  broadcaster,
		Engine:       engine,
		Gate:         gate,
	}, nil
}

// ProvideWorkers registers the background workers for the session backend.
func ProvideWorkers(sessions *SessionBundle, cfg *SessionConfig, m *metrics.Metrics, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	if sessions.Sweeper != nil {
		manager.Register(worker.NewSessionSweeper(sessions.Sweeper, cfg.SweepInterval, m.SessionsSwept, logger))
	}
	return manager
}
