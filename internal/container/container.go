package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/dispatcher"
	"github.com/garyjia/campus-assistant/internal/infrastructure/datetime"
	"github.com/garyjia/campus-assistant/internal/infrastructure/metrics"
	"github.com/garyjia/campus-assistant/internal/infrastructure/worker"
	"github.com/garyjia/campus-assistant/internal/interfaces/bot"
	apihttp "github.com/garyjia/campus-assistant/internal/interfaces/http"
	"github.com/garyjia/campus-assistant/internal/interfaces/websocket"
	"github.com/garyjia/campus-assistant/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Initialization is ordered and teardown runs in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *DatabaseBundle
	repositories *RepositoryBundle
	sessions     *SessionBundle

	// Infrastructure - External
	lark    *LarkBundle
	parser  *datetime.Parser
	metrics *metrics.Metrics

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Interfaces
	router  *bot.Router
	adapter *websocket.LarkAdapter
	server  *apihttp.Server

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database and repositories
// 2. Session store
// 3. External clients (Lark)
// 4. Dispatcher and application services
// 5. Interfaces (bot router, websocket adapter, HTTP server)
// 6. Workers
// Serving begins with Run.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	c.parser = datetime.NewParser(c.config.Schedule.Location)
	c.metrics = metrics.New()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"session store", c.initSessions},
		{"external clients", c.initExternalClients},
		{"services", c.initServices},
		{"interfaces", c.initInterfaces},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.logger.Error("Container initialization failed", zap.String("step", step.name), zap.Error(err))
			if terr := c.teardown(); terr != nil {
				c.logger.Error("Partial teardown failed", zap.Error(terr))
			}
			c.closed.Store(true)
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Initialized", zap.String("step", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Run serves the Lark long connection and, when enabled, the HTTP API until
// ctx is cancelled or one of them fails. The long connection client does not
// return on cancellation, so Run does not wait for it.
func (c *Container) Run(ctx context.Context) error {
	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- c.adapter.Start(ctx)
	}()
	if c.server != nil {
		go func() {
			errCh <- c.server.Start(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err == nil && ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return fmt.Errorf("listener stopped unexpectedly")
		}
		return err
	}
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized, newest first.
func (c *Container) teardown() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}

	if c.adapter != nil {
		if err := c.adapter.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop websocket adapter: %w", err))
		}
	}

	// Drain in-flight updates before the dispatcher stops accepting events
	if c.router != nil {
		c.router.Close()
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil && !errors.Is(err, dispatcher.ErrClosed) {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.sessions != nil && c.sessions.Redis != nil {
		if err := c.sessions.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if c.database != nil {
		if err := c.database.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	if c.database == nil {
		set("database", fmt.Errorf("not initialized"))
	} else {
		set("database", c.database.DB.PingContext(ctx))
	}

	if c.sessions != nil && c.sessions.Redis != nil {
		set("redis", c.sessions.Redis.Ping(ctx).Err())
	}

	if c.workers == nil {
		set("workers", fmt.Errorf("not initialized"))
	} else if c.workers.Count() > 0 && !c.workers.IsRunning() {
		set("workers", fmt.Errorf("worker count: %d, not running", c.workers.Count()))
	} else {
		set("workers", nil)
	}

	if c.adapter == nil {
		set("websocket", fmt.Errorf("not initialized"))
	} else {
		set("websocket", nil)
	}

	return status
}

func (c *Container) initDatabase() error {
	db, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = db

	repos, err := ProvideRepositories(db.TransactionMgr, c.config.Schedule.Location, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initSessions() error {
	sessions, err := ProvideSessionStore(c.ctx, &c.config.Session, c.logger)
	if err != nil {
		return err
	}
	c.sessions = sessions
	return nil
}

func (c *Container) initExternalClients() error {
	lark, err := ProvideLarkClients(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.lark = lark
	return nil
}

func (c *Container) initServices() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		Sessions:   c.sessions.Store,
		Lark:       c.lark,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Parser:     c.parser,
		Broadcast:  &c.config.Broadcast,
		Access:     &c.config.Access,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initInterfaces() error {
	c.router = bot.NewRouter(
		c.services.Gate,
		c.services.Engine,
		c.services.Records,
		c.services.Reports,
		c.repositories.Users,
		c.lark.Messenger,
		c.parser,
		c.logger,
		bot.WithPageSize(c.config.Schedule.PageSize),
		bot.WithUpdateObserver(c.metrics),
	)

	c.adapter = websocket.NewLarkAdapter(websocket.LarkAdapterConfig{
		AppID:     c.config.Lark.AppID,
		AppSecret: c.config.Lark.AppSecret,
	}, c.router, c.lark.Media, c.logger)

	if !c.config.Server.Enabled {
		return nil
	}

	opts := []apihttp.HandlersOption{
		apihttp.WithVersion(c.config.Version),
		apihttp.WithHealthCheck("database", c.database.DB.PingContext),
	}
	if c.sessions.Redis != nil {
		redisClient := c.sessions.Redis
		opts = append(opts, apihttp.WithHealthCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}

	sugar := utils.NewSugarAdapter(c.logger)
	handlers := apihttp.NewHandlers(c.services.Records, c.services.Reports, sugar, opts...)
	c.server = apihttp.NewServer(apihttp.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
	}, handlers, c.metrics.Handler(), sugar)
	return nil
}

func (c *Container) initWorkers() error {
	c.workers = ProvideWorkers(c.sessions, &c.config.Session, c.metrics, c.logger)
	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Router returns the bot update router.
func (c *Container) Router() *bot.Router {
	return c.router
}

// HTTPServer returns the HTTP server, or nil when disabled.
func (c *Container) HTTPServer() *apihttp.Server {
	return c.server
}

// Metrics returns the Prometheus metrics.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
