// Package container wires the invoice workflow service together and owns
// its startup and shutdown order.
package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/dispatcher"
	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/application/service"
	"github.com/garyjia/invoice-workflow/internal/application/workflow"
	"github.com/garyjia/invoice-workflow/internal/config"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/metrics"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/worker"
	"github.com/garyjia/invoice-workflow/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle
	external     *ExternalBundle
	recorder     *metrics.Recorder

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.WorkflowEngine
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Invoice     port.InvoiceRepository
	Workflow    port.WorkflowRepository
	Extracted   port.ExtractedFieldsRepository
	Timeline    port.TimelineRepository
	Note        port.NoteRepository
	Delegation  port.DelegationRepository
	User        port.UserRepository
	Dispatch    port.EffectDispatchRepository
	BookingForm port.BookingFormRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Notes       service.NoteService
	Timeline    service.TimelineService
	Delegations service.DelegationService
	Reminders   service.ReminderService
	Extraction  service.ExtractionService
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
// It does not initialize components; call Start to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
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

// Start initializes all components:
// 1. Database, migrations and repositories
// 2. External adapters (mail, extraction, rendering, storage)
// 3. Dispatcher and workflow engine
// 4. Application services
// 5. Workers, when reminders are enabled
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	dbBundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = dbBundle.DB
	c.txManager = dbBundle.TransactionMgr

	if c.repositories, err = ProvideRepositories(c.db, c.logger); err != nil {
		return c.abort(fmt.Errorf("failed to initialize repositories: %w", err))
	}

	// Step 2: Initialize external adapters and storage
	if c.external, err = ProvideExternal(c.config, c.logger); err != nil {
		return c.abort(fmt.Errorf("failed to initialize external adapters: %w", err))
	}

	// Step 3: Initialize dispatcher and workflow engine
	c.recorder = metrics.NewRecorder()
	c.dispatcher, c.engine, err = ProvideDispatcherAndEngine(&WorkflowDeps{
		Repos:     c.repositories,
		TxManager: c.txManager,
		External:  c.external,
		Recorder:  c.recorder,
		Logger:    c.logger,
	})
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize workflow engine: %w", err))
	}

	// Step 4: Initialize application services
	c.services, err = ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		External:   c.external,
		Dispatcher: c.dispatcher,
		Config:     c.config,
		Logger:     c.logger,
	})
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize services: %w", err))
	}

	// Step 5: Initialize and start workers
	c.workers = ProvideWorkers(&c.config.Reminders, c.services, c.recorder, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		return c.abort(fmt.Errorf("failed to start workers: %w", err))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// abort releases what Start opened before failing
func (c *Container) abort(err error) error {
	if c.dispatcher != nil {
		_ = c.dispatcher.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
	return err
}

// Close gracefully shuts down all components in reverse order.
// Background dispatches are drained before the database is closed.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Step 1: Stop workers (reverse of step 5)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// Step 2: Drain the dispatcher (reverse of step 3)
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	// Step 3: Close database (reverse of step 1)
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}

	c.logger.Info("Container closed successfully")
	return nil
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

	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.db == nil:
		set("database", false, "not initialized")
	default:
		if err := c.db.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else {
		set("workers", c.workers.IsRunning(), "")
	}

	set("dispatcher", c.dispatcher != nil, "")
	if !c.config.OpenAI.Enabled() {
		status.Components["extraction"] = ComponentHealth{Healthy: true, Message: "disabled"}
	}

	return status
}

// Engine returns the workflow engine.
func (c *Container) Engine() workflow.WorkflowEngine {
	return c.engine
}

// Dispatcher returns the side-effect dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.txManager
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
