package container

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/delegation"
	"github.com/garyjia/invoice-workflow/internal/application/dispatcher"
	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/application/service"
	"github.com/garyjia/invoice-workflow/internal/application/workflow"
	"github.com/garyjia/invoice-workflow/internal/config"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/document"
	infraLark "github.com/garyjia/invoice-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/external/openai"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/metrics"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/storage"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/worker"
	"github.com/garyjia/invoice-workflow/migrations"
	"github.com/garyjia/invoice-workflow/pkg/database"
	"github.com/garyjia/invoice-workflow/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ExternalBundle holds the adapters of external systems.
type ExternalBundle struct {
	Mailer    port.Mailer
	Extractor port.FieldExtractor
	Renderer  port.BookingFormRenderer
	Storage   port.FileStorage
}

// ProvideDatabase opens the SQLite ledger and applies pending migrations.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
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

	applied, err := database.NewMigrator(db, logger).Run(ctx, migrations.FS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if applied > 0 {
		logger.Info("Migrations applied", zap.Int("count", applied))
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Invoice:     repository.NewInvoiceRepository(db.DB, logger),
		Workflow:    repository.NewWorkflowRepository(db.DB, logger),
		Extracted:   repository.NewExtractedFieldsRepository(db.DB, logger),
		Timeline:    repository.NewTimelineRepository(db.DB, logger),
		Note:        repository.NewNoteRepository(db.DB, logger),
		Delegation:  repository.NewDelegationRepository(db.DB, logger),
		User:        repository.NewUserRepository(db.DB, logger),
		Dispatch:    repository.NewEffectDispatchRepository(db.DB, logger),
		BookingForm: repository.NewBookingFormRepository(db.DB, logger),
	}, nil
}

// ProvideExternal creates the mail, extraction, rendering and storage adapters.
// Lark and OpenAI are optional; without credentials mail is only logged and
// extraction is unavailable.
func ProvideExternal(cfg *config.Config, logger *zap.Logger) (*ExternalBundle, error) {
	if err := os.MkdirAll(cfg.Storage.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	bundle := &ExternalBundle{
		Renderer: document.NewBookingFormRenderer(cfg.BookingForm.TemplatePath, logger),
		Storage:  storage.NewLocalFileStorage(cfg.Storage.BaseDir, logger),
	}

	if cfg.Lark.Enabled() {
		client := infraLark.NewClient(infraLark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
		}, logger)
		bundle.Mailer = infraLark.NewMailer(client, logger)
	} else {
		logger.Warn("Lark is not configured, emails will only be logged")
		bundle.Mailer = infraLark.NewLogMailer(logger)
	}

	if cfg.OpenAI.Enabled() {
		bundle.Extractor = openai.NewExtractor(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
	}

	return bundle, nil
}

// WorkflowDeps holds dependencies for the dispatcher and workflow engine.
type WorkflowDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	External  *ExternalBundle
	Recorder  *metrics.Recorder
	Logger    *zap.Logger
}

// ProvideDispatcherAndEngine wires the side-effect dispatcher into the engine.
func ProvideDispatcherAndEngine(deps *WorkflowDeps) (dispatcher.Dispatcher, workflow.WorkflowEngine, error) {
	if deps == nil || deps.Repos == nil || deps.External == nil {
		return nil, nil, fmt.Errorf("workflow dependencies are required")
	}

	kv := utils.NewKVLogger(deps.Logger)
	resolver := delegation.NewResolver(deps.Repos.Delegation, kv)

	disp := dispatcher.NewDispatcher(dispatcher.Deps{
		Invoices:     deps.Repos.Invoice,
		Workflows:    deps.Repos.Workflow,
		Timeline:     deps.Repos.Timeline,
		Users:        deps.Repos.User,
		Dispatches:   deps.Repos.Dispatch,
		BookingForms: deps.Repos.BookingForm,
		Mailer:       deps.External.Mailer,
		Renderer:     deps.External.Renderer,
		Storage:      deps.External.Storage,
		Resolver:     resolver,
	},
		dispatcher.WithLogger(kv),
		dispatcher.WithRecorder(deps.Recorder),
	)

	engine := workflow.NewEngine(workflow.Repositories{
		Invoices:  deps.Repos.Invoice,
		Workflows: deps.Repos.Workflow,
		Extracted: deps.Repos.Extracted,
		Timeline:  deps.Repos.Timeline,
		Users:     deps.Repos.User,
	},
		resolver,
		deps.TxManager,
		workflow.WithSideEffects(disp),
		workflow.WithRecorder(deps.Recorder),
		workflow.WithLogger(kv),
	)

	return disp, engine, nil
}

// ServiceDeps holds dependencies for creating application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	External   *ExternalBundle
	Dispatcher dispatcher.Dispatcher
	Config     *config.Config
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	kv := utils.NewKVLogger(deps.Logger)
	repos := deps.Repos

	var extractor port.FieldExtractor
	if deps.External != nil && deps.External.Extractor != nil {
		extractor = deps.External.Extractor
	}

	return &ServiceBundle{
		Notes:       service.NewNoteService(repos.Invoice, repos.Note, repos.Timeline, repos.User, deps.TxManager, kv),
		Timeline:    service.NewTimelineService(repos.Invoice, repos.Timeline),
		Delegations: service.NewDelegationService(repos.Delegation, repos.User, deps.TxManager, kv),
		Reminders:   service.NewReminderService(repos.Invoice, repos.Workflow, deps.Dispatcher, deps.Config.Reminders.SLADays, kv),
		Extraction:  service.NewExtractionService(repos.Invoice, repos.Extracted, repos.User, extractor, deps.Config.Extraction.ConfidenceThreshold, kv),
	}, nil
}

// ProvideWorkers creates the background workers.
func ProvideWorkers(cfg *config.RemindersConfig, services *ServiceBundle, recorder *metrics.Recorder, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	if cfg.Enabled {
		manager.Register(worker.NewReminderWorker(services.Reminders, cfg.Interval, recorder, logger))
	}
	return manager
}
