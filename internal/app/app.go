package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/config"
	"github.com/guatepass/tolling/internal/domain"
	"github.com/guatepass/tolling/internal/eventbus"
	"github.com/guatepass/tolling/internal/fare"
	"github.com/guatepass/tolling/internal/history"
	"github.com/guatepass/tolling/internal/ingestion"
	"github.com/guatepass/tolling/internal/notify"
	"github.com/guatepass/tolling/internal/pipeline"
	"github.com/guatepass/tolling/internal/repository"
	"github.com/guatepass/tolling/internal/resolver"
	"github.com/guatepass/tolling/internal/settlement"
	"github.com/guatepass/tolling/internal/tags"
)

// App is the wired settlement stack shared by the server and the CLI.
type App struct {
	DB           *sql.DB
	Users        *repository.UserRepo
	Transactions *repository.TransactionRepo
	Invoices     *repository.InvoiceRepo
	Pipeline     *pipeline.Pipeline
	Tags         *tags.Service
	History      *history.Service

	cfg    config.Config
	logger *slog.Logger
}

// New opens the database and builds every component from cfg.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	lowBalance, err := decimal.NewFromString(cfg.Billing.LowBalanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("low balance threshold %q: %w", cfg.Billing.LowBalanceThreshold, err)
	}

	rates := fare.DefaultRates()
	if cfg.Billing.RatesFile != "" {
		if rates, err = fare.LoadRates(cfg.Billing.RatesFile); err != nil {
			return nil, err
		}
		logger.Info("fare rates loaded", "path", cfg.Billing.RatesFile, "toll_points", len(rates)-1)
	}

	logger.Info("initializing database", "path", cfg.Database.Path)
	db, err := repository.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	a := &App{
		DB:           db,
		Users:        repository.NewUserRepo(db, logger.With("component", "directory"), cfg.Pipeline.DebitRetries),
		Transactions: repository.NewTransactionRepo(db),
		Invoices:     repository.NewInvoiceRepo(db),
		cfg:          cfg,
		logger:       logger,
	}

	sender := notify.NewLogSender(logger)
	orch, err := settlement.NewOrchestrator(settlement.Dependencies{
		Transactions: a.Transactions,
		Invoices:     a.Invoices,
		Balances:     a.Users,
		Notifier:     notify.New(sender, sender, lowBalance, logger),
	}, settlement.Options{
		StageTimeout: cfg.Pipeline.StageTimeout,
		NodeID:       cfg.Invoice.NodeID,
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	a.Pipeline = pipeline.New(
		resolver.New(a.Users, resolver.Policy{Tier2Surcharge: cfg.Billing.Tier2Surcharge}, logger),
		fare.NewCalculator(rates, cfg.Billing.Tier2Surcharge),
		orch,
		logger,
	)
	a.Tags = tags.NewService(a.Users, logger)
	a.History = history.NewService(a.Invoices, a.Transactions)
	return a, nil
}

// NewBus returns an unstarted event bus that feeds the pipeline.
func (a *App) NewBus() *eventbus.Bus {
	return eventbus.New(a.Pipeline.Handle, eventbus.Options{
		Workers:       a.cfg.Pipeline.Workers,
		QueueSize:     a.cfg.Pipeline.QueueSize,
		MaxDeliveries: a.cfg.Pipeline.MaxDeliveries,
	}, a.logger)
}

// Ingestion returns the ingestion service publishing to p.
func (a *App) Ingestion(p ingestion.Publisher) *ingestion.Service {
	return ingestion.NewService(p, a.Users, a.logger)
}

// SyncPublisher settles each crossing before Publish returns. The CLI uses it
// in place of the bus.
type SyncPublisher struct {
	Pipeline *pipeline.Pipeline
	Results  []*settlement.Result
}

func (p *SyncPublisher) Publish(ctx context.Context, event domain.TollCrossingEvent) error {
	res, err := p.Pipeline.Process(ctx, event)
	if err != nil {
		return err
	}
	p.Results = append(p.Results, res)
	return nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
