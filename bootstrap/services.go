package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ImagingSolutions/UsageMonitor/adapters/hasher"
	"github.com/ImagingSolutions/UsageMonitor/adapters/memory"
	"github.com/ImagingSolutions/UsageMonitor/adapters/postgres"
	"github.com/ImagingSolutions/UsageMonitor/adapters/sqlite"
	"github.com/ImagingSolutions/UsageMonitor/app"
	"github.com/ImagingSolutions/UsageMonitor/config"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// Services holds the application services over one store. The server and
// the CLI share it.
type Services struct {
	Store      ports.Store
	Accountant *app.Accountant
	Usage      *app.UsageService
	Directory  *app.Directory
}

// NewServices builds the services. observer may be nil.
func NewServices(store ports.Store, cfg *config.Config, clock ports.Clock, logger zerolog.Logger, observer app.Observer) *Services {
	return &Services{
		Store: store,
		Accountant: app.NewAccountant(app.AccountantDeps{
			Accounts: store.Accounts(),
			Ledger:   store.Ledger(),
			Logs:     store.Logs(),
			Clock:    clock,
			Logger:   logger,
			Observer: observer,
		}, PolicyFrom(cfg.Accounting)),
		Usage: app.NewUsageService(store.Accounts(), store.Ledger(), store.Logs(), clock),
		Directory: app.NewDirectory(app.DirectoryDeps{
			Accounts: store.Accounts(),
			Ledger:   store.Ledger(),
			Admins:   store.Admins(),
			Hasher:   hasher.NewBcrypt(cfg.Admin.BcryptCost),
			Clock:    clock,
			Logger:   logger,
		}),
	}
}

// PolicyFrom converts accounting settings to an accountant policy.
// Unset values keep the defaults.
func PolicyFrom(cfg config.AccountingConfig) app.Policy {
	p := app.DefaultPolicy()
	p.LogRejections = cfg.ShouldLogRejections()
	if cfg.MaxChargeAttempts > 0 {
		p.MaxChargeAttempts = cfg.MaxChargeAttempts
	}
	if cfg.RetryDelay > 0 {
		p.RetryDelay = cfg.RetryDelay
	}
	if cfg.RecordTimeout > 0 {
		p.RecordTimeout = cfg.RecordTimeout
	}
	return p
}

// OpenStore opens and migrates the configured storage engine.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (ports.Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return sqlite.NewStore(db), nil

	case "postgres":
		db, err := postgres.Open(ctx, postgres.Options{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return postgres.New(db), nil

	case "memory":
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", meter.ErrInvalidConfiguration, cfg.Driver)
	}
}
