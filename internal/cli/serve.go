package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/matchmaker/internal/candidate"
	"github.com/evcraddock/matchmaker/internal/config"
	"github.com/evcraddock/matchmaker/internal/db"
	"github.com/evcraddock/matchmaker/internal/email"
	"github.com/evcraddock/matchmaker/internal/events"
	"github.com/evcraddock/matchmaker/internal/intake"
	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/ledger"
	"github.com/evcraddock/matchmaker/internal/listing"
	"github.com/evcraddock/matchmaker/internal/logging"
	"github.com/evcraddock/matchmaker/internal/match"
	"github.com/evcraddock/matchmaker/internal/notify"
	"github.com/evcraddock/matchmaker/internal/scheduler"
	"github.com/evcraddock/matchmaker/internal/scoring"
	"github.com/evcraddock/matchmaker/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the matchmaker service",
		Long:  "Start the HTTP API. The Kafka trigger consumer and the scheduled sweep also run when configured.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}
			if err := logging.Setup(cfg.LogLevel, cfg.DevMode); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (default: from config)")

	return cmd
}

// app holds the wired services.
type app struct {
	db      *sql.DB
	ledger  ledger.Store
	intake  *intake.Service
	server  *web.Server
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closing resource", "error", err)
		}
	}
}

// buildApp opens storage and wires the match, notify and intake services.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		var err error
		dbPath, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	a := &app{db: database, closers: []func() error{database.Close}}

	switch cfg.Ledger.Backend {
	case config.BackendRedis:
		rdb, err := ledger.DialRedis(ctx, cfg.Ledger.RedisAddr, cfg.Ledger.RedisPassword, cfg.Ledger.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		a.ledger = ledger.NewRedisStore(rdb, ledger.DefaultRedisPrefix)
	default:
		a.ledger = ledger.NewSQLiteStore(database)
	}

	investors := investor.NewRepository(database)
	listings := listing.NewRepository(database)

	scorer := scoring.NewScorer(cfg.Scoring.Weights, cfg.Scoring.Thresholds)
	generator := candidate.NewGenerator(candidate.RepositoryStore{Investors: investors, Listings: listings})
	engine := match.NewEngine(generator, scorer, match.Config{Workers: cfg.Match.Workers})

	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	if cfg.SMTP.IsConfigured() {
		dispatcher = email.NewDispatcher(cfg.SMTP)
	} else {
		slog.Warn("SMTP not configured; match notifications will only be logged")
	}

	policy := cfg.Ledger.Policy()
	notifier := notify.NewService(engine, a.ledger, dispatcher, notify.Config{
		MinOverall: cfg.Notify.MinOverall,
		ClaimTTL:   cfg.Ledger.ClaimTTL,
		Policy:     &policy,
	})
	a.intake = intake.NewService(investors, listings, a.ledger, notifier)

	a.server = web.NewServer(web.Deps{
		Investors: investors,
		Listings:  listings,
		Engine:    engine,
		Notifier:  notifier,
		Intake:    a.intake,
		Ledger:    a.ledger,
	})

	slog.Info("matchmaker ready", "db", dbPath, "ledger", cfg.Ledger.Backend, "smtp", cfg.SMTP.IsConfigured())
	return a, nil
}

// runServe runs the API server and the optional background workers until
// ctx is cancelled or one of them fails.
func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.ListenAndServe(ctx, cfg.HTTP.Port)
	})

	if cfg.Kafka.Enabled() {
		consumer := events.NewConsumer(events.NewReader(cfg.Kafka), a.intake)
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	}

	if cfg.Scheduler.Sweep != "" {
		runner := scheduler.New()
		if err := runner.ScheduleSweep(ctx, cfg.Scheduler.Sweep, a.intake); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		g.Go(func() error {
			return runner.Run(ctx)
		})
	}

	return g.Wait()
}
