package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stampd-network/stampd/internal/api"
	"github.com/stampd-network/stampd/internal/app/issuance"
	"github.com/stampd-network/stampd/internal/app/migration"
	"github.com/stampd-network/stampd/internal/app/redemption"
	"github.com/stampd-network/stampd/internal/app/watch"
	"github.com/stampd-network/stampd/internal/infra/sqlite"
	"github.com/stampd-network/stampd/internal/store"
)

// Run boots the daemon and blocks until ctx is cancelled or a component
// fails. All wiring lives here; the components themselves know nothing
// about each other beyond their interfaces.
func Run(ctx context.Context, cfg Config) error {
	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("stampd starting",
		zap.String("version", api.Version),
		zap.String("addr", cfg.Addr()),
	)

	entities := store.New()

	// Decision journal (optional).
	var journal *sqlite.DB
	if cfg.Journal.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0700); err != nil {
			return fmt.Errorf("create journal directory: %w", err)
		}
		journal, err = sqlite.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journal.Close()
		log.Info("decision journal open", zap.String("path", cfg.Journal.Path))
	}

	// The services take nil journals when journaling is off; a typed nil
	// inside the interface would dodge their nil checks.
	var issJournal issuance.Journal
	var redJournal redemption.Journal
	var migJournal migration.Journal
	if journal != nil {
		issJournal, redJournal, migJournal = journal, journal, journal
	}

	iss := issuance.New(entities, issJournal, log)
	red := redemption.New(entities, redJournal, redemption.Config{
		TTLSeconds: cfg.Redemption.TTLSeconds,
		Tick:       time.Second,
	}, log)
	defer red.Close()
	mig := migration.New(entities, migJournal, log)

	watcher := watch.New(entities, time.Duration(cfg.Watch.IntervalMS)*time.Millisecond, log)

	if cfg.Demo.Seed {
		seedDemo(entities, log)
	}

	srv := api.NewServer(entities, iss, red, mig)
	srv.SetWatcher(watcher)
	if journal != nil {
		srv.SetJournal(journal)
	}
	if cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("api listening", zap.String("addr", cfg.Addr()))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("stampd stopped")
	return err
}

// newLogger builds the production zap logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// seedDemo creates a demo store, card, and reward so a fresh install has
// something to exercise the flows against.
func seedDemo(entities *store.Store, log *zap.Logger) {
	shop := entities.CreateStore("Demo Cafe")
	card, _ := entities.CreateCard(shop.ID, 10, "Free americano")
	reward := entities.CreateReward("demo-wallet", "Free americano")

	log.Info("demo data seeded",
		zap.String("store_id", shop.ID),
		zap.String("card_id", card.ID),
		zap.String("reward_id", reward.ID),
	)
}
