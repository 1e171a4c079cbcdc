package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/config"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/pkg/db"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/pkg/lock"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/repository"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/service"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/transport/natsbus"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authoritative altar server",
		Long: `Run the altar server: decide vaal outcomes, settle client commits and
serve collections over NATS, with PostgreSQL as the store.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts.Config)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	engine, cat, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	policy, err := outcome.ParsePolicy(cfg.Outcomes.ForcedPolicy)
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	log.Info().Msg("Running database migrations...")
	store := repository.NewStore(pool.Pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	altarService := service.NewAltarService(store, engine, cat, settingsStore(cfg), lock.NewUserLock(), service.AltarOptions{
		InitialOrbs: cfg.Server.InitialOrbs,
		LockTimeout: cfg.Server.LockTimeout,
		Policy:      policy,
		RNG:         randomSource(&cfg.Outcomes),
	})
	if err := altarService.SyncCatalogue(ctx); err != nil {
		return err
	}

	nc, err := natsbus.Connect(&cfg.NATS)
	if err != nil {
		return err
	}
	defer nc.Close()

	srv := natsbus.NewServer(nc, altarService, cfg.NATS.QueueGroup, cfg.Sync.CommitTimeout)
	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to drain subscriptions")
	}
	log.Info().Msg("Altar server stopped gracefully")
	return nil
}
