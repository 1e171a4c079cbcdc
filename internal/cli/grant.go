package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/pkg/db"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/pkg/lock"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/repository"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/service"
)

// GrantOptions holds flags for the grant command.
type GrantOptions struct {
	Orbs     int64
	CardID   string
	Foil     bool
	Count    int
	Atlas    float64
	AtlasTTL time.Duration
}

func (o *GrantOptions) empty() bool {
	return o.Orbs == 0 && o.CardID == "" && o.Atlas == 0
}

// NewGrantCommand creates the grant command.
func NewGrantCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GrantOptions{}

	cmd := &cobra.Command{
		Use:   "grant <username>",
		Short: "Give a user vaal orbs, cards or atlas influence",
		Long: `Give a user vaal orbs, copies of a card or an atlas influence buff.
Writes directly to the server database.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.empty() {
				return fmt.Errorf("nothing to grant: use --orbs, --card or --atlas")
			}
			return runGrant(cmd.Context(), rootOpts, opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int64Var(&opts.Orbs, "orbs", 0, "vaal orbs to add")
	cmd.Flags().StringVar(&opts.CardID, "card", "", "card template to add")
	cmd.Flags().BoolVar(&opts.Foil, "foil", false, "add foil copies of --card")
	cmd.Flags().IntVar(&opts.Count, "count", 1, "copies of --card to add")
	cmd.Flags().Float64Var(&opts.Atlas, "atlas", 0, "atlas influence foil chance boost in (0, 1]")
	cmd.Flags().DurationVar(&opts.AtlasTTL, "atlas-ttl", time.Hour, "atlas influence lifetime")

	return cmd
}

func runGrant(ctx context.Context, rootOpts *RootOptions, opts *GrantOptions, username string, w io.Writer) error {
	cfg := rootOpts.Config
	engine, cat, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := repository.NewStore(pool.Pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	svc := service.NewAltarService(store, engine, cat, nil, lock.NewUserLock(), service.AltarOptions{
		InitialOrbs: cfg.Server.InitialOrbs,
		LockTimeout: cfg.Server.LockTimeout,
	})
	if err := svc.SyncCatalogue(ctx); err != nil {
		return err
	}

	if opts.Orbs != 0 {
		if _, err := svc.GrantOrbs(ctx, username, opts.Orbs); err != nil {
			return err
		}
	}
	if opts.CardID != "" {
		if err := svc.GrantCard(ctx, username, opts.CardID, opts.Foil, opts.Count); err != nil {
			return err
		}
	}
	if opts.Atlas != 0 {
		if err := svc.GrantAtlasInfluence(ctx, username, opts.Atlas, opts.AtlasTTL); err != nil {
			return err
		}
	}

	col, err := svc.Collection(ctx, username)
	if err != nil {
		return err
	}
	return newFormatter(rootOpts, w).Emit(col, func(w io.Writer) error {
		fmt.Fprintf(w, "%s: %d vaal orb(s)\n", col.Username, col.VaalOrbs)
		for _, e := range col.Entries {
			fmt.Fprintf(w, "  %-24s normal %d  foil %d\n", e.CardID, e.NormalCount, e.FoilCount)
		}
		return nil
	})
}
