package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/altar"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/config"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/syncqueue"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/transport/natsbus"
)

// VaalOptions holds flags for the vaal command.
type VaalOptions struct {
	Foil  bool
	Local bool
}

// VaalOutput is the JSON form of a vaal.
type VaalOutput struct {
	Username    string           `json:"username"`
	OperationID string           `json:"operation_id,omitempty"`
	Decision    outcome.Decision `json:"decision"`
	Synced      bool             `json:"synced"`
	VaalOrbs    int64            `json:"vaal_orbs"`
	Error       string           `json:"error,omitempty"`
}

// NewVaalCommand creates the vaal command.
func NewVaalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VaalOptions{}

	cmd := &cobra.Command{
		Use:   "vaal <username> <card-id>",
		Short: "Corrupt one card at the altar",
		Long: `Corrupt one copy of a card. By default the server decides the outcome;
with --local the outcome is rolled here and committed afterwards.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVaal(cmd.Context(), rootOpts, opts, args[0], args[1], cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Foil, "foil", false, "corrupt a foil copy")
	cmd.Flags().BoolVar(&opts.Local, "local", false, "roll the outcome locally instead of on the server")

	return cmd
}

func runVaal(ctx context.Context, rootOpts *RootOptions, opts *VaalOptions, username, cardID string, w io.Writer) error {
	cfg := rootOpts.Config
	engine, cat, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	policy, err := outcome.ParsePolicy(cfg.Outcomes.ForcedPolicy)
	if err != nil {
		return err
	}

	nc, err := natsbus.Connect(&cfg.NATS)
	if err != nil {
		return err
	}
	defer nc.Close()

	client := altar.NewClient(engine, cat, settingsStore(cfg), natsbus.NewClient(nc, cfg.NATS.RequestTimeout), altar.Options{
		Authoritative: cfg.Outcomes.Authoritative && !opts.Local,
		Policy:        policy,
		RNG:           randomSource(&cfg.Outcomes),
		Queue:         queueOptions(&cfg.Sync),
	})
	defer client.Close()

	if _, err := client.Load(ctx, username); err != nil {
		return err
	}

	res, err := client.Vaal(ctx, username, cardID, opts.Foil)
	if err != nil {
		return err
	}

	out := VaalOutput{Username: username, Decision: res.Decision, Synced: true}
	var syncErr error
	if res.Pending != nil {
		out.OperationID = res.Pending.ID()
		if _, syncErr = res.Pending.Wait(ctx); syncErr != nil {
			out.Synced = false
			out.Error = syncErr.Error()
		}
	}
	q, err := client.Queue(username)
	if err != nil {
		return err
	}
	out.VaalOrbs = q.State().Currency()

	f := newFormatter(rootOpts, w)
	if err := f.Emit(out, func(w io.Writer) error {
		return printVaal(w, out)
	}); err != nil {
		return err
	}
	return syncErr
}

func printVaal(w io.Writer, out VaalOutput) error {
	d := out.Decision
	name := d.Card.Name
	if name == "" {
		name = d.Card.ID
	}
	if d.Card.Foil {
		name = "foil " + name
	}
	fmt.Fprintf(w, "%s vaaled %s: %s\n", out.Username, name, d.Kind)
	if d.ResultCard != nil && d.ResultCard.ID != d.Card.ID {
		fmt.Fprintf(w, "  became %s\n", d.ResultCard.Name)
	}
	if d.BoostConsumed {
		fmt.Fprintln(w, "  atlas influence consumed")
	}
	if out.Synced {
		fmt.Fprintf(w, "  synced, %d vaal orb(s) left\n", out.VaalOrbs)
	} else {
		fmt.Fprintf(w, "  sync failed, local state rolled back: %s\n", out.Error)
	}
	return nil
}

func queueOptions(cfg *config.SyncConfig) syncqueue.Options {
	return syncqueue.Options{
		Capacity:      cfg.QueueCapacity,
		CommitTimeout: cfg.CommitTimeout,
	}
}
