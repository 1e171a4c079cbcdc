package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/settings"
)

// ForceOutput is the JSON form of the forced outcome setting.
type ForceOutput struct {
	ForcedOutcome string `json:"forced_outcome"`
}

// NewForceCommand creates the force command.
func NewForceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "force [kind|random]",
		Short: "Show or set the forced vaal outcome",
		Long: fmt.Sprintf(`Show or set the outcome every vaal produces, for testing.

Kinds: %v. "random" restores weighted sampling.`, outcome.AllKinds()),
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := settingsStore(rootOpts.Config)
			if len(args) == 1 {
				if err := settings.SetForcedOutcome(st, args[0]); err != nil {
					return err
				}
			}
			v, err := settings.ForcedOutcome(st)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Emit(ForceOutput{ForcedOutcome: v}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "forced outcome: %s\n", v)
				return err
			})
		},
	}
}
