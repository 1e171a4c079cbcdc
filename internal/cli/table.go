package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
)

// TableRow is one outcome's chance for one variant.
type TableRow struct {
	Variant     model.Variant `json:"variant"`
	Kind        outcome.Kind  `json:"outcome"`
	Weight      float64       `json:"weight"`
	Probability float64       `json:"probability"`
}

// NewTableCommand creates the table command.
func NewTableCommand(rootOpts *RootOptions) *cobra.Command {
	var boost float64

	cmd := &cobra.Command{
		Use:          "table",
		Short:        "Print the outcome weights and probabilities",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := outcome.LoadTable(rootOpts.Config.Outcomes.TablePath)
			if err != nil {
				return err
			}
			rows := tableRows(t, boost)
			return newFormatter(rootOpts, cmd.OutOrStdout()).Emit(rows, func(w io.Writer) error {
				return printTable(w, rows)
			})
		},
	}

	cmd.Flags().Float64Var(&boost, "boost", 0, "atlas influence foil chance boost")

	return cmd
}

func tableRows(t *outcome.Table, boost float64) []TableRow {
	var rows []TableRow
	for _, v := range []model.Variant{model.VariantNormal, model.VariantFoil} {
		probs := t.Probabilities(v, boost)
		for _, w := range t.Applicable(v) {
			weight := w.Weight
			if w.Kind == outcome.KindFoil && boost > 0 {
				weight += boost * outcome.FoilBoostScale
			}
			rows = append(rows, TableRow{Variant: v, Kind: w.Kind, Weight: weight, Probability: probs[w.Kind]})
		}
	}
	return rows
}

func printTable(w io.Writer, rows []TableRow) error {
	var last model.Variant
	for _, r := range rows {
		if r.Variant != last {
			fmt.Fprintf(w, "%s:\n", r.Variant)
			last = r.Variant
		}
		fmt.Fprintf(w, "  %-12s %6.1f  %5.1f%%\n", r.Kind, r.Weight, r.Probability*100)
	}
	return nil
}
