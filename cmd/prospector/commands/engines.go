package commands

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/prospector/internal/engine"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List supported search engines in default fallback order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, name := range engine.Names() {
			desc, err := engine.Lookup(name)
			if err != nil {
				return err
			}
			order := "-"
			if i := slices.Index(engine.DefaultOrder, name); i >= 0 {
				order = fmt.Sprint(i + 1)
			}
			fmt.Fprintf(out, "%s  %-8s max %2d pages  %s\n", order, name, desc.MaxPages, desc.SearchURL("example", 0))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enginesCmd)
}
