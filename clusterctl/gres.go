package main

import (
	"strings"

	"github.com/gammadia/batchd/gres"
	"github.com/spf13/cobra"
)

var gresCmd = &cobra.Command{
	Use:   "gres SPEC...",
	Short: "Check generic resource specifications and show their counts",
	Args:  cobra.MinimumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := gres.ParseAll(strings.Join(args, ","))
		if err != nil {
			return err
		}

		for _, g := range all {
			kind := g.Type
			if kind == "" {
				kind = "-"
			}
			cmd.Printf("%-24s name=%s type=%s count=%d\n", g.String(), g.Name, kind, g.Expand())
		}
		return nil
	},
}
