package main

import (
	"github.com/fatih/color"
	"github.com/gammadia/batchd/cluster"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel JOB...",
	Short: "Cancel submitted jobs",
	Args:  cobra.MinimumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if err := cluster.ValidDependencyID(id); err != nil {
				return err
			}
		}

		c, err := connectSlurm(cmd.Context())
		if err != nil {
			return err
		}

		jobs := lo.Map(args, func(id string, _ int) *cluster.Job {
			return &cluster.Job{ClusterID: id}
		})
		if err := c.Cancel(cmd.Context(), jobs); err != nil {
			return err
		}

		for _, id := range args {
			cmd.PrintErrln(color.HiGreenString("Canceled job %s", id))
		}
		return nil
	},
}
