package main

import (
	"github.com/gammadia/batchd/cluster"
	"github.com/spf13/cobra"
)

var reasonCmd = &cobra.Command{
	Use:   "reason JOB",
	Short: "Explain why a submitted job is not running yet",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connectSlurm(cmd.Context())
		if err != nil {
			return err
		}

		reason, err := c.WaitingReason(cmd.Context(), &cluster.LaunchResult{JobID: args[0]})
		if err != nil {
			return err
		}
		if reason == "" {
			cmd.Printf("Job %s is not waiting\n", args[0])
		} else {
			cmd.Println(reason)
		}
		return nil
	},
}
