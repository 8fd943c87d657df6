package main

import (
	"fmt"
	"strconv"

	"github.com/gammadia/batchd/cluster"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var resultCmd = &cobra.Command{
	Use:   "result JOB [INDEX]",
	Short: "Print the output of an ended job, or of one element of a job array",
	Long:  "Print the output of an ended job, or of one element of a job array. The output is deleted from the cluster once printed.",
	Args:  cobra.RangeArgs(1, 2),

	RunE: func(cmd *cobra.Command, args []string) error {
		index := cluster.NoArrayIndex
		if len(args) == 2 {
			var err error
			if index, err = strconv.Atoi(args[1]); err != nil || index < 1 {
				return fmt.Errorf("invalid array index '%s'", args[1])
			}
		}

		c, err := connectSlurm(cmd.Context())
		if err != nil {
			return err
		}

		job := &cluster.Job{ClusterID: args[0], Dir: lo.Must(cmd.Flags().GetString("dir"))}
		result, err := c.JobResult(cmd.Context(), job, index)
		if err != nil {
			return err
		}

		printResult(cmd, args[0], index, result)
		if result.Type != cluster.ResultSuccess {
			return fmt.Errorf("job %s did not succeed", args[0])
		}
		return nil
	},
}

func init() {
	resultCmd.Flags().String("dir", "", "working directory the job was submitted with")
	lo.Must0(resultCmd.MarkFlagRequired("dir"))
}
