package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gammadia/batchd/clusterctl/flags"
	"github.com/gammadia/batchd/clusterctl/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

var noSpinner bool

var clusterctlCmd = &cobra.Command{
	Use:   "clusterctl",
	Short: "clusterctl submits batch jobs to SLURM or runs them on this machine.",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := flags.Init(cmd.Root().PersistentFlags()); err != nil {
			return err
		}
		return log.Init()
	},

	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return disconnect()
	},
}

func init() {
	clusterctlCmd.AddCommand(cancelCmd)
	clusterctlCmd.AddCommand(gresCmd)
	clusterctlCmd.AddCommand(reasonCmd)
	clusterctlCmd.AddCommand(resultCmd)
	clusterctlCmd.AddCommand(runCmd)
	clusterctlCmd.AddCommand(submitCmd)
	clusterctlCmd.AddCommand(versionCmd)

	flags.Register(clusterctlCmd.PersistentFlags())
	clusterctlCmd.PersistentFlags().BoolVar(&noSpinner, "no-spinner", false, "do not animate while waiting")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clusterctlCmd.SetOut(os.Stdout)
	if err := clusterctlCmd.ExecuteContext(ctx); err != nil {
		_ = disconnect()
		lo.Must(fmt.Fprintln(os.Stderr, color.HiRedString(fmt.Sprint(err))))
		os.Exit(1)
	}
}
