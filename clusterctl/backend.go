package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gammadia/batchd/cluster"
	"github.com/gammadia/batchd/clusterctl/flags"
	"github.com/gammadia/batchd/clusterctl/log"
	"github.com/gammadia/batchd/remote/ssh"
	"github.com/gammadia/batchd/slurm"
	"github.com/gammadia/batchd/standalone"
	"github.com/spf13/viper"
)

var errStandaloneOnly = errors.New("standalone jobs only live as long as the command which submitted them, use the slurm backend")

var closeRemote func() error

// connect returns the cluster selected by the flags.
func connect(ctx context.Context) (cluster.Cluster, error) {
	if viper.GetString(flags.Backend) != flags.BackendSlurm {
		config := standalone.Config{
			Logger: log.Base,
			CPUs:   viper.GetInt(flags.StandaloneCPUs),
		}
		if err := standalone.Validate(config); err != nil {
			return nil, fmt.Errorf("invalid standalone config: %w", err)
		}
		return standalone.New(standalone.NewExecLauncher(log.Base), config), nil
	}

	config := slurm.Config{
		Logger:       log.Base.With("component", "slurm"),
		Sbatch:       viper.GetString(flags.SlurmSbatch),
		Squeue:       viper.GetString(flags.SlurmSqueue),
		Scancel:      viper.GetString(flags.SlurmScancel),
		Queues:       viper.GetStringSlice(flags.SlurmQueues),
		DefaultQueue: viper.GetString(flags.SlurmDefaultQueue),
	}
	if err := slurm.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid slurm config: %w", err)
	}

	log.Debug("Connecting to the login node", "address", viper.GetString(flags.SshAddress))
	remote, err := ssh.Dial(ctx, ssh.Config{
		Logger:         log.Base,
		Address:        viper.GetString(flags.SshAddress),
		Username:       viper.GetString(flags.SshUsername),
		KeyFile:        viper.GetString(flags.SshKeyFile),
		KnownHostsFile: viper.GetString(flags.SshKnownHosts),
		Timeout:        viper.GetDuration(flags.SshTimeout),
		KeepAlive:      30 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	closeRemote = remote.Close

	return slurm.New(remote, config), nil
}

// connectSlurm is for the commands which act on jobs submitted earlier.
func connectSlurm(ctx context.Context) (*slurm.Cluster, error) {
	if viper.GetString(flags.Backend) != flags.BackendSlurm {
		return nil, errStandaloneOnly
	}
	c, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	return c.(*slurm.Cluster), nil
}

func disconnect() error {
	if closeRemote == nil {
		return nil
	}
	closer := closeRemote
	closeRemote = nil
	return closer()
}
