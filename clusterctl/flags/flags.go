package flags

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	Config       = "config"
	LogFormat    = "log-format"
	LogLevel     = "log-level"
	LogSource    = "log-source"
	Backend      = "backend"
	PollInterval = "poll-interval"

	SlurmSbatch       = "slurm-sbatch"
	SlurmSqueue       = "slurm-squeue"
	SlurmScancel      = "slurm-scancel"
	SlurmQueues       = "slurm-queues"
	SlurmDefaultQueue = "slurm-default-queue"

	SshAddress    = "ssh-address"
	SshUsername   = "ssh-username"
	SshKeyFile    = "ssh-key-file"
	SshKnownHosts = "ssh-known-hosts"
	SshTimeout    = "ssh-timeout"

	StandaloneCPUs = "standalone-cpus"
)

const (
	BackendSlurm      = "slurm"
	BackendStandalone = "standalone"
)

func Register(flags *flag.FlagSet) {
	// clusterctl
	flags.String(Config, "", "YAML file to read the configuration from")
	flags.String(LogFormat, "text", "log format (json, text)")
	flags.String(LogLevel, "WARN", "minimum log level")
	flags.Bool(LogSource, false, "add source code location to logs")
	flags.String(Backend, BackendStandalone, "cluster backend to use (slurm, standalone)")
	flags.Duration(PollInterval, 5*time.Second, "how often to ask the cluster about a waiting job")

	// SLURM
	flags.String(SlurmSbatch, "sbatch", "sbatch command on the login node")
	flags.String(SlurmSqueue, "squeue", "squeue command on the login node")
	flags.String(SlurmScancel, "scancel", "scancel command on the login node")
	flags.StringSlice(SlurmQueues, nil, "partitions jobs may ask for (any when empty)")
	flags.String(SlurmDefaultQueue, "", "partition of the jobs which do not ask for one")

	// SSH
	flags.String(SshAddress, "", "address of the SLURM login node")
	flags.String(SshUsername, "", "ssh username on the login node")
	flags.String(SshKeyFile, "", "private key used to connect to the login node")
	flags.String(SshKnownHosts, "", "known_hosts file used to verify the login node")
	flags.Duration(SshTimeout, 10*time.Second, "timeout of the ssh connection")

	// Standalone
	flags.Int(StandaloneCPUs, runtime.NumCPU(), "CPUs the jobs may use")
}

// Init binds the flags to viper, then to the BATCHD_ environment variables
// and to the configuration file when one is given.
func Init(flags *flag.FlagSet) error {
	viper.SetEnvPrefix("batchd")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(viper.BindPFlags(flags))

	if file := viper.GetString(Config); file != "" {
		viper.SetConfigFile(file)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	switch backend := viper.GetString(Backend); backend {
	case BackendSlurm, BackendStandalone:
		return nil
	default:
		return fmt.Errorf("unknown backend '%s'", backend)
	}
}
