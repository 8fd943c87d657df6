package slurm

import (
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

type Config struct {
	Logger *slog.Logger `json:"-"`
	// Commands, looked up in the PATH of the login node when not absolute
	Sbatch  string `json:"sbatch"`
	Squeue  string `json:"squeue"`
	Scancel string `json:"scancel"`
	// Partitions jobs may ask for, any partition is accepted when empty
	Queues []string `json:"queues"`
	// Partition used when a job does not ask for one
	DefaultQueue string `json:"default-queue"`
}

func (c Config) withDefaults() Config {
	c.Sbatch = lo.Ternary(c.Sbatch != "", c.Sbatch, "sbatch")
	c.Squeue = lo.Ternary(c.Squeue != "", c.Squeue, "squeue")
	c.Scancel = lo.Ternary(c.Scancel != "", c.Scancel, "scancel")
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func Validate(config Config) error {
	if len(lo.FindDuplicates(config.Queues)) > 0 {
		return fmt.Errorf("queues must be unique")
	}
	if config.DefaultQueue != "" && len(config.Queues) > 0 && !lo.Contains(config.Queues, config.DefaultQueue) {
		return fmt.Errorf("default-queue '%s' must be one of the queues", config.DefaultQueue)
	}
	return nil
}
