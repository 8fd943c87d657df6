package standalone

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"

	"github.com/gammadia/batchd/remote"
	"github.com/gammadia/batchd/remote/local"
)

type Config struct {
	Logger *slog.Logger `json:"-"`
	// Number of CPUs jobs may reserve, all the CPUs of the machine by default
	CPUs int `json:"cpus"`
	// How many random ids are drawn before giving up on finding a free one
	IDAttempts int `json:"id-attempts"`
	// Random source of job ids, must return non-negative numbers
	IDSource func() int64 `json:"-"`
	// Where job files and outputs are read, written and deleted
	Files remote.Remote `json:"-"`
}

const defaultIDAttempts = 100

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.CPUs == 0 {
		c.CPUs = runtime.NumCPU()
	}
	if c.IDAttempts == 0 {
		c.IDAttempts = defaultIDAttempts
	}
	if c.IDSource == nil {
		c.IDSource = rand.Int64
	}
	if c.Files == nil {
		c.Files = local.New("", c.Logger)
	}
	return c
}

func Validate(config Config) error {
	if config.CPUs < 0 {
		return fmt.Errorf("cpus must not be negative")
	}
	if config.IDAttempts < 0 {
		return fmt.Errorf("id-attempts must not be negative")
	}
	return nil
}
