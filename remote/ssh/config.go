package ssh

import (
	"fmt"
	"log/slog"
	"time"
)

type Config struct {
	Logger *slog.Logger `json:"-"`
	// host[:port] of the login node, port 22 by default
	Address  string `json:"address"`
	Username string `json:"username"`
	// Private key used to authenticate
	KeyFile string `json:"key-file"`
	// known_hosts file used to verify the login node, host keys are not
	// verified when empty
	KnownHostsFile string        `json:"known-hosts-file"`
	Timeout        time.Duration `json:"timeout"`
	KeepAlive      time.Duration `json:"keep-alive"`
}

func Validate(config Config) error {
	if config.Address == "" {
		return fmt.Errorf("address is required")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required")
	}
	if config.KeyFile == "" {
		return fmt.Errorf("key-file is required")
	}
	return nil
}
