// Package ssh implements remote.Remote over an SSH connection to a login node.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alessio/shellescape"
	"github.com/gammadia/batchd/remote"
	"github.com/gammadia/batchd/remote/internal"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// notFoundStatus is the exit status of the file commands when the file is missing.
const notFoundStatus = 66

type Remote struct {
	client *ssh.Client
	closed atomic.Bool
	log    *slog.Logger
}

// Remote implements remote.Remote
var _ remote.Remote = (*Remote)(nil)

// Dial connects to the login node, retrying while it refuses connections.
func Dial(ctx context.Context, config Config) (*Remote, error) {
	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid ssh config: %w", err)
	}

	clientConfig, err := clientConfig(config)
	if err != nil {
		return nil, err
	}

	address := config.Address
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, "22")
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	r := &Remote{log: config.Logger.With("component", "ssh", "address", address)}

	r.client, err = internal.Result(ctx, internal.DefaultBackoff, func(attempt int) (*ssh.Client, error) {
		client, err := ssh.Dial("tcp", address, clientConfig)
		if err != nil {
			r.log.Debug(fmt.Errorf("connection to login node refused (attempt %d): %w", attempt, err).Error())
		}
		return client, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to '%s': %w", address, err)
	}

	if config.KeepAlive > 0 {
		go r.keepAlive(config.KeepAlive)
	}

	return r, nil
}

func clientConfig(config Config) (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if config.KnownHostsFile != "" {
		if hostKeyCallback, err = knownhosts.New(config.KnownHostsFile); err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
	}

	return &ssh.ClientConfig{
		User:            config.Username,
		Timeout:         config.Timeout,
		HostKeyCallback: hostKeyCallback,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
	}, nil
}

// keepAlive prevents idle connections from being dropped while jobs run for hours.
func (r *Remote) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if r.closed.Load() {
			return
		}
		if _, _, err := r.client.SendRequest("keepalive@batchd", true, nil); err != nil {
			r.log.Warn("SSH keepalive failed", "error", err)
			return
		}
	}
}

func (r *Remote) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return r.client.Close()
}

// through runs thunk in a new session which is closed when ctx ends.
func (r *Remote) through(ctx context.Context, thunk func(*ssh.Session) error) error {
	session, err := r.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-done:
		}
	}()

	if err := thunk(session); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (r *Remote) Run(ctx context.Context, command string) (output string, err error) {
	r.log.Debug("Running command", "command", command)
	err = r.through(ctx, func(session *ssh.Session) error {
		out, err := session.CombinedOutput(command)
		output = string(out)
		return err
	})
	if err != nil {
		return output, fmt.Errorf("command failed: %w", err)
	}
	return output, nil
}

func (r *Remote) MkDirs(ctx context.Context, dirs ...string) error {
	if len(dirs) == 0 {
		return nil
	}

	return r.through(ctx, func(session *ssh.Session) error {
		if err := session.Run("mkdir -p -- " + shellescape.QuoteCommand(dirs)); err != nil {
			return fmt.Errorf("failed to create directories '%s': %w", strings.Join(dirs, "', '"), err)
		}
		return nil
	})
}

func (r *Remote) Upload(ctx context.Context, path, content string) error {
	return r.through(ctx, func(session *ssh.Session) error {
		session.Stdin = strings.NewReader(content)
		if err := session.Run("cat > " + shellescape.Quote(path)); err != nil {
			return fmt.Errorf("failed to write file '%s': %w", path, err)
		}
		return nil
	})
}

func (r *Remote) Download(ctx context.Context, path string) (content string, err error) {
	err = r.through(ctx, func(session *ssh.Session) error {
		out, err := session.Output(ifExists(path, "cat -- "+shellescape.Quote(path)))
		content = string(out)
		return err
	})
	if err != nil {
		return "", fileError("read", path, err)
	}
	return content, nil
}

func (r *Remote) Delete(ctx context.Context, path string) error {
	err := r.through(ctx, func(session *ssh.Session) error {
		return session.Run(ifExists(path, "rm -f -- "+shellescape.Quote(path)))
	})
	if err != nil {
		return fileError("remove", path, err)
	}
	return nil
}

func (r *Remote) MakeExecutable(ctx context.Context, path string) error {
	err := r.through(ctx, func(session *ssh.Session) error {
		return session.Run(ifExists(path, "chmod +x -- "+shellescape.Quote(path)))
	})
	if err != nil {
		return fileError("chmod", path, err)
	}
	return nil
}

func ifExists(path, command string) string {
	return fmt.Sprintf("[ -e %s ] || exit %d; %s", shellescape.Quote(path), notFoundStatus, command)
}

func fileError(operation, path string, err error) error {
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitStatus() == notFoundStatus {
		err = remote.ErrNotExist
	}
	return fmt.Errorf("failed to %s file '%s': %w", operation, path, err)
}
