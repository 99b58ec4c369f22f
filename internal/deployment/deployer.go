package deployment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"fdep/internal/console"
	"fdep/internal/database"
	"fdep/internal/health"
	"fdep/internal/history"
	"fdep/internal/localgit"
	"fdep/internal/notify"
	"fdep/internal/remote"
	"fdep/internal/supervisor"
	"fdep/internal/target"
)

// Registrar records a finished deployment outside fdep.
type Registrar interface {
	Register(ctx context.Context, d notify.Deployment) (int64, error)
}

// Deployer runs tasks against every host of one target.
type Deployer struct {
	Target  *target.Target
	Hosts   []remote.Host
	Remote  remote.Transport
	Local   remote.Transport
	Console *console.Console
	Logger  *slog.Logger

	// Root connects as root for schema operations. Optional.
	Root remote.Transport
	// Health checks urls_to_check. Optional, defaults to a checker with
	// the target's TLS setting.
	Health *health.Checker
	// History records every tracked task. Optional.
	History *history.History
	// Registrar is used for GitHub deployments. When nil, one is created
	// from the target's token variable.
	Registrar Registrar
	// WorkDir is the local project checkout.
	WorkDir string
	// KnownHosts is passed to rsync's ssh.
	KnownHosts string
	Now        func() time.Time

	revision string
}

// New creates a deployer for t.
func New(t *target.Target, remoteTransport, localTransport remote.Transport, c *console.Console, logger *slog.Logger) (*Deployer, error) {
	hosts, err := remote.ParseHosts(t.Hosts)
	if err != nil {
		return nil, fmt.Errorf("target '%s': %w", t.Name, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		Target:  t,
		Hosts:   hosts,
		Remote:  remoteTransport,
		Local:   localTransport,
		Console: c,
		Logger:  logger.With("target", t.Name),
		WorkDir: ".",
	}, nil
}

func (d *Deployer) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Deployer) session(transport remote.Transport, host remote.Host) *remote.Session {
	return &remote.Session{
		Transport: transport,
		Host:      host,
		Dir:       d.Target.DeployPath,
		VenvPath:  d.Target.VenvPath,
		Env:       d.Target.Env(),
		Console:   d.Console,
		Logger:    d.Logger.With("host", host.String()),
	}
}

func (d *Deployer) localSession() *remote.Session {
	return &remote.Session{
		Transport: d.Local,
		Host:      remote.Host{Name: "localhost"},
		Dir:       d.WorkDir,
		Env:       d.Target.Env(),
		Console:   d.Console,
		Logger:    d.Logger.With("host", "localhost"),
	}
}

func (d *Deployer) controller(s *remote.Session) *supervisor.Controller {
	return &supervisor.Controller{Session: s, Console: d.Console, Target: d.Target}
}

func (d *Deployer) database(s *remote.Session) *database.Manager {
	return &database.Manager{Session: s, Console: d.Console, Target: d.Target, Now: d.now}
}

// eachHost runs fn against every host in order and stops at the first
// failure.
func (d *Deployer) eachHost(ctx context.Context, fn func(ctx context.Context, s *remote.Session) error) error {
	for _, host := range d.Hosts {
		if err := fn(ctx, d.session(d.Remote, host)); err != nil {
			if len(d.Hosts) > 1 {
				return fmt.Errorf("[%s] %w", host, err)
			}
			return err
		}
	}
	return nil
}

// Track runs a task and records its outcome in the history database.
func (d *Deployer) Track(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	started := d.now()
	err := fn(ctx)

	if d.History == nil {
		return err
	}

	completed := d.now()
	duration := completed.Sub(started).Seconds()
	record := &history.Record{
		Target:          d.Target.Name,
		Operation:       operation,
		Hosts:           d.Target.HostsString(),
		Branch:          d.Target.SourceBranch,
		Status:          history.StatusSuccess,
		StartedAt:       started,
		CompletedAt:     &completed,
		DurationSeconds: &duration,
	}
	if d.revision != "" {
		rev := d.revision
		record.Revision = &rev
	}
	if err != nil {
		record.Status = history.StatusFailed
		if errors.Is(err, target.ErrCancelled) {
			record.Status = history.StatusCancelled
		}
		msg := err.Error()
		record.ErrorMessage = &msg
	}

	if _, herr := d.History.Record(ctx, record); herr != nil {
		d.Logger.Warn("failed to record history", "operation", operation, "error", herr)
	}
	return err
}

// localRevision reads HEAD of the local checkout.
func (d *Deployer) localRevision() (localgit.Revision, error) {
	repo, err := localgit.Open(d.WorkDir)
	if err != nil {
		return localgit.Revision{}, err
	}
	return repo.Head()
}

func (d *Deployer) registrar(ctx context.Context) (Registrar, error) {
	if d.Registrar != nil {
		return d.Registrar, nil
	}
	token := os.Getenv(d.Target.GitHubTokenEnv)
	if token == "" {
		return nil, fmt.Errorf("environment variable %s is not set", d.Target.GitHubTokenEnv)
	}
	return notify.NewRegistrar(ctx, token), nil
}

func (d *Deployer) done() {
	d.Console.Done()
}
