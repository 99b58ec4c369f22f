package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"fdep/internal/deployment"
	"fdep/internal/health"
	"fdep/internal/history"
	"fdep/internal/remote"
	"fdep/internal/target"
)

// loadRegistry reads deploy.json from --config or the working directory.
func loadRegistry() (*target.Registry, error) {
	path := configFile
	if path == "" {
		var err error
		path, err = target.Find(workDir)
		if err != nil {
			return nil, err
		}
	}
	app.logger.Debug("loading deployment config", "path", path)
	return target.Load(path)
}

// confirmTarget prints the target summary and confirms it with the operator
// unless --yes was given.
func confirmTarget(t *target.Target) error {
	if assumeYes {
		target.PrintSummary(app.console, t)
		return nil
	}
	return target.Confirm(app.console, t)
}

func openHistory() (*history.History, error) {
	return history.Open(app.settings.Paths.HistoryDB)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runTask resolves the target, wires the transports and runs fn as a
// tracked operation. The target confirmation is part of the tracked run so
// a declined prompt is recorded as cancelled.
func runTask(name, operation string, fn func(ctx context.Context, d *deployment.Deployer) error) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	t, err := reg.Get(name)
	if err != nil {
		return err
	}

	st := app.settings
	sshConfig := remote.SSHConfig{
		User:       t.User,
		KeyFile:    t.KeyFilename,
		KnownHosts: st.SSH.KnownHosts,
		UseAgent:   st.SSH.UseAgent,
		Timeout:    st.ConnectTimeout(),
	}
	ssh := remote.NewSSH(sshConfig, app.logger)
	defer ssh.Close()

	sshConfig.User = "root"
	root := remote.NewSSH(sshConfig, app.logger)
	defer root.Close()

	dir, err := filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("invalid working directory: %w", err)
	}

	d, err := deployment.New(t, ssh, remote.NewLocal(dir), app.console, app.logger)
	if err != nil {
		return err
	}
	d.Root = root
	d.WorkDir = dir
	d.KnownHosts = st.SSH.KnownHosts
	d.Health = health.NewChecker(st.HTTPTimeout(), t.VerifySSL)

	if hist, err := openHistory(); err != nil {
		app.logger.Warn("history unavailable, run will not be recorded", "error", err)
	} else {
		defer hist.Close()
		d.History = hist
	}

	ctx, stop := signalContext()
	defer stop()

	app.logger.Info("task started", "task", operation, "target", t.Name, "hosts", t.HostsString())
	err = d.Track(ctx, operation, func(ctx context.Context) error {
		if err := confirmTarget(t); err != nil {
			return err
		}
		return fn(ctx, d)
	})
	if err != nil {
		app.logger.Error("task failed", "task", operation, "target", t.Name, "error", err)
		return err
	}
	app.logger.Info("task finished", "task", operation, "target", t.Name)
	return nil
}
