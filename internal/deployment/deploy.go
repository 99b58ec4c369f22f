package deployment

import (
	"context"
	"fmt"

	"fdep/internal/database"
	"fdep/internal/health"
	"fdep/internal/notify"
	"fdep/internal/remote"
)

// DeployOptions are the flags of the deploy task.
type DeployOptions struct {
	Upgrade   bool
	SkipNPM   bool
	SkipCheck bool
}

// Check runs the local pre-flight: worktree status, Django system checks,
// template validation and the test suite.
func (d *Deployer) Check(ctx context.Context) error {
	d.Console.Info("Checking local project")

	if rev, err := d.localRevision(); err != nil {
		d.Console.Warn("Warning: git status unavailable: %v", err)
	} else {
		d.Logger.Info("local revision", "revision", rev.Describe())
	}
	d.warnLocalChanges()

	s := d.localSession()
	if err := s.Run(ctx, manage+" check --deploy"); err != nil {
		return err
	}
	if err := s.RunWarn(ctx, manage+" validate_templates"); err != nil {
		return err
	}

	tests := manage + " test --noinput"
	if d.Target.Pytest {
		tests = "pytest src/ --verbose --color=yes --showlocals"
	}
	if err := s.Run(ctx, tests); err != nil {
		return err
	}

	d.done()
	return nil
}

// CheckURLs requests every urls_to_check entry and fails when any of them
// does not answer 200.
func (d *Deployer) CheckURLs(ctx context.Context) error {
	checker := d.Health
	if checker == nil {
		checker = health.NewChecker(0, d.Target.VerifySSL)
	}

	_, err := checker.Check(ctx, d.Target.URLsToCheck, func(r health.Result) {
		d.Console.Print("Checking `%s`\n", r.URL)
		if !r.OK() {
			d.Console.Error("%s", r)
		}
		d.Logger.Info("url checked", "url", r.URL, "status", r.StatusCode, "duration", r.Duration, "ok", r.OK())
	})
	if err != nil {
		return err
	}
	d.done()
	return nil
}

// RegisterDeployment records the deployed revision as a GitHub deployment.
// Outside a deploy run the local HEAD is used.
func (d *Deployer) RegisterDeployment(ctx context.Context) error {
	if d.Target.GitHubRepository == "" {
		return fmt.Errorf("github_repository is not set for target '%s'", d.Target.Name)
	}

	rev := d.revision
	branch := d.Target.SourceBranch
	if rev == "" {
		local, err := d.localRevision()
		if err != nil {
			return err
		}
		rev = local.Hash
		if local.Branch != "" {
			branch = local.Branch
		}
	}

	reg, err := d.registrar(ctx)
	if err != nil {
		return err
	}

	deployment := notify.Deployment{
		Repository:  d.Target.GitHubRepository,
		Revision:    rev,
		Branch:      branch,
		Environment: d.Target.GitHubEnv(),
	}
	if len(d.Target.URLsToCheck) > 0 {
		deployment.URL = d.Target.URLsToCheck[0]
	}

	id, err := reg.Register(ctx, deployment)
	if err != nil {
		return err
	}
	d.Logger.Info("deployment registered", "repository", deployment.Repository, "id", id, "revision", rev)
	d.Console.Success("Registered deployment %d on %s", id, deployment.Repository)
	return nil
}

// hostSteps builds the remote part of a deploy for one host.
func (d *Deployer) hostSteps(s *remote.Session, opts DeployOptions) *Pipeline {
	t := d.Target
	p := NewPipeline(s.Logger, d.Console)
	step := func(name string, fn func(ctx context.Context, s *remote.Session) error) Step {
		return NewStep(name, func(ctx context.Context) error { return fn(ctx, s) })
	}

	if t.BackupDB {
		p.Add(NewStep("backup", func(ctx context.Context) error {
			_, err := d.database(s).Backup(ctx, database.FormatCustom)
			return err
		}))
	} else {
		d.Console.Warn("Database was not backed up!")
	}

	p.Add(step("pull", d.pull))

	switch {
	case t.YarnEnabled:
		p.Add(step("yarn", d.yarn))
	case !opts.SkipNPM:
		p.Add(NewStep("npm", func(ctx context.Context) error { return d.npm(ctx, s, opts.Upgrade) }))
	default:
		d.Console.Warn("NPM skipped!")
	}

	p.Add(NewStep("bower", func(ctx context.Context) error { return d.bower(ctx, s, opts.Upgrade) }))
	if t.GulpEnabled {
		p.Add(step("gulp", d.gulp))
	}
	p.Add(NewStep("pip-install", func(ctx context.Context) error { return d.pipInstall(ctx, s, opts.Upgrade) }))

	p.Add(NewStep("collectstatic", func(ctx context.Context) error {
		d.Console.Info("Running Django commands")
		return s.Venv(ctx, manage+" collectstatic --noinput")
	}))
	if t.CompressEnabled {
		p.Add(NewStep("compress", func(ctx context.Context) error {
			return s.Venv(ctx, manage+" compress")
		}))
	}

	p.Add(step("migrate", d.migrate))
	p.Add(step("clean", d.clean))
	p.Add(NewStep("compilemessages", func(ctx context.Context) error {
		return s.Venv(ctx, "cd src && python manage.py compilemessages")
	}))
	p.Add(NewStep("check-deploy", func(ctx context.Context) error {
		return s.Venv(ctx, manage+" check --deploy")
	}))

	ctl := d.controller(s)
	if t.GracefulRestart {
		p.Add(NewStep("restart", ctl.GracefulRestart))
	} else {
		p.Add(NewStep("restart", func(ctx context.Context) error {
			d.Console.Info("Restarting application group")
			return ctl.Supervisorctl(ctx, "restart")
		}))
	}
	p.Add(NewStep("status", ctl.Status))

	return p
}

// Deploy runs the full deployment: local pre-flight, then per host backup,
// source update, dependencies, Django tasks and restart, then URL checks
// and GitHub registration.
func (d *Deployer) Deploy(ctx context.Context, opts DeployOptions) error {
	start := d.now()
	d.revision = ""

	d.Console.Notice("Deployment started")

	if opts.SkipCheck {
		d.Console.Warn("CHECK skipped!")
	} else if err := d.Check(ctx); err != nil {
		return fmt.Errorf("pre-flight check failed: %w", err)
	}

	for _, host := range d.Hosts {
		s := d.session(d.Remote, host)
		if err := d.hostSteps(s, opts).Run(ctx); err != nil {
			return fmt.Errorf("[%s] %w", host, err)
		}
	}

	post := NewPipeline(d.Logger, d.Console)
	post.Add(NewStep("check-urls", d.CheckURLs))
	if d.Target.GitHubRepository != "" {
		post.Add(BestEffort(NewStep("register-deployment", d.RegisterDeployment)))
	}
	if err := post.Run(ctx); err != nil {
		return err
	}

	d.Console.Ruler()
	d.Console.Success("Deployed :-)")
	d.Console.Ruler()
	d.Console.Print("%-10s %8d seconds\n", "Total time:", int(d.now().Sub(start).Seconds()))
	d.Console.Ruler()
	return nil
}
