package deployment

import (
	"context"
	"fmt"
	"path"
	"strings"

	"fdep/internal/database"
	"fdep/internal/remote"
	"fdep/internal/security"
	"fdep/internal/target"
	"fdep/pkg/cmdutil"
)

const (
	manage              = "python src/manage.py"
	requirementsFile    = "requirements/production.txt"
	fixtureBackupDir    = "data/deployment_backup"
	bowerNonInteractive = "--config.interactive=false"
)

// Pull resets the remote checkout to source_branch.
func (d *Deployer) Pull(ctx context.Context) error {
	return d.eachHost(ctx, d.pull)
}

func (d *Deployer) pull(ctx context.Context, s *remote.Session) error {
	d.Console.Info("Pulling from git")
	branch := d.Target.SourceBranch
	for _, line := range []string{
		"git reset --hard",
		"git checkout " + branch,
		"git pull --no-edit origin " + branch,
		"git submodule update --quiet --recursive",
	} {
		if err := s.Run(ctx, line); err != nil {
			return err
		}
	}

	if d.revision == "" {
		if rev, err := s.Output(ctx, "git rev-parse HEAD"); err == nil && rev != "" {
			d.revision = rev
		}
	}

	d.done()
	return nil
}

// PipInstall installs the production requirements into the virtualenv.
func (d *Deployer) PipInstall(ctx context.Context, upgrade bool) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return d.pipInstall(ctx, s, upgrade)
	})
}

func (d *Deployer) pipInstall(ctx context.Context, s *remote.Session, upgrade bool) error {
	d.Console.Info("Installing pip dependencies")
	line := "pip install --no-input --compile --exists-action=i"
	if upgrade {
		line += " --upgrade"
	}
	line += " -r " + requirementsFile
	if err := s.Venv(ctx, line); err != nil {
		return err
	}
	d.done()
	return nil
}

// NPM installs node modules with npm.
func (d *Deployer) NPM(ctx context.Context, upgrade bool) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return d.npm(ctx, s, upgrade)
	})
}

func (d *Deployer) npm(ctx context.Context, s *remote.Session, upgrade bool) error {
	d.Console.Info("Installing node_modules")
	lines := []string{"npm set progress=false", "npm install --no-optional"}
	if upgrade {
		lines = append(lines, "npm update --no-optional")
	}
	lines = append(lines, "npm set progress=true")
	for _, line := range lines {
		if err := s.Run(ctx, line); err != nil {
			return err
		}
	}
	d.done()
	return nil
}

// Yarn installs node modules with yarn.
func (d *Deployer) Yarn(ctx context.Context) error {
	return d.eachHost(ctx, d.yarn)
}

func (d *Deployer) yarn(ctx context.Context, s *remote.Session) error {
	d.Console.Info("Installing node_modules using yarn")
	if err := s.Run(ctx, "yarn install"); err != nil {
		return err
	}
	d.done()
	return nil
}

func (d *Deployer) bower(ctx context.Context, s *remote.Session, upgrade bool) error {
	d.Console.Info("Installing bower dependencies")
	action := "install"
	if upgrade {
		action = "update"
	}
	// bower may not be installed
	if err := s.RunWarn(ctx, "bower prune "+bowerNonInteractive); err != nil {
		return err
	}
	return s.RunWarn(ctx, "bower "+action+" "+bowerNonInteractive)
}

// Gulp runs the production asset build.
func (d *Deployer) Gulp(ctx context.Context) error {
	return d.eachHost(ctx, d.gulp)
}

func (d *Deployer) gulp(ctx context.Context, s *remote.Session) error {
	d.Console.Info("Starting gulp build")
	if err := s.Run(ctx, "gulp clean"); err != nil {
		return err
	}
	if err := s.Run(ctx, "gulp build --production"); err != nil {
		return err
	}
	d.done()
	return nil
}

// Migrate applies migrations to the default and every extra database.
func (d *Deployer) Migrate(ctx context.Context) error {
	return d.eachHost(ctx, d.migrate)
}

func (d *Deployer) migrate(ctx context.Context, s *remote.Session) error {
	d.Console.Info("Migrating database")
	if err := s.Venv(ctx, manage+" migrate --noinput"); err != nil {
		return err
	}
	for _, db := range d.Target.ExtraDatabases {
		if err := s.Venv(ctx, fmt.Sprintf("%s migrate --noinput --database %s", manage, db)); err != nil {
			return err
		}
	}
	d.done()
	return nil
}

// Manage runs a Django management command.
func (d *Deployer) Manage(ctx context.Context, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return fmt.Errorf("management command cannot be empty")
	}
	if _, err := cmdutil.ParseCommandString(command); err != nil {
		return err
	}
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		d.Console.Info("Running Django management command")
		if err := s.Venv(ctx, manage+" "+command); err != nil {
			return err
		}
		d.done()
		return nil
	})
}

// VenvRun runs an arbitrary command inside the virtualenv.
func (d *Deployer) VenvRun(ctx context.Context, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if _, err := cmdutil.ParseCommandString(command); err != nil {
		return err
	}
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return s.Venv(ctx, command)
	})
}

// Clean clears sessions and caches and recompiles bytecode.
func (d *Deployer) Clean(ctx context.Context) error {
	return d.eachHost(ctx, d.clean)
}

func (d *Deployer) clean(ctx context.Context, s *remote.Session) error {
	d.Console.Info("Cleaning Django project")
	if d.Target.ClearCache {
		if err := s.Venv(ctx, manage+" clearsessions"); err != nil {
			return err
		}
		if err := s.Venv(ctx, manage+" clear_cache"); err != nil {
			return err
		}
	}
	if err := s.VenvWarn(ctx, manage+" thumbnail clear"); err != nil {
		return err
	}
	if err := s.Venv(ctx, manage+" clean_pyc --optimize --path=src/"); err != nil {
		return err
	}
	if err := s.Venv(ctx, manage+" compile_pyc --path=src/"); err != nil {
		return err
	}
	d.done()
	return nil
}

// ShellPlus opens an interactive shell_plus session.
func (d *Deployer) ShellPlus(ctx context.Context) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		d.Console.Info("Running IPython")
		_, err := s.Exec(ctx, remote.Command{
			Line:        manage + " shell_plus",
			Venv:        s.VenvPath,
			Interactive: true,
		})
		if err != nil {
			return err
		}
		d.done()
		return nil
	})
}

// DumpData writes a JSON fixture of every model into
// data/deployment_backup.
func (d *Deployer) DumpData(ctx context.Context) error {
	ts := d.now().UTC().Format(database.TimestampLayout)
	output := path.Join(fixtureBackupDir, ts+"-dump.json")

	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		d.Console.Info("Creating backup")
		if err := s.Run(ctx, "mkdir -p "+fixtureBackupDir); err != nil {
			return err
		}
		if err := s.Venv(ctx, fmt.Sprintf("%s dumpdata --format json --all --indent=3 --output %s", manage, output)); err != nil {
			return err
		}
		d.done()
		return nil
	})
}

// Backup dumps the database with the target's engine.
func (d *Deployer) Backup(ctx context.Context, format database.Format) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		_, err := d.database(s).Backup(ctx, format)
		return err
	})
}

// Restore loads a dump file on every host.
func (d *Deployer) Restore(ctx context.Context, file string) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return d.database(s).Restore(ctx, file)
	})
}

// DropSchema recreates the public schema, connecting as root.
func (d *Deployer) DropSchema(ctx context.Context) error {
	if d.Root == nil {
		return fmt.Errorf("drop schema needs a root connection")
	}
	for _, host := range d.Hosts {
		if err := d.database(d.session(d.Root, host)).DropSchema(ctx); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePythonTools upgrades pip and the tooling packages.
func (d *Deployer) UpdatePythonTools(ctx context.Context) error {
	return d.eachHost(ctx, d.updatePythonTools)
}

func (d *Deployer) updatePythonTools(ctx context.Context, s *remote.Session) error {
	d.Console.Info("Updating Python tools")
	if err := s.Venv(ctx, "python -m pip install --upgrade pip"); err != nil {
		return err
	}
	if err := s.Venv(ctx, "pip install --no-input --exists-action=i --upgrade setuptools wheel ipython ipdb"); err != nil {
		return err
	}
	d.done()
	return nil
}

// RebuildStaticfiles wipes and regenerates data/static after confirmation.
func (d *Deployer) RebuildStaticfiles(ctx context.Context) error {
	if !d.Console.Confirm("Are you sure you want to rebuild all staticfiles?", false) {
		return fmt.Errorf("rebuild: %w", target.ErrCancelled)
	}

	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		d.Console.Info("Rebuilding staticfiles")
		if err := s.Run(ctx, "rm -rf data/static"); err != nil {
			return err
		}
		if err := s.Venv(ctx, manage+" collectstatic --noinput"); err != nil {
			return err
		}
		if err := s.Run(ctx, "bower install "+bowerNonInteractive); err != nil {
			return err
		}
		if err := d.gulp(ctx, s); err != nil {
			return err
		}
		if err := s.Venv(ctx, manage+" compress"); err != nil {
			return err
		}
		d.done()
		return nil
	})
}

// RebuildVirtualenv stops the application, recreates the virtualenv and
// starts it again, after confirmation.
func (d *Deployer) RebuildVirtualenv(ctx context.Context) error {
	venvDir := strings.TrimSuffix(d.Target.VenvPath, "/bin/activate")
	if venvDir == d.Target.VenvPath || venvDir == "" || venvDir == "/" || venvDir == "~" {
		return fmt.Errorf("cannot derive virtualenv directory from venv_path %q", d.Target.VenvPath)
	}

	if !d.Console.Confirm("Are you sure you want to rebuild virtualenv? This will stop and start your app.", false) {
		return fmt.Errorf("rebuild: %w", target.ErrCancelled)
	}

	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		ctl := d.controller(s)
		if err := ctl.Stop(ctx); err != nil {
			return err
		}

		d.Console.Info("Rebuilding virtualenv")
		if err := s.Run(ctx, "rm -rf "+venvDir); err != nil {
			return err
		}
		if err := s.Run(ctx, "virtualenv "+venvDir); err != nil {
			return err
		}
		if err := d.updatePythonTools(ctx, s); err != nil {
			return err
		}
		if err := ctl.Start(ctx); err != nil {
			return err
		}
		d.done()
		return nil
	})
}

// Supervisorctl applies an arbitrary supervisorctl action to the group.
func (d *Deployer) Supervisorctl(ctx context.Context, action string) error {
	if err := security.ValidateIdentifier("supervisorctl action", action); err != nil {
		return err
	}
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		if err := d.controller(s).Supervisorctl(ctx, action); err != nil {
			return err
		}
		d.done()
		return nil
	})
}

// Start starts the supervisor group.
func (d *Deployer) Start(ctx context.Context) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return d.controller(s).Start(ctx)
	})
}

// Stop stops the supervisor group.
func (d *Deployer) Stop(ctx context.Context) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return d.controller(s).Stop(ctx)
	})
}

// Restart restarts the supervisor group.
func (d *Deployer) Restart(ctx context.Context) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return d.controller(s).Restart(ctx)
	})
}

// GracefulRestart reloads the processes with HUP.
func (d *Deployer) GracefulRestart(ctx context.Context) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return d.controller(s).GracefulRestart(ctx)
	})
}

// Kill force-kills gunicorn and celery.
func (d *Deployer) Kill(ctx context.Context) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return d.controller(s).Kill(ctx)
	})
}

// KillCelery kills every celery worker process.
func (d *Deployer) KillCelery(ctx context.Context) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return d.controller(s).KillCelery(ctx)
	})
}

// Status reports process and service status.
func (d *Deployer) Status(ctx context.Context) error {
	return d.eachHost(ctx, func(ctx context.Context, s *remote.Session) error {
		return d.controller(s).Status(ctx)
	})
}
