package main

import (
	"context"
	"fmt"
	"strings"

	"fdep/internal/database"
	"fdep/internal/deployment"

	"github.com/spf13/cobra"
)

// taskArgs are the parsed arguments of one task invocation.
type taskArgs struct {
	extra  []string
	flags  map[string]bool
	format database.Format
}

func (a taskArgs) joined() string {
	return strings.Join(a.extra, " ")
}

// task describes one deployment task command. nargs is the number of
// positional arguments after the target, -1 for one or more.
type task struct {
	name    string
	aliases []string
	short   string
	usage   string
	nargs   int
	flags   []string
	format  bool
	run     func(ctx context.Context, d *deployment.Deployer, a taskArgs) error
}

var flagUsage = map[string]string{
	"upgrade":    "Upgrade packages instead of installing pinned versions",
	"skip-npm":   "Skip installing node modules",
	"skip-check": "Skip the local pre-flight check",
	"delete":     "Delete local files missing on the server",
}

var tasks = []task{
	{
		name:  "deploy",
		short: "Deploy the source branch to every host",
		flags: []string{"upgrade", "skip-npm", "skip-check"},
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Deploy(ctx, deployment.DeployOptions{
				Upgrade:   a.flags["upgrade"],
				SkipNPM:   a.flags["skip-npm"],
				SkipCheck: a.flags["skip-check"],
			})
		},
	},
	{
		name:    "check",
		aliases: []string{"c"},
		short:   "Run Django checks and tests locally",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Check(ctx)
		},
	},
	{
		name:    "check-urls",
		aliases: []string{"cu"},
		short:   "Check that every urls_to_check entry answers 200",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.CheckURLs(ctx)
		},
	},
	{
		name:  "pull",
		short: "Reset the remote checkout to the source branch",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Pull(ctx)
		},
	},
	{
		name:  "pip-install",
		short: "Install Python requirements",
		flags: []string{"upgrade"},
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.PipInstall(ctx, a.flags["upgrade"])
		},
	},
	{
		name:  "npm",
		short: "Install node modules with npm",
		flags: []string{"upgrade"},
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.NPM(ctx, a.flags["upgrade"])
		},
	},
	{
		name:  "yarn",
		short: "Install node modules with yarn",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Yarn(ctx)
		},
	},
	{
		name:    "gulp",
		aliases: []string{"g"},
		short:   "Run the production gulp build",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Gulp(ctx)
		},
	},
	{
		name:  "migrate",
		short: "Apply database migrations",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Migrate(ctx)
		},
	},
	{
		name:  "manage",
		short: "Run a Django management command",
		usage: "COMMAND...",
		nargs: -1,
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Manage(ctx, a.joined())
		},
	},
	{
		name:  "venv-run",
		short: "Run a command inside the virtualenv",
		usage: "COMMAND...",
		nargs: -1,
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.VenvRun(ctx, a.joined())
		},
	},
	{
		name:    "clean",
		aliases: []string{"cl"},
		short:   "Clear sessions and caches, recompile bytecode",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Clean(ctx)
		},
	},
	{
		name:  "shell-plus",
		short: "Open an interactive shell_plus session",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.ShellPlus(ctx)
		},
	},
	{
		name:  "dumpdata",
		short: "Write a JSON fixture of every model on the server",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.DumpData(ctx)
		},
	},
	{
		name:    "backup",
		aliases: []string{"dumpdb"},
		short:   "Dump the database into data/backup",
		format:  true,
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Backup(ctx, a.format)
		},
	},
	{
		name:  "restore",
		short: "Load a database dump on the server",
		usage: "FILE",
		nargs: 1,
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Restore(ctx, a.extra[0])
		},
	},
	{
		name:    "drop-schema",
		aliases: []string{"drop"},
		short:   "Drop and recreate the public schema as root",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.DropSchema(ctx)
		},
	},
	{
		name:  "get-media",
		short: "Copy data/media from the server",
		flags: []string{"delete"},
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.GetMedia(ctx, a.flags["delete"])
		},
	},
	{
		name:  "get-dumps",
		short: "Copy data/backup from the server",
		flags: []string{"delete"},
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.GetDumps(ctx, a.flags["delete"])
		},
	},
	{
		name:    "update-python-tools",
		aliases: []string{"upt"},
		short:   "Upgrade pip and Python tooling",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.UpdatePythonTools(ctx)
		},
	},
	{
		name:    "rebuild-staticfiles",
		aliases: []string{"rs"},
		short:   "Wipe and rebuild static files",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.RebuildStaticfiles(ctx)
		},
	},
	{
		name:  "rebuild-virtualenv",
		short: "Recreate the virtualenv, stopping the application meanwhile",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.RebuildVirtualenv(ctx)
		},
	},
	{
		name:  "supervisorctl",
		short: "Apply a supervisorctl action to the application group",
		usage: "ACTION",
		nargs: 1,
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Supervisorctl(ctx, a.extra[0])
		},
	},
	{
		name:  "start",
		short: "Start the application group",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Start(ctx)
		},
	},
	{
		name:  "stop",
		short: "Stop the application group",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Stop(ctx)
		},
	},
	{
		name:    "restart",
		aliases: []string{"r"},
		short:   "Restart the application group",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Restart(ctx)
		},
	},
	{
		name:    "graceful-restart",
		aliases: []string{"gr"},
		short:   "Reload gunicorn and celery with HUP",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.GracefulRestart(ctx)
		},
	},
	{
		name:  "kill",
		short: "Force-kill gunicorn and celery",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Kill(ctx)
		},
	},
	{
		name:  "kill-celery",
		short: "Kill every celery worker process",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.KillCelery(ctx)
		},
	},
	{
		name:    "status",
		aliases: []string{"s"},
		short:   "Show process and service status",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.Status(ctx)
		},
	},
	{
		name:  "register-deployment",
		short: "Record the local HEAD as a GitHub deployment",
		run: func(ctx context.Context, d *deployment.Deployer, a taskArgs) error {
			return d.RegisterDeployment(ctx)
		},
	},
}

func taskCommands() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(tasks))
	for _, t := range tasks {
		cmds = append(cmds, t.command())
	}
	return cmds
}

func (t task) command() *cobra.Command {
	use := t.name + " TARGET"
	if t.usage != "" {
		use += " " + t.usage
	}

	var format string
	cmd := &cobra.Command{
		Use:     use,
		Aliases: t.aliases,
		Short:   t.short,
		Args:    t.positional(),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := taskArgs{extra: args[1:], flags: make(map[string]bool)}
			for _, name := range t.flags {
				v, err := parseBool(name, cmd.Flag(name).Value.String())
				if err != nil {
					return err
				}
				a.flags[name] = v
			}
			if t.format {
				f, err := database.ParseFormat(format)
				if err != nil {
					return err
				}
				a.format = f
			}
			return runTask(args[0], t.name, func(ctx context.Context, d *deployment.Deployer) error {
				return t.run(ctx, d, a)
			})
		},
	}

	for _, name := range t.flags {
		cmd.Flags().String(name, "false", flagUsage[name])
		cmd.Flags().Lookup(name).NoOptDefVal = "true"
	}
	if t.format {
		cmd.Flags().StringVar(&format, "format", string(database.FormatCustom), "Dump format: custom or plain")
	}
	return cmd
}

func (t task) positional() cobra.PositionalArgs {
	switch {
	case t.nargs < 0:
		return cobra.MinimumNArgs(2)
	case t.nargs > 0:
		return cobra.ExactArgs(1 + t.nargs)
	}
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("%s takes exactly one target name, got %d arguments", t.name, len(args))
		}
		return nil
	}
}
