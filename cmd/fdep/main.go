package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fdep/internal/console"
	"fdep/internal/security"
	"fdep/internal/settings"
	"fdep/pkg/fileutil"

	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var (
	configFile   string
	settingsFile string
	logLevel     string
	workDir      string
	noColor      bool
	assumeYes    bool
)

// app holds what every command shares once flags are parsed.
var app struct {
	settings *settings.Settings
	logger   *slog.Logger
	console  *console.Console
	logClose io.Closer
}

var rootCmd = &cobra.Command{
	Use:   "fdep",
	Short: "Deployment task runner for Django projects",
	Long: `fdep runs deployment tasks for a Django project against the targets
declared in deploy.json.

Every task takes the target name as its first argument:

  fdep deploy production --upgrade
  fdep manage staging showmigrations`,
	Version:           toolVersion(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Custom usage template that encourages 'help' subcommand pattern
const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

Additional Commands:{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} help [command]" for more information about a command.{{end}}
`

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// execute runs the root command and closes the log file on every exit path.
func execute() error {
	defer closeLog()
	return rootCmd.Execute()
}

func closeLog() {
	if app.logClose != nil {
		app.logClose.Close()
		app.logClose = nil
	}
}

func init() {
	rootCmd.SetUsageTemplate(usageTemplate)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", getEnvOrDefault("FDEP_CONFIG", ""), "Path to deploy.json (default: search the working directory and its parent)")
	flags.StringVar(&settingsFile, "settings", getEnvOrDefault("FDEP_SETTINGS", settings.DefaultPath()), "Path to user settings file")
	flags.StringVar(&logLevel, "log-level", getEnvOrDefault("FDEP_LOG_LEVEL", ""), "Log level: debug, info, warn, error (default from settings)")
	flags.StringVarP(&workDir, "workdir", "C", getEnvOrDefault("FDEP_WORKDIR", "."), "Local project checkout")
	flags.BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "Disable colored output")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to target confirmation prompts")

	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	for _, cmd := range taskCommands() {
		rootCmd.AddCommand(cmd)
	}
}

// setup loads the user settings and configures logging and the console.
func setup(cmd *cobra.Command, args []string) error {
	st, err := settings.Load(settingsFile)
	if err != nil {
		return err
	}
	app.settings = st

	level := st.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, closer, err := setupLogging(st.Log.File, level)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	app.logger = logger
	app.logClose = closer
	slog.SetDefault(logger)

	app.console = console.New(cmd.InOrStdin(), cmd.OutOrStdout())
	if noColor {
		app.console.SetColor(false)
	}
	return nil
}

// setupLogging writes JSON logs to logPath when set, otherwise text logs to
// stderr. The returned closer is nil when no file was opened.
func setupLogging(logPath, level string) (*slog.Logger, io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if logPath == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil, nil
	}

	if dir := filepath.Dir(logPath); !fileutil.DirExists(dir) {
		if err := security.CreateSecureDir(dir, security.PermDirectory); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	file, err := security.OpenAppendFile(logPath, security.PermLogFile)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewJSONHandler(file, opts)), file, nil
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseBool accepts the task flag spellings: true/false in any case.
func parseBool(name, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true":
		return true, nil
	case "false", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q for --%s: use true or false", value, name)
}
