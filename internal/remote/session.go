package remote

import (
	"context"
	"log/slog"
	"strings"

	"fdep/internal/console"
	"fdep/pkg/cmdutil"
)

// Session runs commands on one host with a target's defaults.
type Session struct {
	Transport Transport
	Host      Host
	// Dir is the working directory of every command, usually deploy_path.
	Dir      string
	VenvPath string
	Env      []string
	Console  *console.Console
	Logger   *slog.Logger
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Exec runs cmd, filling in the session defaults it leaves empty. A failed
// WarnOnly command is reported and its error dropped.
func (s *Session) Exec(ctx context.Context, cmd Command) (*cmdutil.Result, error) {
	if cmd.Dir == "" {
		cmd.Dir = s.Dir
	}
	if cmd.Env == nil {
		cmd.Env = s.Env
	}
	if cmd.Stream == nil && s.Console != nil && !cmd.Interactive {
		cmd.Stream = s.Console.Indented(4)
	}
	if cmd.Interactive && cmd.Stream == nil && s.Console != nil {
		cmd.Stream = s.Console.Writer()
	}

	verb := "run"
	if cmd.Venv != "" {
		verb = "venv"
	}
	if s.Console != nil {
		s.Console.Print("[%s] %s: %s\n", s.Host, verb, cmd.Line)
	}

	result, err := s.Transport.Exec(ctx, s.Host, cmd)

	attrs := []any{"host", s.Host.String(), "command", cmd.Line}
	if result != nil {
		attrs = append(attrs, "exit_code", result.ExitCode, "duration", result.Duration)
	}
	if err != nil {
		if cmd.WarnOnly {
			s.logger().Warn("command failed (non-fatal)", append(attrs, "error", err)...)
			if s.Console != nil {
				s.Console.Warn("Warning: %s failed, continuing", firstWord(cmd.Line))
			}
			return result, nil
		}
		s.logger().Error("command failed", append(attrs, "error", err)...)
		return result, err
	}
	s.logger().Debug("command finished", attrs...)
	return result, nil
}

// Run runs line in the session directory.
func (s *Session) Run(ctx context.Context, line string) error {
	_, err := s.Exec(ctx, Command{Line: line})
	return err
}

// RunWarn runs line and only warns when it fails.
func (s *Session) RunWarn(ctx context.Context, line string) error {
	_, err := s.Exec(ctx, Command{Line: line, WarnOnly: true})
	return err
}

// Venv runs line with the target's virtualenv activated.
func (s *Session) Venv(ctx context.Context, line string) error {
	_, err := s.Exec(ctx, Command{Line: line, Venv: s.VenvPath})
	return err
}

// VenvWarn runs line in the virtualenv and only warns when it fails.
func (s *Session) VenvWarn(ctx context.Context, line string) error {
	_, err := s.Exec(ctx, Command{Line: line, Venv: s.VenvPath, WarnOnly: true})
	return err
}

// Output runs line without streaming and returns its trimmed output.
func (s *Session) Output(ctx context.Context, line string) (string, error) {
	result, err := s.Transport.Exec(ctx, s.Host, Command{Line: line, Dir: s.Dir, Env: s.Env})
	if result == nil {
		return "", err
	}
	return strings.TrimSpace(string(result.Output)), err
}

func firstWord(line string) string {
	if fields := strings.Fields(line); len(fields) > 0 {
		return fields[0]
	}
	return line
}
