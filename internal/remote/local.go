package remote

import (
	"context"
	"fmt"
	"strings"

	"fdep/pkg/cmdutil"
)

// Local runs commands on the operator's machine with bash. The host
// argument is ignored.
type Local struct {
	// Dir is used when a command has no directory of its own.
	Dir string
}

// NewLocal creates a local transport rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{Dir: dir}
}

func (l *Local) Exec(ctx context.Context, _ Host, cmd Command) (*cmdutil.Result, error) {
	dir := cmd.Dir
	cmd.Dir = ""
	if dir == "" {
		dir = l.Dir
	}

	opts := cmdutil.ExecOptions{
		Dir:    dir,
		Stdin:  cmd.Stdin,
		Stream: cmd.Stream,
	}
	result, err := cmdutil.Run(ctx, opts, []string{"/bin/bash", "-c", cmd.Script()})
	if err != nil {
		// the script embeds exported values
		msg := cmdutil.SanitizeOutput([]byte(err.Error()), envValues(cmd.Env))
		return result, fmt.Errorf("[local] %s", msg)
	}
	return result, nil
}

func envValues(env []string) []string {
	values := make([]string, 0, len(env))
	for _, kv := range env {
		if _, v, ok := strings.Cut(kv, "="); ok && v != "" {
			values = append(values, v)
		}
	}
	return values
}

func (l *Local) Close() error { return nil }
