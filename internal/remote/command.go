package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"fdep/pkg/cmdutil"
)

// DefaultSSHPort is used when a host has no ":port" suffix.
const DefaultSSHPort = 22

// Host is a deployment host.
type Host struct {
	Name string
	Port int
}

// ParseHost parses "name" or "name:port".
func ParseHost(s string) (Host, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Host{}, fmt.Errorf("empty host")
	}

	name, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// no port
		return Host{Name: strings.Trim(s, "[]"), Port: DefaultSSHPort}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Host{}, fmt.Errorf("invalid port in host %q", s)
	}
	return Host{Name: name, Port: port}, nil
}

// ParseHosts parses every host of a target.
func ParseHosts(hosts []string) ([]Host, error) {
	parsed := make([]Host, 0, len(hosts))
	for _, h := range hosts {
		host, err := ParseHost(h)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, host)
	}
	return parsed, nil
}

// Address returns the dialable host:port.
func (h Host) Address() string {
	port := h.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(h.Name, strconv.Itoa(port))
}

func (h Host) String() string {
	if h.Port == 0 || h.Port == DefaultSSHPort {
		return h.Name
	}
	return h.Address()
}

// Command is one shell command line plus the context it runs in.
type Command struct {
	Line string
	Dir  string
	// Env entries are "KEY=value" pairs exported before Line runs.
	Env  []string
	Venv string

	// WarnOnly marks a command whose failure is reported but not fatal.
	WarnOnly bool
	// Interactive allocates a terminal and connects Stdin.
	Interactive bool

	Stdin  io.Reader
	Stream io.Writer
}

// Script renders the command as a single shell line:
//
//	cd DIR && export K=V && source VENV && LINE
func (c Command) Script() string {
	var parts []string
	if c.Dir != "" {
		parts = append(parts, "cd "+quotePath(c.Dir))
	}
	for _, kv := range c.Env {
		k, v, _ := strings.Cut(kv, "=")
		parts = append(parts, "export "+k+"="+shellquote.Join(v))
	}
	if c.Venv != "" {
		parts = append(parts, "source "+quotePath(c.Venv))
	}
	parts = append(parts, c.Line)
	return strings.Join(parts, " && ")
}

// quotePath quotes p for the shell, leaving a leading "~/" unquoted so the
// remote shell still expands it.
func quotePath(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return "~/" + shellquote.Join(rest)
	}
	return shellquote.Join(p)
}

// Wrapped renders the script as a login bash invocation.
func (c Command) Wrapped() string {
	return "/bin/bash -l -c " + shellquote.Join(c.Script())
}

// Transport executes commands on hosts.
type Transport interface {
	Exec(ctx context.Context, host Host, cmd Command) (*cmdutil.Result, error)
	Close() error
}
