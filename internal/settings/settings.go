package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"fdep/pkg/fileutil"
)

// Settings are per-user tool settings, independent of any deploy.json.
type Settings struct {
	Paths  PathsSettings  `toml:"paths"`
	Log    LogSettings    `toml:"log"`
	SSH    SSHSettings    `toml:"ssh"`
	HTTP   HTTPSettings   `toml:"http"`
	Server ServerSettings `toml:"server"`
}

type PathsSettings struct {
	HistoryDB string `toml:"history_db"`
}

type LogSettings struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

type SSHSettings struct {
	KnownHosts     string `toml:"known_hosts"`
	ConnectTimeout int    `toml:"connect_timeout"`
	UseAgent       bool   `toml:"use_agent"`
}

type HTTPSettings struct {
	Timeout int `toml:"timeout"`
}

type ServerSettings struct {
	Listen string `toml:"listen"`
}

// DefaultPath is where settings are read from when no path is given.
func DefaultPath() string {
	return fileutil.UserConfigPath("fdep", "config.toml")
}

// Default returns the built-in settings.
func Default() *Settings {
	home, _ := os.UserHomeDir()
	return &Settings{
		Paths: PathsSettings{
			HistoryDB: filepath.Join(home, ".fdep", "history.db"),
		},
		Log: LogSettings{
			Level: "warn",
		},
		SSH: SSHSettings{
			KnownHosts:     filepath.Join(home, ".ssh", "known_hosts"),
			ConnectTimeout: 15,
			UseAgent:       true,
		},
		HTTP: HTTPSettings{
			Timeout: 30,
		},
		Server: ServerSettings{
			Listen: "127.0.0.1:5050",
		},
	}
}

// Load decodes the TOML file at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Settings, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("settings: parse %s: %w", path, err)
			}
		}
	}

	cfg.Paths.HistoryDB = expand(cfg.Paths.HistoryDB)
	cfg.Log.File = expand(cfg.Log.File)
	cfg.SSH.KnownHosts = expand(cfg.SSH.KnownHosts)

	if cfg.SSH.ConnectTimeout <= 0 {
		return nil, fmt.Errorf("settings: ssh.connect_timeout must be positive, got %d", cfg.SSH.ConnectTimeout)
	}
	if cfg.HTTP.Timeout <= 0 {
		return nil, fmt.Errorf("settings: http.timeout must be positive, got %d", cfg.HTTP.Timeout)
	}

	return cfg, nil
}

func expand(p string) string {
	if p == "" {
		return ""
	}
	return fileutil.ExpandUser(p)
}

// ConnectTimeout returns the SSH dial timeout.
func (s *Settings) ConnectTimeout() time.Duration {
	return time.Duration(s.SSH.ConnectTimeout) * time.Second
}

// HTTPTimeout returns the per-request timeout for health checks.
func (s *Settings) HTTPTimeout() time.Duration {
	return time.Duration(s.HTTP.Timeout) * time.Second
}
