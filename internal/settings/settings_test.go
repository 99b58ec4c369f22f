package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := Default()
	if cfg.Log.Level != "warn" || cfg.HTTP.Timeout != def.HTTP.Timeout || cfg.Server.Listen != def.Server.Listen {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
	if !cfg.SSH.UseAgent {
		t.Error("ssh agent should be enabled by default")
	}
	if cfg.ConnectTimeout() != 15*time.Second {
		t.Errorf("ConnectTimeout() = %v", cfg.ConnectTimeout())
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
history_db = "~/deploys/history.db"

[log]
level = "debug"
file = "/var/log/fdep.log"

[http]
timeout = 5

[ssh]
use_agent = false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.File != "/var/log/fdep.log" {
		t.Errorf("log settings = %+v", cfg.Log)
	}
	if cfg.HTTPTimeout() != 5*time.Second {
		t.Errorf("HTTPTimeout() = %v", cfg.HTTPTimeout())
	}
	if cfg.SSH.UseAgent {
		t.Error("use_agent override ignored")
	}
	if strings.HasPrefix(cfg.Paths.HistoryDB, "~") || !strings.HasSuffix(cfg.Paths.HistoryDB, filepath.Join("deploys", "history.db")) {
		t.Errorf("history_db not expanded: %s", cfg.Paths.HistoryDB)
	}
	// untouched sections keep their defaults
	if cfg.SSH.ConnectTimeout != 15 {
		t.Errorf("ssh.connect_timeout = %d, want default", cfg.SSH.ConnectTimeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"broken toml", "[log\nlevel = "},
		{"negative timeout", "[http]\ntimeout = -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}
