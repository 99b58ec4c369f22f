package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fdep/internal/console"
	"fdep/internal/health"
	"fdep/internal/history"
	"fdep/internal/target"
)

type testEnv struct {
	dir      string
	config   string
	settings string
	history  string
}

func newTestEnv(t *testing.T, siteURL string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:      dir,
		config:   filepath.Join(dir, "deploy.json"),
		settings: filepath.Join(dir, "config.toml"),
		history:  filepath.Join(dir, "history.db"),
	}

	descriptor := fmt.Sprintf(`{
  "staging": {
    "user": "deploy",
    "hosts": "staging.example.com",
    "deploy_path": "/srv/shop",
    "project_name": "shop",
    "venv_path": "/srv/venv/bin/activate",
    "urls_to_check": [%q],
    "export_env": {"SECRET_KEY": "hunter2"}
  },
  "production": {
    "user": "deploy",
    "hosts": ["web1.example.com", "web2.example.com"],
    "deploy_path": "/srv/shop",
    "project_name": "shop",
    "venv_path": "/srv/venv/bin/activate",
    "warn_on_deploy": true
  }
}`, siteURL)
	if err := os.WriteFile(env.config, []byte(descriptor), 0644); err != nil {
		t.Fatal(err)
	}

	env.writeSettings(t, "[log]\nlevel = \"error\"\n")
	return env
}

// writeSettings writes the settings file with the test history database
// and extra appended.
func (e *testEnv) writeSettings(t *testing.T, extra string) {
	t.Helper()
	toml := fmt.Sprintf("[paths]\nhistory_db = %q\n\n", e.history) + extra
	if err := os.WriteFile(e.settings, []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
}

// execute runs the root command with fresh global flag values.
func (e *testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile, settingsFile, logLevel, workDir = "", "", "", "."
	noColor, assumeYes = false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--config", e.config, "--settings", e.settings, "--workdir", e.dir}, args...))
	err := execute()
	return out.String(), err
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		value   string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"TRUE", true, false},
		{"True", true, false},
		{"false", false, false},
		{"False", false, false},
		{"", false, false},
		{"yes", false, true},
		{"1", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseBool("upgrade", tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBool(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestTaskCommands(t *testing.T) {
	aliases := map[string]string{
		"dumpdb": "backup",
		"drop":   "drop-schema",
		"cl":     "clean",
		"rs":     "rebuild-staticfiles",
		"g":      "gulp",
		"cu":     "check-urls",
		"upt":    "update-python-tools",
		"c":      "check",
		"r":      "restart",
		"gr":     "graceful-restart",
		"s":      "status",
	}
	for alias, name := range aliases {
		cmd, _, err := rootCmd.Find([]string{alias})
		if err != nil {
			t.Errorf("alias %s: %v", alias, err)
			continue
		}
		if cmd.Name() != name {
			t.Errorf("alias %s resolves to %s, want %s", alias, cmd.Name(), name)
		}
	}

	deploy, _, err := rootCmd.Find([]string{"deploy"})
	if err != nil {
		t.Fatal(err)
	}
	for _, flag := range []string{"upgrade", "skip-npm", "skip-check"} {
		f := deploy.Flags().Lookup(flag)
		if f == nil || f.NoOptDefVal != "true" {
			t.Errorf("deploy --%s should be a bare boolean flag", flag)
		}
	}

	if err := deploy.Args(deploy, []string{}); err == nil {
		t.Error("deploy without a target should fail")
	}
	manage, _, _ := rootCmd.Find([]string{"manage"})
	if err := manage.Args(manage, []string{"staging"}); err == nil {
		t.Error("manage without a command should fail")
	}
	if err := manage.Args(manage, []string{"staging", "migrate", "--fake"}); err != nil {
		t.Errorf("manage with a command: %v", err)
	}
}

func TestTargetsAndShow(t *testing.T) {
	env := newTestEnv(t, "https://staging.example.com/")

	out, err := env.execute(t, "targets")
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	if strings.Index(out, "production") > strings.Index(out, "staging") {
		t.Errorf("targets not sorted:\n%s", out)
	}
	if !strings.Contains(out, "deploy@web1.example.com; web2.example.com") {
		t.Errorf("targets output:\n%s", out)
	}

	out, err = env.execute(t, "show", "staging")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"source_branch: master", "db_engine: postgresql", "SECRET_KEY:", "***"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Error("show leaked an exported secret")
	}

	if _, err := env.execute(t, "show", "qa"); err == nil {
		t.Error("show of an unknown target should fail")
	}
}

func TestCheckURLsTask(t *testing.T) {
	status := http.StatusOK
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer site.Close()
	env := newTestEnv(t, site.URL+"/")

	if _, err := env.execute(t, "cu", "staging"); err != nil {
		t.Fatalf("check-urls: %v", err)
	}

	status = http.StatusBadGateway
	_, err := env.execute(t, "check-urls", "staging")
	if !errors.Is(err, health.ErrCheckFailed) {
		t.Fatalf("check-urls error = %v, want ErrCheckFailed", err)
	}

	hist, err := history.Open(env.history)
	if err != nil {
		t.Fatal(err)
	}
	defer hist.Close()
	runs, err := hist.Recent(context.Background(), "staging", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Status != history.StatusFailed || runs[1].Status != history.StatusSuccess {
		t.Fatalf("recorded runs = %+v", runs)
	}
	if runs[0].Operation != "check-urls" {
		t.Errorf("operation = %q, want check-urls", runs[0].Operation)
	}

	out, err := env.execute(t, "history", "staging")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if strings.Count(out, "check-urls") != 2 || !strings.Contains(out, "failed") {
		t.Errorf("history output:\n%s", out)
	}
}

func TestConfirmTarget_Declined(t *testing.T) {
	env := newTestEnv(t, "https://staging.example.com/")
	configFile, workDir, assumeYes = env.config, env.dir, false

	var out bytes.Buffer
	app.console = console.New(strings.NewReader("n\n"), &out)
	app.console.SetInteractive(true)

	reg, err := target.Load(env.config)
	if err != nil {
		t.Fatal(err)
	}
	production, err := reg.Get("production")
	if err != nil {
		t.Fatal(err)
	}
	if err := confirmTarget(production); !errors.Is(err, target.ErrCancelled) {
		t.Fatalf("confirmTarget() error = %v, want ErrCancelled", err)
	}
	if !strings.Contains(out.String(), "*PRODUCTION*") {
		t.Errorf("missing confirmation prompt:\n%s", out.String())
	}

	assumeYes = true
	defer func() { assumeYes = false }()
	if err := confirmTarget(production); err != nil {
		t.Errorf("--yes should skip the prompt: %v", err)
	}
}

func TestTask_ConfirmationWithoutTerminal(t *testing.T) {
	env := newTestEnv(t, "https://staging.example.com/")
	logPath := filepath.Join(env.dir, "logs", "fdep.log")
	env.writeSettings(t, fmt.Sprintf("[log]\nfile = %q\nlevel = \"info\"\n", logPath))

	_, err := env.execute(t, "check-urls", "production")
	if !errors.Is(err, target.ErrCancelled) {
		t.Fatalf("check-urls error = %v, want ErrCancelled", err)
	}
	if !strings.Contains(err.Error(), "--yes") {
		t.Errorf("error should point at --yes: %v", err)
	}
	if app.logClose != nil {
		t.Error("log file left open after a failed command")
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"task failed"`) {
		t.Errorf("log file content = %s", data)
	}

	if _, err := env.execute(t, "--yes", "check-urls", "production"); err != nil {
		t.Fatalf("check-urls --yes: %v", err)
	}

	hist, err := history.Open(env.history)
	if err != nil {
		t.Fatal(err)
	}
	defer hist.Close()
	runs, err := hist.Recent(context.Background(), "production", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Status != history.StatusSuccess || runs[1].Status != history.StatusCancelled {
		t.Fatalf("recorded runs = %+v", runs)
	}
}

func TestSetupLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fdep.log")

	logger, closer, err := setupLogging(path, "info")
	if err != nil {
		t.Fatalf("setupLogging() error = %v", err)
	}
	logger.Info("task finished", "task", "deploy")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"task":"deploy"`) {
		t.Errorf("log file content = %s", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0640 {
		t.Errorf("log file mode = %o, want 0640", info.Mode().Perm())
	}

	if _, _, err := setupLogging("", "loud"); err == nil {
		t.Error("expected an invalid level to fail")
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, "https://staging.example.com/")
	out, err := env.execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "fdep version ") || !strings.Contains(out, "Go version:") {
		t.Errorf("version output:\n%s", out)
	}
}
