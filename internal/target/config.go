package target

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fdep/internal/security"
	"fdep/pkg/fileutil"
)

// FileName is the deployment descriptor looked up by Find.
const FileName = "deploy.json"

var (
	ErrConfigNotFound = errors.New("deployment config not found")
	ErrInvalidConfig  = errors.New("invalid deployment config")
	ErrCancelled      = errors.New("deployment cancelled")
)

// Find locates deploy.json in dir or its parent.
func Find(dir string) (string, error) {
	paths := fileutil.ParentSearchPaths(dir, FileName)
	path, err := fileutil.SearchPaths(paths)
	if err != nil {
		return "", fmt.Errorf("%w: searched %s", ErrConfigNotFound, strings.Join(paths, ", "))
	}
	return path, nil
}

// Load reads and validates the descriptor at path and returns a registry
// of its targets.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	targets, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	warnExposedEnv(path, targets)
	return NewRegistry(targets), nil
}

// warnExposedEnv logs when a descriptor carrying export_env values can be
// read by any local user.
func warnExposedEnv(path string, targets map[string]*Target) {
	info, err := os.Stat(path)
	if err != nil || !security.IsWorldReadable(info.Mode().Perm()) {
		return
	}
	for _, t := range targets {
		if len(t.ExportEnv) > 0 {
			slog.Warn("deployment config with export_env is world-readable", "path", path, "mode", fmt.Sprintf("%04o", info.Mode().Perm()))
			return
		}
	}
}

// Parse decodes descriptor data. Relative key_filename values are
// resolved against baseDir.
func Parse(data []byte, baseDir string) (map[string]*Target, error) {
	var raw map[string]Options
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", ErrInvalidConfig, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: failed to parse JSON: unexpected data after the top-level object", ErrInvalidConfig)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no targets defined", ErrInvalidConfig)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	targets := make(map[string]*Target, len(raw))
	for _, name := range names {
		opts := raw[name]
		opts.KeyFilename = resolveKeyPath(opts.KeyFilename, baseDir)

		if problems := ValidateOptions(name, opts); len(problems) > 0 {
			return nil, fmt.Errorf("%w for target '%s':\n%s",
				ErrInvalidConfig, name, strings.Join(problems, "\n"))
		}

		targets[name] = resolve(name, opts)
	}

	return targets, nil
}

func resolveKeyPath(p, baseDir string) string {
	if p == "" {
		return ""
	}
	p = fileutil.ExpandUser(p)
	if !filepath.IsAbs(p) && baseDir != "" {
		p = filepath.Join(baseDir, p)
	}
	return filepath.Clean(p)
}

func resolve(name string, opts Options) *Target {
	t := &Target{
		Name:              name,
		User:              opts.User,
		Hosts:             append([]string(nil), opts.Hosts...),
		DeployPath:        opts.DeployPath,
		ProjectName:       opts.ProjectName,
		VenvPath:          opts.VenvPath,
		SupervisorProgram: orDefault(opts.SupervisorProgram, opts.ProjectName),
		DBName:            orDefault(opts.DBName, opts.ProjectName),
		DBEngine:          orDefault(opts.DBEngine, DefaultDBEngine),
		SourceBranch:      orDefault(opts.SourceBranch, DefaultSourceBranch),
		KeyFilename:       opts.KeyFilename,

		CeleryEnabled:     boolOr(opts.CeleryEnabled, false),
		CeleryWorkers:     append([]string(nil), opts.CeleryWorkers...),
		CelerybeatEnabled: boolOr(opts.CelerybeatEnabled, false),
		HueyEnabled:       boolOr(opts.HueyEnabled, false),
		YarnEnabled:       boolOr(opts.YarnEnabled, false),
		GulpEnabled:       boolOr(opts.GulpEnabled, true),
		CompressEnabled:   boolOr(opts.CompressEnabled, true),
		BackupDB:          boolOr(opts.BackupDB, true),
		ClearCache:        boolOr(opts.ClearCache, true),
		Pytest:            boolOr(opts.Pytest, false),
		GracefulRestart:   boolOr(opts.GracefulRestart, false),
		WarnOnDeploy:      boolOr(opts.WarnOnDeploy, false),

		ExtraDatabases: append([]string(nil), opts.ExtraDatabases...),
		URLsToCheck:    append([]string(nil), opts.URLsToCheck...),
		VerifySSL:      boolOr(opts.VerifySSL, true),
		ExportEnv:      make(map[string]string, len(opts.ExportEnv)),

		GitHubRepository:  opts.GitHubRepository,
		GitHubEnvironment: opts.GitHubEnvironment,
		GitHubTokenEnv:    orDefault(opts.GitHubTokenEnv, DefaultGitHubTokenEnv),
	}
	for k, v := range opts.ExportEnv {
		t.ExportEnv[k] = v
	}

	if t.KeyFilename != "" {
		if err := security.EnsureSecurePermissions(t.KeyFilename, security.PermSSHKey); err != nil {
			slog.Warn("ssh key permissions", "target", name, "key", t.KeyFilename, "error", err)
		}
	}

	return t
}

// ValidateOptions validates a single target entry and returns every
// problem found.
func ValidateOptions(name string, opts Options) []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("  - Target '%s': ", name)+fmt.Sprintf(format, args...))
	}

	if err := security.ValidateIdentifier("target name", name); err != nil {
		add("%v", err)
	}

	if opts.User == "" {
		add("missing required 'user' field")
	} else if err := security.ValidateUser(opts.User); err != nil {
		add("%v", err)
	}

	if len(opts.Hosts) == 0 {
		add("missing required 'hosts' field")
	}
	for _, h := range opts.Hosts {
		if err := security.ValidateHost(h); err != nil {
			add("%v", err)
		}
	}

	if opts.DeployPath == "" {
		add("missing required 'deploy_path' field")
	} else if err := security.ValidateRemotePath(opts.DeployPath); err != nil {
		add("deploy_path: %v", err)
	}

	if opts.VenvPath == "" {
		add("missing required 'venv_path' field")
	} else if err := security.ValidateRemotePath(opts.VenvPath); err != nil {
		add("venv_path: %v", err)
	}

	if opts.ProjectName == "" {
		add("missing required 'project_name' field")
	} else if err := security.ValidateIdentifier("project_name", opts.ProjectName); err != nil {
		add("%v", err)
	}

	if opts.SupervisorProgram != "" {
		if err := security.ValidateIdentifier("supervisor_program", opts.SupervisorProgram); err != nil {
			add("%v", err)
		}
	}
	if opts.DBName != "" {
		if err := security.ValidateIdentifier("db_name", opts.DBName); err != nil {
			add("%v", err)
		}
	}
	if opts.SourceBranch != "" {
		if err := security.ValidateBranchName(opts.SourceBranch); err != nil {
			add("source_branch: %v", err)
		}
	}
	for _, w := range opts.CeleryWorkers {
		if err := security.ValidateIdentifier("celery worker", w); err != nil {
			add("%v", err)
		}
	}
	for _, db := range opts.ExtraDatabases {
		if err := security.ValidateIdentifier("extra database", db); err != nil {
			add("%v", err)
		}
	}

	for k := range opts.ExportEnv {
		if err := security.ValidateEnvName(k); err != nil {
			add("export_env: %v", err)
		}
	}

	for _, raw := range opts.URLsToCheck {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("urls_to_check: invalid URL %q", raw)
		}
	}

	if opts.KeyFilename != "" && !fileutil.FileExists(opts.KeyFilename) {
		add("key_filename %s is not a file", opts.KeyFilename)
	}

	if opts.GitHubRepository != "" {
		if err := security.ValidateRepository(opts.GitHubRepository); err != nil {
			add("github_repository: %v", err)
		}
	}
	if opts.GitHubTokenEnv != "" {
		if err := security.ValidateEnvName(opts.GitHubTokenEnv); err != nil {
			add("github_token_env: %v", err)
		}
	}

	return problems
}
