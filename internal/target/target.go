package target

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultSourceBranch   = "master"
	DefaultDBEngine       = "postgresql"
	DefaultGitHubTokenEnv = "GITHUB_TOKEN"
)

// Target is a resolved deploy.json entry. Targets are built once by Load
// and never modified afterwards.
type Target struct {
	Name              string
	User              string
	Hosts             []string
	DeployPath        string
	ProjectName       string
	VenvPath          string
	SupervisorProgram string
	DBName            string
	DBEngine          string
	SourceBranch      string
	KeyFilename       string

	CeleryEnabled     bool
	CeleryWorkers     []string
	CelerybeatEnabled bool
	HueyEnabled       bool
	YarnEnabled       bool
	GulpEnabled       bool
	CompressEnabled   bool
	BackupDB          bool
	ClearCache        bool
	Pytest            bool
	GracefulRestart   bool
	WarnOnDeploy      bool

	ExtraDatabases []string
	URLsToCheck    []string
	VerifySSL      bool
	ExportEnv      map[string]string

	GitHubRepository  string
	GitHubEnvironment string
	GitHubTokenEnv    string
}

// Options is the raw JSON form of a target. Pointer fields distinguish an
// absent key from an explicit false.
type Options struct {
	User              string            `json:"user"`
	Hosts             HostList          `json:"hosts"`
	DeployPath        string            `json:"deploy_path"`
	ProjectName       string            `json:"project_name"`
	VenvPath          string            `json:"venv_path"`
	SupervisorProgram string            `json:"supervisor_program"`
	DBName            string            `json:"db_name"`
	DBEngine          string            `json:"db_engine"`
	SourceBranch      string            `json:"source_branch"`
	KeyFilename       string            `json:"key_filename"`
	CeleryEnabled     *bool             `json:"celery_enabled"`
	CeleryWorkers     []string          `json:"celery_workers"`
	CelerybeatEnabled *bool             `json:"celerybeat_enabled"`
	HueyEnabled       *bool             `json:"huey_enabled"`
	YarnEnabled       *bool             `json:"yarn_enabled"`
	GulpEnabled       *bool             `json:"gulp_enabled"`
	CompressEnabled   *bool             `json:"compress_enabled"`
	BackupDB          *bool             `json:"backup_db"`
	ClearCache        *bool             `json:"clear_cache"`
	Pytest            *bool             `json:"pytest"`
	GracefulRestart   *bool             `json:"graceful_restart"`
	WarnOnDeploy      *bool             `json:"warn_on_deploy"`
	ExtraDatabases    []string          `json:"extra_databases"`
	URLsToCheck       []string          `json:"urls_to_check"`
	VerifySSL         *bool             `json:"urls_to_check_verify_ssl_certificate"`
	ExportEnv         map[string]string `json:"export_env"`
	GitHubRepository  string            `json:"github_repository"`
	GitHubEnvironment string            `json:"github_environment"`
	GitHubTokenEnv    string            `json:"github_token_env"`
}

// HostList accepts either a single host string or a list of hosts.
type HostList []string

func (h *HostList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*h = nil
		} else {
			*h = HostList{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("hosts must be a string or a list of strings")
	}
	*h = many
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// HostsString joins the hosts the way the summary table shows them.
func (t *Target) HostsString() string {
	return strings.Join(t.Hosts, "; ")
}

// Env returns the exported variables as KEY=value pairs in key order.
func (t *Target) Env() []string {
	keys := make([]string, 0, len(t.ExportEnv))
	for k := range t.ExportEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+t.ExportEnv[k])
	}
	return env
}

// Workers returns the celery worker programs to signal: one per named
// worker, or the default worker when none are named.
func (t *Target) Workers() []string {
	if len(t.CeleryWorkers) == 0 {
		return []string{t.ProjectName + "_celeryd"}
	}
	workers := make([]string, len(t.CeleryWorkers))
	for i, w := range t.CeleryWorkers {
		workers[i] = t.ProjectName + "_celeryd_" + w
	}
	return workers
}

// GitHubEnv returns the GitHub environment deployments are recorded under.
func (t *Target) GitHubEnv() string {
	return orDefault(t.GitHubEnvironment, t.Name)
}

type yamlView struct {
	Name              string            `yaml:"name"`
	User              string            `yaml:"user"`
	Hosts             []string          `yaml:"hosts"`
	DeployPath        string            `yaml:"deploy_path"`
	ProjectName       string            `yaml:"project_name"`
	VenvPath          string            `yaml:"venv_path"`
	SupervisorProgram string            `yaml:"supervisor_program"`
	DBName            string            `yaml:"db_name"`
	DBEngine          string            `yaml:"db_engine"`
	SourceBranch      string            `yaml:"source_branch"`
	KeyFilename       string            `yaml:"key_filename,omitempty"`
	CeleryEnabled     bool              `yaml:"celery_enabled"`
	CeleryWorkers     []string          `yaml:"celery_workers,omitempty"`
	CelerybeatEnabled bool              `yaml:"celerybeat_enabled"`
	HueyEnabled       bool              `yaml:"huey_enabled"`
	YarnEnabled       bool              `yaml:"yarn_enabled"`
	GulpEnabled       bool              `yaml:"gulp_enabled"`
	CompressEnabled   bool              `yaml:"compress_enabled"`
	BackupDB          bool              `yaml:"backup_db"`
	ClearCache        bool              `yaml:"clear_cache"`
	Pytest            bool              `yaml:"pytest"`
	GracefulRestart   bool              `yaml:"graceful_restart"`
	WarnOnDeploy      bool              `yaml:"warn_on_deploy"`
	ExtraDatabases    []string          `yaml:"extra_databases,omitempty"`
	URLsToCheck       []string          `yaml:"urls_to_check,omitempty"`
	VerifySSL         bool              `yaml:"urls_to_check_verify_ssl_certificate"`
	ExportEnv         map[string]string `yaml:"export_env,omitempty"`
	GitHubRepository  string            `yaml:"github_repository,omitempty"`
	GitHubEnvironment string            `yaml:"github_environment,omitempty"`
}

// MarshalYAML renders the resolved target. Exported environment values
// are masked.
func (t *Target) MarshalYAML() (interface{}, error) {
	var env map[string]string
	if len(t.ExportEnv) > 0 {
		env = make(map[string]string, len(t.ExportEnv))
		for k := range t.ExportEnv {
			env[k] = "***"
		}
	}

	ghEnv := ""
	if t.GitHubRepository != "" {
		ghEnv = t.GitHubEnv()
	}

	return yamlView{
		Name:              t.Name,
		User:              t.User,
		Hosts:             t.Hosts,
		DeployPath:        t.DeployPath,
		ProjectName:       t.ProjectName,
		VenvPath:          t.VenvPath,
		SupervisorProgram: t.SupervisorProgram,
		DBName:            t.DBName,
		DBEngine:          t.DBEngine,
		SourceBranch:      t.SourceBranch,
		KeyFilename:       t.KeyFilename,
		CeleryEnabled:     t.CeleryEnabled,
		CeleryWorkers:     t.CeleryWorkers,
		CelerybeatEnabled: t.CelerybeatEnabled,
		HueyEnabled:       t.HueyEnabled,
		YarnEnabled:       t.YarnEnabled,
		GulpEnabled:       t.GulpEnabled,
		CompressEnabled:   t.CompressEnabled,
		BackupDB:          t.BackupDB,
		ClearCache:        t.ClearCache,
		Pytest:            t.Pytest,
		GracefulRestart:   t.GracefulRestart,
		WarnOnDeploy:      t.WarnOnDeploy,
		ExtraDatabases:    t.ExtraDatabases,
		URLsToCheck:       t.URLsToCheck,
		VerifySSL:         t.VerifySSL,
		ExportEnv:         env,
		GitHubRepository:  t.GitHubRepository,
		GitHubEnvironment: ghEnv,
	}, nil
}
