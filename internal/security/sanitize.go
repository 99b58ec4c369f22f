package security

import (
	"fmt"
	"net"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Safe patterns for validation
	branchPattern     = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
	identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	userPattern       = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]*$`)
	hostnamePattern   = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]*$`)
	envNamePattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	repoPattern       = regexp.MustCompile(`^[a-zA-Z0-9_-]+/[a-zA-Z0-9_.-]+$`)
)

// ValidateBranchName ensures branch name is safe for git operations.
// Prevents command injection through branch names.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}
	if strings.Contains(branch, "..") {
		return fmt.Errorf("branch name cannot contain '..'")
	}
	if !branchPattern.MatchString(branch) {
		return fmt.Errorf("branch name contains invalid characters")
	}
	return nil
}

// ValidateIdentifier ensures a name that ends up inside remote shell commands
// (project, supervisor program, database, worker) is a plain token.
func ValidateIdentifier(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("%s cannot start with '-'", kind)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%s %q contains invalid characters (only a-z, A-Z, 0-9, _, - allowed)", kind, name)
	}
	return nil
}

// ValidateUser ensures an SSH login name is a plain token. Dots are
// allowed, as in "deploy.user".
func ValidateUser(user string) error {
	if !userPattern.MatchString(user) {
		return fmt.Errorf("user %q contains invalid characters (only a-z, A-Z, 0-9, _, ., - allowed)", user)
	}
	return nil
}

// ValidateHost accepts "name", "name:port", an IPv6 literal in brackets
// and "[addr]:port".
func ValidateHost(host string) error {
	name, port := host, ""
	if strings.HasPrefix(host, "[") {
		end := strings.Index(host, "]")
		if end < 0 {
			return fmt.Errorf("invalid host %q: missing ']'", host)
		}
		name, port = host[1:end], host[end+1:]
		if net.ParseIP(name) == nil {
			return fmt.Errorf("invalid host %q: not an IP address", host)
		}
		if port != "" && !strings.HasPrefix(port, ":") {
			return fmt.Errorf("invalid host %q", host)
		}
		port = strings.TrimPrefix(port, ":")
	} else if i := strings.LastIndex(host, ":"); i >= 0 {
		name, port = host[:i], host[i+1:]
		if !hostnamePattern.MatchString(name) {
			return fmt.Errorf("invalid host %q", host)
		}
	} else if !hostnamePattern.MatchString(name) {
		return fmt.Errorf("invalid host %q", host)
	}

	if port != "" {
		if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("invalid port in host %q", host)
		}
	}
	return nil
}

// ValidateEnvName ensures an exported variable name is a valid shell name.
func ValidateEnvName(name string) error {
	if !envNamePattern.MatchString(name) {
		return fmt.Errorf("invalid environment variable name %q", name)
	}
	return nil
}

// ValidateRepository ensures a GitHub repository reference is "owner/repo".
func ValidateRepository(repo string) error {
	if !repoPattern.MatchString(repo) {
		return fmt.Errorf("repository must be in owner/repo format, got %q", repo)
	}
	return nil
}

// ValidateRemotePath ensures a remote path is absolute (or home-relative)
// and free of traversal elements.
func ValidateRemotePath(p string) error {
	if p == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "~/") {
		return fmt.Errorf("path must be absolute: %s", p)
	}
	for _, elem := range strings.Split(p, "/") {
		if elem == ".." {
			return fmt.Errorf("path contains traversal elements: %s", p)
		}
	}
	if ContainsShellMetachars(path.Clean(p)) {
		return fmt.Errorf("path contains shell metacharacters: %s", p)
	}
	return nil
}

// ContainsShellMetachars checks if a string contains shell metacharacters.
// These characters can be used for command injection attacks.
func ContainsShellMetachars(s string) bool {
	return strings.ContainsAny(s, ";|&$`\n><(){}*?[]\\'\"")
}
