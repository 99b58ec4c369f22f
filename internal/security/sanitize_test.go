package security

import "testing"

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		wantErr bool
	}{
		// Valid cases
		{"master branch", "master", false},
		{"feature branch", "feature/new-feature", false},
		{"release branch", "release/v1.0.0", false},
		{"with underscores", "my_feature_branch", false},

		// Invalid cases
		{"empty branch", "", true},
		{"starts with dash", "-malicious", true},
		{"double dot", "main..other", true},
		{"command injection semicolon", "master; rm -rf /", true},
		{"command injection pipe", "master | cat /etc/passwd", true},
		{"command injection backtick", "master`whoami`", true},
		{"command injection dollar", "master$(whoami)", true},
		{"spaces", "my branch", true},
		{"newline", "master\nmalicious", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBranchName(tt.branch)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBranchName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"simple name", "myproject", false},
		{"with dash and underscore", "my-project_2", false},
		{"empty", "", true},
		{"starts with dash", "-project", true},
		{"with dot", "my.project", true},
		{"with slash", "my/project", true},
		{"with space", "my project", true},
		{"glob", "project*", true},
		{"command injection", "project; rm -rf /", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier("project_name", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUser(t *testing.T) {
	for _, ok := range []string{"deploy", "deploy.user", "web_1", "ci-bot"} {
		if err := ValidateUser(ok); err != nil {
			t.Errorf("ValidateUser(%q) error = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "-oProxyCommand=x", ".hidden", "a b", "root;id", "a@b"} {
		if err := ValidateUser(bad); err == nil {
			t.Errorf("ValidateUser(%q) should fail", bad)
		}
	}
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		host    string
		wantErr bool
	}{
		{"web1.example.com", false},
		{"web1.example.com:2222", false},
		{"10.0.0.5", false},
		{"[2001:db8::1]", false},
		{"[2001:db8::1]:2222", false},
		{"[::1]", false},
		{"", true},
		{"-oProxyCommand=id", true},
		{"web1;id", true},
		{"web 1", true},
		{"web1:ssh", true},
		{"web1:0", true},
		{"[not-an-ip]", true},
		{"[::1", true},
		{"[::1]x", true},
		{"[::1]:99999", true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			err := ValidateHost(tt.host)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHost(%q) error = %v, wantErr %v", tt.host, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEnvName(t *testing.T) {
	for _, ok := range []string{"DJANGO_SETTINGS_MODULE", "_X", "a1"} {
		if err := ValidateEnvName(ok); err != nil {
			t.Errorf("ValidateEnvName(%q) error = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1ABC", "A-B", "A B", "A;B"} {
		if err := ValidateEnvName(bad); err == nil {
			t.Errorf("ValidateEnvName(%q) should fail", bad)
		}
	}
}

func TestValidateRepository(t *testing.T) {
	tests := []struct {
		repo    string
		wantErr bool
	}{
		{"illagrenan/fab-django-deploy", false},
		{"org/repo.name", false},
		{"repo", true},
		{"a/b/c", true},
		{"https://github.com/a/b", true},
	}

	for _, tt := range tests {
		if err := ValidateRepository(tt.repo); (err != nil) != tt.wantErr {
			t.Errorf("ValidateRepository(%q) error = %v, wantErr %v", tt.repo, err, tt.wantErr)
		}
	}
}

func TestValidateRemotePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"absolute path", "/srv/www/shop", false},
		{"home relative", "~/shop", false},
		{"trailing slash", "/srv/www/shop/", false},
		{"empty", "", true},
		{"relative", "srv/www", true},
		{"traversal", "/srv/../etc", true},
		{"command substitution", "/srv/$(whoami)", true},
		{"separator", "/srv; rm -rf /", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRemotePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRemotePath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContainsShellMetachars(t *testing.T) {
	safe := []string{"master", "/srv/app", "--noinput", "a_b-c.d"}
	for _, s := range safe {
		if ContainsShellMetachars(s) {
			t.Errorf("ContainsShellMetachars(%q) = true", s)
		}
	}

	dangerous := []string{"a;b", "a|b", "a&b", "$HOME", "`id`", "a>b", "a\nb", "'q'"}
	for _, s := range dangerous {
		if !ContainsShellMetachars(s) {
			t.Errorf("ContainsShellMetachars(%q) = false", s)
		}
	}
}
