package cmdutil

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cmd      []string
		wantErr  bool
		wantCode int
	}{
		{"successful command", []string{"echo", "hello"}, false, 0},
		{"command that fails", []string{"sh", "-c", "exit 3"}, true, 3},
		{"empty command", []string{}, true, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(ctx, ExecOptions{}, tt.cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if result == nil {
				t.Fatal("Run() returned nil result")
			}
			if result.ExitCode != tt.wantCode {
				t.Errorf("Run() exit code = %d, want %d", result.ExitCode, tt.wantCode)
			}
			if result.OK() != (tt.wantCode == 0) {
				t.Errorf("Result.OK() = %v for exit code %d", result.OK(), result.ExitCode)
			}
		})
	}
}

func TestRun_StreamAndCapture(t *testing.T) {
	var stream bytes.Buffer

	result, err := Run(context.Background(), ExecOptions{Stream: &stream}, []string{"sh", "-c", "echo out; echo err 1>&2"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, want := range []string{"out", "err"} {
		if !strings.Contains(stream.String(), want) {
			t.Errorf("stream missing %q: %q", want, stream.String())
		}
		if !strings.Contains(string(result.Output), want) {
			t.Errorf("captured output missing %q: %q", want, result.Output)
		}
	}
}

func TestRun_Options(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	t.Run("working directory", func(t *testing.T) {
		result, err := Run(ctx, ExecOptions{Dir: tmpDir}, []string{"pwd"})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !strings.Contains(string(result.Output), strings.TrimPrefix(tmpDir, "/private")) {
			t.Errorf("pwd = %q, want it to contain %q", result.Output, tmpDir)
		}
	})

	t.Run("environment is appended", func(t *testing.T) {
		result, err := Run(ctx, ExecOptions{Env: []string{"FDEP_TEST_VAR=value"}}, []string{"env"})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !strings.Contains(string(result.Output), "FDEP_TEST_VAR=value") {
			t.Error("Run() did not pass the extra environment variable")
		}
		if !strings.Contains(string(result.Output), "PATH=") {
			t.Error("Run() dropped the inherited environment")
		}
	})

	t.Run("stdin", func(t *testing.T) {
		result, err := Run(ctx, ExecOptions{Stdin: strings.NewReader("piped\n")}, []string{"cat"})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if strings.TrimSpace(string(result.Output)) != "piped" {
			t.Errorf("output = %q, want %q", result.Output, "piped")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := Run(ctx, ExecOptions{Timeout: 50 * time.Millisecond}, []string{"sleep", "5"})
		if err == nil {
			t.Error("Run() should fail when the timeout expires")
		}
	})
}

func TestParseCommandString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"simple command", "git status", []string{"git", "status"}, false},
		{"quoted argument", `git commit -m "my message"`, []string{"git", "commit", "-m", "my message"}, false},
		{"single quotes", "echo 'hello world'", []string{"echo", "hello world"}, false},
		{"empty string", "", nil, true},
		{"whitespace only", "   ", nil, true},
		{"unterminated quote", `echo "oops`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommandString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommandString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("ParseCommandString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  string
	}{
		{"simple command", []string{"git", "status"}, "git status"},
		{"argument with spaces", []string{"git", "commit", "-m", "my message"}, "git commit -m 'my message'"},
		{"shell operator is escaped", []string{"echo", "a;b"}, `echo a\;b`},
		{"empty command", []string{}, "<empty command>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCommand(tt.input); got != tt.want {
				t.Errorf("FormatCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		secrets []string
		want    string
	}{
		{"single secret", "token: ghp_abc", []string{"ghp_abc"}, "token: ***REDACTED***"},
		{"multiple secrets", "a=s1 b=s2", []string{"s1", "s2"}, "a=***REDACTED*** b=***REDACTED***"},
		{"empty secret ignored", "some output", []string{""}, "some output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(SanitizeOutput([]byte(tt.output), tt.secrets)); got != tt.want {
				t.Errorf("SanitizeOutput() = %q, want %q", got, tt.want)
			}
		})
	}
}
