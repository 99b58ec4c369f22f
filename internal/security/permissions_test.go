package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPermissionConstants(t *testing.T) {
	tests := []struct {
		name     string
		perm     os.FileMode
		expected os.FileMode
	}{
		{"PermLogFile", PermLogFile, 0640},
		{"PermDBFile", PermDBFile, 0640},
		{"PermDirectory", PermDirectory, 0750},
		{"PermSSHKey", PermSSHKey, 0600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.perm != tt.expected {
				t.Errorf("%s = %04o, want %04o", tt.name, tt.perm, tt.expected)
			}
		})
	}
}

func TestCreateSecureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	if err := CreateSecureDir(dir, PermDirectory); err != nil {
		t.Fatalf("CreateSecureDir() error = %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Failed to stat directory: %v", err)
	}
	if info.Mode().Perm() != PermDirectory {
		t.Errorf("directory permissions = %04o, want %04o", info.Mode().Perm(), PermDirectory)
	}
}

func TestOpenAppendFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fdep.log")

	for _, line := range []string{"one\n", "two\n"} {
		f, err := OpenAppendFile(path, PermLogFile)
		if err != nil {
			t.Fatalf("OpenAppendFile() error = %v", err)
		}
		if _, err := f.WriteString(line); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("file content = %q, want appended lines", data)
	}
}

func TestEnsureSecurePermissions(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		actual  os.FileMode
		wantErr bool
	}{
		{"exact key permissions", 0600, false},
		{"stricter than expected", 0400, false},
		{"group readable key", 0640, true},
		{"world readable key", 0644, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.name)
			if err := os.WriteFile(path, []byte("key"), tt.actual); err != nil {
				t.Fatal(err)
			}
			if err := os.Chmod(path, tt.actual); err != nil {
				t.Fatal(err)
			}

			err := EnsureSecurePermissions(path, PermSSHKey)
			if (err != nil) != tt.wantErr {
				t.Errorf("EnsureSecurePermissions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := EnsureSecurePermissions(filepath.Join(tmpDir, "missing"), PermSSHKey); err == nil {
		t.Error("EnsureSecurePermissions() should fail for a missing file")
	}
}

func TestIsWorldReadable(t *testing.T) {
	if !IsWorldReadable(0644) || IsWorldReadable(0640) || IsWorldReadable(0600) {
		t.Error("IsWorldReadable() misreports")
	}
}
