package localgit

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manage.py"), []byte("print('hi')\n"), 0644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("manage.py"); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Dev", Email: "dev@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return dir, hash.String()
}

func TestHead(t *testing.T) {
	dir, hash := initRepo(t)

	sub := filepath.Join(dir, "src")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	repo, err := Open(sub)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rev, err := repo.Head()
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if rev.Hash != hash {
		t.Errorf("Hash = %s, want %s", rev.Hash, hash)
	}
	if rev.Branch != "master" {
		t.Errorf("Branch = %q, want master", rev.Branch)
	}
	if rev.Describe() != "master@"+hash[:7] {
		t.Errorf("Describe() = %q", rev.Describe())
	}
	if !repo.HasBranch("master") || repo.HasBranch("release") {
		t.Error("HasBranch() wrong")
	}
}

func TestChanges(t *testing.T) {
	dir, _ := initRepo(t)
	repo, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	changes, err := repo.Changes()
	if err != nil {
		t.Fatalf("Changes() error = %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("clean worktree reported changes: %v", changes)
	}

	if err := os.WriteFile(filepath.Join(dir, "manage.py"), []byte("changed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	changes, err = repo.Changes()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{" M manage.py", "?? new.txt"}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("Changes() = %q, want %q", changes, want)
	}
}

func TestOpen_NotARepo(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("Open() should fail outside a repository")
	}
}

func TestAbbreviateHash(t *testing.T) {
	if got := AbbreviateHash("0123456789abcdef"); got != "0123456" {
		t.Errorf("AbbreviateHash() = %q", got)
	}
	if got := AbbreviateHash("abc"); got != "abc" {
		t.Errorf("AbbreviateHash() = %q", got)
	}
}
