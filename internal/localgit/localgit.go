// Package localgit reads the operator's local checkout: worktree state
// for the pre-flight check and the revision a deployment is recorded with.
package localgit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// AbbreviateHash shortens a full commit hash.
func AbbreviateHash(hash string) string {
	const shortHashLength = 7
	if len(hash) <= shortHashLength {
		return hash
	}
	return hash[:shortHashLength]
}

// Repo is a local git repository.
type Repo struct {
	repository *git.Repository
}

// Open opens the repository containing dir.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s as git repo: %w", dir, err)
	}
	return &Repo{repository: repo}, nil
}

// Revision is the checked out commit.
type Revision struct {
	Hash string
	// Branch is empty for a detached HEAD.
	Branch string
}

// Head returns the commit and branch HEAD points to.
func (r *Repo) Head() (Revision, error) {
	ref, err := r.repository.Head()
	if err != nil {
		return Revision{}, fmt.Errorf("couldn't resolve HEAD: %w", err)
	}
	rev := Revision{Hash: ref.Hash().String()}
	if ref.Name().IsBranch() {
		rev.Branch = ref.Name().Short()
	}
	return rev, nil
}

// Changes returns the porcelain status lines of modified and untracked
// files, sorted by path. A clean worktree has none.
func (r *Repo) Changes() ([]string, error) {
	worktree, err := r.repository.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("couldn't read worktree status: %w", err)
	}

	paths := make([]string, 0, len(status))
	for path, s := range status {
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	lines := make([]string, len(paths))
	for i, path := range paths {
		s := status[path]
		lines[i] = fmt.Sprintf("%c%c %s", s.Staging, s.Worktree, path)
	}
	return lines, nil
}

// HasBranch reports whether a local branch exists.
func (r *Repo) HasBranch(name string) bool {
	_, err := r.repository.Reference(plumbing.NewBranchReferenceName(name), true)
	return err == nil
}

// Describe formats a revision for display.
func (rev Revision) Describe() string {
	if rev.Branch == "" {
		return AbbreviateHash(rev.Hash)
	}
	return strings.Join([]string{rev.Branch, AbbreviateHash(rev.Hash)}, "@")
}
