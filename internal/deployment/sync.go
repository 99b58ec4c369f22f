package deployment

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"fdep/internal/localgit"
	"fdep/internal/remote"
)

var rsyncExcludes = []string{".git*", "cache*", "filer_*"}

// RsyncCommand builds the rsync invocation that copies remoteDir from host
// into localDir.
func RsyncCommand(user string, host remote.Host, keyFile, knownHosts, remoteDir, localDir string, deleteExtra bool) string {
	sshArgs := []string{"ssh", "-p", strconv.Itoa(portOrDefault(host.Port))}
	if knownHosts != "" {
		sshArgs = append(sshArgs, "-o", "UserKnownHostsFile="+knownHosts)
	}
	if keyFile != "" {
		sshArgs = append(sshArgs, "-i", keyFile)
	}

	args := []string{"rsync", "-pthrvz", "--rsh=" + strings.Join(sshArgs, " ")}
	if deleteExtra {
		args = append(args, "--delete")
	}
	for _, ex := range rsyncExcludes {
		args = append(args, "--exclude", ex)
	}
	name := host.Name
	if strings.Contains(name, ":") {
		name = "[" + name + "]"
	}
	args = append(args, fmt.Sprintf("%s@%s:%s", user, name, remoteDir), localDir)
	return shellquote.Join(args...)
}

func portOrDefault(p int) int {
	if p == 0 {
		return remote.DefaultSSHPort
	}
	return p
}

func (d *Deployer) rsync(ctx context.Context, heading, remoteSubdir string, deleteExtra bool) error {
	remoteDir := path.Join(strings.TrimRight(d.Target.DeployPath, "/"), remoteSubdir)
	s := d.localSession()
	s.Env = nil

	for _, host := range d.Hosts {
		d.Console.Info("%s", heading)
		line := RsyncCommand(d.Target.User, host, d.Target.KeyFilename, d.KnownHosts, remoteDir, "data/", deleteExtra)
		if err := s.Run(ctx, line); err != nil {
			return err
		}
	}
	d.done()
	return nil
}

// GetMedia copies the remote data/media directory into the local data/.
func (d *Deployer) GetMedia(ctx context.Context, deleteExtra bool) error {
	return d.rsync(ctx, "Rsyncing local media with remote", "data/media", deleteExtra)
}

// GetDumps copies the remote data/backup directory into the local data/.
func (d *Deployer) GetDumps(ctx context.Context, deleteExtra bool) error {
	return d.rsync(ctx, "Rsyncing local backups with remote", "data/backup", deleteExtra)
}

func (d *Deployer) warnLocalChanges() {
	repo, err := localgit.Open(d.WorkDir)
	if err != nil {
		return
	}
	if branch := d.Target.SourceBranch; !repo.HasBranch(branch) {
		d.Console.Warn("Warning: branch %s does not exist locally", branch)
	}
	changes, err := repo.Changes()
	if err != nil {
		d.Console.Warn("Warning: git status failed: %v", err)
		return
	}
	if len(changes) == 0 {
		return
	}
	d.Console.Warn("Local worktree has uncommitted changes:")
	w := d.Console.Indented(4)
	for _, line := range changes {
		fmt.Fprintln(w, line)
	}
}
