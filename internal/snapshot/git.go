package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitOptions configures a GitDestination.
type GitOptions struct {
	// Repo is the path to an existing local clone with an "origin" remote.
	Repo string
	// File is the snapshot path inside the repo.
	File   string
	Branch string
	// Author overrides the committer identity, e.g. "Site Sync <site@example.com>".
	// Empty uses the repo's git config.
	Author string
}

// GitDestination commits each snapshot into a repo and pushes it, for static
// site builds that read their config from version control.
type GitDestination struct {
	opts GitOptions
}

func NewGitDestination(opts GitOptions) *GitDestination {
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	return &GitDestination{opts: opts}
}

// Write commits data as the snapshot file and pushes. Identical content
// produces no commit.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if _, err := d.git(ctx, "checkout", d.opts.Branch); err != nil {
		return err
	}
	// The branch may not exist on the remote yet.
	_, _ = d.git(ctx, "pull", "--ff-only", "origin", d.opts.Branch)

	target := filepath.Join(d.opts.Repo, d.opts.File)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if _, err := d.git(ctx, "add", "--", d.opts.File); err != nil {
		return err
	}
	staged, err := d.git(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return err
	}
	if strings.TrimSpace(staged) == "" {
		return nil
	}

	args := []string{"commit", "-m", commitMessage(peekVersion(data))}
	if d.opts.Author != "" {
		args = append(args, "--author", d.opts.Author)
	}
	if _, err := d.git(ctx, args...); err != nil {
		return err
	}
	_, err = d.git(ctx, "push", "origin", d.opts.Branch)
	return err
}

func commitMessage(version int64) string {
	if version <= 0 {
		return "sitesync: update site config"
	}
	return fmt.Sprintf("sitesync: site config v%d", version)
}

// git runs a git subcommand in the repo and returns its stdout. Failures
// carry stderr.
func (d *GitDestination) git(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.opts.Repo
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
