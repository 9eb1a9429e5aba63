// Package delta finds which libraries changed relative to a baseline branch,
// so a run can rebuild only what a change touched.
package delta

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// Delta detects changed files relative to a baseline.
type Delta struct {
	RootDir      string // any directory inside the repository
	TargetBranch string
	Logger       *slog.Logger
}

func (d *Delta) log() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

func (d *Delta) open() (*git.Repository, string, error) {
	repo, err := git.PlainOpenWithOptions(d.RootDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, "", err
	}
	return repo, wt.Filesystem.Root(), nil
}

// ChangedFiles returns repository-relative, slash-separated paths changed in
// the worktree (staged or not) plus those changed between the target branch
// and HEAD. Returns nil (rebuild everything) if git is unavailable or no
// baseline exists.
func (d *Delta) ChangedFiles(ctx context.Context) (map[string]bool, error) {
	repo, _, err := d.open()
	if err != nil {
		d.log().Debug("delta: not a git repo, selecting all libraries", "dir", d.RootDir)
		return nil, nil
	}

	worktreeChanges, err := d.worktreeChanges(repo)
	if err != nil {
		d.log().Debug("delta: worktree diff failed, selecting all libraries", "error", err)
		return nil, nil
	}

	branchChanges, err := d.branchChanges(ctx, repo)
	if err != nil {
		d.log().Debug("delta: branch diff failed, selecting all libraries", "error", err)
		return nil, nil
	}

	changed := make(map[string]bool, len(worktreeChanges)+len(branchChanges))
	for p := range worktreeChanges {
		changed[p] = true
	}
	for p := range branchChanges {
		changed[p] = true
	}
	if len(changed) == 0 {
		d.log().Debug("delta: no changes detected")
	}
	return changed, nil
}

// ChangedLibraries keeps the libraries (directories under libRoot) that
// contain at least one changed file. Order of libraries is preserved. When
// no baseline is available every library is kept.
func (d *Delta) ChangedLibraries(ctx context.Context, libRoot string, libraries []string) ([]string, error) {
	changed, err := d.ChangedFiles(ctx)
	if err != nil {
		return nil, err
	}
	if changed == nil {
		return libraries, nil
	}

	_, top, err := d.open()
	if err != nil {
		return libraries, nil
	}
	rel, err := relativeTo(top, libRoot)
	if err != nil {
		return nil, fmt.Errorf("delta: %w", err)
	}

	var kept []string
	for _, lib := range libraries {
		prefix := lib + "/"
		if rel != "" {
			prefix = rel + "/" + prefix
		}
		for p := range changed {
			if strings.HasPrefix(p, prefix) {
				kept = append(kept, lib)
				break
			}
		}
	}
	return kept, nil
}

// Head returns the short HEAD commit and branch name. Empty strings when
// the directory is not a repository.
func (d *Delta) Head() (sha, branch string) {
	repo, _, err := d.open()
	if err != nil {
		return "", ""
	}
	ref, err := repo.Head()
	if err != nil {
		return "", ""
	}
	sha = ref.Hash().String()
	if len(sha) > 8 {
		sha = sha[:8]
	}
	if ref.Name().IsBranch() {
		branch = ref.Name().Short()
	}
	return sha, branch
}

// worktreeChanges returns files with uncommitted modifications (staged + unstaged).
func (d *Delta) worktreeChanges(repo *git.Repository) (map[string]bool, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	status, err := wt.Status()
	if err != nil {
		return nil, err
	}

	changed := make(map[string]bool)
	for path, s := range status {
		if s.Worktree == git.Unmodified && s.Staging == git.Unmodified {
			continue
		}
		changed[path] = true
	}
	return changed, nil
}

// branchChanges returns files changed between HEAD and the target branch.
func (d *Delta) branchChanges(ctx context.Context, repo *git.Repository) (map[string]bool, error) {
	targetBranch := d.targetBranch(repo)

	headRef, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("getting HEAD: %w", err)
	}
	headCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("getting HEAD commit: %w", err)
	}

	targetRef, err := repo.Reference(plumbing.NewBranchReferenceName(targetBranch), true)
	if err != nil {
		targetRef, err = repo.Reference(plumbing.NewRemoteReferenceName("origin", targetBranch), true)
		if err != nil {
			return nil, fmt.Errorf("target branch %q not found", targetBranch)
		}
	}
	targetCommit, err := repo.CommitObject(targetRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("getting target commit: %w", err)
	}

	// On the target branch itself, diff HEAD against its parent so the
	// latest commit still selects what it touched.
	if headCommit.Hash == targetCommit.Hash {
		if headCommit.NumParents() == 0 {
			return map[string]bool{}, nil
		}
		parent, err := headCommit.Parent(0)
		if err != nil {
			return nil, err
		}
		targetCommit = parent
	}

	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, err
	}
	targetTree, err := targetCommit.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTreeWithOptions(ctx, targetTree, headTree, &object.DiffTreeOptions{})
	if err != nil {
		return nil, fmt.Errorf("diffing trees: %w", err)
	}

	changed := make(map[string]bool)
	for _, change := range changes {
		if name := changeName(change); name != "" {
			changed[name] = true
		}
	}
	return changed, nil
}

// targetBranch determines the branch to diff against.
func (d *Delta) targetBranch(repo *git.Repository) string {
	if branch := os.Getenv("IMAGEFREIGHT_TARGET_BRANCH"); branch != "" {
		return branch
	}
	if d.TargetBranch != "" {
		return d.TargetBranch
	}

	ciVars := []string{
		"CI_MERGE_REQUEST_TARGET_BRANCH_NAME", // GitLab CI
		"GITHUB_BASE_REF",                     // GitHub Actions
		"BITBUCKET_PR_DESTINATION_BRANCH",     // Bitbucket
		"CHANGE_TARGET",                       // Jenkins
	}
	for _, v := range ciVars {
		if branch := os.Getenv(v); branch != "" {
			return branch
		}
	}

	// origin/HEAD symbolic ref, unresolved, points at the default branch
	if ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", "HEAD"), false); err == nil {
		const prefix = "refs/remotes/origin/"
		if target := ref.Target().String(); strings.HasPrefix(target, prefix) {
			return strings.TrimPrefix(target, prefix)
		}
	}

	return "main"
}

// changeName extracts the file path from a tree change.
func changeName(change *object.Change) string {
	action, err := change.Action()
	if err != nil {
		return ""
	}
	switch action {
	case merkletrie.Insert, merkletrie.Modify:
		return change.To.Name
	case merkletrie.Delete:
		return change.From.Name
	}
	return ""
}

// relativeTo returns dir relative to top in slash form, "" when equal.
func relativeTo(top, dir string) (string, error) {
	absTop, err := filepath.Abs(top)
	if err != nil {
		return "", err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(absTop); err == nil {
		absTop = resolved
	}
	if resolved, err := filepath.EvalSymlinks(absDir); err == nil {
		absDir = resolved
	}
	rel, err := filepath.Rel(absTop, absDir)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the repository at %s", dir, top)
	}
	return filepath.ToSlash(rel), nil
}
