// Package gitrepo owns the temporary working copy of a repository and
// wraps the git operations the SZZ engine needs: hard resets, commit
// lookup, tree diffs and line-level blame.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"go.uber.org/zap"
)

// ErrMissingLocalRepo is returned when repos_dir is set but does not
// contain the requested repository.
var ErrMissingLocalRepo = errors.New("local repository not found")

// ChangeType classifies a file modification within a commit.
type ChangeType int

const (
	ChangeAdd ChangeType = iota
	ChangeDelete
	ChangeModify
	ChangeRename
	ChangeCopy
)

func (t ChangeType) String() string {
	switch t {
	case ChangeAdd:
		return "ADD"
	case ChangeDelete:
		return "DELETE"
	case ChangeModify:
		return "MODIFY"
	case ChangeRename:
		return "RENAME"
	case ChangeCopy:
		return "COPY"
	}
	return "UNKNOWN"
}

// FileModification is one file-level change of a commit, diffed
// against the first parent.
type FileModification struct {
	OldPath string
	NewPath string
	Type    ChangeType

	from *object.File
	to   *object.File
}

// FileName returns the base name of the post-image path, falling back
// to the pre-image path for deletions.
func (m FileModification) FileName() string {
	p := m.NewPath
	if p == "" {
		p = m.OldPath
	}
	return filepath.Base(p)
}

// OldContent returns the pre-image file content, empty for additions.
func (m FileModification) OldContent() (string, error) {
	if m.from == nil {
		return "", nil
	}
	return m.from.Contents()
}

// NewContent returns the post-image file content, empty for deletions.
func (m FileModification) NewContent() (string, error) {
	if m.to == nil {
		return "", nil
	}
	return m.to.Contents()
}

// Repo is a temporary working copy of a git repository. It owns the
// temp directory for its whole lifetime; Close removes it.
type Repo struct {
	repo    *git.Repository
	path    string
	tempDir string
	log     *zap.Logger
}

// Open prepares a working copy for the given repository inside a fresh
// temp directory. When reposDir is non-empty the repository is copied
// from there; otherwise it is cloned from url.
func Open(fullName, url, reposDir string, log *zap.Logger) (*Repo, error) {
	tempDir, err := os.MkdirTemp("", "szz-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(tempDir, strings.ReplaceAll(fullName, "/", "_"))

	if reposDir != "" {
		src := filepath.Join(reposDir, fullName)
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("%w: %s", ErrMissingLocalRepo, src)
		}
		if err := copyTree(src, path); err != nil {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("copy repository %s: %w", src, err)
		}
	} else {
		log.Info("cloning repository", zap.String("repo", fullName))
		if _, err := git.PlainClone(path, false, &git.CloneOptions{URL: url}); err != nil {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("clone %s: %w", fullName, err)
		}
	}

	repo, err := git.PlainOpen(path)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	return &Repo{repo: repo, path: path, tempDir: tempDir, log: log}, nil
}

// OpenPath opens an existing repository in place, without a temp copy.
// Close then leaves the directory alone. Intended for tests.
func OpenPath(path string, log *zap.Logger) (*Repo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &Repo{repo: repo, path: path, log: log}, nil
}

// Path returns the working copy location.
func (r *Repo) Path() string {
	return r.path
}

// TempDir returns the scratch directory for external tool temp files.
func (r *Repo) TempDir() string {
	if r.tempDir != "" {
		return r.tempDir
	}
	return os.TempDir()
}

// Close removes the whole temp tree, regardless of prior errors.
func (r *Repo) Close() {
	if r.tempDir != "" {
		if err := os.RemoveAll(r.tempDir); err != nil {
			r.log.Warn("cleanup failed", zap.String("dir", r.tempDir), zap.Error(err))
		}
	}
}

// CheckoutFix hard-resets index and working tree to the fix commit and
// verifies HEAD is still attached to a branch.
func (r *Repo) CheckoutFix(hash string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: plumbing.NewHash(hash), Mode: git.HardReset}); err != nil {
		return fmt.Errorf("reset to %s: %w", hash, err)
	}
	ref, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}
	if ref.Type() != plumbing.SymbolicReference {
		return fmt.Errorf("HEAD is detached after reset to %s", hash)
	}
	return nil
}

// Commit looks up a commit by hex hash.
func (r *Repo) Commit(hash string) (*object.Commit, error) {
	return r.repo.CommitObject(plumbing.NewHash(hash))
}

// ResolveRevision resolves a revision expression such as "HEAD^".
func (r *Repo) ResolveRevision(rev string) (string, error) {
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", rev, err)
	}
	return h.String(), nil
}

// ShowFile returns the content of a file at rev, like `git show rev:path`.
func (r *Repo) ShowFile(rev, path string) (string, error) {
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", rev, err)
	}
	commit, err := r.repo.CommitObject(*h)
	if err != nil {
		return "", err
	}
	file, err := commit.File(path)
	if err != nil {
		return "", fmt.Errorf("%s:%s: %w", rev, path, err)
	}
	return file.Contents()
}

// Summary returns the lines of `git show <hash> --summary`, which is
// the only place mode changes are reported.
func (r *Repo) Summary(hash string) ([]string, error) {
	cmd := exec.Command("git", "show", hash, "--summary")
	cmd.Dir = r.path
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git show %s --summary: %w", hash, err)
	}
	return strings.Split(string(out), "\n"), nil
}

// Modifications diffs the commit against its first parent (or the
// empty tree for a root commit) with rename detection.
func (r *Repo) Modifications(c *object.Commit) ([]FileModification, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	var parentTree *object.Tree
	var parent *object.Commit
	if c.NumParents() > 0 {
		parent, err = c.Parent(0)
		if err != nil {
			return nil, err
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTreeWithOptions(context.Background(), parentTree, tree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, err
	}

	mods := make([]FileModification, 0, len(changes))
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, err
		}
		from, to, err := change.Files()
		if err != nil {
			return nil, err
		}

		mod := FileModification{
			OldPath: change.From.Name,
			NewPath: change.To.Name,
			from:    from,
			to:      to,
		}
		switch action {
		case merkletrie.Insert:
			mod.Type = ChangeAdd
		case merkletrie.Delete:
			mod.Type = ChangeDelete
		default:
			if change.From.Name != change.To.Name {
				mod.Type = ChangeRename
			} else {
				mod.Type = ChangeModify
			}
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

// ChangedFileCount returns the number of files the commit touches,
// used by the large-commit predicate.
func (r *Repo) ChangedFileCount(c *object.Commit) (int, error) {
	mods, err := r.Modifications(c)
	if err != nil {
		return 0, err
	}
	return len(mods), nil
}

// ModifiedLineCount sums added and deleted lines across all files the
// commit touches.
func (r *Repo) ModifiedLineCount(hash string) (int, error) {
	c, err := r.Commit(hash)
	if err != nil {
		return 0, err
	}
	stats, err := c.Stats()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, s := range stats {
		total += s.Addition + s.Deletion
	}
	return total, nil
}

// CommitTimes returns the authored and committed timestamps of a commit.
func (r *Repo) CommitTimes(hash string) (authored, committed time.Time, err error) {
	c, err := r.Commit(hash)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return c.Author.When, c.Committer.When, nil
}

// WalkBack returns an iterator over history starting at hash and
// following parents backward.
func (r *Repo) WalkBack(hash string) (object.CommitIter, error) {
	return r.repo.Log(&git.LogOptions{From: plumbing.NewHash(hash)})
}

// copyTree replicates a directory tree, preserving symlinks.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
