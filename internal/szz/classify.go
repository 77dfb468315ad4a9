package szz

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"go.uber.org/zap"

	"github.com/gszz/gszz/internal/gitrepo"
)

// Classifier flags commits that should not count as bug introducers:
// bulk changes, merges, and meta-changes such as renames or mode
// flips. The engine consumes it as a port so tests can stub it.
type Classifier interface {
	// LargeCommitWalk walks history backward from hash, accumulating
	// contiguous large commits, and stops at the first non-large one.
	LargeCommitWalk(hash string) map[string]bool
	// MergeCommits returns {hash} if the commit has multiple parents.
	MergeCommits(hash string) map[string]bool
	// MetaChanges returns {hash} if the commit changes the mode of
	// currentFile, or touches it with a change type treated as a
	// meta-change (rename or copy by default).
	MetaChanges(hash, currentFile string) map[string]bool
}

// GitClassifier implements Classifier over a repository working copy.
type GitClassifier struct {
	repo                *gitrepo.Repo
	maxChangeSize       int
	changeTypesToIgnore []gitrepo.ChangeType
	log                 *zap.Logger
}

// NewClassifier builds a classifier. Commits touching more than
// maxChangeSize files count as large; renames and copies count as
// meta-changes.
func NewClassifier(repo *gitrepo.Repo, maxChangeSize int, log *zap.Logger) *GitClassifier {
	return &GitClassifier{
		repo:                repo,
		maxChangeSize:       maxChangeSize,
		changeTypesToIgnore: []gitrepo.ChangeType{gitrepo.ChangeRename, gitrepo.ChangeCopy},
		log:                 log,
	}
}

// SetChangeTypesToIgnore overrides the change types treated as
// meta-changes.
func (c *GitClassifier) SetChangeTypesToIgnore(types []gitrepo.ChangeType) {
	c.changeTypesToIgnore = types
}

// LargeCommitWalk accumulates contiguous large commits walking
// backward from hash. Per-commit analysis errors are logged and the
// walk moves on.
func (c *GitClassifier) LargeCommitWalk(hash string) map[string]bool {
	excluded := make(map[string]bool)

	iter, err := c.repo.WalkBack(hash)
	if err != nil {
		c.log.Error("unable to walk history", zap.String("commit", hash), zap.Error(err))
		return excluded
	}
	defer iter.Close()

	err = iter.ForEach(func(commit *object.Commit) error {
		count, err := c.repo.ChangedFileCount(commit)
		if err != nil {
			c.log.Error("unable to analyze commit", zap.String("commit", commit.Hash.String()), zap.Error(err))
			return nil
		}
		if count > c.maxChangeSize {
			excluded[commit.Hash.String()] = true
			return nil
		}
		return storer.ErrStop
	})
	if err != nil {
		c.log.Error("history walk aborted", zap.String("commit", hash), zap.Error(err))
	}

	if len(excluded) > 0 {
		c.log.Info("commits excluded by change size",
			zap.Int("count", len(excluded)), zap.Int("max_change_size", c.maxChangeSize))
	}
	return excluded
}

// MergeCommits returns {hash} when the commit has more than one parent.
func (c *GitClassifier) MergeCommits(hash string) map[string]bool {
	merges := make(map[string]bool)
	commit, err := c.repo.Commit(hash)
	if err != nil {
		c.log.Error("unable to analyze commit", zap.String("commit", hash), zap.Error(err))
		return merges
	}
	if commit.NumParents() > 1 {
		merges[hash] = true
		c.log.Info("merge commit excluded", zap.String("commit", hash))
	}
	return merges
}

// MetaChanges returns {hash} when the commit's effect on currentFile
// is a mode change, or a modification whose change type is in the
// ignore list (renames and copies by default).
func (c *GitClassifier) MetaChanges(hash, currentFile string) map[string]bool {
	meta := make(map[string]bool)

	summary, err := c.repo.Summary(hash)
	if err != nil {
		c.log.Error("unable to read commit summary", zap.String("commit", hash), zap.Error(err))
		summary = nil
	}
	if isModeChange(summary, currentFile) {
		c.log.Info("exclude meta-change (file mode change)",
			zap.String("file", currentFile), zap.String("commit", hash))
		meta[hash] = true
		return meta
	}

	commit, err := c.repo.Commit(hash)
	if err != nil {
		c.log.Error("unable to analyze commit", zap.String("commit", hash), zap.Error(err))
		return meta
	}
	mods, err := c.repo.Modifications(commit)
	if err != nil {
		c.log.Error("unable to analyze commit", zap.String("commit", hash), zap.Error(err))
		return meta
	}
	for _, m := range mods {
		if (currentFile == m.NewPath || currentFile == m.OldPath) && c.typeIgnored(m.Type) {
			c.log.Info("exclude meta-change",
				zap.String("change_type", m.Type.String()),
				zap.String("file", currentFile), zap.String("commit", hash))
			meta[hash] = true
		}
	}
	return meta
}

func (c *GitClassifier) typeIgnored(t gitrepo.ChangeType) bool {
	for _, ignored := range c.changeTypesToIgnore {
		if t == ignored {
			return true
		}
	}
	return false
}

// isModeChange scans `git show --summary` output for a mode change
// line referencing the file.
func isModeChange(summary []string, currentFile string) bool {
	for _, line := range summary {
		if strings.HasPrefix(strings.TrimSpace(line), "mode change") && strings.Contains(line, currentFile) {
			return true
		}
	}
	return false
}
