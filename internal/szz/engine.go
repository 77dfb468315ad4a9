package szz

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gszz/gszz/internal/gitrepo"
	"github.com/gszz/gszz/internal/lineset"
	"github.com/gszz/gszz/internal/refminer"
)

// blameTimeBudget bounds the ignore-set fixpoint per fix commit.
const blameTimeBudget = time.Hour

// maxReblameDepth caps the refactoring-aware reblame recursion. The
// growing ignore list bounds it in practice, but a cycle through
// refactoring rectangles could otherwise recurse without limit.
const maxReblameDepth = 10

// Repository is the engine's port onto the working copy. gitrepo.Repo
// implements it; tests stub it.
type Repository interface {
	CheckoutFix(hash string) error
	Blame(rev, filePath string, lines lineset.LineSet, opts gitrepo.BlameOptions) (gitrepo.RecordSet, error)
	CommitTimes(hash string) (authored, committed time.Time, err error)
	ModifiedLineCount(hash string) (int, error)
}

// Options carries the per-run knobs the variants consume.
type Options struct {
	IgnoreRevsFilePath       string
	DetectMoveFromOtherFiles gitrepo.CrossFileMove
}

// Engine runs the variant-profiled candidate search for one fix at a
// time. It owns the ignore set for the duration of a fix.
type Engine struct {
	repo     Repository
	class    Classifier
	detector refminer.Detector
	profile  Profile
	opts     Options
	log      *zap.Logger

	timeBudget time.Duration
}

// NewEngine builds an engine for the given variant. detector is only
// consulted by the RA variant and may be nil otherwise.
func NewEngine(repo Repository, class Classifier, detector refminer.Detector, variant Variant, opts Options, log *zap.Logger) *Engine {
	return &Engine{
		repo:       repo,
		class:      class,
		detector:   detector,
		profile:    ProfileFor(variant),
		opts:       opts,
		log:        log,
		timeBudget: blameTimeBudget,
	}
}

// FindBIC resets the working tree to the fix commit, blames the
// impacted lines under the variant profile, and returns the selected
// bug-introducing commit hashes. issueDate, when non-nil, drops
// candidates newer than the issue.
func (e *Engine) FindBIC(fixHash string, impacted []ImpactedFile, issueDate *time.Time) ([]string, error) {
	if e.profile.RefactoringAware {
		impacted = e.pruneRefactored(fixHash, impacted)
	}

	if err := e.repo.CheckoutFix(fixHash); err != nil {
		return nil, err
	}

	var candidates map[string]bool
	switch {
	case !e.profile.UseIgnoreLoop:
		candidates = e.findSimple(impacted)
	case !e.profile.PerFileLoop:
		candidates = e.findWithIgnoreLoop(impacted)
	default:
		candidates = e.findPerFile(impacted)
	}

	filtered := e.filterByIssueDate(candidates, issueDate)
	return e.selectFinal(filtered), nil
}

// blameOptions derives the blame flags from the variant profile and
// the accumulated ignore set.
func (e *Engine) blameOptions(ignoreRevs []string) gitrepo.BlameOptions {
	opts := gitrepo.BlameOptions{
		SkipComments:         e.profile.SkipComments,
		IgnoreWhitespace:     e.profile.IgnoreWhitespace,
		DetectMoveWithinFile: e.profile.DetectMoveWithinFile,
		IgnoreRevsFile:       e.opts.IgnoreRevsFilePath,
		IgnoreRevs:           ignoreRevs,
	}
	if e.profile.UseCrossFileMove {
		opts.DetectMoveCrossFile = e.opts.DetectMoveFromOtherFiles
		if opts.DetectMoveCrossFile == gitrepo.CrossFileNone {
			opts.DetectMoveCrossFile = gitrepo.CrossFileSameCommit
		}
	}
	return opts
}

// blame dispatches to the refactoring-aware wrapper for RA.
func (e *Engine) blame(rev, filePath string, lines lineset.LineSet, opts gitrepo.BlameOptions) (gitrepo.RecordSet, error) {
	if e.profile.RefactoringAware {
		return e.refAwareBlame(rev, filePath, lines, opts, 0)
	}
	return e.repo.Blame(rev, filePath, lines, opts)
}

// annotate blames every impacted file against the fix parent. A
// failing file is logged and skipped; the others still contribute.
func (e *Engine) annotate(files []ImpactedFile, opts gitrepo.BlameOptions) gitrepo.RecordSet {
	records := make(gitrepo.RecordSet)
	for _, f := range files {
		rs, err := e.blame("HEAD^", f.FilePath, f.ModifiedLines, opts)
		if err != nil {
			e.log.Error("blame failed", zap.String("file", f.FilePath), zap.Error(err))
			continue
		}
		records.Merge(rs)
	}
	return records
}

// findSimple is the base variant: one blame pass, every blamed commit
// is a candidate.
func (e *Engine) findSimple(impacted []ImpactedFile) map[string]bool {
	records := e.annotate(impacted, e.blameOptions(nil))
	candidates := make(map[string]bool)
	for _, h := range records.CommitHashes() {
		candidates[h] = true
	}
	return candidates
}

// findWithIgnoreLoop grows the ignore set with the large-commit walk
// until it stabilizes, reblaming all files each round.
func (e *Engine) findWithIgnoreLoop(impacted []ImpactedFile) map[string]bool {
	start := time.Now()
	ignore := make(map[string]bool)
	var records gitrepo.RecordSet

	for {
		e.log.Info("excluding commits", zap.Int("count", len(ignore)))
		records = e.annotate(impacted, e.blameOptions(setKeys(ignore)))

		newIgnore := make(map[string]bool)
		for _, h := range records.CommitHashes() {
			if ignore[h] || newIgnore[h] {
				continue
			}
			mergeSet(newIgnore, e.class.LargeCommitWalk(h))
		}

		if isSubset(newIgnore, ignore) {
			break
		}
		mergeSet(ignore, newIgnore)
		if time.Since(start) > e.timeBudget {
			e.log.Error("blame timeout", zap.Duration("budget", e.timeBudget))
			break
		}
	}

	return e.dropStillLarge(records)
}

// findPerFile is the meta-change-aware loop: each impacted file runs
// its own fixpoint over a per-file copy of the ignore set, augmented
// with merge and meta-change commits.
func (e *Engine) findPerFile(impacted []ImpactedFile) map[string]bool {
	start := time.Now()
	globalIgnore := make(map[string]bool)
	bic := make(map[string]bool)

	for _, f := range impacted {
		fileIgnore := copySet(globalIgnore)
		var records gitrepo.RecordSet

		for {
			e.log.Info("excluding commits", zap.String("file", f.FilePath), zap.Int("count", len(fileIgnore)))
			records = e.annotate([]ImpactedFile{f}, e.blameOptions(setKeys(fileIgnore)))

			newIgnore := make(map[string]bool)
			newFileIgnore := make(map[string]bool)
			for _, rec := range records {
				h := rec.CommitHash
				if newIgnore[h] || newFileIgnore[h] || fileIgnore[h] {
					continue
				}
				mergeSet(newIgnore, e.class.LargeCommitWalk(h))
				mergeSet(newIgnore, e.class.MergeCommits(h))
				mergeSet(newFileIgnore, e.class.MetaChanges(h, rec.FilePath))
			}

			if isSubset(newIgnore, globalIgnore) && isSubset(newFileIgnore, fileIgnore) {
				break
			}
			timedOut := time.Since(start) > e.timeBudget
			mergeSet(globalIgnore, newIgnore)
			mergeSet(fileIgnore, globalIgnore)
			mergeSet(fileIgnore, newFileIgnore)
			if timedOut {
				e.log.Error("blame timeout", zap.Duration("budget", e.timeBudget))
				break
			}
		}

		mergeSet(bic, e.dropStillLarge(records))
	}
	return bic
}

// dropStillLarge re-filters the final blame commits through the
// large-commit walk: a commit still flagged large is not a candidate.
func (e *Engine) dropStillLarge(records gitrepo.RecordSet) map[string]bool {
	candidates := make(map[string]bool)
	for _, h := range records.CommitHashes() {
		if !e.class.LargeCommitWalk(h)[h] {
			candidates[h] = true
		}
	}
	return candidates
}

// filterByIssueDate keeps candidates whose relevant timestamp is not
// after the issue date. AG compares the authored date, the other
// variants the committed date.
func (e *Engine) filterByIssueDate(candidates map[string]bool, issueDate *time.Time) []string {
	if issueDate == nil {
		e.log.Info("not filtering by issue date")
		return setKeys(candidates)
	}

	var kept []string
	for h := range candidates {
		authored, committed, err := e.repo.CommitTimes(h)
		if err != nil {
			e.log.Error("unable to read commit dates", zap.String("commit", h), zap.Error(err))
			continue
		}
		ts := committed
		if e.profile.DateField == DateAuthored {
			ts = authored
		}
		if !ts.After(*issueDate) {
			kept = append(kept, h)
		}
	}
	e.log.Info("filtered by issue date", zap.Int("kept", len(kept)), zap.Int("total", len(candidates)))
	return kept
}

// selectFinal applies the variant's post-selection to the candidates.
func (e *Engine) selectFinal(candidates []string) []string {
	sort.Strings(candidates)

	switch e.profile.Selector {
	case SelectLatest:
		var best string
		var bestTime time.Time
		for _, h := range candidates {
			_, committed, err := e.repo.CommitTimes(h)
			if err != nil {
				e.log.Error("unable to read commit dates", zap.String("commit", h), zap.Error(err))
				continue
			}
			if best == "" || committed.After(bestTime) {
				best, bestTime = h, committed
			}
		}
		if best == "" {
			return nil
		}
		e.log.Info("selected bug introducing commit", zap.String("commit", best))
		return []string{best}

	case SelectLargest:
		var best string
		maxLines := 0
		for _, h := range candidates {
			count, err := e.repo.ModifiedLineCount(h)
			if err != nil {
				e.log.Error("unable to count modified lines", zap.String("commit", h), zap.Error(err))
				continue
			}
			if count > maxLines {
				maxLines = count
				best = h
			}
		}
		if best == "" {
			return nil
		}
		e.log.Info("selected bug introducing commit", zap.String("commit", best))
		return []string{best}

	default:
		return candidates
	}
}

func setKeys(s map[string]bool) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mergeSet(dst, src map[string]bool) {
	for k := range src {
		dst[k] = true
	}
}

func copySet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	mergeSet(out, s)
	return out
}

func isSubset(sub, super map[string]bool) bool {
	for k := range sub {
		if !super[k] {
			return false
		}
	}
	return true
}
