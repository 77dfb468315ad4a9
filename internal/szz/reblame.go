package szz

import (
	"go.uber.org/zap"

	"github.com/gszz/gszz/internal/gitrepo"
	"github.com/gszz/gszz/internal/lineset"
	"github.com/gszz/gszz/internal/refminer"
)

// pruneRefactored removes from every impacted file the lines the
// refactoring detector attributes to a refactoring in the fix commit.
// Files left without lines are dropped. Detector failures keep the
// input unchanged.
func (e *Engine) pruneRefactored(fixHash string, impacted []ImpactedFile) []ImpactedFile {
	refs, err := e.detector.Refactorings(fixHash)
	if err != nil {
		e.log.Error("refactoring detection failed", zap.String("commit", fixHash), zap.Error(err))
		return impacted
	}

	var out []ImpactedFile
	for _, f := range impacted {
		lines := f.ModifiedLines.Filter(func(line int) bool {
			for _, ref := range refs {
				for _, loc := range ref.RightSideLocations {
					if loc.Contains(f.FilePath, line) {
						e.log.Info("ignoring refactored line",
							zap.String("file", f.FilePath), zap.Int("line", line),
							zap.String("refactoring", ref.Type))
						return false
					}
				}
			}
			return true
		})
		if !lines.IsEmpty() {
			out = append(out, ImpactedFile{FilePath: f.FilePath, ModifiedLines: lines})
		}
	}
	return out
}

// reblameKey groups suppressed records per refactoring commit and file.
type reblameKey struct {
	commit string
	file   string
}

// refAwareBlame blames, suppresses records whose line lies in a
// refactoring of the blamed commit, and re-blames those lines at the
// refactoring commit itself with that commit added to the ignore
// list. Recursion is bounded by the growing ignore list and the depth
// cap.
func (e *Engine) refAwareBlame(rev, filePath string, lines lineset.LineSet, opts gitrepo.BlameOptions, depth int) (gitrepo.RecordSet, error) {
	base, err := e.repo.Blame(rev, filePath, lines, opts)
	if err != nil {
		return nil, err
	}

	refsByCommit := make(map[string][]refminer.Refactoring)
	for _, h := range base.CommitHashes() {
		refs, err := e.detector.Refactorings(h)
		if err != nil {
			e.log.Error("refactoring detection failed", zap.String("commit", h), zap.Error(err))
			continue
		}
		refsByCommit[h] = refs
	}

	result := make(gitrepo.RecordSet)
	toReblame := make(map[reblameKey][]int)
	for _, rec := range base {
		suppressed := false
		for _, ref := range refsByCommit[rec.CommitHash] {
			for _, loc := range ref.RightSideLocations {
				if loc.Contains(rec.FilePath, rec.LineNum) {
					e.log.Info("ignoring refactored blame line",
						zap.String("file", rec.FilePath), zap.Int("line", rec.LineNum),
						zap.String("refactoring", ref.Type))
					suppressed = true
				}
			}
		}
		if suppressed {
			k := reblameKey{commit: rec.CommitHash, file: rec.FilePath}
			toReblame[k] = append(toReblame[k], rec.LineNum)
		} else {
			result.Add(rec)
		}
	}

	if len(toReblame) > 0 && depth >= maxReblameDepth {
		e.log.Warn("reblame recursion cap reached", zap.Int("depth", depth), zap.Int("pending", len(toReblame)))
		return result, nil
	}

	for k, lineNums := range toReblame {
		e.log.Info("re-blaming because of refactoring",
			zap.String("file", k.file), zap.String("rev", k.commit), zap.Ints("lines", lineNums))

		next := opts
		next.IgnoreRevs = append(append([]string(nil), opts.IgnoreRevs...), k.commit)

		recs, err := e.refAwareBlame(k.commit, k.file, lineset.New(lineNums...), next, depth+1)
		if err != nil {
			e.log.Error("reblame failed", zap.String("file", k.file), zap.String("rev", k.commit), zap.Error(err))
			continue
		}
		result.Merge(recs)
	}
	return result, nil
}
