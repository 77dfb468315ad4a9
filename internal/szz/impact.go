// Package szz implements the SZZ algorithm family: deriving the lines
// a fix commit impacts, blaming them against the parent revision, and
// filtering blame candidates into bug-introducing commits.
package szz

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gszz/gszz/internal/gitrepo"
	"github.com/gszz/gszz/internal/lineset"
)

// ImpactedFile is a file the fix commit touches, addressed by its
// pre-fix path, with the impacted 1-based line numbers in the parent
// revision.
type ImpactedFile struct {
	FilePath      string
	ModifiedLines lineset.LineSet
}

func (f ImpactedFile) String() string {
	return fmt.Sprintf("ImpactedFile(file_path=%q, modified_lines=%s)", f.FilePath, f.ModifiedLines)
}

// ExtractImpactedFiles parses the diff of the fix commit and returns
// the impacted files with their modified line numbers. Newly added
// files are skipped. With onlyDeleted, the impacted lines are the
// deleted line numbers; otherwise the deleted line numbers that also
// appear among the added ones.
func ExtractImpactedFiles(r *gitrepo.Repo, fixHash string, extToParse []string, onlyDeleted bool, log *zap.Logger) ([]ImpactedFile, error) {
	fix, err := r.Commit(fixHash)
	if err != nil {
		return nil, fmt.Errorf("lookup fix commit %s: %w", fixHash, err)
	}
	mods, err := r.Modifications(fix)
	if err != nil {
		return nil, fmt.Errorf("diff fix commit %s: %w", fixHash, err)
	}

	var impacted []ImpactedFile
	for _, mod := range mods {
		// Pure additions have no pre-image to blame.
		if mod.OldPath == "" {
			continue
		}

		if len(extToParse) > 0 && !matchesExtension(mod.FileName(), extToParse) {
			log.Info("skip file", zap.String("file", mod.FileName()))
			continue
		}

		filePath := mod.NewPath
		if mod.Type == gitrepo.ChangeDelete || mod.Type == gitrepo.ChangeRename {
			filePath = mod.OldPath
		}

		oldContent, err := mod.OldContent()
		if err != nil {
			log.Warn("cannot read pre-image", zap.String("file", mod.OldPath), zap.Error(err))
			continue
		}
		newContent, err := mod.NewContent()
		if err != nil {
			log.Warn("cannot read post-image", zap.String("file", mod.NewPath), zap.Error(err))
			continue
		}

		deleted, added := lineset.DiffLines(oldContent, newContent)
		modLines := deleted
		if !onlyDeleted {
			modLines = deleted.Intersect(added)
		}

		if !modLines.IsEmpty() {
			impacted = append(impacted, ImpactedFile{FilePath: filePath, ModifiedLines: modLines})
		}
	}

	log.Info("impacted files", zap.Int("count", len(impacted)))
	return impacted, nil
}

// matchesExtension checks the file's last dot-suffix against the
// configured extension list (given without the dot). Files without a
// dot never match.
func matchesExtension(fileName string, exts []string) bool {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 || idx == len(fileName)-1 {
		return false
	}
	suffix := fileName[idx+1:]
	for _, ext := range exts {
		if suffix == ext {
			return true
		}
	}
	return false
}
