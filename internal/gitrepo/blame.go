package gitrepo

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gszz/gszz/internal/comment"
	"github.com/gszz/gszz/internal/lineset"
)

// CrossFileMove selects the intensity of git blame -C detection:
// lines moved or copied from other files touched in the same commit,
// in the parent commit, or in any commit.
type CrossFileMove int

const (
	CrossFileNone CrossFileMove = iota
	CrossFileSameCommit
	CrossFileParentCommit
	CrossFileAnyCommit
)

// BlameOptions mirror the git blame flags the SZZ variants toggle.
type BlameOptions struct {
	SkipComments         bool
	IgnoreRevs           []string
	IgnoreRevsFile       string
	IgnoreWhitespace     bool
	DetectMoveWithinFile bool
	DetectMoveCrossFile  CrossFileMove
}

// BlameRecord is one blamed original line. Identity is the
// (original path, original line) pair: records for the same line
// collapse regardless of commit or text.
type BlameRecord struct {
	CommitHash string
	LineNum    int
	LineText   string
	FilePath   string
}

// RecordKey is the identity of a BlameRecord.
type RecordKey struct {
	FilePath string
	LineNum  int
}

// Key returns the record's set identity.
func (b BlameRecord) Key() RecordKey {
	return RecordKey{FilePath: b.FilePath, LineNum: b.LineNum}
}

// RecordSet is a set of blame records keyed by (path, line).
type RecordSet map[RecordKey]BlameRecord

// Add inserts a record, collapsing records for the same file+line.
func (s RecordSet) Add(b BlameRecord) {
	s[b.Key()] = b
}

// Merge folds other into s.
func (s RecordSet) Merge(other RecordSet) {
	for k, v := range other {
		s[k] = v
	}
}

// CommitHashes returns the distinct commit hashes in the set.
func (s RecordSet) CommitHashes() []string {
	seen := make(map[string]bool)
	var hashes []string
	for _, b := range s {
		if !seen[b.CommitHash] {
			seen[b.CommitHash] = true
			hashes = append(hashes, b.CommitHash)
		}
	}
	return hashes
}

// Blame runs git blame --porcelain on filePath at rev, restricted to
// the given modified lines (compressed into -L ranges), and returns
// one record per original line.
func (r *Repo) Blame(rev, filePath string, lines lineset.LineSet, opts BlameOptions) (RecordSet, error) {
	args := []string{"blame", "--porcelain"}
	if opts.IgnoreWhitespace {
		args = append(args, "-w")
	}
	if opts.IgnoreRevsFile != "" {
		args = append(args, "--ignore-revs-file", opts.IgnoreRevsFile)
	}
	for _, ignored := range opts.IgnoreRevs {
		args = append(args, "--ignore-rev", ignored)
	}
	if opts.DetectMoveWithinFile {
		args = append(args, "-M")
	}
	for i := 0; i < int(opts.DetectMoveCrossFile); i++ {
		args = append(args, "-C")
	}
	for _, rng := range lines.Ranges() {
		args = append(args, "-L", rng.GitArg())
	}
	args = append(args, rev, "--", filePath)

	r.log.Info("processing file", zap.String("file", filePath), zap.String("rev", rev))
	cmd := exec.Command("git", args...)
	cmd.Dir = r.path
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git blame %s at %s: %w", filePath, rev, err)
	}

	records := make(RecordSet)
	contents := make(map[string]string)
	for _, entry := range parsePorcelain(out, filePath) {
		key := entry.sha + ":" + entry.origPath
		content, ok := contents[key]
		if !ok {
			content, err = r.ShowFile(entry.sha, entry.origPath)
			if err != nil {
				r.log.Warn("cannot read blamed file", zap.String("rev", entry.sha),
					zap.String("file", entry.origPath), zap.Error(err))
				contents[key] = ""
				continue
			}
			contents[key] = content
		}
		if content == "" {
			continue
		}

		fileLines := strings.Split(content, "\n")
		if entry.origLine < 1 || entry.origLine > len(fileLines) {
			continue
		}
		text := strings.TrimSpace(fileLines[entry.origLine-1])

		if opts.SkipComments && r.isComment(entry.origLine, content, filepath.Base(entry.origPath)) {
			r.log.Info("skip comment line", zap.Int("line", entry.origLine), zap.String("text", text))
			continue
		}

		records.Add(BlameRecord{
			CommitHash: entry.sha,
			LineNum:    entry.origLine,
			LineText:   text,
			FilePath:   entry.origPath,
		})
	}
	return records, nil
}

// isComment checks whether the given line of the file content falls in
// a comment range.
func (r *Repo) isComment(lineNum int, content, baseName string) bool {
	for _, cr := range comment.Ranges(content, baseName, r.TempDir()) {
		if cr.Contains(lineNum) {
			return true
		}
	}
	return false
}

// porcelainEntry is one blamed line from porcelain output: the commit
// it is attributed to, the line number in that commit, and the path
// the file had there.
type porcelainEntry struct {
	sha      string
	origLine int
	origPath string
}

// parsePorcelain parses git blame --porcelain output.
//
// Each blamed line starts a group with
//
//	<40-byte SHA> <orig-line> <final-line> [<num-lines>]
//
// followed by header lines the first time a commit is seen, and a
// tab-prefixed content line. The filename header names the path in the
// blamed commit; it is remembered per commit because git omits
// repeated headers. defaultPath covers entries whose commit never got
// a filename header.
func parsePorcelain(out []byte, defaultPath string) []porcelainEntry {
	var entries []porcelainEntry
	fileNames := make(map[string]string)

	var currentSHA string
	for _, line := range strings.Split(string(out), "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "\t") {
			continue
		}

		if strings.HasPrefix(line, "filename ") {
			if currentSHA != "" {
				fileNames[currentSHA] = line[len("filename "):]
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) >= 3 && len(fields[0]) == 40 && isHex(fields[0]) {
			origLine, err1 := strconv.Atoi(fields[1])
			finalLine, err2 := strconv.Atoi(fields[2])
			if err1 != nil || err2 != nil || finalLine <= 0 {
				continue
			}
			currentSHA = fields[0]
			entries = append(entries, porcelainEntry{sha: currentSHA, origLine: origLine})
		}
	}

	for i := range entries {
		if name, ok := fileNames[entries[i].sha]; ok {
			entries[i].origPath = name
		} else {
			entries[i].origPath = defaultPath
		}
	}
	return entries
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
