package lineset

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffLines compares oldText and newText line by line and returns the
// 1-based line numbers deleted from oldText and added in newText.
// Deleted lines are numbered in the old content, added lines in the new.
func DiffLines(oldText, newText string) (deleted, added LineSet) {
	if oldText == newText {
		return LineSet{}, LineSet{}
	}

	dmp := diffmatchpatch.New()
	a, b, lineArr := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArr)

	var del, add []int
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldLine += n
			newLine += n
		case diffmatchpatch.DiffDelete:
			for i := 0; i < n; i++ {
				del = append(del, oldLine+i)
			}
			oldLine += n
		case diffmatchpatch.DiffInsert:
			for i := 0; i < n; i++ {
				add = append(add, newLine+i)
			}
			newLine += n
		}
	}
	return New(del...), New(add...)
}

// countLines counts lines in a diff chunk; a trailing fragment without
// a newline still counts as one line.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
