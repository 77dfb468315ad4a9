package szz

import (
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/gszz/gszz/internal/gitrepo"
)

// fixtureRepo builds a throwaway git repository for impact tests.
type fixtureRepo struct {
	t   *testing.T
	dir string
}

func newFixtureRepo(t *testing.T) fixtureRepo {
	t.Helper()
	f := fixtureRepo{t: t, dir: t.TempDir()}
	f.git("init", "-b", "main")
	f.git("config", "user.email", "test@test.com")
	f.git("config", "user.name", "Test")
	return f
}

func (f fixtureRepo) git(args ...string) string {
	f.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = f.dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		f.t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

func (f fixtureRepo) write(name, content string) {
	f.t.Helper()
	path := filepath.Join(f.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		f.t.Fatal(err)
	}
}

func (f fixtureRepo) remove(name string) {
	f.t.Helper()
	if err := os.Remove(filepath.Join(f.dir, name)); err != nil {
		f.t.Fatal(err)
	}
}

func (f fixtureRepo) commit(msg string) string {
	f.t.Helper()
	f.git("add", "-A")
	f.git("commit", "-m", msg)
	return f.git("rev-parse", "HEAD")[:40]
}

func (f fixtureRepo) open() *gitrepo.Repo {
	f.t.Helper()
	r, err := gitrepo.OpenPath(f.dir, zap.NewNop())
	if err != nil {
		f.t.Fatal(err)
	}
	return r
}

func TestExtractImpactedFiles(t *testing.T) {
	f := newFixtureRepo(t)
	f.write("a.py", "one\ntwo\nthree\nfour\n")
	f.commit("base")
	f.write("a.py", "one\nTWO\nthree\n")
	fix := f.commit("fix")

	impacted, err := ExtractImpactedFiles(f.open(), fix, nil, true, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(impacted) != 1 {
		t.Fatalf("expected 1 impacted file, got %d", len(impacted))
	}
	if impacted[0].FilePath != "a.py" {
		t.Errorf("path = %q, want a.py", impacted[0].FilePath)
	}
	// Line 2 was replaced and line 4 removed.
	if got := impacted[0].ModifiedLines.Lines(); !reflect.DeepEqual(got, []int{2, 4}) {
		t.Errorf("modified lines = %v, want [2 4]", got)
	}
}

func TestExtractImpactedFilesOnlyAdditions(t *testing.T) {
	f := newFixtureRepo(t)
	f.write("a.py", "x\n")
	f.commit("base")
	f.write("b.py", "new file\n")
	fix := f.commit("add only")

	impacted, err := ExtractImpactedFiles(f.open(), fix, nil, true, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(impacted) != 0 {
		t.Errorf("expected no impacted files for pure addition, got %v", impacted)
	}
}

func TestExtractImpactedFilesDeletedFileUsesOldPath(t *testing.T) {
	f := newFixtureRepo(t)
	f.write("gone.py", "a\nb\n")
	f.commit("base")
	f.remove("gone.py")
	fix := f.commit("delete")

	impacted, err := ExtractImpactedFiles(f.open(), fix, nil, true, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(impacted) != 1 || impacted[0].FilePath != "gone.py" {
		t.Fatalf("impacted = %v, want gone.py", impacted)
	}
	if got := impacted[0].ModifiedLines.Lines(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("modified lines = %v, want [1 2]", got)
	}
}

func TestExtractImpactedFilesExtensionFilter(t *testing.T) {
	f := newFixtureRepo(t)
	f.write("a.py", "x\ny\n")
	f.write("b.txt", "x\ny\n")
	f.commit("base")
	f.write("a.py", "X\ny\n")
	f.write("b.txt", "X\ny\n")
	fix := f.commit("fix both")

	impacted, err := ExtractImpactedFiles(f.open(), fix, []string{"py"}, true, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(impacted) != 1 || impacted[0].FilePath != "a.py" {
		t.Errorf("impacted = %v, want only a.py", impacted)
	}
}

func TestExtractImpactedFilesDeletedAndAdded(t *testing.T) {
	f := newFixtureRepo(t)
	f.write("a.py", "one\ntwo\nthree\nfour\n")
	f.commit("base")
	// Line 2 replaced in place (deleted and added), line 4 only deleted.
	f.write("a.py", "one\nTWO\nthree\n")
	fix := f.commit("fix")

	impacted, err := ExtractImpactedFiles(f.open(), fix, nil, false, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(impacted) != 1 {
		t.Fatalf("expected 1 impacted file, got %d", len(impacted))
	}
	if got := impacted[0].ModifiedLines.Lines(); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("modified lines = %v, want [2]", got)
	}
}

func TestMatchesExtension(t *testing.T) {
	tests := []struct {
		file string
		exts []string
		want bool
	}{
		{"Foo.java", []string{"java"}, true},
		{"foo.py", []string{"java"}, false},
		{"foo.test.py", []string{"py"}, true},
		{"Makefile", []string{"java"}, false},
		{"trailing.", []string{"java"}, false},
	}
	for _, tt := range tests {
		if got := matchesExtension(tt.file, tt.exts); got != tt.want {
			t.Errorf("matchesExtension(%q, %v) = %v, want %v", tt.file, tt.exts, got, tt.want)
		}
	}
}
