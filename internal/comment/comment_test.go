package comment

import (
	"reflect"
	"strings"
	"testing"
)

const pyFixture = `import os
# a comment

def foo():
    '''
    docstring body
    more text

    end soon
    '''
# inline note
    return 1

    """block
    body
    """
x = 1
# one
# two
# three
y = 2
z = compute(x, y)
print(z)
    '''open
closing'''
done = True
`

const jsFixture = `const a = 1;
/* block
done */
function foo() {
  return a;
}
const b = 2;
// single note
const c = 3;
/* multi
line
comment
end */
// after block
function bar() {
  return b + c;
// inside one
// inside two
// inside three
}
/* trailing
body
more
*/
const d = 4;
`

const phpFixture = `<?php
/* header
block
comment
*/
$a = 1;
$b = 2;
// slash comment
function foo() {
    return 1;
}
# hash comment
/* second
block
text
*/
// another
# and another
$c = 3;
$d = 4;
function bar() {
}
/* closing
block
text
*/
?>
`

const rbFixture = `a = 1
# single comment
b = 2
def foo
end
=begin
block
comment
spanning
many
lines
here
and
here
=end
# tail comment
c = 3
`

func TestRangesFixtures(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		content  string
		want     []Range
	}{
		{
			name:     "python",
			fileName: "test.py",
			content:  pyFixture,
			want:     []Range{{2, 2}, {5, 10}, {11, 11}, {14, 16}, {18, 18}, {19, 19}, {20, 20}, {24, 25}},
		},
		{
			name:     "javascript",
			fileName: "test.js",
			content:  jsFixture,
			want:     []Range{{2, 3}, {8, 8}, {10, 13}, {14, 14}, {17, 17}, {18, 18}, {19, 19}, {21, 24}},
		},
		{
			name:     "php",
			fileName: "test.php",
			content:  phpFixture,
			want:     []Range{{2, 5}, {8, 8}, {12, 12}, {13, 16}, {17, 17}, {18, 18}, {23, 26}},
		},
		{
			name:     "ruby",
			fileName: "test.rb",
			content:  rbFixture,
			want:     []Range{{2, 2}, {6, 15}, {16, 16}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ranges(tt.content, tt.fileName, t.TempDir())
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Ranges(%s) = %v, want %v", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestRangesIdempotent(t *testing.T) {
	first := Ranges(pyFixture, "test.py", t.TempDir())
	second := Ranges(pyFixture, "test.py", t.TempDir())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second run differs: %v vs %v", first, second)
	}
}

func TestRangesWithinBounds(t *testing.T) {
	fixtures := map[string]string{
		"test.py":  pyFixture,
		"test.js":  jsFixture,
		"test.php": phpFixture,
		"test.rb":  rbFixture,
	}
	for name, content := range fixtures {
		lineCount := len(strings.Split(content, "\n"))
		for _, r := range Ranges(content, name, t.TempDir()) {
			if r.Start < 1 || r.End > lineCount || r.Start > r.End {
				t.Errorf("%s: range %v out of bounds [1,%d]", name, r, lineCount)
			}
		}
	}
}

func TestUnterminatedBlock(t *testing.T) {
	// The open block never closes; no range is emitted for it, but the
	// scan continues and still finds the line comment.
	content := "code\n/* open forever\nbody\n// reached\n"
	got := Ranges(content, "x.js", t.TempDir())
	want := []Range{{4, 4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ranges = %v, want %v", got, want)
	}
}

func TestSingleLineDocstring(t *testing.T) {
	content := "x = 1\n\"\"\"one liner\"\"\"\ny = 2\n"
	got := Ranges(content, "d.py", t.TempDir())
	want := []Range{{2, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ranges = %v, want %v", got, want)
	}
}

func TestUnsupportedExtension(t *testing.T) {
	if got := Ranges("# not really\n", "notes.txt", t.TempDir()); got != nil {
		t.Errorf("expected nil for unsupported extension, got %v", got)
	}
}

func TestParseSrcmlOutput(t *testing.T) {
	out := []byte(`<?xml version="1.0"?>
<unit language="Java">
<comment type="line" pos:start="3:1" pos:end="3:20">// a line comment</comment>
<comment type="block" pos:start="7:1" pos:end="12:3">/* block */</comment>
<function pos:start="14:1" pos:end="20:1">...</function>
</unit>`)
	got := parseSrcmlOutput(out)
	want := []Range{{3, 3}, {7, 12}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseSrcmlOutput = %v, want %v", got, want)
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: 5, End: 10}
	for _, l := range []int{5, 7, 10} {
		if !r.Contains(l) {
			t.Errorf("Contains(%d) = false, want true", l)
		}
	}
	for _, l := range []int{4, 11} {
		if r.Contains(l) {
			t.Errorf("Contains(%d) = true, want false", l)
		}
	}
}
