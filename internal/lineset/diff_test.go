package lineset

import (
	"reflect"
	"testing"
)

func TestDiffLines(t *testing.T) {
	tests := []struct {
		name        string
		oldText     string
		newText     string
		wantDeleted []int
		wantAdded   []int
	}{
		{
			name:    "identical",
			oldText: "a\nb\nc\n",
			newText: "a\nb\nc\n",
		},
		{
			name:        "single_line_changed",
			oldText:     "a\nb\nc\n",
			newText:     "a\nX\nc\n",
			wantDeleted: []int{2},
			wantAdded:   []int{2},
		},
		{
			name:        "pure_deletion",
			oldText:     "a\nb\nc\n",
			newText:     "a\nc\n",
			wantDeleted: []int{2},
		},
		{
			name:      "pure_addition",
			oldText:   "a\nc\n",
			newText:   "a\nb\nc\n",
			wantAdded: []int{2},
		},
		{
			name:        "file_deleted",
			oldText:     "a\nb\n",
			newText:     "",
			wantDeleted: []int{1, 2},
		},
		{
			name:      "file_added",
			oldText:   "",
			newText:   "a\nb\n",
			wantAdded: []int{1, 2},
		},
		{
			name:        "trailing_no_newline",
			oldText:     "a\nb",
			newText:     "a\nc",
			wantDeleted: []int{2},
			wantAdded:   []int{2},
		},
		{
			name:        "block_replaced",
			oldText:     "keep\nold1\nold2\nkeep2\n",
			newText:     "keep\nnew1\nnew2\nnew3\nkeep2\n",
			wantDeleted: []int{2, 3},
			wantAdded:   []int{2, 3, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleted, added := DiffLines(tt.oldText, tt.newText)
			if !reflect.DeepEqual(deleted.Lines(), tt.wantDeleted) {
				t.Errorf("deleted = %v, want %v", deleted.Lines(), tt.wantDeleted)
			}
			if !reflect.DeepEqual(added.Lines(), tt.wantAdded) {
				t.Errorf("added = %v, want %v", added.Lines(), tt.wantAdded)
			}
		})
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a\n", 1},
		{"a", 1},
		{"a\nb\n", 2},
		{"a\nb", 2},
	}
	for _, tt := range tests {
		if got := countLines(tt.in); got != tt.want {
			t.Errorf("countLines(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
