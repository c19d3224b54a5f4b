// Package diffparse turns raw unified diff text into per-file change counts.
package diffparse

import (
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// FileChange summarizes one file section of a diff.
type FileChange struct {
	FromPath string
	// ToPath is empty when the file was deleted.
	ToPath    string
	Additions int
	Deletions int
	IsBinary  bool
	IsRename  bool
}

// Parser parses git-style unified diffs, including the commit header that
// `git show` prints before the first file.
type Parser struct{}

// Parse returns one FileChange per file in emission order. Malformed or empty
// input yields an empty slice.
func (Parser) Parse(raw string) []FileChange {
	changes := make([]FileChange, 0)
	if strings.TrimSpace(raw) == "" {
		return changes
	}

	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return changes
	}

	for _, f := range files {
		changes = append(changes, fromFile(f))
	}
	return changes
}

func fromFile(f *gitdiff.File) FileChange {
	change := FileChange{
		FromPath: f.OldName,
		ToPath:   f.NewName,
		IsBinary: f.IsBinary,
		IsRename: f.IsRename,
	}
	if f.IsNew {
		change.FromPath = ""
	}
	if f.IsDelete {
		change.ToPath = ""
	}
	for _, frag := range f.TextFragments {
		change.Additions += int(frag.LinesAdded)
		change.Deletions += int(frag.LinesDeleted)
	}
	return change
}
