package timeline

import (
	"context"
	"strings"

	"github.com/rybkr/rewind/internal/diffparse"
)

// Status is the change classification of a file inside a commit.
type Status int

const (
	StatusRemoved Status = iota
	StatusAdded
	StatusModified
)

func (s Status) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusModified:
		return "modified"
	default:
		return "removed"
	}
}

// Classify derives a status from line counts. Anything without additions is
// removed, including 0/0 changes such as pure renames and binary files.
func Classify(additions, deletions int) Status {
	if additions > 0 && deletions == 0 {
		return StatusAdded
	}
	if additions > 0 && deletions > 0 {
		return StatusModified
	}
	return StatusRemoved
}

const unknownFileLabel = "Unknown"

// FileNode is a leaf: one changed file of a commit.
type FileNode struct {
	path      string
	additions int
	deletions int
}

// NewFileNode builds a leaf from one parsed diff section.
func NewFileNode(change diffparse.FileChange) *FileNode {
	return &FileNode{
		path:      change.ToPath,
		additions: change.Additions,
		deletions: change.Deletions,
	}
}

func (f *FileNode) Kind() Kind { return KindFile }

// Path returns the file's path after the commit, empty for deletions.
func (f *FileNode) Path() string { return f.path }

func (f *FileNode) Additions() int { return f.additions }
func (f *FileNode) Deletions() int { return f.deletions }

// Status is recomputed from the counts on every call.
func (f *FileNode) Status() Status {
	return Classify(f.additions, f.deletions)
}

func (f *FileNode) State() LoadState { return Leaf }

func (f *FileNode) Load(context.Context) ([]Node, error) {
	return []Node{}, nil
}

func (f *FileNode) Present() Presentation {
	dir, name := splitPath(f.path)
	return Presentation{
		Label:       name,
		Description: dir,
		Icon:        statusIcon(f.Status()),
		State:       ExpandLeaf,
	}
}

// splitPath splits "src/a.ts" into "src" and "a.ts". A path with no base
// name labels as Unknown.
func splitPath(p string) (dir, name string) {
	i := strings.LastIndex(p, "/")
	dir, name = "", p
	if i >= 0 {
		dir, name = p[:i], p[i+1:]
	}
	if name == "" {
		return dir, unknownFileLabel
	}
	return dir, name
}

func statusIcon(s Status) Icon {
	switch s {
	case StatusAdded:
		return Icon{ID: IconDiffAdded, Color: ColorGreen}
	case StatusModified:
		return Icon{ID: IconDiffModified, Color: ColorYellow}
	default:
		return Icon{ID: IconDiffRemoved, Color: ColorRed}
	}
}
