// Package timeline projects git history as a lazily expanded tree of
// repositories, commits and changed files.
//
// Every entity implements Node. Children are fetched from the query service
// the first time a node is expanded and cached for the node's lifetime;
// concurrent expansions of one node share a single request. Nothing is
// refreshed automatically: callers that want fresh history call Invalidate.
package timeline

import "context"

// Kind tags the concrete entity behind a Node.
type Kind int

const (
	KindRepository Kind = iota
	KindCommit
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindRepository:
		return "repository"
	case KindCommit:
		return "commit"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// ExpandState tells the display layer whether a node can be opened.
type ExpandState int

const (
	ExpandLeaf ExpandState = iota
	ExpandCollapsed
)

func (s ExpandState) String() string {
	if s == ExpandCollapsed {
		return "collapsed"
	}
	return "leaf"
}

// Icon references a theme icon and an optional theme color. The zero value
// means the display layer's default.
type Icon struct {
	ID    string
	Color string
}

const (
	IconCommit       = "git-commit"
	IconDiffAdded    = "diff-added"
	IconDiffModified = "diff-modified"
	IconDiffRemoved  = "diff-removed"

	ColorGreen  = "charts.green"
	ColorYellow = "charts.yellow"
	ColorRed    = "charts.red"
)

// Presentation is the display projection of a node.
type Presentation struct {
	Label       string
	Description string
	Icon        Icon
	State       ExpandState
}

// Node is anything presentable and expandable in the tree.
type Node interface {
	Kind() Kind
	// Load returns the node's children. Leaves return an empty slice.
	Load(ctx context.Context) ([]Node, error)
	// Present never blocks.
	Present() Presentation
}

// Invalidator is implemented by nodes whose cached children can be dropped.
type Invalidator interface {
	Invalidate()
}

// Root is the sentinel passed to Projection.ResolveChildren for the top level.
var Root Node = nil
