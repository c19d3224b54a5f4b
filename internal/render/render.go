// Package render prints a timeline projection as a text tree.
package render

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/xlab/treeprint"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/rybkr/rewind/internal/timeline"
)

const defaultParallelism = 4

// Resolver is the part of a projection the renderer drives.
type Resolver interface {
	ResolveLabel(node timeline.Node) timeline.Presentation
	ResolveChildren(ctx context.Context, node timeline.Node) ([]timeline.Node, error)
}

// Renderer expands a projection down to Depth levels and prints it.
type Renderer struct {
	Resolver Resolver
	Title    string
	// Depth 1 prints only the roots.
	Depth int
	Color bool
	// Parallelism bounds sibling expansions per level.
	Parallelism int
}

type entry struct {
	node     timeline.Node
	children []*entry
	err      error
}

// Render writes the tree to w. Only a failure to resolve the roots is
// returned; failures below the roots are printed in place.
func (r *Renderer) Render(ctx context.Context, w io.Writer) error {
	roots, err := r.Resolver.ResolveChildren(ctx, timeline.Root)
	if err != nil {
		return err
	}

	tree := treeprint.NewWithRoot(r.paint(color.Bold)(r.Title))
	r.attach(tree, r.expand(ctx, roots, r.Depth-1))

	_, err = io.WriteString(w, tree.String())
	return err
}

// expand resolves nodes' children level by level. Siblings expand
// concurrently; a failed expansion is kept on its entry and never cancels
// the others.
func (r *Renderer) expand(ctx context.Context, nodes []timeline.Node, depth int) []*entry {
	entries := make([]*entry, len(nodes))

	var g errgroup.Group
	g.SetLimit(r.parallelism())
	for i, node := range nodes {
		e := &entry{node: node}
		entries[i] = e
		if depth <= 0 || r.Resolver.ResolveLabel(node).State == timeline.ExpandLeaf {
			continue
		}
		g.Go(func() error {
			children, err := r.Resolver.ResolveChildren(ctx, e.node)
			if err != nil {
				e.err = err
				return nil
			}
			e.children = r.expand(ctx, children, depth-1)
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

func (r *Renderer) attach(parent treeprint.Tree, entries []*entry) {
	for _, e := range entries {
		label := r.format(r.Resolver.ResolveLabel(e.node))
		if e.err == nil && len(e.children) == 0 {
			parent.AddNode(label)
			continue
		}
		branch := parent.AddBranch(label)
		if e.err != nil {
			branch.AddNode(r.paint(color.FgRed)(fmt.Sprintf("error: %v", e.err)))
			continue
		}
		r.attach(branch, e.children)
	}
}

func (r *Renderer) format(p timeline.Presentation) string {
	label := p.Label
	switch {
	case p.Icon.Color != "":
		label = r.paint(statusColor(p.Icon.Color))(label)
	case p.Icon.ID == "":
		label = r.paint(color.Bold)(label)
	}
	if p.Description != "" {
		label += "  " + r.paint(color.Faint)(p.Description)
	}
	return label
}

func (r *Renderer) paint(attrs ...color.Attribute) func(a ...interface{}) string {
	c := color.New(attrs...)
	if r.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.SprintFunc()
}

func (r *Renderer) parallelism() int {
	if r.Parallelism > 0 {
		return r.Parallelism
	}
	return defaultParallelism
}

func statusColor(themeColor string) color.Attribute {
	switch themeColor {
	case timeline.ColorGreen:
		return color.FgGreen
	case timeline.ColorYellow:
		return color.FgYellow
	case timeline.ColorRed:
		return color.FgRed
	default:
		return color.Reset
	}
}

// ShouldColor resolves a color mode ("auto", "always", "never") against f.
func ShouldColor(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return f != nil && term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}
