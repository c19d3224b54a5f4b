package timeline

import (
	"context"

	"github.com/rybkr/rewind/internal/diffparse"
	"github.com/rybkr/rewind/internal/gitcore"
)

// Projection is the root of the tree handed to a display layer. Its folder
// list is fixed at construction.
type Projection struct {
	repos []*RepositoryNode
}

type options struct {
	querier  gitcore.Querier
	parser   DiffParser
	maxCount int
}

// Option configures a Projection.
type Option func(*options)

// WithQuerier sets the version-control query service. The default runs the
// git binary found on PATH.
func WithQuerier(q gitcore.Querier) Option {
	return func(o *options) { o.querier = q }
}

// WithParser sets the diff parser.
func WithParser(p DiffParser) Option {
	return func(o *options) { o.parser = p }
}

// WithMaxCount caps the number of commits each repository lists.
func WithMaxCount(n int) Option {
	return func(o *options) { o.maxCount = n }
}

// NewProjection builds one RepositoryNode per folder, in folder order.
func NewProjection(folders []Folder, opts ...Option) *Projection {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.querier == nil {
		o.querier = gitcore.NewExecQuerier(gitcore.NewExecRunner(""))
	}
	if o.parser == nil {
		o.parser = diffparse.Parser{}
	}

	repos := make([]*RepositoryNode, 0, len(folders))
	for _, folder := range folders {
		repos = append(repos, newRepositoryNode(folder, o.querier, o.parser, o.maxCount))
	}
	return &Projection{repos: repos}
}

// Repositories returns the top-level repository nodes.
func (p *Projection) Repositories() []*RepositoryNode {
	out := make([]*RepositoryNode, len(p.repos))
	copy(out, p.repos)
	return out
}

// ResolveLabel returns the display projection of node.
func (p *Projection) ResolveLabel(node Node) Presentation {
	return node.Present()
}

// ResolveChildren expands node. For Root it returns the repositories, or,
// when exactly one repository is configured, that repository's commits.
func (p *Projection) ResolveChildren(ctx context.Context, node Node) ([]Node, error) {
	if node == nil {
		return p.roots(ctx)
	}
	return node.Load(ctx)
}

func (p *Projection) roots(ctx context.Context) ([]Node, error) {
	if len(p.repos) == 1 {
		return p.repos[0].Load(ctx)
	}

	nodes := make([]Node, 0, len(p.repos))
	for _, repo := range p.repos {
		nodes = append(nodes, repo)
	}
	return nodes, nil
}

// Invalidate drops every repository's cached commit list.
func (p *Projection) Invalidate() {
	for _, repo := range p.repos {
		repo.Invalidate()
	}
}

// Lookup returns the repository node for a folder path.
func (p *Projection) Lookup(path string) (*RepositoryNode, bool) {
	for _, repo := range p.repos {
		if repo.folder.Path == path {
			return repo, true
		}
	}
	return nil, false
}
