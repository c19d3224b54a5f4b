package timeline

import (
	"context"

	"github.com/rybkr/rewind/internal/gitcore"
)

// Folder identifies one workspace folder.
type Folder struct {
	Name string
	Path string
}

// RepositoryNode is one workspace folder's repository.
type RepositoryNode struct {
	folder   Folder
	querier  gitcore.Querier
	parser   DiffParser
	maxCount int

	exp expansion
}

func newRepositoryNode(folder Folder, q gitcore.Querier, p DiffParser, maxCount int) *RepositoryNode {
	return &RepositoryNode{
		folder:   folder,
		querier:  q,
		parser:   p,
		maxCount: maxCount,
		exp:      expansion{kind: KindRepository},
	}
}

func (r *RepositoryNode) Kind() Kind { return KindRepository }

func (r *RepositoryNode) Folder() Folder { return r.folder }

func (r *RepositoryNode) State() LoadState { return r.exp.state() }

// Invalidate drops the cached commit list; the next Load reads the log again.
func (r *RepositoryNode) Invalidate() { r.exp.invalidate() }

func (r *RepositoryNode) Present() Presentation {
	return Presentation{
		Label: r.folder.Name,
		State: ExpandCollapsed,
	}
}

// Load returns one CommitNode per log entry, newest first.
func (r *RepositoryNode) Load(ctx context.Context) ([]Node, error) {
	return r.exp.load(ctx, r.fetch)
}

func (r *RepositoryNode) fetch(ctx context.Context) ([]Node, error) {
	records, err := r.querier.Log(ctx, r.folder.Path, gitcore.LogOptions{IncludeMerges: true, MaxCount: r.maxCount})
	if err != nil {
		return nil, gitcore.AsVersionControlError("log", r.folder.Path, err)
	}

	children := make([]Node, 0, len(records))
	for _, record := range records {
		children = append(children, NewCommitNode(r.querier, r.parser, r.folder.Path, record))
	}
	return children, nil
}
