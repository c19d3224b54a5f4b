package timeline

import (
	"context"

	"github.com/rybkr/rewind/internal/diffparse"
	"github.com/rybkr/rewind/internal/gitcore"
)

// DiffParser turns raw diff text into file changes. Malformed input must
// yield an empty slice rather than an error.
type DiffParser interface {
	Parse(raw string) []diffparse.FileChange
}

// CommitNode is one commit of a repository log.
type CommitNode struct {
	querier  gitcore.Querier
	parser   DiffParser
	repoPath string
	record   gitcore.CommitRecord

	exp expansion
}

// NewCommitNode builds a commit node owned by the repository at repoPath.
func NewCommitNode(q gitcore.Querier, p DiffParser, repoPath string, record gitcore.CommitRecord) *CommitNode {
	return &CommitNode{
		querier:  q,
		parser:   p,
		repoPath: repoPath,
		record:   record,
		exp:      expansion{kind: KindCommit},
	}
}

func (c *CommitNode) Kind() Kind { return KindCommit }

func (c *CommitNode) Hash() gitcore.Hash { return c.record.Hash }

func (c *CommitNode) RepoPath() string { return c.repoPath }

// Record returns the log entry the node was built from.
func (c *CommitNode) Record() gitcore.CommitRecord { return c.record }

func (c *CommitNode) State() LoadState { return c.exp.state() }

func (c *CommitNode) Invalidate() { c.exp.invalidate() }

func (c *CommitNode) Present() Presentation {
	return Presentation{
		Label:       c.record.Subject,
		Description: c.record.Hash.Short(),
		Icon:        Icon{ID: IconCommit},
		State:       ExpandCollapsed,
	}
}

// Load returns one FileNode per file changed against the first parent, so a
// merge lists only what the merge itself brought in.
func (c *CommitNode) Load(ctx context.Context) ([]Node, error) {
	return c.exp.load(ctx, c.fetch)
}

func (c *CommitNode) fetch(ctx context.Context) ([]Node, error) {
	raw, err := c.querier.Show(ctx, c.repoPath, c.record.Hash, gitcore.ShowOptions{FirstParent: true})
	if err != nil {
		return nil, gitcore.AsVersionControlError("show", c.repoPath, err)
	}

	changes := c.parser.Parse(raw)
	children := make([]Node, 0, len(changes))
	for _, change := range changes {
		children = append(children, NewFileNode(change))
	}
	return children, nil
}
