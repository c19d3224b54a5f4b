package gitcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/rybkr/rewind/internal/metrics"
)

// GoGitQuerier implements Querier in pure Go with go-git. The repository is
// opened fresh on every call.
type GoGitQuerier struct{}

func NewGoGitQuerier() *GoGitQuerier { return &GoGitQuerier{} }

func (g *GoGitQuerier) open(op, repoPath string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true, EnableDotGitCommonDir: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			err = fmt.Errorf("%w: %v", ErrNotRepository, err)
		}
		return nil, &VersionControlError{Op: op, Path: repoPath, Err: err}
	}
	return repo, nil
}

func (g *GoGitQuerier) Log(ctx context.Context, repoPath string, opts LogOptions) (records []CommitRecord, err error) {
	defer func() { metrics.RecordGitQuery(BackendGoGit, "log", err) }()

	repo, err := g.open("log", repoPath)
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []CommitRecord{}, nil
	} else if err != nil {
		return nil, &VersionControlError{Op: "log", Path: repoPath, Err: err}
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, &VersionControlError{Op: "log", Path: repoPath, Err: err}
	}
	defer iter.Close()

	decorations := decorate(repo, head)

	records = make([]CommitRecord, 0)
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !opts.IncludeMerges && c.NumParents() > 1 {
			return nil
		}
		records = append(records, recordFromCommit(c, decorations[c.Hash]))
		if opts.MaxCount > 0 && len(records) >= opts.MaxCount {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, &VersionControlError{Op: "log", Path: repoPath, Err: err}
	}
	return records, nil
}

func (g *GoGitQuerier) Show(ctx context.Context, repoPath string, hash Hash, opts ShowOptions) (diff string, err error) {
	defer func() { metrics.RecordGitQuery(BackendGoGit, "show", err) }()

	if !hash.IsValid() {
		return "", &VersionControlError{Op: "show", Path: repoPath, Err: fmt.Errorf("%w: %q", ErrUnknownRevision, hash)}
	}

	repo, err := g.open("show", repoPath)
	if err != nil {
		return "", err
	}

	commit, err := repo.CommitObject(plumbing.NewHash(string(hash)))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			err = fmt.Errorf("%w: %s", ErrUnknownRevision, hash)
		}
		return "", &VersionControlError{Op: "show", Path: repoPath, Err: err}
	}

	diff, err = commitPatch(ctx, commit, opts.FirstParent)
	if err != nil {
		return "", &VersionControlError{Op: "show", Path: repoPath, Err: err}
	}
	return diff, nil
}

// commitPatch renders the unified diff of a commit. Root commits are diffed
// against the empty tree; merges against the first parent, or against every
// parent in turn when firstParent is false.
func commitPatch(ctx context.Context, c *object.Commit, firstParent bool) (string, error) {
	if c.NumParents() == 0 {
		tree, err := c.Tree()
		if err != nil {
			return "", err
		}
		patch, err := (&object.Tree{}).PatchContext(ctx, tree)
		if err != nil {
			return "", err
		}
		return patch.String(), nil
	}

	parents := c.NumParents()
	if firstParent {
		parents = 1
	}

	var b strings.Builder
	for i := 0; i < parents; i++ {
		parent, err := c.Parent(i)
		if err != nil {
			return "", fmt.Errorf("parent %d of %s: %w", i, c.Hash, err)
		}
		patch, err := parent.PatchContext(ctx, c)
		if err != nil {
			return "", err
		}
		b.WriteString(patch.String())
	}
	return b.String(), nil
}

func recordFromCommit(c *object.Commit, refs []string) CommitRecord {
	parents := make([]Hash, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, Hash(p.String()))
	}

	subject, body, _ := strings.Cut(strings.TrimRight(c.Message, "\n"), "\n")

	return CommitRecord{
		Hash:    Hash(c.Hash.String()),
		Parents: parents,
		Author: Signature{
			Name:  c.Author.Name,
			Email: c.Author.Email,
			When:  c.Author.When,
		},
		Subject: subject,
		Body:    strings.TrimSpace(body),
		Refs:    refs,
	}
}

// decorate maps commits to branch and tag names the way %D prints them.
func decorate(repo *git.Repository, head *plumbing.Reference) map[plumbing.Hash][]string {
	out := make(map[plumbing.Hash][]string)
	if head.Name().IsBranch() {
		out[head.Hash()] = append(out[head.Hash()], "HEAD -> "+head.Name().Short())
	} else {
		out[head.Hash()] = append(out[head.Hash()], "HEAD")
	}

	refs, err := repo.References()
	if err != nil {
		return out
	}
	defer refs.Close()

	_ = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		switch {
		case name.IsBranch():
			if name == head.Name() {
				return nil
			}
			out[ref.Hash()] = append(out[ref.Hash()], name.Short())
		case name.IsTag():
			target := ref.Hash()
			if tag, err := repo.TagObject(target); err == nil {
				target = tag.Target
			}
			out[target] = append(out[target], "tag: "+name.Short())
		case name.IsRemote():
			out[ref.Hash()] = append(out[ref.Hash()], name.Short())
		}
		return nil
	})
	return out
}
