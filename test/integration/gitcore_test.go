package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rybkr/rewind/internal/diffparse"
	"github.com/rybkr/rewind/internal/gitcore"
	"github.com/rybkr/rewind/internal/timeline"
)

// backends runs every test against both query services.
var backends = map[string]func(git string) gitcore.Querier{
	gitcore.BackendExec: func(git string) gitcore.Querier {
		return gitcore.NewExecQuerier(gitcore.NewExecRunner(git))
	},
	gitcore.BackendGoGit: func(string) gitcore.Querier {
		return gitcore.NewGoGitQuerier()
	},
}

func TestLogNewestFirst(t *testing.T) {
	repoFS := newGitRepo(t)
	var commits []gitcore.Hash
	for i := 0; i < 4; i++ {
		commits = append(commits, repoFS.commit(
			fmt.Sprintf("commit-%d", i),
			map[string]string{"README.md": fmt.Sprintf("iteration %d\n", i)},
		))
	}

	for name, newQuerier := range backends {
		t.Run(name, func(t *testing.T) {
			records, err := newQuerier(repoFS.git).Log(context.Background(), repoFS.dir, gitcore.LogOptions{IncludeMerges: true})
			if err != nil {
				t.Fatalf("log failed: %v", err)
			}
			if len(records) != len(commits) {
				t.Fatalf("expected %d commits, got %d", len(commits), len(records))
			}
			for i, record := range records {
				want := commits[len(commits)-1-i]
				if record.Hash != want {
					t.Fatalf("record %d: got %s want %s", i, record.Hash, want)
				}
			}
			if records[0].Subject != "commit-3" || records[0].Author.Email != "test@example.com" {
				t.Fatalf("unexpected newest record: %+v", records[0])
			}
		})
	}
}

func TestLogMaxCount(t *testing.T) {
	repoFS := newGitRepo(t)
	for i := 0; i < 3; i++ {
		repoFS.commit(fmt.Sprintf("c%d", i), map[string]string{"f.txt": fmt.Sprintf("%d\n", i)})
	}

	for name, newQuerier := range backends {
		t.Run(name, func(t *testing.T) {
			records, err := newQuerier(repoFS.git).Log(context.Background(), repoFS.dir, gitcore.LogOptions{IncludeMerges: true, MaxCount: 2})
			if err != nil {
				t.Fatalf("log failed: %v", err)
			}
			if len(records) != 2 || records[0].Subject != "c2" {
				t.Fatalf("unexpected records: %+v", records)
			}
		})
	}
}

func TestLogEmptyHistory(t *testing.T) {
	repoFS := newGitRepo(t)

	for name, newQuerier := range backends {
		t.Run(name, func(t *testing.T) {
			records, err := newQuerier(repoFS.git).Log(context.Background(), repoFS.dir, gitcore.LogOptions{})
			if err != nil {
				t.Fatalf("expected empty history, got %v", err)
			}
			if len(records) != 0 {
				t.Fatalf("expected no records, got %d", len(records))
			}
		})
	}
}

func TestLogNotRepository(t *testing.T) {
	repoFS := newGitRepo(t)
	plain := t.TempDir()

	for name, newQuerier := range backends {
		t.Run(name, func(t *testing.T) {
			_, err := newQuerier(repoFS.git).Log(context.Background(), plain, gitcore.LogOptions{})
			if !errors.Is(err, gitcore.ErrNotRepository) {
				t.Fatalf("expected ErrNotRepository, got %v", err)
			}
			if !gitcore.IsVersionControlError(err) {
				t.Fatalf("expected VersionControlError, got %T", err)
			}
		})
	}
}

func TestShowUnknownRevision(t *testing.T) {
	repoFS := newGitRepo(t)
	repoFS.commit("only", map[string]string{"a.txt": "a\n"})
	missing := gitcore.Hash(strings.Repeat("ab", 20))

	for name, newQuerier := range backends {
		t.Run(name, func(t *testing.T) {
			_, err := newQuerier(repoFS.git).Show(context.Background(), repoFS.dir, missing, gitcore.ShowOptions{FirstParent: true})
			if !errors.Is(err, gitcore.ErrUnknownRevision) {
				t.Fatalf("expected ErrUnknownRevision, got %v", err)
			}
		})
	}
}

// A commit that adds, modifies and deletes files projects to one leaf per
// file with the matching status.
func TestProjectionClassifiesChanges(t *testing.T) {
	repoFS := newGitRepo(t)
	repoFS.commit("base", map[string]string{
		"README.md": "one\ntwo\n",
		"old.txt":   "gone soon\n",
	})
	repoFS.remove("old.txt")
	repoFS.commit("mixed", map[string]string{
		"README.md": "one\nthree\n",
		"src/a.ts":  "export {}\n",
	})

	for name, newQuerier := range backends {
		t.Run(name, func(t *testing.T) {
			p := newProjection(repoFS, newQuerier)

			commits, err := p.ResolveChildren(context.Background(), timeline.Root)
			if err != nil {
				t.Fatalf("resolve roots: %v", err)
			}
			if len(commits) != 2 {
				t.Fatalf("expected 2 commits, got %d", len(commits))
			}
			if label := p.ResolveLabel(commits[0]).Label; label != "mixed" {
				t.Fatalf("newest commit label %q", label)
			}

			files, err := p.ResolveChildren(context.Background(), commits[0])
			if err != nil {
				t.Fatalf("resolve files: %v", err)
			}
			got := statuses(t, p, files)
			want := map[string]string{
				"README.md":   timeline.StatusModified.String(),
				"src/a.ts":    timeline.StatusAdded.String(),
				"/" + unknown: timeline.StatusRemoved.String(),
			}
			if len(got) != len(want) {
				t.Fatalf("got %v want %v", got, want)
			}
			for key, status := range want {
				if got[key] != status {
					t.Fatalf("%s: got %q want %q (all: %v)", key, got[key], status, got)
				}
			}
		})
	}
}

// A merge lists only what it brought in relative to its first parent.
func TestProjectionMergeUsesFirstParent(t *testing.T) {
	repoFS := newGitRepo(t)
	repoFS.commit("base", map[string]string{"a.txt": "base\n"})
	repoFS.run("checkout", "-q", "-b", "feature")
	repoFS.commit("feature work", map[string]string{"feature.txt": "feature\n"})
	repoFS.run("checkout", "-q", "main")
	repoFS.commit("main work", map[string]string{"a.txt": "main\n"})
	merge := repoFS.merge("feature")

	for name, newQuerier := range backends {
		t.Run(name, func(t *testing.T) {
			p := newProjection(repoFS, newQuerier)

			commits, err := p.ResolveChildren(context.Background(), timeline.Root)
			if err != nil {
				t.Fatalf("resolve roots: %v", err)
			}
			if len(commits) != 4 {
				t.Fatalf("expected 4 commits including the merge, got %d", len(commits))
			}
			head, ok := commits[0].(*timeline.CommitNode)
			if !ok || head.Hash() != merge {
				t.Fatalf("expected merge %s first, got %v", merge, commits[0])
			}

			files, err := p.ResolveChildren(context.Background(), head)
			if err != nil {
				t.Fatalf("resolve files: %v", err)
			}
			got := statuses(t, p, files)
			if len(got) != 1 || got["feature.txt"] != timeline.StatusAdded.String() {
				t.Fatalf("unexpected merge files: %v", got)
			}
		})
	}
}

func TestRepositoryFingerprintTracksCommits(t *testing.T) {
	repoFS := newGitRepo(t)
	repoFS.commit("first", map[string]string{"a.txt": "1\n"})

	repo, err := gitcore.OpenRepository(repoFS.dir)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	before, err := repo.Fingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	head := repoFS.commit("second", map[string]string{"a.txt": "2\n"})
	after, err := repo.Fingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if before == after {
		t.Fatalf("fingerprint did not change after a commit")
	}

	got, ref, err := repo.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if got != head || ref != "refs/heads/main" {
		t.Fatalf("unexpected HEAD %s (%s), want %s", got, ref, head)
	}

	repoFS.run("pack-refs", "--all")
	packed, err := repo.Fingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if packed != after {
		t.Fatalf("packing refs must not change the fingerprint")
	}
}

const unknown = "Unknown"

// statuses keys each file leaf by "description/label".
func statuses(t *testing.T, p *timeline.Projection, files []timeline.Node) map[string]string {
	t.Helper()
	out := make(map[string]string, len(files))
	for _, n := range files {
		f, ok := n.(*timeline.FileNode)
		if !ok {
			t.Fatalf("expected file node, got %T", n)
		}
		pres := p.ResolveLabel(f)
		key := pres.Label
		if pres.Description != "" || pres.Label == unknown {
			key = pres.Description + "/" + pres.Label
		}
		out[key] = f.Status().String()
	}
	return out
}

func newProjection(repoFS *gitRepo, newQuerier func(string) gitcore.Querier) *timeline.Projection {
	return timeline.NewProjection(
		[]timeline.Folder{{Name: filepath.Base(repoFS.dir), Path: repoFS.dir}},
		timeline.WithQuerier(newQuerier(repoFS.git)),
		timeline.WithParser(diffparse.Parser{}),
	)
}

type gitRepo struct {
	t     *testing.T
	dir   string
	git   string
	clock int64
}

func newGitRepo(t *testing.T) *gitRepo {
	t.Helper()
	gitPath, err := exec.LookPath("git")
	if err != nil {
		t.Skip("git binary not available; skipping integration suite")
	}

	repo := &gitRepo{
		t:     t,
		dir:   t.TempDir(),
		git:   gitPath,
		clock: 1700000000,
	}
	repo.run("init", "-q")
	repo.run("symbolic-ref", "HEAD", "refs/heads/main")
	repo.run("config", "user.name", "Test User")
	repo.run("config", "user.email", "test@example.com")
	repo.run("config", "commit.gpgsign", "false")
	return repo
}

func (r *gitRepo) run(args ...string) string {
	r.t.Helper()
	return gitExec(r.t, r.git, r.dir, nil, args...)
}

// tick advances the commit clock so that history order never depends on
// two commits sharing a timestamp.
func (r *gitRepo) tick() []string {
	r.clock += 60
	date := fmt.Sprintf("%d +0000", r.clock)
	return []string{"GIT_AUTHOR_DATE=" + date, "GIT_COMMITTER_DATE=" + date}
}

func (r *gitRepo) commit(message string, files map[string]string) gitcore.Hash {
	r.t.Helper()
	for path, content := range files {
		r.write(path, content)
	}
	r.run("add", "-A", ".")
	gitExec(r.t, r.git, r.dir, r.tick(), "commit", "-q", "-m", message)
	return r.head()
}

func (r *gitRepo) merge(branch string) gitcore.Hash {
	r.t.Helper()
	gitExec(r.t, r.git, r.dir, r.tick(), "merge", "-q", "--no-ff", "--no-edit", branch)
	return r.head()
}

func (r *gitRepo) head() gitcore.Hash {
	ref := strings.TrimSpace(r.run("rev-parse", "HEAD"))
	hash, err := gitcore.NewHash(ref)
	if err != nil {
		r.t.Fatalf("invalid commit hash %q: %v", ref, err)
	}
	return hash
}

func (r *gitRepo) write(relPath, content string) {
	fullPath := filepath.Join(r.dir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		r.t.Fatalf("mkdir %s failed: %v", filepath.Dir(fullPath), err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s failed: %v", fullPath, err)
	}
}

func (r *gitRepo) remove(relPath string) {
	if err := os.Remove(filepath.Join(r.dir, relPath)); err != nil {
		r.t.Fatalf("remove %s failed: %v", relPath, err)
	}
}

func gitExec(t *testing.T, gitPath, dir string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command(gitPath, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\nOutput: %s", args, err, string(output))
	}
	return string(output)
}
