package gitcore

import (
	"context"
	"fmt"
	"strings"
)

// Querier is the read-only history service the timeline expands against.
// Both methods fail with a *VersionControlError.
type Querier interface {
	// Log returns the commits reachable from HEAD, newest first.
	Log(ctx context.Context, repoPath string, opts LogOptions) ([]CommitRecord, error)
	// Show returns the raw unified diff introduced by a commit.
	Show(ctx context.Context, repoPath string, hash Hash, opts ShowOptions) (string, error)
}

const (
	BackendExec  = "exec"
	BackendGoGit = "gogit"
)

// NewQuerier returns the Querier for the named backend. gitBin is only used by
// the exec backend.
func NewQuerier(backend, gitBin string) (Querier, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendExec:
		return NewExecQuerier(NewExecRunner(gitBin)), nil
	case BackendGoGit:
		return NewGoGitQuerier(), nil
	default:
		return nil, fmt.Errorf("unknown git backend %q", backend)
	}
}
