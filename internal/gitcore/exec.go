package gitcore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rybkr/rewind/internal/metrics"
)

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"

	// logFormat emits one record per commit: hash, parents, raw author
	// signature, subject, body, decorations.
	logFormat = "--format=%H%x1f%P%x1f%an <%ae> %ad%x1f%s%x1f%b%x1f%D%x1e"
)

// ExecQuerier implements Querier using the git binary.
type ExecQuerier struct{ r Runner }

// NewExecQuerier returns a Querier that runs git through r.
func NewExecQuerier(r Runner) *ExecQuerier { return &ExecQuerier{r: r} }

func (q *ExecQuerier) Log(ctx context.Context, repoPath string, opts LogOptions) (records []CommitRecord, err error) {
	defer func() { metrics.RecordGitQuery(BackendExec, "log", err) }()

	if err := checkWorkDir(repoPath); err != nil {
		return nil, &VersionControlError{Op: "log", Path: repoPath, Err: err}
	}

	args := []string{"log", "--date=raw", logFormat}
	if !opts.IncludeMerges {
		args = append(args, "--no-merges")
	}
	if opts.MaxCount > 0 {
		args = append(args, "--max-count="+strconv.Itoa(opts.MaxCount))
	}

	out, err := q.r.Run(ctx, repoPath, args...)
	if err != nil {
		if isEmptyHistory(err) {
			return []CommitRecord{}, nil
		}
		return nil, &VersionControlError{Op: "log", Path: repoPath, Err: classifyCommandError(err)}
	}

	records, err = parseLog(out)
	if err != nil {
		return nil, &VersionControlError{Op: "log", Path: repoPath, Err: err}
	}
	return records, nil
}

func (q *ExecQuerier) Show(ctx context.Context, repoPath string, hash Hash, opts ShowOptions) (diff string, err error) {
	defer func() { metrics.RecordGitQuery(BackendExec, "show", err) }()

	if err := checkWorkDir(repoPath); err != nil {
		return "", &VersionControlError{Op: "show", Path: repoPath, Err: err}
	}
	if !hash.IsValid() {
		return "", &VersionControlError{Op: "show", Path: repoPath, Err: fmt.Errorf("%w: %q", ErrUnknownRevision, hash)}
	}

	args := []string{"show", "--no-color", "--no-ext-diff", "--src-prefix=a/", "--dst-prefix=b/", "--format=medium", "-p"}
	if opts.FirstParent {
		args = append(args, "-m", "--first-parent")
	}
	args = append(args, string(hash))

	out, err := q.r.Run(ctx, repoPath, args...)
	if err != nil {
		return "", &VersionControlError{Op: "show", Path: repoPath, Err: classifyCommandError(err)}
	}
	return out, nil
}

// parseLog splits the output of logFormat into records.
func parseLog(out string) ([]CommitRecord, error) {
	records := make([]CommitRecord, 0)
	for _, raw := range strings.Split(out, recordSep) {
		raw = strings.TrimLeft(raw, "\r\n")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		fields := strings.Split(raw, fieldSep)
		if len(fields) != 6 {
			return nil, fmt.Errorf("malformed log record: %d fields", len(fields))
		}

		hash, err := NewHash(fields[0])
		if err != nil {
			return nil, fmt.Errorf("malformed log record: %w", err)
		}

		var parents []Hash
		for _, p := range strings.Fields(fields[1]) {
			parent, err := NewHash(p)
			if err != nil {
				return nil, fmt.Errorf("malformed parent of %s: %w", hash.Short(), err)
			}
			parents = append(parents, parent)
		}

		author, err := NewSignature(fields[2])
		if err != nil {
			return nil, fmt.Errorf("malformed author of %s: %w", hash.Short(), err)
		}

		var refs []string
		for _, ref := range strings.Split(fields[5], ",") {
			if ref = strings.TrimSpace(ref); ref != "" {
				refs = append(refs, ref)
			}
		}

		records = append(records, CommitRecord{
			Hash:    hash,
			Parents: parents,
			Author:  author,
			Subject: fields[3],
			Body:    strings.TrimSpace(fields[4]),
			Refs:    refs,
		})
	}
	return records, nil
}

func checkWorkDir(repoPath string) error {
	info, err := os.Stat(repoPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotRepository, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNotRepository, repoPath)
	}
	return nil
}

func isEmptyHistory(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return strings.Contains(cmdErr.Stderr, "does not have any commits yet")
}

// classifyCommandError attaches the matching sentinel to a git failure.
func classifyCommandError(err error) error {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return err
	}
	msg := strings.ToLower(cmdErr.Stderr)
	switch {
	case strings.Contains(msg, "not a git repository"):
		return fmt.Errorf("%w: %w", ErrNotRepository, err)
	case strings.Contains(msg, "unknown revision"),
		strings.Contains(msg, "bad object"),
		strings.Contains(msg, "bad revision"),
		strings.Contains(msg, "ambiguous argument"):
		return fmt.Errorf("%w: %w", ErrUnknownRevision, err)
	default:
		return err
	}
}
