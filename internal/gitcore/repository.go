package gitcore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Repository is a located git repository on disk. It reads refs directly from
// the git directory; history and diffs are served by a Querier.
type Repository struct {
	gitDir  string
	workDir string

	refs         map[string]Hash
	head         Hash
	headRef      string
	headDetached bool

	mu sync.RWMutex
}

// OpenRepository locates and validates the repository containing path.
// path can be either:
//   - The working directory (will find .git within)
//   - The .git directory itself
//   - A directory nested inside a working tree
func OpenRepository(path string) (*Repository, error) {
	gitDir, workDir, err := findGitDirectory(path)
	if err != nil {
		return nil, &VersionControlError{Op: "open", Path: path, Err: err}
	}

	if err := validateGitDirectory(gitDir); err != nil {
		return nil, &VersionControlError{Op: "open", Path: path, Err: err}
	}

	return &Repository{
		gitDir:  gitDir,
		workDir: workDir,
		refs:    make(map[string]Hash),
	}, nil
}

// Name returns the repository's directory name.
func (r *Repository) Name() string {
	return filepath.Base(r.workDir)
}

// GitDir returns the absolute path of the git directory.
func (r *Repository) GitDir() string {
	return r.gitDir
}

// WorkDir returns the absolute path of the working tree.
func (r *Repository) WorkDir() string {
	return r.workDir
}

// findGitDirectory locates the .git directory starting from the given path.
// Returns both the .git directory and the working directory.
func findGitDirectory(startPath string) (gitDir string, workDir string, err error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if filepath.Base(absPath) == ".git" {
		info, err := os.Stat(absPath)
		if err == nil && info.IsDir() {
			return absPath, filepath.Dir(absPath), nil
		}
	}

	currentPath := absPath
	for {
		gitPath := filepath.Join(currentPath, ".git")

		info, err := os.Stat(gitPath)
		if err == nil {
			if info.IsDir() {
				return gitPath, currentPath, nil
			}
			return handleGitFile(gitPath, currentPath)
		}

		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return "", "", fmt.Errorf("%w (or any parent up to mount point): %s", ErrNotRepository, startPath)
		}
		currentPath = parentPath
	}
}

// handleGitFile handles the case where .git is a file (worktrees, submodules).
// .git file format: "gitdir: /path/to/actual/.git"
func handleGitFile(gitFilePath string, workDir string) (string, string, error) {
	content, err := os.ReadFile(gitFilePath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read .git file: %w", err)
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return "", "", fmt.Errorf("%w: invalid .git file format: %s", ErrNotRepository, gitFilePath)
	}

	gitDir := strings.TrimPrefix(line, "gitdir: ")
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(filepath.Dir(gitFilePath), gitDir)
	}
	gitDir = filepath.Clean(gitDir)

	if _, err := os.Stat(gitDir); err != nil {
		return "", "", fmt.Errorf("%w: gitdir points to non-existent directory: %s", ErrNotRepository, gitDir)
	}

	return gitDir, workDir, nil
}

// validateGitDirectory checks if the directory is a valid Git repository.
// Linked worktrees keep objects and refs in the common directory.
func validateGitDirectory(gitDir string) error {
	info, err := os.Stat(gitDir)
	if err != nil {
		return fmt.Errorf("%w: git directory does not exist: %v", ErrNotRepository, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: git path is not a directory: %s", ErrNotRepository, gitDir)
	}

	if _, err := os.Stat(filepath.Join(gitDir, "HEAD")); err != nil {
		return fmt.Errorf("%w: invalid git repository, missing: HEAD", ErrNotRepository)
	}

	commonDir := commonGitDir(gitDir)
	for _, required := range []string{"objects", "refs"} {
		path := filepath.Join(commonDir, required)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: invalid git repository, missing: %s", ErrNotRepository, required)
		}
	}

	return nil
}

// CommonDir returns the directory holding shared refs. It differs from
// GitDir only for linked worktrees.
func (r *Repository) CommonDir() string {
	return commonGitDir(r.gitDir)
}

// commonGitDir resolves the "commondir" indirection used by linked worktrees.
func commonGitDir(gitDir string) string {
	content, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return gitDir
	}
	common := strings.TrimSpace(string(content))
	if common == "" {
		return gitDir
	}
	if !filepath.IsAbs(common) {
		common = filepath.Join(gitDir, common)
	}
	return filepath.Clean(common)
}
