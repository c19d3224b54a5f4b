package gitcore

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Refs reloads branches and tags from disk and returns a copy of them.
func (r *Repository) Refs() (map[string]Hash, error) {
	if err := r.loadRefs(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make(map[string]Hash, len(r.refs))
	for name, hash := range r.refs {
		refs[name] = hash
	}
	return refs, nil
}

// Head reloads and returns the commit HEAD points at and the symbolic ref it
// follows. The ref is empty when HEAD is detached.
func (r *Repository) Head() (Hash, string, error) {
	if err := r.loadRefs(); err != nil {
		return "", "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.head, r.headRef, nil
}

// Fingerprint returns a digest of HEAD and every branch and tag. It changes
// whenever any of them moves.
func (r *Repository) Fingerprint() (string, error) {
	if err := r.loadRefs(); err != nil {
		return "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.refs))
	for name := range r.refs {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha1.New()
	fmt.Fprintf(h, "HEAD %s %s\n", r.headRef, r.head)
	for _, name := range names {
		fmt.Fprintf(h, "%s %s\n", name, r.refs[name])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// loadRefs loads all Git references (branches, tags) into the refs map.
func (r *Repository) loadRefs() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refs = make(map[string]Hash)
	if err := r.loadPackedRefs(); err != nil {
		return fmt.Errorf("failed to load packed refs: %w", err)
	}
	if err := r.loadLooseRefs("heads"); err != nil {
		return fmt.Errorf("failed to load branches: %w", err)
	}
	if err := r.loadLooseRefs("tags"); err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	if err := r.loadHEAD(); err != nil {
		return fmt.Errorf("failed to load head: %w", err)
	}

	return nil
}

// loadPackedRefs reads the packed-refs file written by gc and repack.
// Loose refs loaded afterwards take precedence.
func (r *Repository) loadPackedRefs() error {
	file, err := os.Open(filepath.Join(commonGitDir(r.gitDir), "packed-refs"))
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// "^<hash>" lines carry the peeled target of the previous annotated tag.
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		hash, err := NewHash(fields[0])
		if err != nil {
			continue
		}
		if strings.HasPrefix(fields[1], "refs/heads/") || strings.HasPrefix(fields[1], "refs/tags/") {
			r.refs[fields[1]] = hash
		}
	}
	return scanner.Err()
}

// loadLooseRefs recursively loads all refs in a directory.
// prefix is like "heads" for branches, or "tags" for tags.
func (r *Repository) loadLooseRefs(prefix string) error {
	commonDir := commonGitDir(r.gitDir)
	refsDir := filepath.Join(commonDir, "refs", prefix)

	if _, err := os.Stat(refsDir); os.IsNotExist(err) {
		// No refs of this type yet (e.g., new repo with no tags), this is ok.
		return nil
	} else if err != nil {
		return err
	}

	return filepath.Walk(refsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}

		relPath, err := filepath.Rel(commonDir, path)
		if err != nil {
			return err
		}

		hash, err := r.resolveRef(path)
		if err != nil {
			// Skip refs being rewritten concurrently; the next load picks them up.
			return nil
		}

		r.refs[filepath.ToSlash(relPath)] = hash
		return nil
	})
}

// loadHEAD reads and caches HEAD information
func (r *Repository) loadHEAD() error {
	headPath := filepath.Join(r.gitDir, "HEAD")
	content, err := os.ReadFile(headPath)
	if err != nil {
		return fmt.Errorf("failed to read HEAD: %w", err)
	}

	line := strings.TrimSpace(string(content))

	if strings.HasPrefix(line, "ref: ") {
		r.headRef = strings.TrimPrefix(line, "ref: ")
		r.headDetached = false

		if hash, exists := r.refs[r.headRef]; exists {
			r.head = hash
		} else {
			r.head = "" // New repository with no commits, this is ok.
		}
	} else {
		r.headDetached = true
		r.headRef = ""

		hash, err := NewHash(line)
		if err != nil {
			return fmt.Errorf("invalid HEAD: %w", err)
		}
		r.head = hash
	}

	return nil
}

// resolveRef reads a single ref file and returns its hash.
// Handles both direct hashes and symbolic refs.
func (r *Repository) resolveRef(path string) (Hash, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	line := strings.TrimSpace(string(content))

	if strings.HasPrefix(line, "ref: ") {
		targetRef := strings.TrimPrefix(line, "ref: ")
		targetPath := filepath.Join(commonGitDir(r.gitDir), targetRef)
		return r.resolveRef(targetPath)
	}

	hash, err := NewHash(line)
	if err != nil {
		return "", fmt.Errorf("invalid hash in ref file %s: %w", path, err)
	}
	return hash, nil
}
