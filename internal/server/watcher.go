package server

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/rybkr/rewind/internal/gitcore"
	"github.com/rybkr/rewind/internal/timeline"
)

const defaultDebounce = 100 * time.Millisecond

// target ties a repository node to the on-disk repository whose refs decide
// when the node is stale.
type target struct {
	node *timeline.RepositoryNode
	repo *gitcore.Repository

	mu          sync.Mutex
	fingerprint string
	timer       *time.Timer
}

// refreshTargets opens every folder of the projection. Folders that are not
// repositories are skipped; expanding them reports the error instead.
func (s *Server) refreshTargets() []*target {
	var targets []*target
	for _, node := range s.projection.Repositories() {
		repo, err := gitcore.OpenRepository(node.Folder().Path)
		if err != nil {
			s.logger.Warn("not watching folder", zap.String("folder", node.Folder().Path), zap.Error(err))
			continue
		}
		t := &target{node: node, repo: repo}
		t.fingerprint, _ = repo.Fingerprint()
		targets = append(targets, t)
	}
	return targets
}

// refresh invalidates t's node when its refs moved since the last check.
func (s *Server) refresh(t *target, source string) {
	fp, err := t.repo.Fingerprint()
	if err != nil {
		s.logger.Warn("read refs", zap.String("repository", t.node.Folder().Name), zap.Error(err))
		return
	}

	t.mu.Lock()
	changed := fp != t.fingerprint
	t.fingerprint = fp
	t.mu.Unlock()

	if changed {
		s.invalidate(t.node, source)
	}
}

// startRefresh watches every repository's git dir, falling back to polling
// when a filesystem watcher is unavailable.
func (s *Server) startRefresh() {
	targets := s.refreshTargets()
	if len(targets) == 0 {
		return
	}
	if err := s.startWatcher(targets); err != nil {
		s.logger.Warn("filesystem watcher unavailable, polling instead",
			zap.Error(err), zap.Duration("period", s.watch.PollPeriod))
		s.wg.Add(1)
		go s.pollRepos(targets)
	}
}

func (s *Server) startWatcher(targets []*target) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := make(map[string]*target)
	for _, t := range targets {
		for _, dir := range watchDirs(t.repo) {
			if err := watcher.Add(dir); err != nil {
				// refs/tags may legitimately be missing.
				s.logger.Debug("skip watch", zap.String("dir", dir), zap.Error(err))
				continue
			}
			dirs[dir] = t
		}
	}
	if len(dirs) == 0 {
		_ = watcher.Close()
		return errNothingWatched
	}

	s.wg.Add(1)
	go s.watchLoop(watcher, dirs)

	s.logger.Info("watching repositories for changes", zap.Int("repositories", len(targets)))
	return nil
}

func watchDirs(repo *gitcore.Repository) []string {
	common := repo.CommonDir()
	dirs := []string{
		repo.GitDir(),
		filepath.Join(common, "refs", "heads"),
		filepath.Join(common, "refs", "tags"),
	}
	if common != repo.GitDir() {
		dirs = append(dirs, common)
	}
	return dirs
}

func (s *Server) watchLoop(watcher *fsnotify.Watcher, dirs map[string]*target) {
	defer s.wg.Done()
	defer watcher.Close()

	debounce := s.watch.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	for {
		select {
		case <-s.ctx.Done():
			for _, t := range dirs {
				t.mu.Lock()
				if t.timer != nil {
					t.timer.Stop()
				}
				t.mu.Unlock()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			t, ok := dirs[filepath.Dir(event.Name)]
			if !ok {
				continue
			}

			s.logger.Debug("change detected",
				zap.String("repository", t.node.Folder().Name),
				zap.String("file", filepath.Base(event.Name)))

			t.mu.Lock()
			if t.timer != nil {
				t.timer.Stop()
			}
			t.timer = time.AfterFunc(debounce, func() { s.refresh(t, "fsnotify") })
			t.mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	path := filepath.ToSlash(event.Name)

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	if strings.HasSuffix(base, ".lock") {
		return true
	}
	if strings.Contains(path, "/logs/") {
		return true
	}
	switch base {
	case "config", "index", "FETCH_HEAD", "COMMIT_EDITMSG":
		return true
	}

	return false
}
