package timeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rybkr/rewind/internal/diffparse"
	"github.com/rybkr/rewind/internal/gitcore"
)

func hashOf(n int) gitcore.Hash {
	return gitcore.Hash(fmt.Sprintf("%040x", n))
}

func record(n int, subject string) gitcore.CommitRecord {
	return gitcore.CommitRecord{Hash: hashOf(n), Subject: subject}
}

// fakeQuerier serves canned logs and diffs and records every call.
type fakeQuerier struct {
	mu sync.Mutex

	logs    map[string][]gitcore.CommitRecord
	diffs   map[gitcore.Hash]string
	logErr  map[string]error
	showErr map[gitcore.Hash]error

	logCalls  int
	showCalls int
	logOpts   []gitcore.LogOptions
	showOpts  []gitcore.ShowOptions

	// When gate is set Show signals started and blocks until gate is closed.
	gate    chan struct{}
	started chan struct{}
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		logs:    map[string][]gitcore.CommitRecord{},
		diffs:   map[gitcore.Hash]string{},
		logErr:  map[string]error{},
		showErr: map[gitcore.Hash]error{},
	}
}

func (f *fakeQuerier) Log(_ context.Context, path string, opts gitcore.LogOptions) ([]gitcore.CommitRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logCalls++
	f.logOpts = append(f.logOpts, opts)
	if err := f.logErr[path]; err != nil {
		return nil, err
	}
	return f.logs[path], nil
}

func (f *fakeQuerier) Show(_ context.Context, path string, hash gitcore.Hash, opts gitcore.ShowOptions) (string, error) {
	f.mu.Lock()
	f.showCalls++
	f.showOpts = append(f.showOpts, opts)
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.showErr[hash]; err != nil {
		return "", err
	}
	return f.diffs[hash], nil
}

func (f *fakeQuerier) calls() (logs, shows int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logCalls, f.showCalls
}

// fakeParser maps raw diff text to canned changes.
type fakeParser map[string][]diffparse.FileChange

func (p fakeParser) Parse(raw string) []diffparse.FileChange {
	if changes, ok := p[raw]; ok {
		return changes
	}
	return []diffparse.FileChange{}
}
