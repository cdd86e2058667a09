package services

import (
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"document-extraction-platform/internal/logger"
)

// Cleanup strategies.
const (
	StrategyReferenceCounting = "reference_counting"
	StrategyStreamComplete    = "stream_complete"
)

// FileLifecycleConfig controls retention and sweeping.
type FileLifecycleConfig struct {
	Strategy        string
	MaxRetention    time.Duration
	CleanupInterval time.Duration
}

type fileState struct {
	mu        sync.Mutex
	refCount  int
	createdAt time.Time
	// streamDone marks the path eligible for age-based cleanup.
	streamDone bool
}

// FileLifecycle tracks temporary files with reference counts and an
// age-based background sweeper. Per-path locking keeps contention local.
type FileLifecycle struct {
	cfg       FileLifecycleConfig
	mu        sync.Mutex
	files     map[string]*fileState
	scheduler *gocron.Scheduler
}

// NewFileLifecycle creates a lifecycle manager; call Start to run the
// sweeper.
func NewFileLifecycle(cfg FileLifecycleConfig) *FileLifecycle {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyStreamComplete
	}
	if cfg.MaxRetention <= 0 {
		cfg.MaxRetention = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &FileLifecycle{cfg: cfg, files: make(map[string]*fileState)}
}

func (fl *FileLifecycle) state(path string, create bool) *fileState {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	st, ok := fl.files[path]
	if !ok && create {
		st = &fileState{createdAt: time.Now()}
		fl.files[path] = st
	}
	return st
}

// Track records a path's creation time without taking a reference, so the
// age sweeper can eventually collect it.
func (fl *FileLifecycle) Track(path string) {
	fl.state(path, true)
}

// Acquire takes one reference on a path, registering it if unknown.
func (fl *FileLifecycle) Acquire(path string) {
	st := fl.state(path, true)
	st.mu.Lock()
	st.refCount++
	st.mu.Unlock()
}

// Release drops one reference. Unknown paths log a warning and no-op. With
// the reference_counting strategy a path reaching zero is deleted
// immediately once its stream is complete.
func (fl *FileLifecycle) Release(path string) {
	st := fl.state(path, false)
	if st == nil {
		logger.Warn("release of untracked file", "path", path)
		return
	}
	st.mu.Lock()
	if st.refCount > 0 {
		st.refCount--
	} else {
		logger.Warn("release of file with zero references", "path", path)
	}
	deletable := st.refCount == 0 && st.streamDone && fl.cfg.Strategy == StrategyReferenceCounting
	st.mu.Unlock()

	if deletable {
		fl.remove(path)
	}
}

// RefCount returns the current reference count for a path (0 if unknown).
func (fl *FileLifecycle) RefCount(path string) int {
	st := fl.state(path, false)
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.refCount
}

// BatchContext acquires all paths and returns a release function that drops
// every reference, including on error paths.
func (fl *FileLifecycle) BatchContext(paths []string) func() {
	for _, p := range paths {
		fl.Acquire(p)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, p := range paths {
				fl.Release(p)
			}
		})
	}
}

// MarkStreamComplete flags paths for age-based cleanup. Files are not
// deleted immediately; downstream consumers (review-session creation) may
// still copy them until retention expires.
func (fl *FileLifecycle) MarkStreamComplete(paths []string) {
	for _, p := range paths {
		st := fl.state(p, true)
		st.mu.Lock()
		st.streamDone = true
		st.mu.Unlock()
	}
}

// Sweep deletes files older than MaxRetention with zero references. It is
// run by the background scheduler and exported for tests.
func (fl *FileLifecycle) Sweep() {
	cutoff := time.Now().Add(-fl.cfg.MaxRetention)

	fl.mu.Lock()
	candidates := make([]string, 0)
	for path, st := range fl.files {
		st.mu.Lock()
		if st.refCount == 0 && st.streamDone && st.createdAt.Before(cutoff) {
			candidates = append(candidates, path)
		}
		st.mu.Unlock()
	}
	fl.mu.Unlock()

	for _, path := range candidates {
		fl.remove(path)
	}
	if len(candidates) > 0 {
		logger.Info("file lifecycle sweep", "deleted", len(candidates))
	}
}

func (fl *FileLifecycle) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to delete tracked file", "path", path, "error", err)
	}
	fl.mu.Lock()
	delete(fl.files, path)
	fl.mu.Unlock()
}

// Start launches the background sweeper.
func (fl *FileLifecycle) Start() error {
	if fl.scheduler != nil {
		return nil
	}
	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(fl.cfg.CleanupInterval).Do(fl.Sweep); err != nil {
		return err
	}
	s.StartAsync()
	fl.scheduler = s
	return nil
}

// Stop halts the background sweeper.
func (fl *FileLifecycle) Stop() {
	if fl.scheduler != nil {
		fl.scheduler.Stop()
		fl.scheduler = nil
	}
}
