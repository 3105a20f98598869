package janitor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor removes stale files left in scratch directories, for example by
// a process that was killed mid-job.
type Janitor struct {
	dirs   []string
	maxAge time.Duration
	cron   *cron.Cron
	now    func() time.Time
	logger *zap.Logger
}

func New(dirs []string, maxAge time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		dirs:   dirs,
		maxAge: maxAge,
		cron:   cron.New(),
		now:    time.Now,
		logger: logger,
	}
}

// Start schedules Sweep every interval.
func (j *Janitor) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid sweep interval %s", interval)
	}
	if _, err := j.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() { j.Sweep() }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	j.cron.Start()
	j.logger.Info("Janitor started",
		zap.Strings("dirs", j.dirs),
		zap.Duration("interval", interval),
		zap.Duration("max_age", j.maxAge),
	)
	return nil
}

// Stop halts scheduling and waits for a running sweep.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep deletes regular files older than maxAge and returns how many were
// removed.
func (j *Janitor) Sweep() int {
	cutoff := j.now().Add(-j.maxAge)
	removed := 0

	for _, dir := range j.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				j.logger.Warn("Failed to read dir", zap.String("dir", dir), zap.Error(err))
			}
			continue
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				j.logger.Warn("Failed to remove stale file", zap.String("path", path), zap.Error(err))
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		j.logger.Info("Removed stale files", zap.Int("count", removed))
	}
	return removed
}
