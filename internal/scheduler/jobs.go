package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/quotecache"
)

// SnapshotJob periodically persists the quote cache to disk
type SnapshotJob struct {
	cache *quotecache.Cache
	path  string
	log   zerolog.Logger
}

// NewSnapshotJob creates a snapshot job writing to path
func NewSnapshotJob(cache *quotecache.Cache, path string, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		cache: cache,
		path:  path,
		log:   log.With().Str("job", "quote_snapshot").Logger(),
	}
}

func (j *SnapshotJob) Name() string { return "quote_snapshot" }

func (j *SnapshotJob) Run() error {
	return j.cache.Save(j.path)
}

// CounterResetter resets a provider's daily request counter
type CounterResetter interface {
	ResetDailyCounter()
}

// CounterResetJob resets the fallback provider's daily request budget.
// Scheduled at midnight UTC to match the provider's quota window.
type CounterResetJob struct {
	client CounterResetter
	log    zerolog.Logger
}

// NewCounterResetJob creates the daily counter reset job
func NewCounterResetJob(client CounterResetter, log zerolog.Logger) *CounterResetJob {
	return &CounterResetJob{
		client: client,
		log:    log.With().Str("job", "counter_reset").Logger(),
	}
}

func (j *CounterResetJob) Name() string { return "counter_reset" }

func (j *CounterResetJob) Run() error {
	j.client.ResetDailyCounter()
	j.log.Info().Msg("Daily request counter reset")
	return nil
}

// BackupRunner creates and uploads one database backup
type BackupRunner interface {
	CreateAndUpload(ctx context.Context) error
}

// BackupJob runs the nightly database backup
type BackupJob struct {
	runner  BackupRunner
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates the backup job
func NewBackupJob(runner BackupRunner, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		runner:  runner,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.runner.CreateAndUpload(ctx)
}
