package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/pm25-forecast/internal/metrics"
	"github.com/i474232898/pm25-forecast/internal/store"
)

// CacheCleaner drops expired weather cache entries.
type CacheCleaner interface {
	CleanupExpired() int
}

// Scheduler periodically reloads the history snapshot and prunes the weather cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	snapshot  *store.MemoryStore
	source    store.BulkLoader
	cache     CacheCleaner
	interval  time.Duration
	metrics   *metrics.Metrics
}

// New creates a new Scheduler. cache and m may be nil.
func New(snapshot *store.MemoryStore, source store.BulkLoader, cache CacheCleaner, interval time.Duration, m *metrics.Metrics) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		snapshot:  snapshot,
		source:    source,
		cache:     cache,
		interval:  interval,
		metrics:   m,
	}
}

// Refresh reloads the snapshot once. A failed reload keeps the previous snapshot.
func (s *Scheduler) Refresh(ctx context.Context) error {
	start := time.Now()
	if err := s.snapshot.Refresh(ctx, s.source); err != nil {
		s.observe("error")
		return err
	}
	s.observe("ok")
	log.Printf("scheduler: history snapshot refreshed in %s (%d cities)", time.Since(start).Round(time.Millisecond), len(s.snapshot.Cities()))
	return nil
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running history refresh job")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := s.Refresh(ctx); err != nil {
			log.Printf("scheduler: history refresh failed: %v", err)
		}
		if s.cache != nil {
			if n := s.cache.CleanupExpired(); n > 0 {
				log.Printf("scheduler: pruned %d expired weather cache entries", n)
			}
		}
		log.Println("scheduler: completed history refresh job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.HistoryRefreshes.WithLabelValues(outcome).Inc()
	}
}
