package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/notare-app/notare/internal/ingest"
	"github.com/notare-app/notare/internal/search"
	"github.com/notare-app/notare/internal/store"
)

// Scheduler periodically re-scrapes indexed websites so their chunks and
// embeddings track the live page. Redis locks keep multi-node deployments
// from scraping the same URL twice.
type Scheduler struct {
	Store    *store.Store
	Indexer  *search.Indexer
	Fetcher  *ingest.WebsiteFetcher
	Rdb      *redis.Client
	CronSpec string
	Stop     chan struct{}
	Logger   *log.Logger

	lastSweep time.Time
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				if s.due(time.Now()) {
					s.sweep()
				}
			}
		}
	}()
}

// due reports whether a sweep should run now. An unparseable spec degrades
// to a daily sweep rather than disabling the scheduler.
func (s *Scheduler) due(now time.Time) bool {
	last := s.lastSweep
	if last.IsZero() {
		return true
	}
	expr, err := cronexpr.Parse(s.CronSpec)
	if err != nil {
		return now.Sub(last) >= 24*time.Hour
	}
	return !expr.Next(last).After(now)
}

func (s *Scheduler) sweep() {
	s.lastSweep = time.Now()
	ctx := context.Background()
	sources, err := s.Store.ListWebsiteSources(ctx)
	if err != nil {
		s.Logger.Printf("list website sources: %v", err)
		return
	}
	for _, src := range sources {
		if s.Rdb != nil {
			lockKey := "notare:reindex:" + src.SourceID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
			if !ok {
				continue
			}
		}
		page, err := s.Fetcher.Fetch(ctx, src.SourceID)
		if err != nil {
			s.Logger.Printf("re-scrape %s: %v", src.SourceID, err)
			continue
		}
		if err := s.Indexer.UpdateContent(ctx, store.SourceTypeWebsite, src.SourceID, src.ProjectID, page.Text); err != nil {
			s.Logger.Printf("re-index %s: %v", src.SourceID, err)
		}
	}
}
