// Package cleanup deletes records older than a cutoff across every
// collection, along with the photos of the swept events.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/redmonkez12/agenda-api/internal/agenda"
	"github.com/redmonkez12/agenda-api/internal/apperr"
	"github.com/redmonkez12/agenda-api/internal/blob"
	"github.com/redmonkez12/agenda-api/internal/logging"
)

// Sweeper deletes the records of one collection created before cutoff.
type Sweeper interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventSource lists the events a sweep is about to delete.
type EventSource interface {
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]agenda.Event, error)
}

// Collection names a sweeper in results and logs.
type Collection struct {
	Name    string
	Sweeper Sweeper
}

// Result reports what a sweep removed. Deleted is the sum over
// Collections; Failed lists collections whose delete returned an error.
type Result struct {
	Deleted     int64            `json:"deletedCount"`
	EventsSwept int              `json:"eventsSwept"`
	PhotoKeys   int              `json:"photoKeys"`
	Collections map[string]int64 `json:"collections"`
	Failed      []string         `json:"failed,omitempty"`
}

type Service struct {
	events      EventSource
	collections []Collection
	blobs       blob.Store
	logger      *logging.Logger
}

func NewService(events EventSource, blobs blob.Store, logger *logging.Logger, collections ...Collection) *Service {
	return &Service{
		events:      events,
		collections: collections,
		blobs:       blobs,
		logger:      logger,
	}
}

// CleanupOldEntries deletes every record created before cutoff. Photos of
// the affected events go first and their failure does not stop the sweep.
// Collections are swept concurrently; one failing collection does not
// affect the others.
func (s *Service) CleanupOldEntries(ctx context.Context, cutoff time.Time) (*Result, error) {
	events, err := s.events.ListCreatedBefore(ctx, cutoff)
	if err != nil {
		return nil, apperr.Internal("failed to list events to clean up", err)
	}

	var keys []string
	for _, ev := range events {
		keys = append(keys, ev.PhotoKeys...)
	}
	if len(keys) > 0 {
		if err := s.blobs.DeleteMany(ctx, keys); err != nil {
			s.logger.Warn("failed to delete photos of old events", "count", len(keys), "error", err)
		}
	}

	counts := make([]int64, len(s.collections))
	errs := make([]error, len(s.collections))

	var wg sync.WaitGroup
	for i, c := range s.collections {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counts[i], errs[i] = c.Sweeper.DeleteCreatedBefore(ctx, cutoff)
		}()
	}
	wg.Wait()

	result := &Result{
		EventsSwept: len(events),
		PhotoKeys:   len(keys),
		Collections: make(map[string]int64, len(s.collections)),
	}
	for i, c := range s.collections {
		if errs[i] != nil {
			s.logger.Error("failed to clean up collection", "collection", c.Name, "error", errs[i])
			result.Failed = append(result.Failed, c.Name)
			continue
		}
		result.Collections[c.Name] = counts[i]
		result.Deleted += counts[i]
	}

	s.logger.Info("cleanup finished",
		"cutoff", cutoff.Format(time.RFC3339),
		"deleted", result.Deleted,
		"events", result.EventsSwept,
		"failed", len(result.Failed))
	return result, nil
}
