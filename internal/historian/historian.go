// internal/historian/historian.go
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Queue is the blocking pop the historian reads action records with.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Store persists batches of action records.
type Store interface {
	InsertActions(ctx context.Context, records []cache.GameActionRecord) error
	MarkAbandoned(ctx context.Context, sessionID uuid.UUID) error
}

// Options tunes batching and inactivity handling.
type Options struct {
	QueueName  string
	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration
	Inactivity time.Duration
}

// Service pops action records from a Redis queue, accumulates them in a batch
// and flushes them to the database. Sessions that go quiet are marked abandoned.
type Service struct {
	queue Queue
	store Store
	opts  Options
	log   *logrus.Logger

	batchMu sync.Mutex
	batch   []cache.GameActionRecord

	activityMu   sync.Mutex
	lastActivity map[uuid.UUID]time.Time

	now func() time.Time
}

func NewService(queue Queue, store Store, opts Options, logger *logrus.Logger) *Service {
	if opts.QueueName == "" {
		opts.QueueName = cache.DefaultQueueName
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 10 * time.Minute
	}
	return &Service{
		queue:        queue,
		store:        store,
		opts:         opts,
		log:          logger,
		batch:        make([]cache.GameActionRecord, 0, opts.BatchSize),
		lastActivity: make(map[uuid.UUID]time.Time),
		now:          time.Now,
	}
}

// Run starts the read, flush and inactivity loops and blocks until ctx is
// cancelled. Whatever is still batched is flushed before returning.
func (s *Service) Run(ctx context.Context) error {
	s.log.Infof("historian reading from %s", s.opts.QueueName)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.tick(gctx, s.opts.FlushDelay, s.flush) })
	g.Go(func() error { return s.tick(gctx, time.Minute, s.sweepInactive) })
	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(flushCtx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.pollOnce(ctx)
	}
}

func (s *Service) tick(ctx context.Context, every time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// pollOnce waits up to PopTimeout for one record.
func (s *Service) pollOnce(ctx context.Context) {
	res, err := s.queue.BLPop(ctx, s.opts.PopTimeout, s.opts.QueueName).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			s.log.WithError(err).Error("BLPop failed")
		}
		return
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return
	}
	record, err := cache.DecodeGameAction(res[1])
	if err != nil {
		s.log.WithError(err).Warn("dropping action record")
		return
	}

	s.activityMu.Lock()
	if record.ActionType == cache.ActionGameEnd {
		delete(s.lastActivity, record.SessionID)
	} else {
		s.lastActivity[record.SessionID] = s.now()
	}
	s.activityMu.Unlock()

	s.append(ctx, record)
}

// append adds a record to the batch and flushes once the batch is full.
func (s *Service) append(ctx context.Context, record cache.GameActionRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, record)
	full := len(s.batch) >= s.opts.BatchSize
	s.batchMu.Unlock()
	if full {
		s.flush(ctx)
	}
}

// flush writes the current batch in one transaction. A failed batch is put
// back in front of newer records and retried on the next flush.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if len(s.batch) == 0 {
		return
	}
	pending := make([]cache.GameActionRecord, len(s.batch))
	copy(pending, s.batch)

	if err := s.store.InsertActions(ctx, pending); err != nil {
		s.log.WithError(err).Errorf("failed to flush %d actions", len(pending))
		return
	}
	s.batch = s.batch[:0]
	s.log.Debugf("Flushed %d actions to DB.", len(pending))
}

// sweepInactive marks sessions with no action for longer than Inactivity as abandoned.
func (s *Service) sweepInactive(ctx context.Context) {
	now := s.now()
	var stale []uuid.UUID
	s.activityMu.Lock()
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.opts.Inactivity {
			stale = append(stale, id)
			delete(s.lastActivity, id)
		}
	}
	s.activityMu.Unlock()

	for _, id := range stale {
		if err := s.store.MarkAbandoned(ctx, id); err != nil {
			s.log.WithError(err).Warn("abandon failed")
			continue
		}
		s.log.Infof("Marked session %v as 'abandoned' due to inactivity.", id)
	}
}
