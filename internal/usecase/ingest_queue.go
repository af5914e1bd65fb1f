package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
	"mediashare/internal/metrics"
)

// TitleLinker resolves a file name to a title link.
type TitleLinker interface {
	Enrich(ctx context.Context, fileName string) (domain.TitleLink, bool, error)
}

type IngestQueueConfig struct {
	Media    ports.MediaRepository
	Linker   TitleLinker
	Tasks    *TaskPool
	Eligible func(channelID int64) bool
	// Pace is the minimum spacing between processed items. Zero disables pacing.
	Pace time.Duration
	// OnCatalogChange runs after a record is stored and after enrichment links it.
	OnCatalogChange func()
	Logger          *slog.Logger
	Now             func() time.Time
}

// IngestQueue serializes catalog writes for incoming media. Producers never
// block; a single consumer drains items in arrival order.
type IngestQueue struct {
	cfg     IngestQueueConfig
	logger  *slog.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	items    []domain.QueuedItem
	inFlight int
	signal   chan struct{}
	running  atomic.Bool
}

func NewIngestQueue(cfg IngestQueueConfig) *IngestQueue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	limit := rate.Inf
	if cfg.Pace > 0 {
		limit = rate.Every(cfg.Pace)
	}
	return &IngestQueue{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
		signal:  make(chan struct{}, 1),
	}
}

// EnqueueOptions carries the per-item context of an Enqueue call.
type EnqueueOptions struct {
	// ChannelID decides enrichment eligibility. Zero means the event's channel.
	ChannelID     int64
	LogDuplicates bool
	Notify        domain.NoticeFunc
	OnDone        func(domain.IngestOutcome)
}

// Enqueue extracts the event's attributes and queues it. A malformed event is
// logged and rejected with domain.ErrMalformedEvent; it is never queued.
func (q *IngestQueue) Enqueue(ev domain.RawEvent, opts EnqueueOptions) error {
	info, err := ExtractFileInfo(ev)
	if err != nil {
		metrics.IngestedTotal.WithLabelValues("malformed").Inc()
		q.logger.Warn("dropping malformed media event",
			slog.Int64("channelId", ev.ChannelID),
			slog.Int64("messageId", ev.MessageID),
			slog.String("error", err.Error()),
		)
		return err
	}
	channelID := opts.ChannelID
	if channelID == 0 {
		channelID = ev.ChannelID
	}
	item := domain.QueuedItem{
		Event:         ev,
		Info:          info,
		ChannelID:     channelID,
		LogDuplicates: opts.LogDuplicates,
		Notify:        opts.Notify,
		OnDone:        opts.OnDone,
		EnqueuedAt:    q.cfg.Now(),
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	size := len(q.items) + q.inFlight
	q.mu.Unlock()
	metrics.QueueDepth.Set(float64(size))

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Size is the number of items queued or being processed.
func (q *IngestQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) + q.inFlight
}

// Run drains the queue until ctx is cancelled. Only one Run may be active.
func (q *IngestQueue) Run(ctx context.Context) error {
	if !q.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer q.running.Store(false)

	for {
		item, ok := q.next(ctx)
		if !ok {
			return ctx.Err()
		}
		if err := q.limiter.Wait(ctx); err != nil {
			q.requeueFront(item)
			return ctx.Err()
		}
		q.process(ctx, item)
		q.done()
	}
}

func (q *IngestQueue) next(ctx context.Context) (domain.QueuedItem, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = domain.QueuedItem{}
			q.items = q.items[1:]
			q.inFlight++
			q.mu.Unlock()
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.QueuedItem{}, false
		case <-q.signal:
		}
	}
}

func (q *IngestQueue) requeueFront(item domain.QueuedItem) {
	q.mu.Lock()
	q.items = append([]domain.QueuedItem{item}, q.items...)
	q.inFlight--
	q.mu.Unlock()
}

func (q *IngestQueue) done() {
	q.mu.Lock()
	q.inFlight--
	size := len(q.items) + q.inFlight
	q.mu.Unlock()
	metrics.QueueDepth.Set(float64(size))
}

// process handles one item. Errors end the item, never the loop.
func (q *IngestQueue) process(ctx context.Context, item domain.QueuedItem) {
	outcome := domain.IngestStored
	defer func() {
		metrics.IngestedTotal.WithLabelValues(string(outcome)).Inc()
		if item.OnDone != nil {
			item.OnDone(outcome)
		}
	}()

	info := item.Info
	if item.LogDuplicates {
		existing, err := q.cfg.Media.FindByFileName(ctx, info.FileName)
		switch {
		case err == nil:
			outcome = domain.IngestDuplicate
			q.reportDuplicate(ctx, item, existing)
		case !errors.Is(err, domain.ErrNotFound):
			q.logger.Warn("duplicate check failed",
				slog.String("fileName", info.FileName),
				slog.String("error", err.Error()),
			)
		}
	}

	if _, err := q.cfg.Media.Upsert(ctx, info.Record()); err != nil {
		outcome = domain.IngestFailed
		q.logger.Error("store media record failed",
			slog.Int64("channelId", info.ChannelID),
			slog.Int64("messageId", info.MessageID),
			slog.String("error", err.Error()),
		)
		return
	}
	q.catalogChanged()

	if q.cfg.Linker == nil || q.cfg.Tasks == nil || q.cfg.Eligible == nil || !q.cfg.Eligible(item.ChannelID) {
		return
	}
	q.cfg.Tasks.Submit("enrich", func(taskCtx context.Context) error {
		link, ok, err := q.cfg.Linker.Enrich(taskCtx, info.FileName)
		if err != nil {
			return fmt.Errorf("enrich %q: %w", info.FileName, err)
		}
		if !ok {
			return nil
		}
		if err := q.cfg.Media.SetTitle(taskCtx, info.ChannelID, info.MessageID, link); err != nil {
			return fmt.Errorf("link %q: %w", info.FileName, wrapRepo(err))
		}
		q.catalogChanged()
		return nil
	})
}

func (q *IngestQueue) catalogChanged() {
	if q.cfg.OnCatalogChange != nil {
		q.cfg.OnCatalogChange()
	}
}

func (q *IngestQueue) reportDuplicate(ctx context.Context, item domain.QueuedItem, existing domain.MediaRecord) {
	info := item.Info
	var text string
	if existing.ChannelID == info.ChannelID && existing.MessageID == info.MessageID {
		text = fmt.Sprintf("♻️ <b>Already indexed:</b> %s", html.EscapeString(info.FileName))
	} else {
		text = fmt.Sprintf("⚠️ <b>Duplicate file:</b> %s\nalready stored as message %d in channel %d",
			html.EscapeString(info.FileName), existing.MessageID, existing.ChannelID)
	}
	q.logger.Info("duplicate media detected",
		slog.String("fileName", info.FileName),
		slog.Int64("messageId", info.MessageID),
		slog.Int64("existingMessageId", existing.MessageID),
	)
	if item.Notify != nil {
		item.Notify(ctx, text)
	}
}
