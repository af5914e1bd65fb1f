package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"time"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
)

const (
	DefaultBatchSize = 50
	DefaultCopyDelay = 3 * time.Second
)

var ErrSameChannel = errors.New("source and destination channel are the same")

// MessageRange is an inclusive span of message ids in one channel.
type MessageRange struct {
	ChannelID int64 `json:"channel_id"`
	From      int64 `json:"from"`
	To        int64 `json:"to"`
}

// ParseRange builds a range from two message links of the same channel. The
// links may be given in either order.
func ParseRange(startLink, endLink string) (MessageRange, error) {
	startChannel, from, err := domain.ParseMessageLink(startLink)
	if err != nil {
		return MessageRange{}, fmt.Errorf("start link: %w", err)
	}
	endChannel, to, err := domain.ParseMessageLink(endLink)
	if err != nil {
		return MessageRange{}, fmt.Errorf("end link: %w", err)
	}
	if startChannel != endChannel {
		return MessageRange{}, fmt.Errorf("%w: links point to different channels", domain.ErrInvalidLink)
	}
	if from > to {
		from, to = to, from
	}
	return MessageRange{ChannelID: startChannel, From: from, To: to}, nil
}

// Batches splits the range into id slices of at most size ids.
func (r MessageRange) Batches(size int) [][]int64 {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]int64
	for start := r.From; start <= r.To; start += int64(size) {
		end := min(start+int64(size)-1, r.To)
		ids := make([]int64, 0, end-start+1)
		for id := start; id <= end; id++ {
			ids = append(ids, id)
		}
		out = append(out, ids)
	}
	return out
}

// Bulk runs the owner's range operations. Each call starts an Operation and
// returns without waiting for it.
type Bulk struct {
	Media     ports.MediaRepository
	Channels  ports.ChannelRepository
	Transport ports.Transport
	Queue     *IngestQueue
	Ops       *Operations
	// Invalidate runs after operations that change the catalog directly.
	Invalidate       func()
	BatchSize        int
	CopyDelay        time.Duration
	ProgressInterval time.Duration
	Logger           *slog.Logger
}

// IndexRequest re-reads a range of a channel into the catalog.
type IndexRequest struct {
	Range         MessageRange
	LogDuplicates bool
	// NotifyChat receives progress and duplicate notices. Zero disables them.
	NotifyChat int64
}

func (b *Bulk) Index(ctx context.Context, req IndexRequest) (*Operation, error) {
	if err := b.requireAllowed(ctx, req.Range.ChannelID); err != nil {
		return nil, err
	}
	return b.Ops.Start(OpIndex, true, func(ctx context.Context, op *Operation) error {
		opts := EnqueueOptions{
			ChannelID:     req.Range.ChannelID,
			LogDuplicates: req.LogDuplicates,
			Notify:        b.notifier(req.NotifyChat),
			OnDone:        op.Record,
		}
		err := b.eachEvent(ctx, op, req.Range, func(ev domain.RawEvent) {
			op.AddTotal(1)
			if err := b.Queue.Enqueue(ev, opts); err != nil {
				op.Fail()
			}
		})
		if err != nil {
			return err
		}
		return b.watcher(req.NotifyChat).Watch(ctx, ingestProgress(op, "Indexing", b.Queue.Size))
	})
}

// CopyRequest copies a range into another allowed channel and indexes the
// copies.
type CopyRequest struct {
	Source      MessageRange
	Destination int64
	NotifyChat  int64
}

func (b *Bulk) Copy(ctx context.Context, req CopyRequest) (*Operation, error) {
	if req.Source.ChannelID == req.Destination {
		return nil, ErrSameChannel
	}
	if err := b.requireAllowed(ctx, req.Destination); err != nil {
		return nil, err
	}
	delay := b.CopyDelay
	if delay <= 0 {
		delay = DefaultCopyDelay
	}
	return b.Ops.Start(OpCopy, true, func(ctx context.Context, op *Operation) error {
		opts := EnqueueOptions{
			ChannelID: req.Destination,
			OnDone:    op.Record,
		}
		err := b.eachEvent(ctx, op, req.Source, func(ev domain.RawEvent) {
			op.AddTotal(1)
			caption := ev.Caption
			if caption == "" {
				caption = ev.FileName
			}
			newID, err := b.Transport.CopyMessage(ctx, req.Destination, ev.ChannelID, ev.MessageID, ports.CopyOptions{
				Caption: "<b>" + html.EscapeString(CleanFileName(caption)) + "</b>",
			})
			if err != nil {
				op.Fail()
				b.logger().Warn("copy failed",
					slog.Int64("messageId", ev.MessageID),
					slog.String("error", err.Error()),
				)
				return
			}
			copied := ev
			copied.ChannelID = req.Destination
			copied.MessageID = newID
			if err := b.Queue.Enqueue(copied, opts); err != nil {
				op.Fail()
			}
			_ = sleepCtx(ctx, delay)
		})
		if err != nil {
			return err
		}
		return b.watcher(req.NotifyChat).Watch(ctx, ingestProgress(op, "Copying", b.Queue.Size))
	})
}

// Update rebinds stored records to the messages of the range, matching by
// file name. Used after a channel was re-uploaded.
func (b *Bulk) Update(ctx context.Context, r MessageRange, notifyChat int64) (*Operation, error) {
	if err := b.requireAllowed(ctx, r.ChannelID); err != nil {
		return nil, err
	}
	return b.Ops.Start(OpUpdate, true, func(ctx context.Context, op *Operation) error {
		err := b.eachEvent(ctx, op, r, func(ev domain.RawEvent) {
			op.AddTotal(1)
			info, err := ExtractFileInfo(ev)
			if err != nil {
				op.Fail()
				return
			}
			ok, err := b.Media.RebindByFileName(ctx, info.FileName, r.ChannelID, ev.MessageID)
			switch {
			case err != nil:
				op.Fail()
				b.logger().Warn("rebind failed",
					slog.String("fileName", info.FileName),
					slog.String("error", err.Error()),
				)
			case ok:
				op.Succeed()
			default:
				op.Fail()
			}
		})
		b.invalidate()
		if err != nil {
			return err
		}
		s := op.Status()
		b.notify(ctx, notifyChat, fmt.Sprintf("✅ <b>Update complete</b>\n\nTotal: %d\nUpdated: %d\nNot found: %d",
			s.Total, s.Succeeded, s.Failed))
		return nil
	})
}

// Delete removes the stored records of a range in one call.
func (b *Bulk) Delete(ctx context.Context, r MessageRange, notifyChat int64) (*Operation, error) {
	return b.Ops.Start(OpDelete, false, func(ctx context.Context, op *Operation) error {
		n, err := b.Media.DeleteRange(ctx, r.ChannelID, r.From, r.To)
		if err != nil {
			return wrapRepo(err)
		}
		op.AddTotal(n)
		for range n {
			op.Remove()
		}
		b.invalidate()
		b.notify(ctx, notifyChat, fmt.Sprintf("🗑 <b>Deleted %d files</b>", n))
		return nil
	})
}

// eachEvent fetches the range batch by batch and hands every media message
// to fn. A failed batch is counted and skipped.
func (b *Bulk) eachEvent(ctx context.Context, op *Operation, r MessageRange, fn func(domain.RawEvent)) error {
	for _, ids := range r.Batches(b.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		events, err := b.Transport.GetMessages(ctx, r.ChannelID, ids)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger().Error("fetch batch failed",
				slog.String("operation", string(op.Kind())),
				slog.Int64("from", ids[0]),
				slog.Int64("to", ids[len(ids)-1]),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, ev := range events {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(ev)
		}
	}
	return nil
}

func (b *Bulk) requireAllowed(ctx context.Context, channelID int64) error {
	channels, err := b.Channels.List(ctx)
	if err != nil {
		return wrapRepo(err)
	}
	if !slices.ContainsFunc(channels, func(c domain.Channel) bool { return c.ChannelID == channelID }) {
		return fmt.Errorf("%w: channel %d is not allowed", domain.ErrForbidden, channelID)
	}
	return nil
}

func (b *Bulk) notifier(chatID int64) domain.NoticeFunc {
	if chatID == 0 {
		return nil
	}
	return func(ctx context.Context, text string) {
		b.notify(ctx, chatID, text)
	}
}

func (b *Bulk) notify(ctx context.Context, chatID int64, text string) {
	if chatID == 0 {
		return
	}
	if _, err := b.Transport.SendMessage(ctx, chatID, text); err != nil {
		b.logger().Warn("notice failed", slog.String("error", err.Error()))
	}
}

func (b *Bulk) watcher(chatID int64) ProgressWatcher {
	return ProgressWatcher{
		Transport: b.Transport,
		ChatID:    chatID,
		Interval:  b.ProgressInterval,
		Logger:    b.Logger,
	}
}

func (b *Bulk) invalidate() {
	if b.Invalidate != nil {
		b.Invalidate()
	}
}

func (b *Bulk) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
