package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mediashare/internal/domain/ports"
)

const DefaultProgressInterval = 10 * time.Second

// ProgressWatcher mirrors a job's progress into one transport message.
type ProgressWatcher struct {
	Transport ports.Transport
	// ChatID receives the status message. Zero only waits.
	ChatID   int64
	Interval time.Duration
	Logger   *slog.Logger
}

// RenderFunc reports the current status text and whether the job is over.
type RenderFunc func() (text string, finished bool)

// Watch posts the initial status, edits it every Interval when the text has
// changed and returns once render reports completion or ctx ends. The last
// text is always written, even after cancellation.
func (w ProgressWatcher) Watch(ctx context.Context, render RenderFunc) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	text, finished := render()
	var messageID int64
	if w.ChatID != 0 && !finished {
		id, err := w.Transport.SendMessage(ctx, w.ChatID, text)
		if err != nil {
			w.logger().Warn("progress message failed", slog.String("error", err.Error()))
		}
		messageID = id
	}
	last := text

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for !finished {
		select {
		case <-ctx.Done():
			text, _ = render()
			text += "\n\n🛑 <b>Cancelled</b>"
			w.publish(context.WithoutCancel(ctx), messageID, text, last)
			return ctx.Err()
		case <-ticker.C:
		}
		text, finished = render()
		if !finished && text != last {
			w.publish(ctx, messageID, text, last)
			last = text
		}
	}
	w.publish(ctx, messageID, text, last)
	return nil
}

func (w ProgressWatcher) publish(ctx context.Context, messageID int64, text, last string) {
	if w.ChatID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	var err error
	switch {
	case messageID == 0:
		_, err = w.Transport.SendMessage(ctx, w.ChatID, text)
	case text != last:
		err = w.Transport.EditMessageText(ctx, w.ChatID, messageID, text)
	}
	if err != nil {
		w.logger().Warn("progress update failed", slog.String("error", err.Error()))
	}
}

func (w ProgressWatcher) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// ingestProgress renders an index or copy operation whose items were handed
// to the ingestion queue.
func ingestProgress(op *Operation, label string, queueSize func() int) RenderFunc {
	return func() (string, bool) {
		s := op.Status()
		handled := s.Succeeded + s.Failed + s.Duplicate
		finished := handled >= s.Total
		head := fmt.Sprintf("⏳ <b>%s in progress...</b>", label)
		if finished {
			head = fmt.Sprintf("✅ <b>%s complete</b>", label)
		}
		text := fmt.Sprintf("%s\n\nTotal: %d\nSaved: %d\nDuplicates: %d\nFailed: %d",
			head, s.Total, s.Succeeded, s.Duplicate, s.Failed)
		if !finished && queueSize != nil {
			text += fmt.Sprintf("\nIn queue: %d", queueSize())
		}
		return text, finished
	}
}
