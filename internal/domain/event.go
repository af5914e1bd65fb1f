package domain

import (
	"context"
	"time"
)

// RawEvent is a media message as delivered by the transport.
type RawEvent struct {
	ChannelID int64
	MessageID int64
	Kind      MediaKind
	FileName  string
	Caption   string
	FileSize  int64
}

// FileInfo is the attribute set extracted from a RawEvent.
type FileInfo struct {
	FileName  string
	FileSize  int64
	Kind      MediaKind
	ChannelID int64
	MessageID int64
}

func (f FileInfo) Record() MediaRecord {
	return MediaRecord{
		ChannelID: f.ChannelID,
		MessageID: f.MessageID,
		FileName:  f.FileName,
		FileSize:  f.FileSize,
		Kind:      f.Kind,
	}
}

// NoticeFunc receives human-readable notices about a queued item, such as
// duplicate reports.
type NoticeFunc func(ctx context.Context, text string)

type IngestOutcome string

const (
	IngestStored    IngestOutcome = "stored"
	IngestDuplicate IngestOutcome = "duplicate"
	IngestFailed    IngestOutcome = "failed"
)

// QueuedItem is a unit of ingestion work between enqueue and completion.
type QueuedItem struct {
	Event         RawEvent
	Info          FileInfo
	ChannelID     int64
	LogDuplicates bool
	Notify        NoticeFunc
	// OnDone, when set, is called once with the item's outcome.
	OnDone     func(IngestOutcome)
	EnqueuedAt time.Time
}
