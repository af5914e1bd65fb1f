package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"mediashare/internal/domain"
	"mediashare/internal/metrics"
)

type OperationKind string

const (
	OpIndex     OperationKind = "index"
	OpCopy      OperationKind = "copy"
	OpUpdate    OperationKind = "update"
	OpDelete    OperationKind = "delete"
	OpBroadcast OperationKind = "broadcast"
	OpAnnounce  OperationKind = "announce"
)

type OperationState string

const (
	OpRunning   OperationState = "running"
	OpCompleted OperationState = "completed"
	OpCancelled OperationState = "cancelled"
	OpFailed    OperationState = "failed"
)

// OperationStatus is a point-in-time snapshot of an Operation.
type OperationStatus struct {
	ID         string         `json:"id"`
	Kind       OperationKind  `json:"kind"`
	State      OperationState `json:"state"`
	Total      int64          `json:"total"`
	Succeeded  int64          `json:"succeeded"`
	Failed     int64          `json:"failed"`
	Duplicate  int64          `json:"duplicate"`
	Removed    int64          `json:"removed"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Operation is one long-running bulk job with its own cancellation.
type Operation struct {
	id        string
	kind      OperationKind
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	duplicate atomic.Int64
	removed   atomic.Int64

	mu         sync.Mutex
	state      OperationState
	err        error
	finishedAt time.Time
}

func (op *Operation) ID() string          { return op.id }
func (op *Operation) Kind() OperationKind { return op.kind }

// Done is closed once the operation has finished.
func (op *Operation) Done() <-chan struct{} { return op.done }

// Cancel asks the operation to stop. It returns immediately.
func (op *Operation) Cancel() { op.cancel() }

func (op *Operation) AddTotal(n int64) { op.total.Add(n) }

func (op *Operation) Succeed() {
	op.succeeded.Add(1)
	metrics.OperationItemsTotal.WithLabelValues(string(op.kind), "succeeded").Inc()
}

func (op *Operation) Fail() {
	op.failed.Add(1)
	metrics.OperationItemsTotal.WithLabelValues(string(op.kind), "failed").Inc()
}

func (op *Operation) Duplicate() {
	op.duplicate.Add(1)
	metrics.OperationItemsTotal.WithLabelValues(string(op.kind), "duplicate").Inc()
}

func (op *Operation) Remove() {
	op.removed.Add(1)
	metrics.OperationItemsTotal.WithLabelValues(string(op.kind), "removed").Inc()
}

// Record counts an ingestion outcome.
func (op *Operation) Record(outcome domain.IngestOutcome) {
	switch outcome {
	case domain.IngestStored:
		op.Succeed()
	case domain.IngestDuplicate:
		op.Duplicate()
	default:
		op.Fail()
	}
}

func (op *Operation) Running() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state == OpRunning
}

func (op *Operation) Status() OperationStatus {
	op.mu.Lock()
	defer op.mu.Unlock()
	s := OperationStatus{
		ID:        op.id,
		Kind:      op.kind,
		State:     op.state,
		Total:     op.total.Load(),
		Succeeded: op.succeeded.Load(),
		Failed:    op.failed.Load(),
		Duplicate: op.duplicate.Load(),
		Removed:   op.removed.Load(),
		StartedAt: op.startedAt,
	}
	if op.err != nil {
		s.Error = op.err.Error()
	}
	if !op.finishedAt.IsZero() {
		finished := op.finishedAt
		s.FinishedAt = &finished
	}
	return s
}

func (op *Operation) finish(ctx context.Context, err error, now time.Time) {
	op.mu.Lock()
	switch {
	case err == nil:
		op.state = OpCompleted
	case ctx.Err() != nil:
		op.state = OpCancelled
	default:
		op.state = OpFailed
		op.err = err
	}
	op.finishedAt = now
	op.mu.Unlock()
	op.cancel()
	close(op.done)
}

// Operations tracks bulk jobs. Finished jobs stay listed until Retain is
// exceeded.
type Operations struct {
	Tasks *TaskPool
	// Retain bounds how many finished operations are kept. Zero keeps 50.
	Retain int
	Logger *slog.Logger
	Now    func() time.Time

	mu  sync.Mutex
	ops map[string]*Operation
}

// Start launches fn as a new operation. With exclusive set, a running
// operation of the same kind makes Start fail with ErrBusy.
func (o *Operations) Start(kind OperationKind, exclusive bool, fn func(ctx context.Context, op *Operation) error) (*Operation, error) {
	o.mu.Lock()
	if o.ops == nil {
		o.ops = make(map[string]*Operation)
	}
	if exclusive {
		for _, existing := range o.ops {
			if existing.kind == kind && existing.Running() {
				o.mu.Unlock()
				return nil, fmt.Errorf("%w: %s %s", ErrBusy, kind, existing.id)
			}
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	op := &Operation{
		id:        uuid.NewString(),
		kind:      kind,
		startedAt: o.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     OpRunning,
	}
	o.ops[op.id] = op
	o.pruneLocked()
	o.mu.Unlock()

	logger := o.logger().With(slog.String("operation", string(kind)), slog.String("operationId", op.id))
	logger.Info("operation started")

	o.Tasks.Submit("operation:"+string(kind), func(taskCtx context.Context) error {
		stop := context.AfterFunc(taskCtx, cancel)
		defer stop()

		var err error
		var catcher panics.Catcher
		catcher.Try(func() { err = fn(ctx, op) })
		if r := catcher.Recovered(); r != nil {
			err = fmt.Errorf("panic: %v", r.Value)
		}
		op.finish(ctx, err, o.now())

		s := op.Status()
		logger.Info("operation finished",
			slog.String("state", string(s.State)),
			slog.Int64("succeeded", s.Succeeded),
			slog.Int64("failed", s.Failed),
			slog.Int64("duplicate", s.Duplicate),
		)
		return err
	})
	return op, nil
}

func (o *Operations) Get(id string) (*Operation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	op, ok := o.ops[id]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
	}
	return op, nil
}

func (o *Operations) Cancel(id string) (OperationStatus, error) {
	op, err := o.Get(id)
	if err != nil {
		return OperationStatus{}, err
	}
	op.Cancel()
	return op.Status(), nil
}

// List returns snapshots, newest first.
func (o *Operations) List() []OperationStatus {
	o.mu.Lock()
	out := make([]OperationStatus, 0, len(o.ops))
	for _, op := range o.ops {
		out = append(out, op.Status())
	}
	o.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func (o *Operations) pruneLocked() {
	limit := o.Retain
	if limit <= 0 {
		limit = 50
	}
	var finished []*Operation
	for _, op := range o.ops {
		if !op.Running() {
			finished = append(finished, op)
		}
	}
	if len(finished) <= limit {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].startedAt.Before(finished[j].startedAt)
	})
	for _, op := range finished[:len(finished)-limit] {
		delete(o.ops, op.id)
	}
}

func (o *Operations) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Operations) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
