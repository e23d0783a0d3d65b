// Package persist writes fleet changes to the store in the background.
package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"partlife-backend/internal/lifecycle"
	"partlife-backend/internal/metrics"
	"partlife-backend/internal/model"
	"partlife-backend/internal/store"
)

type job struct {
	change  lifecycle.Change
	restore *model.Dataset
}

// Queue applies changes to a Store with a single worker so writes land in
// the order they were enqueued. Enqueueing never blocks: a slow or failing
// store grows the backlog instead of stalling the caller.
type Queue struct {
	store     store.Store
	log       *zap.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
	highWater int
	wake      chan struct{}

	mu      sync.Mutex
	idle    *sync.Cond
	backlog []job
	pending int
	warned  bool
}

// NewQueue creates a queue. A warning is logged when more than highWater
// jobs are waiting.
func NewQueue(s store.Store, highWater int, timeout time.Duration, log *zap.Logger, m *metrics.Metrics) *Queue {
	q := &Queue{
		store:     s,
		log:       log,
		metrics:   m,
		timeout:   timeout,
		highWater: highWater,
		wake:      make(chan struct{}, 1),
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Start launches the worker goroutine.
func (q *Queue) Start(ctx context.Context) {
	go q.worker(ctx)
}

func (q *Queue) worker(ctx context.Context) {
	q.log.Info("persistence worker started")
	for {
		select {
		case <-q.wake:
			for {
				j, ok := q.next()
				if !ok {
					break
				}
				q.run(ctx, j)
			}
		case <-ctx.Done():
			q.log.Info("persistence worker shutting down", zap.Int("pending", q.Pending()))
			return
		}
	}
}

// next pops the oldest waiting job.
func (q *Queue) next() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.backlog) == 0 {
		return job{}, false
	}
	j := q.backlog[0]
	q.backlog[0] = job{}
	q.backlog = q.backlog[1:]
	if len(q.backlog) <= q.highWater {
		q.warned = false
	}
	return j, true
}

func (q *Queue) run(ctx context.Context, j job) {
	defer q.finish()

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.timeout)
	defer cancel()

	if j.restore != nil {
		if err := q.store.ReplaceAll(jobCtx, *j.restore); err != nil {
			q.failed("dataset", err)
		}
		return
	}
	_ = q.Apply(jobCtx, j.change)
}

// Enqueue schedules c for writing and returns immediately.
func (q *Queue) Enqueue(c lifecycle.Change) {
	if c.Empty() {
		return
	}
	q.push(job{change: copyChange(c)})
}

// EnqueueRestore schedules a full replacement of the stored dataset.
func (q *Queue) EnqueueRestore(d model.Dataset) {
	clone := d.Clone()
	q.push(job{restore: &clone})
}

func (q *Queue) push(j job) {
	q.mu.Lock()
	q.backlog = append(q.backlog, j)
	q.pending++
	depth := len(q.backlog)
	warn := q.highWater > 0 && depth > q.highWater && !q.warned
	if warn {
		q.warned = true
	}
	q.mu.Unlock()

	q.metrics.QueueDepth.Inc()
	if warn {
		q.log.Warn("persistence backlog is growing, store may be slow or down", zap.Int("backlog", depth))
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) finish() {
	q.metrics.QueueDepth.Dec()
	q.metrics.PersistApplied.Inc()
	q.mu.Lock()
	q.pending--
	if q.pending == 0 {
		q.idle.Broadcast()
	}
	q.mu.Unlock()
}

// Pending returns the number of jobs not yet applied.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Wait blocks until every enqueued job has been applied.
func (q *Queue) Wait() {
	q.mu.Lock()
	for q.pending > 0 {
		q.idle.Wait()
	}
	q.mu.Unlock()
}

// Apply writes c synchronously: deletes first, then upserts, with logs last.
// Every step is attempted even when an earlier one fails.
func (q *Queue) Apply(ctx context.Context, c lifecycle.Change) error {
	var errs []error
	step := func(entity string, err error) {
		if err != nil {
			q.failed(entity, err)
			errs = append(errs, err)
		}
	}

	for _, id := range c.DeletedParts {
		step("installed_part", q.store.DeletePart(ctx, id))
	}
	for _, id := range c.DeletedDefinitions {
		step("part_definition", q.store.DeleteDefinition(ctx, id))
	}
	for _, id := range c.DeletedMachines {
		step("machine", q.store.DeleteMachine(ctx, id))
	}
	step("machine", q.store.SaveMachines(ctx, c.Machines))
	step("part_definition", q.store.SaveDefinitions(ctx, c.Definitions))
	step("installed_part", q.store.SaveParts(ctx, c.Parts))
	step("maintenance_log", q.store.SaveLogs(ctx, c.Logs))

	return errors.Join(errs...)
}

func (q *Queue) failed(entity string, err error) {
	q.metrics.PersistFailed.WithLabelValues(entity).Inc()
	q.log.Warn("failed to persist change, in-memory state kept",
		zap.String("entity", entity),
		zap.Error(err),
	)
}

func copyChange(c lifecycle.Change) lifecycle.Change {
	return lifecycle.Change{
		Machines:           append([]model.Machine(nil), c.Machines...),
		Definitions:        append([]model.PartDefinition(nil), c.Definitions...),
		Parts:              append([]model.InstalledPart(nil), c.Parts...),
		Logs:               append([]model.MaintenanceLog(nil), c.Logs...),
		DeletedMachines:    append([]string(nil), c.DeletedMachines...),
		DeletedDefinitions: append([]string(nil), c.DeletedDefinitions...),
		DeletedParts:       append([]string(nil), c.DeletedParts...),
	}
}
