package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-integrations/core"
)

const (
	JobIDSweepExpired      = "integrations.store.sweep_expired"
	sweepScriptPath        = "integrations/store/sweep_expired"
	DefaultSweepInterval   = 5 * time.Minute
	defaultQueueCapacity   = 16
	parameterScheduledAt   = "scheduled_at"
	dedupPolicyDrop        = "drop"
	defaultRetryDelay      = 10 * time.Second
	defaultMaxSweepAttempt = 3
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxSweepAttempt, MaxDelay: time.Minute}
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
		return out
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// NewSweepMessage builds the execution message for one sweep slot. Messages
// for the same interval bucket share an idempotency key.
func NewSweepMessage(at time.Time, interval time.Duration) *job.ExecutionMessage {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	bucket := at.UTC().Truncate(interval)
	return &job.ExecutionMessage{
		JobID:      JobIDSweepExpired,
		ScriptPath: sweepScriptPath,
		Parameters: map[string]any{
			parameterScheduledAt: bucket.Format(time.RFC3339),
		},
		IdempotencyKey: JobIDSweepExpired + ":" + strconv.FormatInt(bucket.Unix(), 10),
		DedupPolicy:    job.DeduplicationPolicy(dedupPolicyDrop),
	}
}

// SweepWorker drains sweep deliveries and removes expired store entries.
type SweepWorker struct {
	dequeuer queue.Dequeuer
	sweeper  core.ExpiredSweeper
	policy   RetryPolicy
	hook     worker.Hook
	logger   glog.Logger
	now      func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

type WorkerOption func(*SweepWorker)

func WithHook(hook worker.Hook) WorkerOption {
	return func(w *SweepWorker) {
		if hook != nil {
			w.hook = hook
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *SweepWorker) {
		w.policy = policy
	}
}

func WithLogger(logger glog.Logger) WorkerOption {
	return func(w *SweepWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithClock(now func() time.Time) WorkerOption {
	return func(w *SweepWorker) {
		if now != nil {
			w.now = now
		}
	}
}

func NewSweepWorker(dequeuer queue.Dequeuer, sweeper core.ExpiredSweeper, opts ...WorkerOption) (*SweepWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("gojob: expired sweeper is required")
	}
	w := &SweepWorker{
		dequeuer: dequeuer,
		sweeper:  sweeper,
		policy:   DefaultRetryPolicy(),
		logger:   glog.Nop(),
		now:      time.Now,
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	if w.hook == nil {
		w.hook = NewLoggingHook(w.logger)
	}
	return w, nil
}

// ProcessNext handles one delivery. Sweep failures are nacked and reported
// through the hook; the returned error covers queue failures only.
func (w *SweepWorker) ProcessNext(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	msg := delivery.Message()
	if msg == nil || strings.TrimSpace(msg.JobID) != JobIDSweepExpired {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		return delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: "unsupported job " + jobID})
	}

	attempt := w.nextAttempt(msg.IdempotencyKey)
	started := w.now()
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: started}
	w.hook.OnStart(ctx, event)

	removed, sweepErr := w.sweeper.SweepExpired(ctx)
	event.Duration = w.now().Sub(started)
	if sweepErr == nil {
		w.forget(msg.IdempotencyKey)
		w.logger.Info("expired entries swept", "job_id", msg.JobID, "removed", removed)
		w.hook.OnSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = sweepErr
	opts := w.policy.NormalizeAttempt(queue.NackOptions{
		Delay:   defaultRetryDelay,
		Requeue: true,
		Reason:  sweepErr.Error(),
	}, attempt)
	if opts.Requeue {
		event.Delay = opts.Delay
		w.hook.OnRetry(ctx, event)
	} else {
		w.forget(msg.IdempotencyKey)
		w.hook.OnFailure(ctx, event)
	}
	return delivery.Nack(ctx, opts)
}

// Run processes deliveries until ctx is cancelled.
func (w *SweepWorker) Run(ctx context.Context) error {
	for {
		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("sweep worker dequeue failed", "error", err)
			if waitErr := sleepContext(ctx, time.Second); waitErr != nil {
				return nil
			}
		}
	}
}

func (w *SweepWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *SweepWorker) forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

// Scheduler enqueues one sweep message per interval.
type Scheduler struct {
	enqueuer queue.Enqueuer
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(enqueuer queue.Enqueuer, interval time.Duration) (*Scheduler, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: enqueuer is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Scheduler{enqueuer: enqueuer, interval: interval, now: time.Now}, nil
}

func (s *Scheduler) EnqueueNow(ctx context.Context) error {
	return s.enqueuer.Enqueue(ctx, NewSweepMessage(s.now(), s.interval))
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.EnqueueNow(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}

// LoggingHook reports worker events through glog.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	if logger == nil {
		logger = glog.Nop()
	}
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.logger.Debug("job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.logger.Info("job succeeded", eventFields(event)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.logger.Error("job failed", eventFields(event)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.logger.Warn("job retry scheduled", eventFields(event)...)
}

func eventFields(event worker.Event) []any {
	fields := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID)
	}
	if event.Delay > 0 {
		fields = append(fields, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	_ worker.Hook = (*LoggingHook)(nil)
)
