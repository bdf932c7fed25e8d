package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/olajoao/signal-desk/internal/metrics"
	"github.com/olajoao/signal-desk/internal/retry"
	"github.com/segmentio/kafka-go"
)

// Handler processes one job attempt. A non-nil error schedules another
// attempt unless the attempt was the final one.
type Handler func(ctx context.Context, env *Envelope, attempt Attempt) error

// Fetcher is the consumer side of a topic.
type Fetcher interface {
	Fetch(ctx context.Context) (*Envelope, *kafka.Message, error)
	Commit(ctx context.Context, msg *kafka.Message) error
}

// Republisher schedules a later attempt of a job.
type Republisher interface {
	Republish(ctx context.Context, env *Envelope) error
}

// fetchErrorPause keeps a broken connection from spinning the fetch loop.
const fetchErrorPause = time.Second

// republishPolicy bounds how hard the runner tries to schedule a retry
// before leaving the offset uncommitted.
var republishPolicy = retry.Policy{
	MaxAttempts:    4,
	InitialBackoff: 250 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         true,
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Kind    string       // Only envelopes of this kind are handled
	Workers int          // Concurrent handlers
	Policy  retry.Policy // Backoff between attempts; MaxAttempts is used when the envelope has none
}

// Runner feeds jobs from a Fetcher to a pool of workers and owns the retry
// schedule. A job is complete once it succeeded, exhausted its attempts, or
// was re-published as a later attempt. Each partition is committed up to the
// last offset of its contiguous run of complete jobs, so a job still in
// flight (or left uncommitted) holds back the commits of later ones.
type Runner struct {
	cfg         RunnerConfig
	fetcher     Fetcher
	republisher Republisher
	handler     Handler
	metrics     metrics.Recorder
	now         func() time.Time

	commitMu sync.Mutex
	offsets  *offsetTracker
}

// NewRunner creates a Runner. A nil recorder discards metrics.
func NewRunner(cfg RunnerConfig, f Fetcher, rp Republisher, h Handler, m metrics.Recorder) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if m == nil {
		m = metrics.NewNoOp()
	}
	return &Runner{
		cfg:         cfg,
		fetcher:     f,
		republisher: rp,
		handler:     h,
		metrics:     m,
		now:         time.Now,
		offsets:     newOffsetTracker(),
	}
}

type work struct {
	env *Envelope
	msg *kafka.Message
}

// Run processes jobs until ctx is cancelled, then waits for in-flight jobs.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("Starting job processing loop", "kind", r.cfg.Kind, "workers", r.cfg.Workers)

	jobs := make(chan work, r.cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go r.runWorker(ctx, jobs, &wg)
	}

	r.dispatchMessages(ctx, jobs)

	close(jobs)
	wg.Wait()
	slog.Info("Job processing loop stopped", "kind", r.cfg.Kind)
	return nil
}

func (r *Runner) runWorker(ctx context.Context, jobs <-chan work, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		r.processOne(ctx, job)
	}
}

func (r *Runner) dispatchMessages(ctx context.Context, jobs chan<- work) {
	for {
		env, msg, err := r.fetcher.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.metrics.RecordError()
			if msg != nil {
				// Undecodable message: nothing will ever handle it.
				slog.Error("Dropping undecodable job", "kind", r.cfg.Kind, "offset", msg.Offset, "error", err)
				r.offsets.track(msg)
				r.commit(ctx, msg)
				continue
			}
			slog.Error("Failed to fetch job", "kind", r.cfg.Kind, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchErrorPause):
			}
			continue
		}

		r.metrics.RecordReceived()
		if msg != nil {
			r.offsets.track(msg)
		}
		select {
		case jobs <- work{env: env, msg: msg}:
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) processOne(ctx context.Context, job work) {
	env := job.env
	if env.Kind != r.cfg.Kind {
		slog.Warn("Skipping job of unexpected kind", "job_id", env.ID, "kind", env.Kind, "want", r.cfg.Kind)
		r.metrics.RecordSkipped()
		r.commit(ctx, job.msg)
		return
	}
	if env.MaxAttempts < 1 {
		env.MaxAttempts = r.cfg.Policy.MaxAttempts
	}
	if env.Attempt < 1 {
		env.Attempt = 1
	}

	if wait := env.NotBefore.Sub(r.now()); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	start := r.now()
	attempt := env.AttemptInfo()
	err := r.handler(ctx, env, attempt)
	if err == nil {
		r.metrics.RecordProcessed(r.now().Sub(start))
		r.commit(ctx, job.msg)
		return
	}
	if ctx.Err() != nil {
		// Shutting down: leave the offset for redelivery.
		return
	}

	r.metrics.RecordError()
	if attempt.IsFinal() {
		slog.Error("Job failed permanently",
			"job_id", env.ID,
			"kind", env.Kind,
			"attempt", attempt.Number,
			"max_attempts", attempt.Max,
			"error", err,
		)
		r.metrics.RecordFailed()
		r.commit(ctx, job.msg)
		return
	}

	backoff := r.cfg.Policy.Backoff(attempt.Number)
	next := env.Next(r.now().Add(backoff))
	pubErr := retry.Do(ctx, republishPolicy, "republish job", func() error {
		return r.republisher.Republish(ctx, next)
	})
	if pubErr != nil {
		slog.Error("Failed to schedule job retry, leaving offset uncommitted",
			"job_id", env.ID,
			"kind", env.Kind,
			"error", pubErr,
		)
		return
	}

	slog.Warn("Job attempt failed, retry scheduled",
		"job_id", env.ID,
		"kind", env.Kind,
		"attempt", attempt.Number,
		"max_attempts", attempt.Max,
		"backoff", backoff,
		"error", err,
	)
	r.metrics.RecordRetried()
	r.commit(ctx, job.msg)
}

// commit marks msg complete and commits its partition up to the end of the
// contiguous complete run. Commits are serialized so they reach the broker
// in offset order.
func (r *Runner) commit(ctx context.Context, msg *kafka.Message) {
	if msg == nil {
		return
	}
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	head := r.offsets.complete(msg)
	if head == nil {
		return
	}
	if err := r.fetcher.Commit(ctx, head); err != nil {
		// A later commit on the partition covers this offset.
		slog.Error("Failed to commit offset", "kind", r.cfg.Kind, "partition", head.Partition, "offset", head.Offset, "error", err)
	}
}
