package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultWorkers   = 5
	defaultQueueSize = 100
	pushTimeout      = 10 * time.Second
	enqueueTimeout   = 5 * time.Second
)

var (
	// ErrQueueFull is returned when a push job cannot be queued in time.
	ErrQueueFull = errors.New("push queue full")
	// ErrDispatcherStopped is returned by Enqueue once Stop was called.
	ErrDispatcherStopped = errors.New("push dispatcher stopped")
)

// PushJob is one message for one user's devices.
type PushJob struct {
	UserID string
	Tokens []DeviceToken
	Title  string
	Body   string
	Data   map[string]string
}

// Dispatcher sends push jobs from a bounded queue on a fixed worker pool.
type Dispatcher struct {
	sender   PushSender
	logger   *slog.Logger
	workers  int
	jobQueue chan PushJob
	stopChan chan struct{}
	// mu is held shared by Enqueue and exclusively by Stop, so no job is
	// queued after the workers have started draining.
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher starts workers goroutines draining a queue of queueSize jobs.
func NewDispatcher(sender PushSender, logger *slog.Logger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		sender:   sender,
		logger:   logger,
		workers:  workers,
		jobQueue: make(chan PushJob, queueSize),
		stopChan: make(chan struct{}),
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue queues job, waiting briefly when the queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, job PushJob) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	timer := time.NewTimer(enqueueTimeout)
	defer timer.Stop()

	select {
	case d.jobQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.process(job)
		case <-d.stopChan:
			// drain what is already queued before exiting
			for {
				select {
				case job := <-d.jobQueue:
					d.process(job)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) process(job PushJob) {
	if len(job.Tokens) == 0 || d.sender == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := d.sender.SendPush(ctx, job.Tokens, job.Title, job.Body, job.Data); err != nil {
		d.logger.Warn("push delivery failed",
			slog.String("user_id", job.UserID),
			slog.Int("devices", len(job.Tokens)),
			slog.Any("error", err),
		)
	}
}

// Stop stops accepting jobs and waits for queued jobs to finish or ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.stopChan)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("push dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("push dispatcher stop timed out", slog.Any("error", ctx.Err()))
	}
}
