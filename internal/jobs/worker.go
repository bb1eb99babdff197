package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sjperalta/fintera-posting/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// Worker runs queued jobs on a fixed pool and scheduled jobs on tickers
type Worker struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	queue   chan namedJob
	workers int
	stats   WorkerStats
	statsMu sync.RWMutex
	closed  bool
	closeMu sync.RWMutex
}

type namedJob struct {
	name string
	run  Job
}

// WorkerStats holds statistics about the worker. CompletedJobs counts every
// finished job; FailedJobs is the subset that returned an error or panicked.
type WorkerStats struct {
	ActiveJobs    int   `json:"active_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	QueueLength   int   `json:"queue_length"`
	Workers       int   `json:"workers"`
}

// NewWorker creates a worker with N concurrent processors
func NewWorker(numWorkers int) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan namedJob, 100),
		workers: numWorkers,
	}

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}
	return w
}

// Enqueue adds a job to the pool. A full queue runs the job on the
// caller's goroutine; a stopped worker drops it.
func (w *Worker) Enqueue(name string, job Job) {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		logger.Warn("Worker stopped, dropping job", "job", name)
		return
	}

	select {
	case w.queue <- namedJob{name: name, run: job}:
	default:
		logger.Warn("Worker queue full, running job synchronously", "job", name)
		w.run("inline", namedJob{name: name, run: job})
	}
}

func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	source := fmt.Sprintf("worker-%d", workerID)
	for job := range w.queue {
		w.run(source, job)
	}
}

// ScheduleEvery runs a job at fixed intervals. The first run happens after
// the interval.
func (w *Worker) ScheduleEvery(name string, interval time.Duration, job Job) {
	w.schedule(name, interval, job, false)
}

// ScheduleEveryImmediate runs a job once at startup, then at fixed intervals
func (w *Worker) ScheduleEveryImmediate(name string, interval time.Duration, job Job) {
	w.schedule(name, interval, job, true)
}

func (w *Worker) schedule(name string, interval time.Duration, job Job, immediate bool) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if immediate {
			w.run("scheduler", namedJob{name: name, run: job})
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.run("scheduler", namedJob{name: name, run: job})
			}
		}
	}()
}

func (w *Worker) run(source string, job namedJob) {
	w.trackJobStart()
	start := time.Now()
	failed := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panic", "source", source, "job", job.name, "panic", r)
			failed = true
		}
		w.trackJobEnd(failed)
	}()

	if err := job.run(w.ctx); err != nil {
		logger.Error("Job failed", "source", source, "job", job.name, "error", err)
		failed = true
		return
	}
	logger.Debug("Job completed", "source", source, "job", job.name, "duration", time.Since(start))
}

// Shutdown stops the schedulers, drains the queue and waits for running jobs
func (w *Worker) Shutdown() {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.closeMu.Unlock()

	w.cancel()
	w.wg.Wait()
}

// Context returns the worker's context for checking cancellation
func (w *Worker) Context() context.Context {
	return w.ctx
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.QueueLength = len(w.queue)
	stats.Workers = w.workers
	return stats
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

func (w *Worker) trackJobEnd(failed bool) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs--
	w.stats.CompletedJobs++
	if failed {
		w.stats.FailedJobs++
	}
}
