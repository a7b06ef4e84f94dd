package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leetleague_fanout_batch_size",
		Help:    "Number of tasks per fan-out batch",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leetleague_fanout_batch_duration_seconds",
		Help:    "Fan-out batch duration in seconds by result",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"result"})
)

// Config holds executor configuration.
type Config struct {
	// MaxConcurrency is the maximum number of tasks in flight
	MaxConcurrency int
	// Timeout per task
	Timeout time.Duration
}

// DefaultConfig returns a configuration polite enough for LeetCode.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 5,
		Timeout:        15 * time.Second,
	}
}

// Task is one unit of work. It must honour ctx.
type Task func(ctx context.Context) ([]byte, error)

// TaskError reports the task that failed a batch.
type TaskError struct {
	Index int
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d failed: %v", e.Index, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Executor runs task batches on a worker pool.
type Executor struct {
	config Config
	logger zerolog.Logger
}

// NewExecutor creates a new executor.
func NewExecutor(config Config) *Executor {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Executor{
		config: config,
		logger: log.With().Str("component", "fanout").Logger(),
	}
}

type taskResult struct {
	index int
	data  []byte
	err   error
}

// Run executes all tasks and returns their results in input order.
// If any task fails, the remaining ones are cancelled and the first
// failure is returned as a *TaskError.
func (e *Executor) Run(ctx context.Context, tasks []Task) ([][]byte, error) {
	if len(tasks) == 0 {
		return [][]byte{}, nil
	}

	start := time.Now()
	batchSize.Observe(float64(len(tasks)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan int, len(tasks))
	for i := range tasks {
		queue <- i
	}
	close(queue)

	workers := e.config.MaxConcurrency
	if workers > len(tasks) {
		workers = len(tasks)
	}

	results := make(chan taskResult, len(tasks))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go e.worker(ctx, tasks, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([][]byte, len(tasks))
	var firstErr *TaskError
	completed := 0
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = &TaskError{Index: res.index, Err: res.err}
				cancel()
			}
			continue
		}
		out[res.index] = res.data
		completed++
	}

	if firstErr == nil && completed < len(tasks) {
		// Cancelled from outside before every task ran
		firstErr = &TaskError{Index: -1, Err: context.Cause(ctx)}
	}

	if firstErr != nil {
		batchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		e.logger.Warn().
			Err(firstErr.Err).
			Int("index", firstErr.Index).
			Int("batch_size", len(tasks)).
			Msg("Fan-out batch failed")
		return nil, firstErr
	}

	batchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	e.logger.Debug().
		Int("batch_size", len(tasks)).
		Int("workers", workers).
		Dur("duration", time.Since(start)).
		Msg("Fan-out batch complete")
	return out, nil
}

// worker processes task indexes from the queue
func (e *Executor) worker(ctx context.Context, tasks []Task, queue <-chan int, results chan<- taskResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for idx := range queue {
		select {
		case <-ctx.Done():
			return
		default:
		}

		taskCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		data, err := tasks[idx](taskCtx)
		cancel()

		// results is buffered for every task, so this never blocks
		results <- taskResult{index: idx, data: data, err: err}
		if err != nil {
			return
		}
	}
}
