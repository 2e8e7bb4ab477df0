package downloader

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"forumscraper/pkg/dedup"
	"forumscraper/pkg/imageinfo"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/stats"
	"forumscraper/pkg/storage"
)

// DefaultWorkers is the pool size when none is configured
const DefaultWorkers = 10

// ErrPoolClosed is returned by Submit once the pool is stopped or cancelled
var ErrPoolClosed = stderrors.New("worker pool is shutting down")

// WorkItem is one candidate image discovered on a thread page
type WorkItem struct {
	Page       int
	ImageURL   string
	Host       string
	ThreadPath string
}

// Result is the terminal state of one WorkItem
type Result struct {
	Item     WorkItem
	Outcome  stats.Outcome
	Path     string
	Filename string
	Hash     string
	Size     int
	Width    int
	Height   int
	Err      error
	Duration time.Duration
}

// ImageFetcher downloads image bytes
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageStore creates directories and writes files under the output root
type ImageStore interface {
	Planner() storage.Planner
	EnsureDir(ctx context.Context, dir string) error
	Save(ctx context.Context, dir, name string, data []byte) (string, error)
}

// Options configures a WorkerPool
type Options struct {
	Workers   int
	QueueSize int
	MinWidth  int
	MinHeight int
	Fetcher   ImageFetcher
	Store     ImageStore
	Registry  *dedup.Registry
	Stats     *stats.Aggregator
	Logger    logger.Logger
}

// WorkerPool runs the fetch, filter, hash, dedup and write pipeline over a
// fixed number of workers. Results must be drained by the caller.
type WorkerPool struct {
	opts        Options
	jobQueue    chan WorkItem
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      logger.Logger

	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// NewWorkerPool creates a pool bound to ctx. Cancelling ctx stops workers
// from processing further items; queued items are then reported as failed.
func NewWorkerPool(ctx context.Context, opts Options) *WorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers * 2
	}
	if opts.Registry == nil {
		opts.Registry = dedup.NewRegistry()
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewAggregator()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		opts:        opts,
		jobQueue:    make(chan WorkItem, opts.QueueSize),
		resultQueue: make(chan Result, opts.Workers),
		ctx:         ctx,
		cancel:      cancel,
		logger:      opts.Logger,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	logger.LogComponentStart(wp.logger, "worker_pool", map[string]interface{}{
		"workers": wp.opts.Workers,
	})
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Submit queues an item, blocking while the queue is full
func (wp *WorkerPool) Submit(item WorkItem) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped || wp.ctx.Err() != nil {
		return ErrPoolClosed
	}

	select {
	case wp.jobQueue <- item:
		return nil
	case <-wp.ctx.Done():
		return ErrPoolClosed
	}
}

// Results returns the channel of per-item results. It is closed by Stop
// after every queued item has been processed.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// Stop closes the queue, waits for the workers to drain it and closes Results
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.mu.Lock()
		wp.stopped = true
		close(wp.jobQueue)
		wp.mu.Unlock()

		wp.wg.Wait()
		close(wp.resultQueue)
		wp.cancel()
		logger.LogComponentStop(wp.logger, "worker_pool", "queue drained")
	})
}

// QueueLen returns the number of items waiting for a worker
func (wp *WorkerPool) QueueLen() int {
	return len(wp.jobQueue)
}

// Stats returns the aggregator outcomes are recorded in
func (wp *WorkerPool) Stats() *stats.Aggregator {
	return wp.opts.Stats
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for item := range wp.jobQueue {
		var result Result
		if err := wp.ctx.Err(); err != nil {
			result = Result{Item: item, Outcome: stats.OutcomeFailed, Err: err}
		} else {
			result = wp.safeProcess(item)
		}

		if err := wp.opts.Stats.Record(result.Outcome); err != nil {
			wp.logger.WithError(err).Error("Unrecordable outcome")
		}
		logger.LogItem(wp.logger, item.Page, item.ImageURL, string(result.Outcome), result.Err)

		wp.resultQueue <- result
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// safeProcess turns a panic anywhere in the pipeline into a failed result
func (wp *WorkerPool) safeProcess(item WorkItem) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Item:     item,
				Outcome:  stats.OutcomeFailed,
				Err:      fmt.Errorf("panic while processing %s: %v", item.ImageURL, r),
				Duration: time.Since(start),
			}
		}
	}()

	result = wp.processItem(item)
	result.Duration = time.Since(start)
	return result
}

func (wp *WorkerPool) processItem(item WorkItem) Result {
	result := Result{Item: item, Outcome: stats.OutcomeFailed}

	data, err := wp.opts.Fetcher.Fetch(wp.ctx, item.ImageURL)
	if err != nil {
		result.Err = err
		return result
	}
	result.Size = len(data)

	info, ok, err := imageinfo.Check(data, wp.opts.MinWidth, wp.opts.MinHeight)
	if err != nil {
		result.Err = err
		return result
	}
	result.Width, result.Height = info.Width, info.Height
	if !ok {
		result.Outcome = stats.OutcomeFilteredSmall
		return result
	}

	fp := dedup.Digest(data)
	planner := wp.opts.Store.Planner()
	result.Hash = fp.Hex()
	result.Filename = planner.Filename(item.Page, fp, info.Ext)
	if !wp.opts.Registry.TryAccept(fp) {
		result.Outcome = stats.OutcomeDuplicate
		return result
	}

	dir := planner.Dir(item.Host, item.ThreadPath)
	if err := wp.opts.Store.EnsureDir(wp.ctx, dir); err != nil {
		result.Err = err
		return result
	}
	path, err := wp.opts.Store.Save(wp.ctx, dir, result.Filename, data)
	if err != nil {
		result.Err = err
		return result
	}

	result.Path = path
	result.Outcome = stats.OutcomeSaved
	return result
}

