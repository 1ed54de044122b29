package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

const (
	DefaultBatchThreshold = 10
	DefaultSweepInterval  = 60 * time.Second
)

// BatchFunc is one pending side effect for a channel.
type BatchFunc func(ctx context.Context) error

// BatcherConfig configures a Batcher.
type BatcherConfig struct {
	Threshold     int           // flush a channel once this many items are pending
	SweepInterval time.Duration // flush every non-empty channel on this period
}

// FlushStats summarises one flush.
type FlushStats struct {
	Executed int
	Failed   int
}

// channelBuffer is the pending list of one channel. Appends and the take-all
// swap share its lock, so an item is either in the snapshot or left for the
// next flush, never both.
type channelBuffer struct {
	mu    sync.Mutex
	items []BatchFunc
}

func (b *channelBuffer) append(fn BatchFunc) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, fn)
	return len(b.items)
}

func (b *channelBuffer) takeAll() []BatchFunc {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}

func (b *channelBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Batcher coalesces per-channel side effects and executes each channel's
// batch concurrently once it reaches the threshold or the sweep fires.
type Batcher struct {
	cfg      BatcherConfig
	observer Observer
	logger   *logger.Logger

	mu      sync.Mutex
	buffers map[string]*channelBuffer
	stopped bool

	ctx         context.Context
	cancel      context.CancelFunc
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
	inflight    sync.WaitGroup
}

// NewBatcher creates a batcher. Zero config values fall back to the defaults.
func NewBatcher(cfg BatcherConfig, observer Observer, log *logger.Logger) *Batcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultBatchThreshold
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Batcher{
		cfg:      cfg,
		observer: observer,
		logger:   log.Component("batcher"),
		buffers:  make(map[string]*channelBuffer),
		ctx:      context.Background(),
	}
}

// Start runs the periodic sweep until Stop or ctx cancellation.
func (b *Batcher) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sweepDone != nil || b.stopped {
		return
	}
	b.ctx, b.cancel = context.WithCancel(ctx)

	var sweepCtx context.Context
	sweepCtx, b.sweepCancel = context.WithCancel(b.ctx)
	b.sweepDone = make(chan struct{})
	go b.sweep(sweepCtx, b.sweepDone)

	b.logger.Info("batcher started",
		logger.Field{Key: "threshold", Value: b.cfg.Threshold},
		logger.Field{Key: "sweep_interval", Value: b.cfg.SweepInterval})
}

// Stop halts the sweep, flushes every channel and waits for in-flight flushes.
func (b *Batcher) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	sweepCancel, sweepDone := b.sweepCancel, b.sweepDone
	b.mu.Unlock()

	if sweepCancel != nil {
		sweepCancel()
		<-sweepDone
	}

	stats := b.FlushAll(b.runContext())
	b.inflight.Wait()

	if b.cancel != nil {
		b.cancel()
	}
	b.logger.Info("batcher stopped",
		logger.Field{Key: "final_executed", Value: stats.Executed},
		logger.Field{Key: "final_failed", Value: stats.Failed})
}

// Add appends fn to the channel's pending list. Reaching the threshold starts
// a flush of that channel in the background.
func (b *Batcher) Add(channelID string, fn BatchFunc) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		b.logger.Warn("batch item rejected, batcher stopped",
			logger.Field{Key: "channel_id", Value: channelID})
		b.observer.BatchItemFailed(channelID, ErrBatcherStopped)
		return
	}
	buf, ok := b.buffers[channelID]
	if !ok {
		buf = &channelBuffer{}
		b.buffers[channelID] = buf
	}

	var items []BatchFunc
	if buf.append(fn) >= b.cfg.Threshold {
		items = buf.takeAll()
	}
	ctx := b.ctx
	if len(items) > 0 {
		b.inflight.Add(1)
	}
	b.mu.Unlock()

	if len(items) > 0 {
		go func() {
			defer b.inflight.Done()
			b.execute(ctx, channelID, items)
		}()
	}
}

// Pending returns the number of items waiting for channelID.
func (b *Batcher) Pending(channelID string) int {
	b.mu.Lock()
	buf, ok := b.buffers[channelID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	return buf.len()
}

// Flush executes and clears the pending list of channelID. Item failures are
// logged and reported, never returned.
func (b *Batcher) Flush(ctx context.Context, channelID string) FlushStats {
	b.mu.Lock()
	buf, ok := b.buffers[channelID]
	b.mu.Unlock()
	if !ok {
		return FlushStats{}
	}
	return b.execute(ctx, channelID, buf.takeAll())
}

// FlushAll flushes every channel concurrently.
func (b *Batcher) FlushAll(ctx context.Context) FlushStats {
	snapshot := b.snapshot()

	fns := make([]func(context.Context) (FlushStats, error), 0, len(snapshot))
	for channelID, buf := range snapshot {
		items := buf.takeAll()
		if len(items) == 0 {
			continue
		}
		fns = append(fns, func(ctx context.Context) (FlushStats, error) {
			return b.execute(ctx, channelID, items), nil
		})
	}

	var total FlushStats
	for _, s := range RunAll(ctx, b.logger, fns) {
		total.Executed += s.Executed
		total.Failed += s.Failed
	}
	return total
}

func (b *Batcher) snapshot() map[string]*channelBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]*channelBuffer, len(b.buffers))
	for id, buf := range b.buffers {
		out[id] = buf
	}
	return out
}

func (b *Batcher) runContext() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// flushAsync takes the channel's pending list and executes it in the
// background. Used by the sweep.
func (b *Batcher) flushAsync(channelID string, buf *channelBuffer) {
	b.mu.Lock()
	items := buf.takeAll()
	ctx := b.ctx
	if len(items) > 0 {
		b.inflight.Add(1)
	}
	b.mu.Unlock()

	if len(items) == 0 {
		return
	}
	go func() {
		defer b.inflight.Done()
		b.execute(ctx, channelID, items)
	}()
}

func (b *Batcher) execute(ctx context.Context, channelID string, items []BatchFunc) FlushStats {
	if len(items) == 0 {
		return FlushStats{}
	}

	fns := make([]func(context.Context) (struct{}, error), len(items))
	for i, item := range items {
		fns[i] = func(ctx context.Context) (struct{}, error) {
			return struct{}{}, item(ctx)
		}
	}

	stats := FlushStats{Executed: len(items)}
	for i, o := range Gather(ctx, fns) {
		if o.Err == nil {
			continue
		}
		stats.Failed++
		b.logger.ErrorCtx(ctx, "batch item failed", o.Err,
			logger.Field{Key: "channel_id", Value: channelID},
			logger.Field{Key: "index", Value: i})
		b.observer.BatchItemFailed(channelID, o.Err)
	}

	b.logger.DebugCtx(ctx, "channel batch flushed",
		logger.Field{Key: "channel_id", Value: channelID},
		logger.Field{Key: "items", Value: stats.Executed},
		logger.Field{Key: "failed", Value: stats.Failed})
	return stats
}

func (b *Batcher) sweep(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for channelID, buf := range b.snapshot() {
				if buf.len() > 0 {
					b.flushAsync(channelID, buf)
				}
			}
		}
	}
}
