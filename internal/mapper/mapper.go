// Package mapper applies one operation to every key of a set on a task pool
// and collects partial results.
//
// A failing key never aborts its siblings: every distinct key ends up in
// exactly one of Result.Values or Result.Failures.
package mapper

import (
	"time"

	"go.uber.org/zap"

	"github.com/handiism/cog-bulk/internal/logger"
	"github.com/handiism/cog-bulk/internal/taskpool"
)

// Progress is emitted once per completed key.
type Progress struct {
	Label  string
	Done   int
	Failed int
	Total  int
}

// Result holds the outcome of one Map call.
type Result[K comparable, V any] struct {
	Values   map[K]V
	Failures map[K]error

	// Elapsed is only populated when WithTiming was given.
	Elapsed time.Duration
}

// Total returns the number of distinct keys processed.
func (r *Result[K, V]) Total() int {
	return len(r.Values) + len(r.Failures)
}

// Throughput returns completed keys per second, or zero when timing was off.
func (r *Result[K, V]) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Total()) / r.Elapsed.Seconds()
}

type config struct {
	label    string
	progress func(Progress)
	timing   bool
	log      logger.Logger
}

// Option configures a Map call.
type Option func(*config)

// WithLabel names the batch in progress events and log lines.
func WithLabel(label string) Option {
	return func(c *config) {
		c.label = label
	}
}

// WithProgress registers a callback invoked from the calling goroutine after
// each completion.
func WithProgress(fn func(Progress)) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithTiming records the wall-clock duration of the batch.
func WithTiming() Option {
	return func(c *config) {
		c.timing = true
	}
}

// WithLogger sets the logger used for batch summaries.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// Map submits op(key) for every distinct key to pool and blocks until all of
// them have completed. Completions are fanned in through a single channel so
// results are aggregated as they arrive.
func Map[K comparable, V any](pool *taskpool.Pool, keys []K, op func(K) (V, error), opts ...Option) *Result[K, V] {
	cfg := &config{log: logger.NewNoopLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	var start time.Time
	if cfg.timing {
		start = time.Now()
	}

	unique := make([]K, 0, len(keys))
	seen := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, k)
	}

	res := &Result[K, V]{
		Values:   make(map[K]V, len(unique)),
		Failures: make(map[K]error),
	}

	done := make(chan *taskpool.Handle[V], len(unique))
	pending := make(map[*taskpool.Handle[V]]K, len(unique))
	for _, k := range unique {
		h := taskpool.SubmitTo(pool, func() (V, error) { return op(k) }, done)
		pending[h] = k
	}

	for len(pending) > 0 {
		h := <-done
		k, ok := pending[h]
		if !ok {
			continue
		}
		delete(pending, h)

		if v, err := h.Result(); err != nil {
			res.Failures[k] = err
		} else {
			res.Values[k] = v
		}

		if cfg.progress != nil {
			cfg.progress(Progress{
				Label:  cfg.label,
				Done:   res.Total(),
				Failed: len(res.Failures),
				Total:  len(unique),
			})
		}
	}

	if cfg.timing {
		res.Elapsed = time.Since(start)
		cfg.log.Info("batch complete",
			zap.String("label", cfg.label),
			zap.Int("total", res.Total()),
			zap.Int("failed", len(res.Failures)),
			zap.Duration("elapsed", res.Elapsed),
			zap.Float64("per_second", res.Throughput()),
		)
	}

	return res
}
