package main

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Dispatcher produces exactly one CountResult per (text file, tokenizer).
// Local tokenizers run on a CPU-bounded pool; remote calls are capped by a
// semaphore and retried through retryMachine.
type Dispatcher struct {
	tokenizers []Tokenizer
	localLimit int
	remote     *semaphore.Weighted
	limiter    *rate.Limiter // nil for no client-side rate limit
	policy     RetryPolicy
	sleep      sleepFunc
	logger     *zap.Logger
}

func newDispatcher(toks []Tokenizer, cfg Config, logger *zap.Logger) *Dispatcher {
	workers := cfg.Threads
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	remote := cfg.RemoteConcurrency
	if remote <= 0 {
		remote = defaultRemoteConcurrency
	}
	d := &Dispatcher{
		tokenizers: toks,
		localLimit: workers,
		remote:     semaphore.NewWeighted(int64(remote)),
		policy:     newRetryPolicy(cfg),
		sleep:      sleepContext,
		logger:     logger,
	}
	if cfg.RemoteRPS > 0 {
		burst := int(cfg.RemoteRPS)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RemoteRPS), burst)
	}
	return d
}

// Run tokenizes every counted entry. The result is indexed
// [file][tokenizer]; rows of files that are not text are nil. Each cell has
// a single writer, so no locking is needed on the grid.
func (d *Dispatcher) Run(ctx context.Context, entries []FileEntry) [][]CountResult {
	results := make([][]CountResult, len(entries))
	for i, e := range entries {
		if e.Class.Counted() {
			results[i] = make([]CountResult, len(d.tokenizers))
		}
	}

	var local, remote []int
	for ti, tk := range d.tokenizers {
		if tk.Descriptor().Cost == CostRemote {
			remote = append(remote, ti)
		} else {
			local = append(local, ti)
		}
	}

	readers := make([]contentReader, len(entries))
	var wg sync.WaitGroup

	if len(remote) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.feedRemote(ctx, entries, remote, readers, results)
		}()
	}

	if len(local) > 0 {
		var g errgroup.Group
		g.SetLimit(d.localLimit)
		for fi := range entries {
			if results[fi] == nil {
				continue
			}
			g.Go(func() error {
				text, err := readers[fi].read(entries[fi], d.logger)
				for _, ti := range local {
					if err != nil {
						results[fi][ti] = CountResult{Err: err}
						continue
					}
					results[fi][ti] = d.countLocal(ctx, entries[fi], d.tokenizers[ti], text)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	wg.Wait()
	return results
}

// feedRemote starts one goroutine per remote cell, but only after a slot on
// the semaphore is free, so at most remote_concurrency calls are outstanding
// and content is only held for those calls.
func (d *Dispatcher) feedRemote(ctx context.Context, entries []FileEntry, remote []int, readers []contentReader, results [][]CountResult) {
	var wg sync.WaitGroup
	for fi := range entries {
		if results[fi] == nil {
			continue
		}
		for _, ti := range remote {
			if err := d.remote.Acquire(ctx, 1); err != nil {
				results[fi][ti] = CountResult{Err: err}
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer d.remote.Release(1)
				text, err := readers[fi].read(entries[fi], d.logger)
				if err != nil {
					results[fi][ti] = CountResult{Err: err}
					return
				}
				results[fi][ti] = d.countRemote(ctx, entries[fi], d.tokenizers[ti], text)
			}()
		}
	}
	wg.Wait()
}

func (d *Dispatcher) countLocal(ctx context.Context, entry FileEntry, tk Tokenizer, text string) CountResult {
	n, err := tk.CountTokens(ctx, text)
	if err != nil {
		d.warnCell(ctx, entry, tk, err)
		return CountResult{Err: err}
	}
	return CountResult{Count: n}
}

func (d *Dispatcher) countRemote(ctx context.Context, entry FileEntry, tk Tokenizer, text string) CountResult {
	name := tk.Descriptor().Name
	call := func(ctx context.Context) (int, error) {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return 0, err
			}
		}
		return tk.CountTokens(ctx, text)
	}
	onRetry := func(attempt int, delay time.Duration, err error) {
		d.logger.Debug("retrying",
			zap.String("path", entry.RelPath),
			zap.String("tokenizer", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
	}

	res := runWithRetry(ctx, d.policy, d.sleep, call, onRetry)
	if !res.OK() {
		d.warnCell(ctx, entry, tk, res.Err)
	}
	return res
}

// warnCell emits the single warning for a failed cell. Failures caused by
// cancellation of the whole run are not reported per cell.
func (d *Dispatcher) warnCell(ctx context.Context, entry FileEntry, tk Tokenizer, err error) {
	if ctx.Err() != nil {
		return
	}
	d.logger.Warn("token count failed",
		zap.String("path", entry.RelPath),
		zap.String("tokenizer", tk.Descriptor().Name),
		zap.Error(err))
}

// errInvalidUTF8 marks a file whose bytes past the sniffed prefix are not UTF-8.
var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// contentReader reads a file for the dispatcher and warns
// at most once per file, however many tokenizers need it.
type contentReader struct {
	warn sync.Once
}

func (r *contentReader) read(entry FileEntry, logger *zap.Logger) (string, error) {
	var data []byte
	if entry.Content != nil {
		data = entry.Content
	} else {
		var err error
		data, err = os.ReadFile(entry.Path)
		if err != nil {
			r.warn.Do(func() {
				logger.Warn("cannot read file", zap.String("path", entry.RelPath), zap.Error(err))
			})
			return "", err
		}
	}
	if !utf8.Valid(data) {
		r.warn.Do(func() {
			logger.Warn("cannot decode file", zap.String("path", entry.RelPath), zap.Error(errInvalidUTF8))
		})
		return "", errInvalidUTF8
	}
	return string(data), nil
}
