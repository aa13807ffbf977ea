package engine

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// MaxDefaultProcesses caps the default pool size on large machines.
const MaxDefaultProcesses = 8

// DefaultPoolSize is the number of CPU cores, capped at MaxDefaultProcesses.
func DefaultPoolSize() int {
	n := runtime.NumCPU()
	if n > MaxDefaultProcesses {
		n = MaxDefaultProcesses
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Pool is a Runner that admits at most Size invocations of the wrapped
// Runner at once. Excess callers block until a slot frees up or their
// context is cancelled.
type Pool struct {
	inner Runner
	size  int64
	sem   *semaphore.Weighted

	inFlight atomic.Int64
	peak     atomic.Int64
	total    atomic.Int64
}

// NewPool wraps inner; size <= 0 selects DefaultPoolSize.
func NewPool(inner Runner, size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize()
	}
	return &Pool{
		inner: inner,
		size:  int64(size),
		sem:   semaphore.NewWeighted(int64(size)),
	}
}

// Run waits for a free slot, then delegates to the wrapped Runner.
func (p *Pool) Run(ctx context.Context, inv Invocation) (Output, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Output{}, err
	}
	defer p.sem.Release(1)

	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	p.total.Add(1)
	for {
		cur := p.peak.Load()
		if n <= cur || p.peak.CompareAndSwap(cur, n) {
			break
		}
	}

	return p.inner.Run(ctx, inv)
}

// Size is the configured concurrency cap.
func (p *Pool) Size() int { return int(p.size) }

// InFlight is the number of invocations currently running.
func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }

// Peak is the highest InFlight value observed since creation.
func (p *Pool) Peak() int { return int(p.peak.Load()) }

// Total is the number of invocations admitted since creation.
func (p *Pool) Total() int { return int(p.total.Load()) }
