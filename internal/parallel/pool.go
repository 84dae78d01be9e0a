// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package parallel runs the work-groups of a kernel launch on a pool of
// goroutines.
package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("parallel: pool closed")

// PanicError reports a work-group that panicked.
type PanicError struct {
	Group int
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("parallel: work-group %d panicked: %v", e.Group, e.Value)
}

// GroupPool is a pool of goroutines executing work-groups.
//
// Every worker owns a queue and steals from the others when its own queue is
// empty, so uneven batches still keep all workers busy. Run returns only
// after every group of the call has finished, which makes each call a full
// barrier between kernel launches.
//
// GroupPool is safe for concurrent use.
type GroupPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	// mu orders enqueues before Close: Run holds it shared while sending,
	// Close holds it exclusively while closing done.
	mu sync.RWMutex
}

// NewGroupPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewGroupPool(workers int) *GroupPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &GroupPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *GroupPool) worker(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case task := <-own:
			task()
		default:
			if task := p.steal(id); task != nil {
				task()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case task := <-own:
				task()
			}
		}
	}
}

// drain runs what is left in a queue when the pool shuts down.
func (p *GroupPool) drain(q chan func()) {
	for {
		select {
		case task := <-q:
			task()
		default:
			return
		}
	}
}

func (p *GroupPool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case task := <-p.queues[i]:
			return task
		default:
		}
	}
	return nil
}

// batches returns how many contiguous runs of groups a call is split into.
func (p *GroupPool) batches(groups int) int {
	return min(groups, p.workers*4)
}

// Run calls fn(g) for every g in [0, groups) and waits for all of them.
//
// Groups of one call may run in any order and concurrently. If a group
// panics, the other groups still run and Run returns a *PanicError for the
// lowest panicking group.
func (p *GroupPool) Run(groups int, fn func(g int)) error {
	if groups <= 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr *PanicError
	)
	record := func(g int, v any) {
		mu.Lock()
		if firstErr == nil || g < firstErr.Group {
			firstErr = &PanicError{Group: g, Value: v}
		}
		mu.Unlock()
	}
	runGroup := func(g int) {
		defer func() {
			if v := recover(); v != nil {
				record(g, v)
			}
		}()
		fn(g)
	}

	// Workers keep running until done is closed, so every send completes
	// and every queued task is run, at the latest by drain.
	p.mu.RLock()
	if !p.running.Load() {
		p.mu.RUnlock()
		return ErrClosed
	}
	n := p.batches(groups)
	wg.Add(n)
	for b := range n {
		lo, hi := b*groups/n, (b+1)*groups/n
		p.queues[b%p.workers] <- func() {
			defer wg.Done()
			for g := lo; g < hi; g++ {
				runGroup(g)
			}
		}
	}
	p.mu.RUnlock()
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return nil
}

// Close stops the pool after the queued work has run.
// Close is safe to call multiple times.
func (p *GroupPool) Close() {
	p.mu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.mu.Unlock()
		return
	}
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *GroupPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool accepts work.
func (p *GroupPool) IsRunning() bool {
	return p.running.Load()
}
