package engine

import (
	"container/heap"
	"context"

	"github.com/birkland/dansbag/bag"
	"golang.org/x/sync/errgroup"
)

type completion struct {
	index  int
	worker int
	res    result
}

// parallel runs ready checks on a pool of workers.  The calling goroutine is the only one
// that touches the run: it hands out ready rules, records completions, and decides skips.
// Workers are numbered from 1.
func (e *Engine) parallel(ctx context.Context, r *run, b *bag.Bag) {
	work := make(chan int)
	done := make(chan completion)

	var workers errgroup.Group
	for w := 1; w <= e.workers; w++ {
		w := w
		workers.Go(func() error {
			for i := range work {
				done <- completion{index: i, worker: w, res: e.evaluate(ctx, r.graph.Rule(i), b)}
			}
			return nil
		})
	}

	pending := r.graph.Pending()
	ready := &indexHeap{}

	// resolve is called once all prerequisites of rule i are decided
	var resolve func(i int)
	resolve = func(i int) {
		skip, ok := r.skip(i)
		if !ok {
			heap.Push(ready, i)
			return
		}
		r.decide(i, skip)
		for _, d := range r.graph.Dependents(i) {
			pending[d]--
			if pending[d] == 0 {
				resolve(d)
			}
		}
	}

	var roots []int
	for i := 0; i < r.graph.Len(); i++ {
		if r.graph.InScope(i) && pending[i] == 0 {
			roots = append(roots, i)
		}
	}
	for _, i := range roots {
		resolve(i)
	}

	inflight := 0
	cancelled := ctx.Done()
	for {
		var out chan<- int
		next := -1
		if ready.Len() > 0 && ctx.Err() == nil {
			out = work
			next = (*ready)[0]
		}
		if out == nil && inflight == 0 {
			break
		}

		select {
		case out <- next:
			heap.Pop(ready)
			inflight++
		case c := <-done:
			inflight--
			e.record(r, c.index, c.worker, c.res)
			if !r.decided[c.index] {
				continue
			}
			for _, d := range r.graph.Dependents(c.index) {
				pending[d]--
				if pending[d] == 0 {
					resolve(d)
				}
			}
		case <-cancelled:
			cancelled = nil
		}
	}

	close(work)
	_ = workers.Wait()
}
