package sender

import (
	"context"
	"sync"

	"github.com/trackd/filewatchrest/pkg/logger"
)

// pooledBufferThreshold is the file-size boundary above which file reads
// go through a pooled byte buffer instead of a fresh allocation.
const pooledBufferThreshold = 4096

// Pool is a bounded pool of workers draining a ready-path channel and
// running the per-file state machine.
type Pool struct {
	resolver   Resolver
	diag       Diag
	dispatcher Dispatcher
	log        logger.Logger

	bufPool sync.Pool

	readyCh <-chan string
	workers int

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// New creates a Pool with workers concurrent worker goroutines, each
// consuming readyCh until Stop is called.
func New(readyCh <-chan string, workers int, resolver Resolver, diag Diag, dispatcher Dispatcher, log logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Noop()
	}

	p := &Pool{
		resolver:   resolver,
		diag:       diag,
		dispatcher: dispatcher,
		log:        log,
		readyCh:    readyCh,
		workers:    workers,
		stopCh:     make(chan struct{}),
	}
	p.bufPool.New = func() any {
		buf := make([]byte, 0, 64*1024)
		return &buf
	}
	return p
}

// Start spawns the worker goroutines. Call Stop to end them.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Stop signals all workers to exit once their current path finishes, and
// waits for them to do so.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case path, ok := <-p.readyCh:
			if !ok {
				return
			}
			p.process(ctx, path)
		}
	}
}
