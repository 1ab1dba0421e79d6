package server

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunction handles one queued task (a net.Conn, in this package)
// until the connection closes or the tomb starts dying.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool runs a fixed number of goroutines pulling from a shared
// task queue. Unlike the command-message pool this is adapted from, a
// worker here keeps one connection for its entire lifetime instead of
// requeuing it after a single message — the command protocol is a long
// line-oriented session, not one-shot binary frames.
type WorkerPool struct {
	n     int
	tasks chan any
}

func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, taskChanSize),
		n:     size,
	}
}

// AddTask queues a connection for a free worker to pick up.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup keeps pool.n workers alive under t until t starts dying.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	log.Info().Int("workers", pool.n).Msg("starting worker pool")
	for i := 0; i < pool.n; i++ {
		t.Go(func() error {
			return pool.runWorker(t, work)
		})
	}
}

// runWorker loops picking up tasks until the tomb dies, restarting on
// any per-task error rather than letting one bad connection kill the
// whole pool.
func (pool *WorkerPool) runWorker(t *tomb.Tomb, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("worker task ended with error")
			}
		}
	}
}
