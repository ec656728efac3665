package wire

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunc processes one task; any error it returns is fatal to the
// worker that ran it.
type WorkerFunc = func(t *tomb.Tomb, task any) error

// WorkerPool runs up to n workers draining a shared task channel,
// adapted from internal/worker.go. Two bugs there are fixed here:
// NewWorkerPool never stored size into n, so Setup's "activeWorkers <
// pool.n" comparison was always false and no worker ever started; and
// there was no AddTask method for callers to actually enqueue work.
type WorkerPool struct {
	n     int
	tasks chan any
}

// NewWorkerPool constructs a pool sized for up to size concurrent
// workers.
func NewWorkerPool(size int) *WorkerPool {
	return &WorkerPool{
		n:     size,
		tasks: make(chan any, taskChanSize),
	}
}

// AddTask enqueues a task for a worker to pick up.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup spawns pool.n workers under t and returns once they're all
// running; it does not block waiting for them to finish — t.Wait does
// that.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunc) {
	for id := 0; id < pool.n; id++ {
		workerID := id
		t.Go(func() error {
			return pool.worker(t, workerID, work)
		})
	}
}

// worker pulls tasks off the shared channel until t dies or work
// returns an error.
func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunc) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Int("worker_id", id).Msg("wire: worker exiting")
				return err
			}
		}
	}
}
