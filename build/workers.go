package build

import (
	"context"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

const (
	ErrTypeChannelClosed = "build_channel_closed"
)

// Channel carries encoded tasks to background workers and brings their
// encoded results back. Results of different tasks arrive in any order.
type Channel interface {
	Send(ctx context.Context, msg []byte) error
	Results() <-chan []byte
	Close()
}

// Workers is a Channel backed by a pool of goroutines meshing planes.
// Workers share no memory with the sender: tasks and results are decoded and
// encoded on each side.
type Workers struct {
	codec   *Codec
	pool    pond.Pool
	results chan []byte

	mutex  sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWorkers starts a pool of size workers. Up to queueSize results are
// buffered until they are drained.
func NewWorkers(codec *Codec, size, queueSize int) *Workers {
	return &Workers{
		codec:   codec,
		pool:    pond.NewPool(size),
		results: make(chan []byte, queueSize),
		done:    make(chan struct{}),
	}
}

func (w *Workers) Send(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return errors.New("workers are closed").WithType(ErrTypeChannelClosed)
	}

	w.pool.Submit(func() {
		res, ok := w.handle(msg)
		if !ok {
			return
		}

		select {
		case w.results <- res:
		case <-w.done:
		}
	})
	return nil
}

func (w *Workers) Results() <-chan []byte {
	return w.results
}

// Close stops the workers. Results not yet drained are discarded.
func (w *Workers) Close() {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return
	}
	w.closed = true
	close(w.done)
	w.mutex.Unlock()

	w.pool.StopAndWait()
}

func (w *Workers) handle(msg []byte) ([]byte, bool) {
	start := time.Now()

	task, err := w.codec.DecodeTask(msg)
	if err != nil {
		// Without a decoded task there is no tile to answer to. The build is
		// retried once its deadline expires.
		logs.Warn(errors.New("dropping undecodable build task").Wrap(err))
		instrumentWorkerTask(start, err)
		return nil, false
	}

	res, err := BuildPlane(task)
	if err != nil {
		res = Result{
			Key:    task.Key,
			Ticket: task.Ticket,
			Error:  err.Error(),
		}
	}
	instrumentWorkerTask(start, err)

	b, err := w.codec.EncodeResult(res)
	if err != nil {
		logs.Warn(errors.New("dropping unencodable build result").
			WithTag("key", task.Key).
			Wrap(err))
		return nil, false
	}
	return b, true
}
