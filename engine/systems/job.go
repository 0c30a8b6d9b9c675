package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/cozy/engine/core"
)

// Job is one unit of work for the JobSystem. OnComplete and OnFailure are
// optional and run on the worker that ran the job.
type Job struct {
	Name       string
	Run        func() error
	OnComplete func()
	OnFailure  func(error)

	done func(error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan Job
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = errors.New("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				err := job.Run()
				if err != nil {
					core.LogError("job %s failed: %s", job.Name, err)
					if job.OnFailure != nil {
						job.OnFailure(err)
					}
				} else if job.OnComplete != nil {
					job.OnComplete()
				}
				if job.done != nil {
					job.done(err)
				}
			}
		}()
	}
}

// Shutdown waits for queued jobs to finish and stops the workers.
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

// Submit queues the job, blocking while the queue is full.
func (js *JobSystem) Submit(job Job) error {
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- job
	return nil
}

// RunAll submits every job and waits for all of them. Failures are joined,
// each prefixed with its job name.
func (js *JobSystem) RunAll(jobs ...Job) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, job := range jobs {
		name := job.Name
		job.done = func(err error) {
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			wg.Done()
		}
		wg.Add(1)
		if err := js.Submit(job); err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}
