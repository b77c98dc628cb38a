package drocluster

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Future tracks the completion of a submitted task.
type Future struct {
	done   chan struct{}
	value  interface{}
	err    error
	device Device
}

// Wait blocks until the task completes and returns its result.
func (f *Future) Wait() (interface{}, error) {
	<-f.done
	return f.value, f.err
}

// Device returns the device the task ran on. Only valid after Wait.
func (f *Future) Device() Device {
	return f.device
}

// Client is the handle used to submit work to a Cluster. Submission is
// bounded by the cluster's total thread slots so a burst of partition
// tasks cannot queue unbounded work.
type Client struct {
	cluster *Cluster
	sem     *semaphore.Weighted
	slots   int64
}

// NewClient creates a Client for the given cluster.
func NewClient(c *Cluster) *Client {
	slots := int64(c.Slots())
	return &Client{
		cluster: c,
		sem:     semaphore.NewWeighted(slots),
		slots:   slots,
	}
}

// Submit queues a task for execution on the cluster and returns a Future
// for its result. Submit blocks while all task slots are busy.
func (cl *Client) Submit(task Task) *Future {
	cl.sem.Acquire(context.Background(), 1)

	future := &Future{done: make(chan struct{})}
	cl.cluster.tasks <- &submission{
		task:    task,
		future:  future,
		release: func() { cl.sem.Release(1) },
	}
	return future
}

// Gather waits on a set of futures and collects their results in
// submission order. The first task error encountered is returned.
func (cl *Client) Gather(futures []*Future) ([]interface{}, error) {
	values := make([]interface{}, len(futures))
	var firstErr error
	for i, f := range futures {
		value, err := f.Wait()
		values[i] = value
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return values, firstErr
}

// Close drains the client: it blocks until every submitted task has
// completed. The underlying cluster is left running.
func (cl *Client) Close() {
	cl.sem.Acquire(context.Background(), cl.slots)
	cl.sem.Release(cl.slots)
}
