package drocluster

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Device identifies the accelerator device a worker is bound to.
type Device struct {
	Ordinal int
}

func (d Device) String() string {
	return fmt.Sprintf("gpu:%d", d.Ordinal)
}

// Task is a unit of work executed on a cluster worker. The task receives
// the device its worker is bound to.
type Task func(dev Device) (interface{}, error)

// submission pairs a queued task with the future tracking its completion.
type submission struct {
	task    Task
	future  *Future
	release func()
}

// Cluster is a local multi-process cluster. Each worker is bound to one
// accelerator device; workers connect back to the scheduler endpoint when
// they start. The cluster is exclusively owned by the starting process and
// is torn down by Close.
type Cluster struct {
	endpoint string
	listener net.Listener
	tasks    chan *submission
	quit     chan struct{}
	workers  []*worker

	mut   sync.Mutex
	conns []net.Conn

	acceptWg sync.WaitGroup
	workerWg sync.WaitGroup

	closeOnce sync.Once
}

// Start binds the scheduler on endpoint and starts numWorkers workers,
// each bound to a distinct device ordinal and running threadsPerWorker
// task threads.
func Start(endpoint string, numWorkers, threadsPerWorker int) (*Cluster, error) {
	if numWorkers < 1 {
		return nil, fmt.Errorf("invalid worker count: %d", numWorkers)
	}
	if threadsPerWorker < 1 {
		return nil, fmt.Errorf("invalid threads per worker: %d", threadsPerWorker)
	}

	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("scheduler bind on %s failed: %w", endpoint, err)
	}

	c := &Cluster{
		endpoint: listener.Addr().String(),
		listener: listener,
		tasks:    make(chan *submission),
		quit:     make(chan struct{}),
	}

	c.acceptWg.Add(1)
	go c.acceptRegistrations()

	for ordinal := 0; ordinal < numWorkers; ordinal++ {
		w, err := startWorker(c, ordinal, threadsPerWorker)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.workers = append(c.workers, w)
	}

	log.Debugf("Cluster up at %s with %d workers, %d threads each",
		c.endpoint, numWorkers, threadsPerWorker)
	return c, nil
}

// Endpoint returns the address the scheduler is bound on.
func (c *Cluster) Endpoint() string {
	return c.endpoint
}

// NumWorkers returns the number of workers in the cluster.
func (c *Cluster) NumWorkers() int {
	return len(c.workers)
}

// Slots returns the total number of task threads across all workers.
func (c *Cluster) Slots() int {
	slots := 0
	for _, w := range c.workers {
		slots += w.threads
	}
	return slots
}

func (c *Cluster) acceptRegistrations() {
	defer c.acceptWg.Done()
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			// Listener closed during teardown
			return
		}

		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			conn.Close()
			continue
		}
		log.Debugf("Scheduler registered %s", line[:len(line)-1])

		c.mut.Lock()
		c.conns = append(c.conns, conn)
		c.mut.Unlock()
	}
}

// Close tears the cluster down: all worker threads are stopped and their
// scheduler connections closed. Close is safe to call more than once and
// runs regardless of whether the work submitted to the cluster succeeded.
func (c *Cluster) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		c.listener.Close()
		c.workerWg.Wait()
		c.acceptWg.Wait()

		c.mut.Lock()
		for _, conn := range c.conns {
			conn.Close()
		}
		c.conns = nil
		c.mut.Unlock()

		log.Debug("Cluster torn down")
	})
}
