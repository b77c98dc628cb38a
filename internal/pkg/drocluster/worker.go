package drocluster

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// worker executes tasks on a single bound device. Workers register with
// the scheduler over TCP when they start, mirroring how a remote worker
// process would join the cluster.
type worker struct {
	device  Device
	threads int
	conn    net.Conn
}

func startWorker(c *Cluster, ordinal, threads int) (*worker, error) {
	conn, err := net.DialTimeout("tcp", c.endpoint, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("worker %d failed to reach scheduler at %s: %w", ordinal, c.endpoint, err)
	}

	w := &worker{
		device:  Device{Ordinal: ordinal},
		threads: threads,
		conn:    conn,
	}
	if _, err := fmt.Fprintf(conn, "worker-%d %s\n", ordinal, w.device); err != nil {
		conn.Close()
		return nil, err
	}

	for t := 0; t < threads; t++ {
		c.workerWg.Add(1)
		go w.run(c)
	}

	log.Debugf("Worker %d bound to %s", ordinal, w.device)
	return w, nil
}

func (w *worker) run(c *Cluster) {
	defer c.workerWg.Done()
	for {
		select {
		case <-c.quit:
			return
		case sub := <-c.tasks:
			sub.future.value, sub.future.err = sub.task(w.device)
			sub.future.device = w.device
			close(sub.future.done)
			if sub.release != nil {
				sub.release()
			}
		}
	}
}
