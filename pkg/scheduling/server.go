package scheduling

import (
	"context"
	"errors"
	"net"

	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"

	"github.com/ostep-web/wserver/pkg/logging"
	"github.com/ostep-web/wserver/pkg/metrics"
	"github.com/ostep-web/wserver/pkg/sockio"
)

// Handler is the per-connection request handler invoked by workers. The
// worker owns the connection for the duration of the call and closes it
// afterwards.
type Handler interface {
	Handle(conn *sockio.Conn)
}

// Server owns the acceptor/worker topology: one acceptor goroutine
// producing into the bounded queue and a fixed pool of workers draining it.
type Server struct {
	// log is the associated logger.
	log logging.Logger
	// listener is the TCP listening endpoint.
	listener *net.TCPListener
	// queue is the bounded scheduling queue.
	queue *Queue
	// discipline is the active queueing discipline.
	discipline Discipline
	// workers is the worker pool size.
	workers int
	// handler serves dequeued connections.
	handler Handler
	// tracker records admission counters. It may be nil.
	tracker *metrics.Tracker
}

// NewServer creates a server draining listener through a queue of slots
// entries with the given worker pool size and discipline.
func NewServer(
	log logging.Logger,
	listener *net.TCPListener,
	handler Handler,
	tracker *metrics.Tracker,
	workers int,
	slots int,
	discipline Discipline,
) *Server {
	return &Server{
		log:        log,
		listener:   listener,
		queue:      NewQueue(slots, discipline),
		discipline: discipline,
		workers:    workers,
		handler:    handler,
		tracker:    tracker,
	}
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts and serves connections until ctx is cancelled. On
// cancellation the listener is closed, the queue is closed, and workers
// finish the entries still resident before returning.
func (s *Server) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	// Unblock the acceptor when the context is cancelled.
	group.Go(func() error {
		<-groupCtx.Done()
		s.queue.Close()
		return s.listener.Close()
	})

	for i := 0; i < s.workers; i++ {
		id := i
		group.Go(func() error {
			s.runWorker(id)
			return nil
		})
	}

	group.Go(func() error {
		return s.runAcceptor(groupCtx)
	})

	err := group.Wait()
	if errors.Is(err, net.ErrClosed) || errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return err
}

// runAcceptor is the producer loop: accept, classify (SFF only), enqueue.
// The acceptor never touches a connection after a successful enqueue.
func (s *Server) runAcceptor(ctx context.Context) error {
	for {
		tcpConn, err := s.listener.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.tracker.TrackAccepted()

		conn := sockio.NewConn(tcpConn)
		entry := Entry{Conn: conn}
		if s.discipline == SFF {
			entry.Weight = PeekSize(conn)
			if entry.Weight >= 0 {
				s.log.Debugf("Classified connection from %s: %s static target",
					conn.RemoteAddr(), units.BytesSize(float64(entry.Weight)))
			} else {
				s.log.Debugf("Connection from %s is not classifiable (%d)",
					conn.RemoteAddr(), entry.Weight)
			}
		}

		if !s.queue.Enqueue(entry) {
			conn.Close()
			return nil
		}
		s.tracker.TrackQueueDepth(s.queue.Len())
	}
}

// runWorker is the consumer loop: dequeue, serve, close. Workers never hold
// the queue lock across connection I/O.
func (s *Server) runWorker(id int) {
	log := s.log.WithField("worker", id)
	log.Debug("Worker started")
	for {
		entry, ok := s.queue.Dequeue()
		if !ok {
			log.Debug("Worker stopping")
			return
		}
		s.tracker.TrackDispatch(s.discipline.String())
		s.handler.Handle(entry.Conn)
		if err := entry.Conn.Close(); err != nil {
			log.Debugf("Failed to close connection: %v", err)
		}
	}
}
