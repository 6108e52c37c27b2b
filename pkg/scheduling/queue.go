package scheduling

import (
	"sync"

	"github.com/ostep-web/wserver/pkg/sockio"
)

// Entry is one accepted connection awaiting dispatch, together with its
// scheduling weight. A negative weight marks the entry as unclassifiable
// for SFF ranking.
type Entry struct {
	// Conn is the accepted connection.
	Conn *sockio.Conn
	// Weight is the byte size of the static file the request would serve,
	// or a negative sentinel.
	Weight int64
}

// Queue is the bounded scheduling queue: a circular buffer of entries
// guarded by one mutex and two condition variables. The acceptor blocks on
// Enqueue while the queue is full; workers block on Dequeue while it is
// empty. Selection runs entirely inside the critical section.
type Queue struct {
	// discipline selects the dequeue order.
	discipline Discipline
	// lock guards all subsequent fields.
	lock sync.Mutex
	// notFull is signalled after every successful dequeue.
	notFull *sync.Cond
	// notEmpty is signalled after every successful enqueue.
	notEmpty *sync.Cond
	// entries is the circular buffer.
	entries []Entry
	// head is the consumer index.
	head int
	// tail is the producer index.
	tail int
	// count is the number of resident entries.
	count int
	// closed indicates that no further entries will be accepted.
	closed bool
}

// NewQueue creates a queue with the given capacity and discipline.
func NewQueue(capacity int, discipline Discipline) *Queue {
	q := &Queue{
		discipline: discipline,
		entries:    make([]Entry, capacity),
	}
	q.notFull = sync.NewCond(&q.lock)
	q.notEmpty = sync.NewCond(&q.lock)
	return q
}

// Enqueue inserts an entry, blocking while the queue is full. It reports
// false if the queue was closed before the entry could be inserted; the
// caller then still owns the connection.
func (q *Queue) Enqueue(e Entry) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	for q.count == len(q.entries) && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}

	q.entries[q.tail] = e
	q.tail = (q.tail + 1) % len(q.entries)
	q.count++

	q.notEmpty.Signal()
	return true
}

// Dequeue removes and returns one entry per the discipline, blocking while
// the queue is empty. It reports false once the queue is closed and fully
// drained.
func (q *Queue) Dequeue() (Entry, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		return Entry{}, false
	}

	if q.discipline == SFF {
		q.promoteShortest()
	}

	e := q.entries[q.head]
	q.entries[q.head] = Entry{}
	q.head = (q.head + 1) % len(q.entries)
	q.count--

	q.notFull.Signal()
	return e, true
}

// promoteShortest swaps the resident entry with the minimal non-negative
// weight into the consumer slot, keeping the circular layout intact. Ties
// go to the earliest entry in insertion order; if no resident entry has a
// usable weight the consumer slot is left as is. Callers must hold the
// queue lock.
func (q *Queue) promoteShortest() {
	chosen := -1
	var minWeight int64
	for i := 0; i < q.count; i++ {
		idx := (q.head + i) % len(q.entries)
		w := q.entries[idx].Weight
		if w < 0 {
			continue
		}
		if chosen == -1 || w < minWeight {
			chosen = idx
			minWeight = w
		}
	}
	if chosen >= 0 && chosen != q.head {
		q.entries[q.head], q.entries[chosen] = q.entries[chosen], q.entries[q.head]
	}
}

// Len returns the number of resident entries.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.count
}

// Close marks the queue closed and wakes all waiters. Resident entries
// remain dequeueable; subsequent Enqueue calls fail.
func (q *Queue) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}
