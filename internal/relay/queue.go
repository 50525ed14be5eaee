package relay

import "sync"

// EnqueueResult reports what happened to a frame pushed onto a connection's
// outbound queue.
type EnqueueResult int

const (
	// EnqueueOK means the frame was queued without displacing anything.
	EnqueueOK EnqueueResult = iota
	// EnqueueEvicted means the frame was queued after evicting an older one.
	EnqueueEvicted
	// EnqueueRejected means the frame itself was discarded because the queue
	// was full of frames that must not be evicted for it.
	EnqueueRejected
	// EnqueueClosed means the connection is closed and the push was a no-op.
	EnqueueClosed
)

// sendQueue is the bounded outbound FIFO behind a connection. Pushes never
// block: at capacity the oldest evictable frame is displaced instead.
//
// Eviction policy: ordinary frames displace the oldest ordinary frame. Exempt
// frames (presence, errors) displace the oldest ordinary frame first and fall
// back to the oldest frame overall. An ordinary frame arriving when the queue
// holds only exempt frames is itself discarded.
type sendQueue struct {
	mu       sync.Mutex
	buf      []Outbound
	head     int
	count    int
	capacity int
	closed   bool

	notify chan struct{}
	done   chan struct{}
}

func newSendQueue(capacity int) *sendQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &sendQueue{
		buf:      make([]Outbound, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// push enqueues a frame, evicting per policy when full.
func (q *sendQueue) push(f Outbound) EnqueueResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return EnqueueClosed
	}

	result := EnqueueOK
	if q.count == q.capacity {
		idx, ok := q.oldestEvictable(f.exempt)
		if !ok {
			return EnqueueRejected
		}
		q.removeAt(idx)
		result = EnqueueEvicted
	}

	q.buf[(q.head+q.count)%q.capacity] = f
	q.count++
	q.wake()
	return result
}

// oldestEvictable returns the logical index of the frame to displace. Ordinary
// frames may only displace ordinary frames; exempt frames prefer ordinary
// victims but may displace anything.
func (q *sendQueue) oldestEvictable(incomingExempt bool) (int, bool) {
	for i := 0; i < q.count; i++ {
		if !q.buf[(q.head+i)%q.capacity].exempt {
			return i, true
		}
	}
	if incomingExempt && q.count > 0 {
		return 0, true
	}
	return 0, false
}

// removeAt drops the frame at logical index i, shifting later frames back.
func (q *sendQueue) removeAt(i int) {
	for ; i < q.count-1; i++ {
		q.buf[(q.head+i)%q.capacity] = q.buf[(q.head+i+1)%q.capacity]
	}
	q.buf[(q.head+q.count-1)%q.capacity] = Outbound{}
	q.count--
}

// pop returns the next frame without blocking.
func (q *sendQueue) pop() (Outbound, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Outbound{}, false
	}
	f := q.buf[q.head]
	q.buf[q.head] = Outbound{}
	q.head = (q.head + 1) % q.capacity
	q.count--
	return f, true
}

func (q *sendQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// ready signals that at least one frame may be available.
func (q *sendQueue) ready() <-chan struct{} { return q.notify }

// closedCh is closed once the queue is released.
func (q *sendQueue) closedCh() <-chan struct{} { return q.done }

func (q *sendQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// close releases the queue. Idempotent; pending frames are discarded.
func (q *sendQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.buf = nil
	q.head = 0
	q.count = 0
	close(q.done)
}
