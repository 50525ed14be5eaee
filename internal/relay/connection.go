package relay

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUserConflict is returned when a frame declares a different userId than
// the one already bound to the connection.
var ErrUserConflict = errors.New("userId already bound to a different user")

// Conn is the hub-side handle for one client transport. It owns the outbound
// delivery queue and tracks which rooms the connection has joined. Membership
// is only ever mutated through the registry so the room and connection views
// cannot drift apart.
type Conn struct {
	id    string
	queue *sendQueue

	mu     sync.Mutex
	userID string
	joined map[string]struct{}
	closed bool
}

func newConn(queueSize int) *Conn {
	return &Conn{
		id:     uuid.New().String(),
		queue:  newSendQueue(queueSize),
		joined: make(map[string]struct{}),
	}
}

// ID returns the opaque connection handle.
func (c *Conn) ID() string { return c.id }

// UserID returns the bound user id, or "" while unauthenticated.
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// bindUser binds the user id on first use. Binding the same id again is a
// no-op; a different id is a protocol violation.
func (c *Conn) bindUser(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID == "" {
		c.userID = userID
		return nil
	}
	if c.userID != userID {
		return ErrUserConflict
	}
	return nil
}

// Enqueue pushes a frame onto the outbound queue without blocking. Pushing to
// a closed connection is a no-op.
func (c *Conn) Enqueue(f Outbound) EnqueueResult {
	return c.queue.push(f)
}

// Next pops the next outbound frame, if any. Used by the transport drain loop.
func (c *Conn) Next() (Outbound, bool) {
	return c.queue.pop()
}

// Ready signals that outbound frames may be waiting.
func (c *Conn) Ready() <-chan struct{} { return c.queue.ready() }

// Done is closed once the connection has been closed.
func (c *Conn) Done() <-chan struct{} { return c.queue.closedCh() }

// QueueLen reports the number of frames currently queued.
func (c *Conn) QueueLen() int { return c.queue.len() }

// Rooms returns a snapshot of the joined room ids.
func (c *Conn) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]string, 0, len(c.joined))
	for id := range c.joined {
		rooms = append(rooms, id)
	}
	return rooms
}

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// trackJoin records membership on the connection side. It refuses once the
// connection is closed so a close racing a join cannot leak membership.
func (c *Conn) trackJoin(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.joined[conversationID] = struct{}{}
	return true
}

func (c *Conn) trackLeave(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joined, conversationID)
}

// close marks the connection closed, releases the queue, and returns the
// frozen set of rooms the connection belonged to so the hub can fan out
// leave notifications. Idempotent; later calls return nil.
func (c *Conn) close() []string {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	rooms := make([]string, 0, len(c.joined))
	for id := range c.joined {
		rooms = append(rooms, id)
	}
	c.joined = make(map[string]struct{})
	c.mu.Unlock()

	c.queue.close()
	return rooms
}
