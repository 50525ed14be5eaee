package relay

import (
	"log/slog"
	"sync"
)

const defaultQueueSize = 256

// Config tunes the hub. Zero values fall back to sensible defaults.
type Config struct {
	// QueueSize bounds each connection's outbound queue.
	QueueSize int
	// CanJoin is the external membership authority; nil permits every join.
	CanJoin CanJoinFunc
	// Logger receives structured hub logs; nil uses slog.Default.
	Logger *slog.Logger
}

// Hub composes the room registry, event router, and broadcaster behind the
// connection-lifecycle callbacks the network layer drives. One hub serves the
// whole process; every method is safe for concurrent use.
type Hub struct {
	cfg    Config
	reg    *registry
	bc     *broadcaster
	router *router
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// Stats is a point-in-time snapshot of hub activity.
type Stats struct {
	Connections int   `json:"connections"`
	Rooms       int   `json:"rooms"`
	Delivered   int64 `json:"delivered"`
	Dropped     int64 `json:"dropped"`
	Received    int64 `json:"received"`
	ParseErrors int64 `json:"parseErrors"`
	Rejected    int64 `json:"rejected"`
}

// NewHub creates a hub ready to accept connections.
func NewHub(cfg Config) *Hub {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	reg := newRegistry()
	bc := newBroadcaster(reg)
	return &Hub{
		cfg:    cfg,
		reg:    reg,
		bc:     bc,
		router: newRouter(reg, bc, cfg.CanJoin, cfg.Logger),
		logger: cfg.Logger,
		conns:  make(map[*Conn]struct{}),
	}
}

// OnOpen registers a freshly opened transport and returns its connection
// handle. The caller owns draining the handle's outbound queue.
func (h *Hub) OnOpen() *Conn {
	c := newConn(h.cfg.QueueSize)

	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Info("connection opened", "connId", c.ID(), "connections", total)
	return c
}

// OnFrame routes one inbound frame from the connection.
func (h *Hub) OnFrame(c *Conn, raw []byte) {
	h.router.dispatch(c, raw)
}

// OnClose tears the connection down: it is atomically removed from every room
// it had joined and each of those rooms gets exactly one "left" notification.
// Safe to call more than once.
func (h *Hub) OnClose(c *Conn) {
	userID := c.UserID()
	rooms := c.close()

	h.mu.Lock()
	delete(h.conns, c)
	total := len(h.conns)
	h.mu.Unlock()

	for _, conversationID := range rooms {
		h.reg.leave(conversationID, c)
		h.router.presence(frameLeft, conversationID, userID, c)
	}

	if rooms != nil {
		h.logger.Info("connection closed",
			"connId", c.ID(), "rooms", len(rooms), "connections", total)
	}
}

// OnTransportError handles an I/O failure on one connection. The failure is
// fatal to that connection only; nothing propagates to other rooms or members.
func (h *Hub) OnTransportError(c *Conn, err error) {
	h.logger.Warn("transport error", "connId", c.ID(), "error", err)
	h.OnClose(c)
}

// Stats snapshots hub-wide counters for the health endpoint and logs.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	connections := len(h.conns)
	h.mu.Unlock()

	delivered, dropped := h.bc.stats()
	return Stats{
		Connections: connections,
		Rooms:       h.reg.roomCount(),
		Delivered:   delivered,
		Dropped:     dropped,
		Received:    h.router.received.Load(),
		ParseErrors: h.router.parseErrors.Load(),
		Rejected:    h.router.rejected.Load(),
	}
}

// Shutdown closes every live connection, running the usual leave cascade for
// each. Transport drain loops observe the closes through their Done channels.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.OnClose(c)
	}
	h.logger.Info("hub shut down", "connections", len(conns))
}
