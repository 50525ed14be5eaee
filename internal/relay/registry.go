package relay

import (
	"hash/fnv"
	"sync"
)

const registryShards = 16

// registry maps conversation ids to their member sets. Locking is sharded by
// conversation id so unrelated conversations never serialize against each
// other; all membership mutation flows through join and leave so the room
// member set and the connection's joined set stay consistent.
type registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// room holds one conversation's member set. Its mutex also serializes
// broadcast sweeps, which is what gives each room a total delivery order.
type room struct {
	mu      sync.Mutex
	members map[*Conn]struct{}
}

func newRegistry() *registry {
	r := &registry{}
	for i := range r.shards {
		r.shards[i].rooms = make(map[string]*room)
	}
	return r
}

func (r *registry) shard(conversationID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return &r.shards[h.Sum32()%registryShards]
}

// join adds the connection to the room, creating the room if absent, and
// records the room on the connection. Idempotent. Returns false when the
// connection is already closed and no membership was recorded.
func (r *registry) join(conversationID string, c *Conn) bool {
	s := r.shard(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[conversationID]
	if !ok {
		rm = &room{members: make(map[*Conn]struct{})}
		s.rooms[conversationID] = rm
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !c.trackJoin(conversationID) {
		if len(rm.members) == 0 && !ok {
			delete(s.rooms, conversationID)
		}
		return false
	}
	rm.members[c] = struct{}{}
	return true
}

// leave removes the connection from the room and the room from the
// connection, deleting the room once empty. Tolerates connections that were
// never members and rooms that do not exist.
func (r *registry) leave(conversationID string, c *Conn) {
	s := r.shard(conversationID)
	s.mu.Lock()

	rm, ok := s.rooms[conversationID]
	if !ok {
		s.mu.Unlock()
		c.trackLeave(conversationID)
		return
	}

	rm.mu.Lock()
	delete(rm.members, c)
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		delete(s.rooms, conversationID)
	}
	s.mu.Unlock()

	c.trackLeave(conversationID)
}

// get returns the live room for a conversation, if any.
func (r *registry) get(conversationID string) (*room, bool) {
	s := r.shard(conversationID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[conversationID]
	return rm, ok
}

// membersOf returns a snapshot of the room's members. Safe to iterate while
// the room keeps mutating.
func (r *registry) membersOf(conversationID string) []*Conn {
	rm, ok := r.get(conversationID)
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	members := make([]*Conn, 0, len(rm.members))
	for c := range rm.members {
		members = append(members, c)
	}
	return members
}

// roomCount reports the number of live rooms across all shards.
func (r *registry) roomCount() int {
	total := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		total += len(s.rooms)
		s.mu.RUnlock()
	}
	return total
}
