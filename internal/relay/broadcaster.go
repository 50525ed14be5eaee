package relay

import "sync/atomic"

// DeliveryReport summarizes one broadcast: how many members had the frame
// queued and how many frames were lost to backpressure along the way.
type DeliveryReport struct {
	Delivered int
	Dropped   int
}

// broadcaster fans a frame out to every member of a room except an optional
// excluded sender. Each delivery is an independent non-blocking enqueue, so a
// stalled consumer costs nothing but its own dropped frames. The room mutex is
// held for the sweep, which makes deliveries within one room totally ordered.
type broadcaster struct {
	reg *registry

	delivered atomic.Int64
	dropped   atomic.Int64
}

func newBroadcaster(reg *registry) *broadcaster {
	return &broadcaster{reg: reg}
}

func (b *broadcaster) broadcast(conversationID string, f Outbound, exclude *Conn) DeliveryReport {
	rm, ok := b.reg.get(conversationID)
	if !ok {
		return DeliveryReport{}
	}

	var report DeliveryReport

	rm.mu.Lock()
	for member := range rm.members {
		if member == exclude {
			continue
		}
		switch member.Enqueue(f) {
		case EnqueueOK:
			report.Delivered++
		case EnqueueEvicted:
			report.Delivered++
			report.Dropped++
		case EnqueueRejected:
			report.Dropped++
		case EnqueueClosed:
			// Connection closed mid-delivery; treated as a no-op.
		}
	}
	rm.mu.Unlock()

	b.delivered.Add(int64(report.Delivered))
	b.dropped.Add(int64(report.Dropped))
	return report
}

func (b *broadcaster) stats() (delivered, dropped int64) {
	return b.delivered.Load(), b.dropped.Load()
}
