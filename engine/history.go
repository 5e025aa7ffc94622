package engine

// historyCapacity is the fixed size of every node's event history ring.
const historyCapacity = 100

// eventRing is a fixed-capacity FIFO of emitted events. Once full, appending
// evicts the oldest entry.
type eventRing struct {
	buf  []*Event
	next int
	size int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{buf: make([]*Event, capacity)}
}

func (ring *eventRing) append(event *Event) {
	ring.buf[ring.next] = event
	ring.next = (ring.next + 1) % len(ring.buf)
	if ring.size < len(ring.buf) {
		ring.size++
	}
}

func (ring *eventRing) len() int { return ring.size }

// recent returns up to n most recent events in oldest-to-newest order.
func (ring *eventRing) recent(n int) []*Event {
	if n > ring.size {
		n = ring.size
	}

	events := make([]*Event, 0, n)
	start := ring.next - n
	if start < 0 {
		start += len(ring.buf)
	}
	for i := 0; i < n; i++ {
		events = append(events, ring.buf[(start+i)%len(ring.buf)])
	}
	return events
}
