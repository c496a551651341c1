package broadcast

import (
	"sync"
	"time"
)

type Event struct {
	Event string
	Data  string
}

type message struct {
	orderRef string
	evt      Event
}

// Subscriber is one consumer's handle on an order's update stream. Each
// subscriber has its own buffered channel; a slow consumer loses events
// rather than stalling the others.
type Subscriber struct {
	OrderRef string
	C        chan Event
}

// Hub fans tracking updates out to subscribers keyed by order reference.
// Publishing never blocks: events queue through a buffered channel and
// drop when a subscriber's buffer is full.
type Hub struct {
	mu        sync.RWMutex
	topics    map[string]map[*Subscriber]struct{}
	broadcast chan message
	stopChan  chan struct{}
	stopOnce  sync.Once
	keepalive time.Duration
}

func NewHub(keepalive time.Duration) *Hub {
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	return &Hub{
		topics:    make(map[string]map[*Subscriber]struct{}),
		broadcast: make(chan message, 256),
		stopChan:  make(chan struct{}),
		keepalive: keepalive,
	}
}

func (h *Hub) Start() {
	go h.run()
}

// Stop terminates the run loop. Closing the channel rather than sending
// guarantees the signal is seen even while the loop is mid-delivery.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *Hub) run() {
	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case msg := <-h.broadcast:
			h.deliver(msg.orderRef, msg.evt)
		case <-keepalive.C:
			h.mu.RLock()
			for _, subs := range h.topics {
				for s := range subs {
					select {
					case s.C <- Event{Event: "keepalive", Data: "ping"}:
					default:
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) deliver(orderRef string, evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.topics[orderRef] {
		select {
		case s.C <- evt:
		default:
			// drop if full
		}
	}
}

// Publish queues an event for every subscriber of the order. Unknown
// orders are a no-op.
func (h *Hub) Publish(orderRef, event, data string) {
	select {
	case h.broadcast <- message{orderRef: orderRef, evt: Event{Event: event, Data: data}}:
	default:
	}
}

func (h *Hub) Subscribe(orderRef string) *Subscriber {
	s := &Subscriber{OrderRef: orderRef, C: make(chan Event, 64)}
	h.mu.Lock()
	subs := h.topics[orderRef]
	if subs == nil {
		subs = make(map[*Subscriber]struct{})
		h.topics[orderRef] = subs
	}
	subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes the handle and closes its channel. Safe to call
// more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[s.OrderRef]
	if subs == nil {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.topics, s.OrderRef)
	}
	close(s.C)
}

func (h *Hub) SubscriberCount(orderRef string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[orderRef])
}
