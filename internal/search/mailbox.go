package search

import "sync"

// mailbox is an unbounded multi-producer single-consumer queue. Pushes
// never block; the consumer waits on ready and then drains everything.
type mailbox struct {
	mu     sync.Mutex
	items  []message
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(msg message) {
	m.mu.Lock()
	m.items = append(m.items, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// ready fires at least once after every push.
func (m *mailbox) ready() <-chan struct{} {
	return m.signal
}

// drain moves all queued messages into buf, reusing its storage.
func (m *mailbox) drain(buf []message) []message {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf = append(buf[:0], m.items...)
	clear(m.items)
	m.items = m.items[:0]
	return buf
}
