package gate

import "sync"

// PublishLog receives every dispatch event in sequence order, from the dispatcher
// goroutine. The logs are pooled: the dispatcher reuses them as soon as Publish returns,
// so an implementation that keeps a log, or hands it to another goroutine, must Clone it
// first. Publish must not block for long, since it runs inside the admission path.
type PublishLog interface {
	Publish(...*DispatchLog)
}

// MemoryPublishLog keeps clones of every published log. Tests use it to assert on the
// audit trail.
type MemoryPublishLog struct {
	mu   sync.RWMutex
	logs []*DispatchLog
}

func NewMemoryPublishLog() *MemoryPublishLog {
	return &MemoryPublishLog{}
}

func (m *MemoryPublishLog) Publish(logs ...*DispatchLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, log := range logs {
		m.logs = append(m.logs, log.Clone())
	}
}

func (m *MemoryPublishLog) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}

// Get returns the index-th log in publish order, or nil when out of range.
func (m *MemoryPublishLog) Get(index int) *DispatchLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 0 || index >= len(m.logs) {
		return nil
	}
	return m.logs[index]
}

// ByType filters the stored logs by event type, keeping publish order.
func (m *MemoryPublishLog) ByType(typ LogType) []*DispatchLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*DispatchLog
	for _, log := range m.logs {
		if log.Type == typ {
			out = append(out, log)
		}
	}
	return out
}

// DiscardPublishLog drops every event. It is the dispatcher default when no
// audit consumer is wired.
type DiscardPublishLog struct{}

func NewDiscardPublishLog() *DiscardPublishLog {
	return &DiscardPublishLog{}
}

func (*DiscardPublishLog) Publish(...*DispatchLog) {}

// MultiPublishLog hands each batch to every publisher, in slice order. cmd/gated uses
// it to feed the metrics collector and the websocket hub from one dispatcher.
type MultiPublishLog []PublishLog

func (m MultiPublishLog) Publish(logs ...*DispatchLog) {
	for _, p := range m {
		p.Publish(logs...)
	}
}
