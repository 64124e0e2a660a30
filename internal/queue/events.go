package queue

// EventType enumerates the Queue Manager's lifecycle events (§4.1, §9).
type EventType string

const (
	EventTaskAdded     EventType = "task_added"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
	EventQueueCleared  EventType = "queue_cleared"
)

// Event is published synchronously to every registered Listener on each
// queue mutation.
type Event struct {
	Type         EventType
	Task         *Task
	PendingCount int
}

// Listener is the Queue Manager's explicit, synchronous event-listener
// contract (§9: "explicit listener interface with a single synchronous
// method; listeners are registered during construction; errors inside a
// listener must not affect queue state. Reject any ambient global
// emitter."). Listeners must not retain Task beyond the call.
type Listener interface {
	OnQueueEvent(Event)
}

// notify invokes every registered listener, recovering from and discarding
// any panic so a misbehaving listener never corrupts queue state or halts
// the mutation that triggered it.
func (m *Manager) notify(evt Event) {
	for _, l := range m.listeners {
		m.notifyOne(l, evt)
	}
}

func (m *Manager) notifyOne(l Listener, evt Event) {
	defer func() {
		_ = recover()
	}()
	l.OnQueueEvent(evt)
}
