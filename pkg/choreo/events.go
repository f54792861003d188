package choreo

import "time"

// EventKind classifies progress events.
type EventKind int

const (
	EventPoseRecorded EventKind = iota
	EventStateEntered
	EventStep
	EventPolled
)

// Event is a progress notification from the recorder or executor.
type Event struct {
	Kind      EventKind
	State     State
	Role      Role
	Message   string
	Joints    []float64
	MaxError  float64
	Timestamp time.Time
}

// Observer receives events synchronously on the caller's goroutine.
// A nil Observer discards everything.
type Observer func(Event)

func (o Observer) emit(e Event) {
	if o == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	o(e)
}

// ChannelObserver returns an observer that forwards events to ch without
// blocking, dropping events when ch is full.
func ChannelObserver(ch chan<- Event) Observer {
	return func(e Event) {
		select {
		case ch <- e:
		default:
		}
	}
}
