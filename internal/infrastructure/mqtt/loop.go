package mqtt

import "sync"

// eventBufferSize is the receive loop backlog before transport callbacks block.
const eventBufferSize = 64

type eventKind int

const (
	eventMessage eventKind = iota
	eventConnectionLost
)

// event is one notification from the transport to the receive loop.
type event struct {
	kind eventKind
	msg  Message
	err  error
}

// Message is an inbound message handed to the dispatcher.
type Message struct {
	Topic   string
	Payload []byte
}

// receiveLoop serialises transport callbacks onto one goroutine per
// transport session. Messages are dispatched in arrival order and the
// loop ends on connection loss or stop.
type receiveLoop struct {
	events   chan event
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

func newReceiveLoop() *receiveLoop {
	return &receiveLoop{
		events:   make(chan event, eventBufferSize),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// post hands an event to the loop. Once the loop is stopped events are dropped
// so transport goroutines never block on a dead session.
func (l *receiveLoop) post(ev event) {
	select {
	case <-l.done:
		return
	default:
	}

	select {
	case l.events <- ev:
	case <-l.done:
	}
}

// stop signals the loop to exit. Safe to call more than once.
func (l *receiveLoop) stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// wait blocks until the loop goroutine has returned.
func (l *receiveLoop) wait() {
	<-l.finished
}

// run processes events until stopped. onLost is called at most once and
// ends the loop.
func (l *receiveLoop) run(dispatch func(topic string, payload []byte), onLost func(err error)) {
	defer close(l.finished)

	for {
		select {
		case <-l.done:
			return
		case ev := <-l.events:
			switch ev.kind {
			case eventMessage:
				dispatch(ev.msg.Topic, ev.msg.Payload)
			case eventConnectionLost:
				l.stop()
				onLost(ev.err)
				return
			}
		}
	}
}
