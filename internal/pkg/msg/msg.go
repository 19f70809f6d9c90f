package msg

import "github.com/google/uuid"

// Topic identifies a message stream.
type Topic int

const (
	// Iteration carries one search generation.
	Iteration Topic = iota
	// Result carries the final outcome of a run.
	Result
)

func (t Topic) String() string {
	switch t {
	case Iteration:
		return "iteration"
	case Result:
		return "result"
	}
	return "unknown"
}

// Publisher is an interface for objects that allow subscription to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is a payload tagged with its sender and topic.
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the stream the message was published on
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}
