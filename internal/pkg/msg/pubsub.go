package msg

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned when subscribing to a closed PubSub.
var ErrClosed = errors.New("publisher closed")

const subscriberBuffer = 64

// resultWait bounds how long a Result waits on a full subscriber.
const resultWait = 5 * time.Second

// PubSub fans messages out to subscribers by topic. An Iteration never blocks: a subscriber
// whose buffer is full misses it. A Result waits up to resultWait for room.
type PubSub struct {
	mux         sync.RWMutex
	pid         uuid.UUID
	subscribers map[Topic]map[uuid.UUID]chan Msg
	closed      bool
}

// NewPublisher returns a PubSub whose messages are sent as pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		pid:         pid,
		subscribers: make(map[Topic]map[uuid.UUID]chan Msg),
	}
}

// PID is the sender of every message published through p.
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a channel receiving topic. A pid may subscribe to a topic once.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	subs, ok := p.subscribers[topic]
	if !ok {
		subs = make(map[uuid.UUID]chan Msg)
		p.subscribers[topic] = subs
	}
	if _, exists := subs[pid]; exists {
		return nil, fmt.Errorf("%v already subscribed to %v", pid, topic)
	}
	ch := make(chan Msg, subscriberBuffer)
	subs[pid] = ch
	return ch, nil
}

// Unsubscribe closes every channel held by pid.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		if ch, ok := subs[pid]; ok {
			close(ch)
			delete(subs, pid)
		}
	}
}

// Publish sends payload on topic from p's PID.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.Forward(New(p.pid, topic, payload))
}

// Forward sends m unchanged, keeping its original sender.
func (p *PubSub) Forward(m Msg) {
	p.mux.RLock()
	defer p.mux.RUnlock()
	for pid, ch := range p.subscribers[m.Topic()] {
		select {
		case ch <- m:
			continue
		default:
		}
		if m.Topic() == Result && deliver(ch, m, resultWait) {
			continue
		}
		log.Printf("[PubSub] subscriber %v is full, dropped %v message\n", pid, m.Topic())
	}
}

func deliver(ch chan Msg, m Msg, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- m:
		return true
	case <-timer.C:
		return false
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (p *PubSub) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, subs := range p.subscribers {
		for pid, ch := range subs {
			close(ch)
			delete(subs, pid)
		}
	}
}

// SubscribeAll subscribes pid to every topic and merges the channels. The merged channel
// closes once all of the subscriptions are closed.
func SubscribeAll(p Publisher, pid uuid.UUID, topics ...Topic) (<-chan Msg, error) {
	chs := make([]<-chan Msg, 0, len(topics))
	for _, topic := range topics {
		ch, err := p.Subscribe(pid, topic)
		if err != nil {
			p.Unsubscribe(pid)
			return nil, err
		}
		chs = append(chs, ch)
	}

	out := make(chan Msg, subscriberBuffer)
	var wg sync.WaitGroup
	wg.Add(len(chs))
	for _, ch := range chs {
		go func(ch <-chan Msg) {
			defer wg.Done()
			for m := range ch {
				out <- m
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}
