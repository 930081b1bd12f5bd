package persistence

import (
	"sync"
)

// notifier 行级订阅的扇出。投递经由每个订阅者的缓冲通道,
// 通道满时丢弃——错过的事件由消费侧的周期性重查补偿。
type notifier struct {
	mutex  sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	roomID string
	ch     chan Event
	done   chan struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]*subscriber)}
}

func (n *notifier) subscribe(roomID string, fn func(Event)) (cancel func()) {
	n.mutex.Lock()
	id := n.nextID
	n.nextID++
	sub := &subscriber{
		roomID: roomID,
		ch:     make(chan Event, 128),
		done:   make(chan struct{}),
	}
	n.subs[id] = sub
	n.mutex.Unlock()

	go func() {
		for {
			select {
			case ev := <-sub.ch:
				fn(ev)
			case <-sub.done:
				return
			}
		}
	}()

	return func() {
		n.mutex.Lock()
		if s, ok := n.subs[id]; ok {
			close(s.done)
			delete(n.subs, id)
		}
		n.mutex.Unlock()
	}
}

func (n *notifier) emit(roomID string, ev Event) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	for _, sub := range n.subs {
		if sub.roomID != roomID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// 订阅者积压,丢弃
		}
	}
}

func (n *notifier) close() {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	for id, sub := range n.subs {
		close(sub.done)
		delete(n.subs, id)
	}
}
