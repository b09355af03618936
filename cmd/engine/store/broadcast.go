package store

import "sync"

// Subscription receives player states. C holds at most one pending state: a newer
// state replaces an undelivered older one, so the writer never blocks.
type Subscription struct {
	C <-chan PlayerState
	c chan PlayerState
}

// broadcaster fans out states from the store to N subscribers.
type broadcaster struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	done bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*Subscription]struct{})}
}

func (b *broadcaster) subscribe(initial PlayerState) *Subscription {
	c := make(chan PlayerState, 1)
	sub := &Subscription{C: c, c: c}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		close(c)
		return sub
	}
	c <- initial
	b.subs[sub] = struct{}{}
	return sub
}

// unsubscribe removes a subscriber and closes its channel.
func (b *broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.c)
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *broadcaster) publish(st PlayerState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.c <- st:
		default:
			// subscriber behind: replace its pending state with the newest
			select {
			case <-sub.c:
			default:
			}
			select {
			case sub.c <- st:
			default:
			}
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		close(sub.c)
	}
	b.subs = map[*Subscription]struct{}{}
	b.done = true
}
