package pubsub

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Publisher[E any] interface {
	Publish(evt E)
}

type Subscriber[E any] interface {
	Subscribe(ctx context.Context) Subscription[E]
}

type Subscription[E any] interface {
	ResultChan() <-chan E
	Stop()
}

// PubSub fans events out to all subscribers.
// Publish never blocks: an event is dropped for a subscriber whose buffer is full.
type PubSub[E any] struct {
	mutex         sync.RWMutex
	subscriptions map[int64]*subscription[E]
	seq           int64
	bufferSize    int
	logger        *zap.Logger
	stopped       bool
}

func New[E any](bufferSize int, logger *zap.Logger) *PubSub[E] {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PubSub[E]{
		subscriptions: map[int64]*subscription[E]{},
		bufferSize:    bufferSize,
		logger:        logger,
	}
}

func (p *PubSub[E]) Stop() {
	p.mutex.Lock()
	p.stopped = true
	subscriptions := make([]*subscription[E], 0, len(p.subscriptions))
	for _, s := range p.subscriptions {
		subscriptions = append(subscriptions, s)
	}
	p.mutex.Unlock()

	for _, s := range subscriptions {
		s.Stop()
	}
}

func (p *PubSub[E]) Subscribe(ctx context.Context) Subscription[E] {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stopped {
		return noopSubscription[E]("noop-subscription")
	}

	p.seq++

	ctx, cancel := context.WithCancel(ctx)
	s := &subscription[E]{
		id:     p.seq,
		cancel: cancel,
		pubsub: p,
		ch:     make(chan E, p.bufferSize),
	}
	p.subscriptions[s.id] = s

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s
}

// Subscribers returns the number of active subscriptions.
func (p *PubSub[E]) Subscribers() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return len(p.subscriptions)
}

func (p *PubSub[E]) Publish(evt E) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.stopped {
		return
	}

	for _, s := range p.subscriptions {
		select {
		case s.ch <- evt:
		default:
			p.logger.Warn("dropping event for slow subscriber", zap.Int64("subscription", s.id))
		}
	}
}

type subscription[E any] struct {
	pubsub *PubSub[E]
	id     int64
	cancel context.CancelFunc
	ch     chan E
}

func (s *subscription[E]) Stop() {
	s.pubsub.mutex.Lock()
	delete(s.pubsub.subscriptions, s.id)
	ch := s.ch
	s.ch = nil
	s.pubsub.mutex.Unlock()
	if ch != nil {
		close(ch)
		s.cancel()
	}
}

func (s *subscription[E]) ResultChan() <-chan E {
	s.pubsub.mutex.RLock()
	defer s.pubsub.mutex.RUnlock()

	ch := s.ch
	if ch == nil {
		closed := make(chan E)
		close(closed)
		return closed
	}

	return ch
}

type noopSubscription[E any] string

func (_ noopSubscription[E]) Stop() {}

func (_ noopSubscription[E]) ResultChan() <-chan E {
	ch := make(chan E, 0)
	close(ch)
	return ch
}
