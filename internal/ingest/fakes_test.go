package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldwatch/coldwatch/internal/types"
)

type fakeLink struct {
	messages chan Message
	errs     chan error
	closed   atomic.Int32
	acks     atomic.Int32
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		messages: make(chan Message),
		errs:     make(chan error, 1),
	}
}

func (l *fakeLink) Messages() <-chan Message { return l.messages }
func (l *fakeLink) Errors() <-chan error     { return l.errs }
func (l *fakeLink) Close() error {
	l.closed.Add(1)
	return nil
}

// send hands a payload to the session, giving up after a second.
func (l *fakeLink) send(payload string) bool {
	select {
	case l.messages <- Message{Payload: []byte(payload), Ack: l.ack}:
		return true
	case <-time.After(time.Second):
		return false
	}
}

func (l *fakeLink) ack() error {
	l.acks.Add(1)
	return nil
}

type dialResult struct {
	link *fakeLink
	err  error
}

// fakeDialer replays scripted results, then blocks until ctx ends.
type fakeDialer struct {
	mu        sync.Mutex
	results   []dialResult
	clientIDs []string
}

func (d *fakeDialer) Dial(ctx context.Context, clientID string) (Link, error) {
	d.mu.Lock()
	d.clientIDs = append(d.clientIDs, clientID)
	if len(d.results) == 0 {
		d.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := d.results[0]
	d.results = d.results[1:]
	d.mu.Unlock()

	if next.err != nil {
		return nil, next.err
	}
	return next.link, nil
}

func (d *fakeDialer) ids() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clientIDs...)
}

type fakeStore struct {
	mu      sync.Mutex
	records []types.Reading
	last    types.Reading
	err     error
	block   bool
	gate    chan struct{}
	entered chan struct{}
}

// hold makes every store call wait until release
func (s *fakeStore) hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	s.entered = make(chan struct{}, 1)
}

func (s *fakeStore) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.gate)
}

func (s *fakeStore) AppendRecord(ctx context.Context, r types.Reading) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *fakeStore) PersistLast(ctx context.Context, r types.Reading) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
	return nil
}

func (s *fakeStore) wait(ctx context.Context) error {
	s.mu.Lock()
	block, err, gate, entered := s.block, s.err, s.gate, s.entered
	s.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *fakeStore) recorded() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Value)
	}
	return out
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Deliver(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

var errBrokerDown = errors.New("broker down")
