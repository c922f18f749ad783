package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

var errStore = errors.New("store down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memStore struct {
	mu         sync.Mutex
	seq        int
	created    []Session
	patches    map[string][]Patch
	createErr  error
	updateErr  error
	createGate chan struct{}
	entered    chan struct{}
}

func newMemStore() *memStore {
	return &memStore{patches: map[string][]Patch{}}
}

func (s *memStore) Create(_ context.Context, in Session) (Session, error) {
	if s.entered != nil {
		close(s.entered)
	}
	if s.createGate != nil {
		<-s.createGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.seq++
	in.ID = fmt.Sprintf("sess-%d", s.seq)
	s.created = append(s.created, in)
	return in, nil
}

func (s *memStore) Update(_ context.Context, id string, p Patch) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return Session{}, s.updateErr
	}
	s.patches[id] = append(s.patches[id], p)
	return Session{ID: id, Status: p.Status}, nil
}

func (s *memStore) writes() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updates := 0
	for _, p := range s.patches {
		updates += len(p)
	}
	return len(s.created), updates
}

type memProgress struct {
	mu        sync.Mutex
	items     map[string]Progress
	filterErr error
	updateErr error
}

func newMemProgress() *memProgress {
	return &memProgress{items: map[string]Progress{}}
}

func (p *memProgress) Filter(_ context.Context, userKey string) ([]Progress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.filterErr != nil {
		return nil, p.filterErr
	}
	if v, ok := p.items[userKey]; ok {
		return []Progress{v}, nil
	}
	return nil, nil
}

func (p *memProgress) Create(_ context.Context, in Progress) (Progress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in.ID = "progress-" + in.UserID
	p.items[in.UserID] = in
	return in, nil
}

func (p *memProgress) Update(_ context.Context, id string, in Progress) (Progress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return Progress{}, p.updateErr
	}
	in.ID = id
	p.items[in.UserID] = in
	return in, nil
}

func (p *memProgress) get(userID string) (Progress, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.items[userID]
	return v, ok
}

type memPublisher struct {
	mu   sync.Mutex
	sent []Session
	err  error
}

func (p *memPublisher) PublishFinished(_ context.Context, s Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, s)
	return nil
}

type memNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *memNotifier) Broadcast(_ string, payload []byte) {
	var f struct {
		Kind string `json:"kind"`
	}
	_ = json.Unmarshal(payload, &f)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, f.Kind)
}

func (n *memNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.kinds...)
}

// panicStore behaves like a store wired to a nil database pool.
type panicStore struct{}

func (panicStore) Create(context.Context, Session) (Session, error) {
	var pool *memStore
	return pool.Create(context.Background(), Session{})
}

func (panicStore) Update(context.Context, string, Patch) (Session, error) {
	panic("update on panicking store")
}
