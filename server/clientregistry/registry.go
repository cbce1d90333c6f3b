// Package clientregistry holds the live state of each browser client: its
// session publisher, auth flow controller and conversation.
package clientregistry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-agent-chat/authflow"
	"github.com/jrsteele09/go-agent-chat/chat"
	"github.com/jrsteele09/go-agent-chat/session"
	"github.com/rs/zerolog/log"
)

const DefaultIdleTimeout = 2 * time.Hour

type Instance struct {
	ID        string
	Publisher *session.Publisher
	Flows     *authflow.Controller
	Chat      *chat.Conversation

	mu       sync.Mutex
	lastSeen time.Time
}

func (i *Instance) touch(now time.Time) {
	i.mu.Lock()
	i.lastSeen = now
	i.mu.Unlock()
}

func (i *Instance) LastSeen() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastSeen
}

// Factory builds the instance for a client id seen for the first time.
type Factory func(ctx context.Context, clientID string) (*Instance, error)

type Registry struct {
	mu          sync.RWMutex
	instances   map[string]*Instance
	factory     Factory
	idleTimeout time.Duration
	nowTimeFunc func() time.Time
	onChange    func(live int)
}

type Option func(*Registry)

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *Registry) {
		r.nowTimeFunc = nowFunc
	}
}

func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleTimeout = d
		}
	}
}

// WithSizeObserver is called with the number of live instances after every
// change.
func WithSizeObserver(fn func(live int)) Option {
	return func(r *Registry) {
		r.onChange = fn
	}
}

func New(factory Factory, options ...Option) *Registry {
	r := &Registry{
		instances:   make(map[string]*Instance),
		factory:     factory,
		idleTimeout: DefaultIdleTimeout,
		nowTimeFunc: time.Now,
		onChange:    func(int) {},
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Get returns the client's instance, building it on first use. The factory
// runs without the registry lock held; when two requests race for the same
// new client the loser's instance is closed.
func (r *Registry) Get(ctx context.Context, clientID string) (*Instance, error) {
	if clientID == "" {
		return nil, errors.New("clientID cannot be empty")
	}

	now := r.nowTimeFunc()
	r.mu.RLock()
	inst, ok := r.instances[clientID]
	r.mu.RUnlock()
	if ok {
		inst.touch(now)
		return inst, nil
	}

	created, err := r.factory(ctx, clientID)
	if err != nil {
		return nil, err
	}
	created.ID = clientID
	created.touch(now)

	r.mu.Lock()
	if existing, ok := r.instances[clientID]; ok {
		r.mu.Unlock()
		closeInstance(created)
		existing.touch(now)
		return existing, nil
	}
	r.instances[clientID] = created
	live := len(r.instances)
	r.mu.Unlock()

	r.onChange(live)
	return created, nil
}

// Lookup returns the instance without creating it.
func (r *Registry) Lookup(clientID string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[clientID]
	return inst, ok
}

func (r *Registry) Delete(clientID string) {
	r.mu.Lock()
	inst, ok := r.instances[clientID]
	delete(r.instances, clientID)
	live := len(r.instances)
	r.mu.Unlock()

	if ok {
		closeInstance(inst)
		r.onChange(live)
	}
}

// EvictIdle drops instances not seen within the idle timeout and returns
// how many were removed. Provider tokens are kept by the login session
// store, so a returning client is rebuilt signed in.
func (r *Registry) EvictIdle() int {
	cutoff := r.nowTimeFunc().Add(-r.idleTimeout)

	r.mu.Lock()
	var idle []*Instance
	for id, inst := range r.instances {
		if inst.LastSeen().Before(cutoff) {
			idle = append(idle, inst)
			delete(r.instances, id)
		}
	}
	live := len(r.instances)
	r.mu.Unlock()

	for _, inst := range idle {
		closeInstance(inst)
	}
	if len(idle) > 0 {
		r.onChange(live)
		log.Debug().Int("evicted", len(idle)).Int("live", live).Msg("clientregistry: evicted idle clients")
	}
	return len(idle)
}

// Run evicts idle instances every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Close releases every instance.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.instances
	r.instances = make(map[string]*Instance)
	r.mu.Unlock()

	for _, inst := range all {
		closeInstance(inst)
	}
	r.onChange(0)
}

func closeInstance(inst *Instance) {
	if inst.Publisher != nil {
		inst.Publisher.Close()
	}
}
