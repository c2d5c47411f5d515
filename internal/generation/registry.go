package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrCapacity is returned by Begin when the concurrent stream limit is
	// reached.
	ErrCapacity = errors.New("too many concurrent generations")
	ErrNotFound = errors.New("generation not found")
	ErrFinished = errors.New("generation already finished")
	// ErrClosed is returned by Begin after Stop.
	ErrClosed = errors.New("server shutting down")
)

// Registry is a thread-safe in-memory generation registry with a limit on
// concurrent streams and TTL eviction of finished generations.
type Registry struct {
	mu        sync.Mutex
	gens      map[string]*Generation
	active    int
	maxActive int
	ttl       time.Duration
	closed    bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRegistry(maxActive int, ttl time.Duration) *Registry {
	if maxActive <= 0 {
		maxActive = 1
	}
	return &Registry{
		gens:      make(map[string]*Generation),
		maxActive: maxActive,
		ttl:       ttl,
	}
}

// Begin registers a new streaming generation. The returned context is
// cancelled by Cancel or Finish and must be used for the stream.
func (r *Registry) Begin(ctx context.Context, topic, source string) (*Generation, context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, ErrClosed
	}
	if r.active >= r.maxActive {
		return nil, nil, ErrCapacity
	}

	genCtx, cancel := context.WithCancel(ctx)
	now := time.Now()
	g := &Generation{
		ID:        uuid.NewString(),
		Topic:     topic,
		Source:    source,
		Status:    StatusStreaming,
		CreatedAt: now,
		UpdatedAt: now,
		cancel:    cancel,
	}
	r.gens[g.ID] = g
	r.active++
	return g, genCtx, nil
}

// Finish marks g done and releases its concurrency slot. A non-nil err is
// recorded on the generation. Calling Finish twice is a no-op.
func (r *Registry) Finish(g *Generation, err error) {
	if !g.finish(err) {
		return
	}
	r.mu.Lock()
	r.active--
	r.mu.Unlock()
}

// Cancel cancels a streaming generation's context. The stream goroutine
// observes it and finishes the generation itself.
func (r *Registry) Cancel(id string) error {
	g := r.Get(id)
	if g == nil {
		return ErrNotFound
	}
	if g.done() {
		return ErrFinished
	}
	g.cancel()
	return nil
}

func (r *Registry) Get(id string) *Generation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[id]
}

// Active returns the number of generations currently streaming.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Cleanup removes finished generations not updated within the TTL.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, g := range r.gens {
		if g.done() && now.Sub(g.lastUpdate()) > r.ttl {
			delete(r.gens, id)
		}
	}
}

// Start launches the periodic cleanup goroutine.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}

// Stop stops the cleanup goroutine and cancels every streaming generation.
// Begin fails with ErrClosed afterwards.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()

	r.mu.Lock()
	r.closed = true
	gens := make([]*Generation, 0, len(r.gens))
	for _, g := range r.gens {
		gens = append(gens, g)
	}
	r.mu.Unlock()
	for _, g := range gens {
		if !g.done() {
			g.cancel()
		}
	}
}
