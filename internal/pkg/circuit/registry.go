package circuit

import "sync"

// Registry tracks the breakers wired into the pipeline so operational
// surfaces can report their states.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// Register adds a breaker under its name and returns it for chaining.
func (r *Registry) Register(b *Breaker) *Breaker {
	if b == nil {
		return nil
	}
	r.mu.Lock()
	r.breakers[b.Name()] = b
	r.mu.Unlock()
	return b
}

// States returns a name -> state snapshot.
func (r *Registry) States() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State().String()
	}
	return out
}
