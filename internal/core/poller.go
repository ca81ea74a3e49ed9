package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// Poller defines the interface for an inbound message source.
// Each poller handles a specific channel such as email or chat.
type Poller interface {
	// Name returns the poller's unique name.
	Name() string

	// Source returns the message source this poller reads from.
	Source() models.Source

	// Poll retrieves items that have not yet been collected.
	Poll(ctx context.Context) ([]models.RawItem, error)

	// Send delivers a reply back through the channel.
	Send(ctx context.Context, to, subject, body string) error
}

// PollerRegistry manages registered pollers.
type PollerRegistry interface {
	// Register adds a poller to the registry.
	Register(p Poller) error

	// Get returns the poller with the given name.
	Get(name string) (Poller, error)

	// BySource returns the poller serving the given source.
	BySource(source models.Source) (Poller, error)

	// List returns all registered pollers ordered by name.
	List() []Poller
}

type pollerRegistry struct {
	mu      sync.RWMutex
	pollers map[string]Poller
}

// NewPollerRegistry creates a PollerRegistry.
func NewPollerRegistry() PollerRegistry {
	return &pollerRegistry{
		pollers: make(map[string]Poller),
	}
}

func (r *pollerRegistry) Register(p Poller) error {
	if p == nil {
		return fmt.Errorf("registering poller: poller is nil")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("registering poller: name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pollers[name]; exists {
		return fmt.Errorf("registering poller: poller %q already registered", name)
	}
	r.pollers[name] = p
	return nil
}

func (r *pollerRegistry) Get(name string) (Poller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pollers[name]
	if !ok {
		return nil, fmt.Errorf("getting poller: poller %q not found", name)
	}
	return p, nil
}

func (r *pollerRegistry) BySource(source models.Source) (Poller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pollers))
	for name := range r.pollers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if r.pollers[name].Source() == source {
			return r.pollers[name], nil
		}
	}
	return nil, fmt.Errorf("getting poller: no poller serves source %q", source)
}

func (r *pollerRegistry) List() []Poller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pollers))
	for name := range r.pollers {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]Poller, 0, len(names))
	for _, name := range names {
		result = append(result, r.pollers[name])
	}
	return result
}
