package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/recognizer"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/replygen"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	recognizers  map[string]func(ProviderEntry) (recognizer.Provider, error)
	replygens    map[string]func(ProviderEntry) (replygen.Provider, error)
	synthesizers map[string]func(ProviderEntry) (synthesizer.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		recognizers:  make(map[string]func(ProviderEntry) (recognizer.Provider, error)),
		replygens:    make(map[string]func(ProviderEntry) (replygen.Provider, error)),
		synthesizers: make(map[string]func(ProviderEntry) (synthesizer.Provider, error)),
	}
}

// RegisterRecognizer registers a recognizer provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterRecognizer(name string, factory func(ProviderEntry) (recognizer.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[name] = factory
}

// RegisterReplyGen registers a reply generator factory under name.
func (r *Registry) RegisterReplyGen(name string, factory func(ProviderEntry) (replygen.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replygens[name] = factory
}

// RegisterSynthesizer registers a synthesizer provider factory under name.
func (r *Registry) RegisterSynthesizer(name string, factory func(ProviderEntry) (synthesizer.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synthesizers[name] = factory
}

// CreateRecognizer instantiates a recognizer using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateRecognizer(entry ProviderEntry) (recognizer.Provider, error) {
	r.mu.RLock()
	factory, ok := r.recognizers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateReplyGen instantiates a reply generator using the factory registered
// under entry.Name.
func (r *Registry) CreateReplyGen(entry ProviderEntry) (replygen.Provider, error) {
	r.mu.RLock()
	factory, ok := r.replygens[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: reply/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSynthesizer instantiates a synthesizer using the factory registered
// under entry.Name.
func (r *Registry) CreateSynthesizer(entry ProviderEntry) (synthesizer.Provider, error) {
	r.mu.RLock()
	factory, ok := r.synthesizers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: synthesizer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
