package smklog

import (
	"sort"
	"sync"
)

// =====================================
// Provider Factory Registry
// =====================================

// FactoryRegistry maps adapter names to provider factories.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewFactoryRegistry creates an empty registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{factories: make(map[string]ProviderFactory)}
}

// DefaultRegistry is where adapters register themselves from init.
var DefaultRegistry = NewFactoryRegistry()

// Register adds or replaces a factory.
func (r *FactoryRegistry) Register(name string, factory ProviderFactory) error {
	if name == "" || factory == nil {
		return InvalidInput("provider name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	return nil
}

// Get returns the factory registered under name.
func (r *FactoryRegistry) Get(name string) (ProviderFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	if !ok {
		return nil, NotFound("provider", name)
	}
	return factory, nil
}

// List returns the registered names in sorted order.
func (r *FactoryRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a factory.
func (r *FactoryRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

// NewProvider creates a provider with the factory registered under name.
func NewProvider(name string, config Config) (Provider, error) {
	factory, err := DefaultRegistry.Get(name)
	if err != nil {
		return nil, err
	}
	return factory.Create(config)
}

// RegisterProvider registers a new provider factory
func RegisterProvider(name string, factory ProviderFactory) error {
	return DefaultRegistry.Register(name, factory)
}

// ListProviders returns all registered provider names
func ListProviders() []string {
	return DefaultRegistry.List()
}
