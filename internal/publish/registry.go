package publish

import (
	"fmt"
	"sort"
)

// ValidatorFactory builds a fresh validator instance per publish attempt.
type ValidatorFactory func() Validator

// ExtractorFactory builds a fresh extractor instance per publish attempt.
type ExtractorFactory func() Extractor

// Registry maps stable string keys to validator and extractor constructors.
// Category definitions reference these keys; unknown keys are skipped at
// resolve time so a commons shared across differently-equipped workstations
// stays usable.
type Registry struct {
	validators map[string]ValidatorFactory
	extractors map[string]ExtractorFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		validators: make(map[string]ValidatorFactory),
		extractors: make(map[string]ExtractorFactory),
	}
}

// Builtin returns a registry with the stock validators and extractors
// registered: scene_saved, file_size, source, proxy.
func Builtin() *Registry {
	r := NewRegistry()
	r.validators["scene_saved"] = NewSceneSaved
	r.validators["file_size"] = NewFileSize
	r.extractors["source"] = NewSource
	r.extractors["proxy"] = NewProxy
	return r
}

// RegisterValidator adds a validator constructor under a stable key.
func (r *Registry) RegisterValidator(name string, factory ValidatorFactory) error {
	if _, exists := r.validators[name]; exists {
		return fmt.Errorf("validator %s is already registered", name)
	}
	r.validators[name] = factory
	return nil
}

// RegisterExtractor adds an extractor constructor under a stable key.
func (r *Registry) RegisterExtractor(name string, factory ExtractorFactory) error {
	if _, exists := r.extractors[name]; exists {
		return fmt.Errorf("extractor %s is already registered", name)
	}
	r.extractors[name] = factory
	return nil
}

// Validator instantiates the named validator, reporting whether the key is
// registered.
func (r *Registry) Validator(name string) (Validator, bool) {
	factory, ok := r.validators[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Extractor instantiates the named extractor, reporting whether the key is
// registered.
func (r *Registry) Extractor(name string) (Extractor, bool) {
	factory, ok := r.extractors[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// ValidatorNames lists the registered validator keys in sorted order.
func (r *Registry) ValidatorNames() []string {
	return sortedKeys(r.validators)
}

// ExtractorNames lists the registered extractor keys in sorted order.
func (r *Registry) ExtractorNames() []string {
	return sortedKeys(r.extractors)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
