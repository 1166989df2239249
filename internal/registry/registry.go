// Package registry provides explicit constructor tables for analyzer plugins.
//
// Each capability category (repository, package, file, remote) is a Category
// whose entries are registered by name at startup. Instantiation calls every
// constructor with the same arguments; a constructor that fails or panics is
// skipped with a warning so one broken plugin cannot abort a run.
package registry

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Constructor builds one plugin of type T from the category's shared arguments.
type Constructor[T, A any] func(args A) (T, error)

// Descriptor describes one registered plugin.
type Descriptor struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

type entry[T, A any] struct {
	name string
	ctor Constructor[T, A]
}

// Category is the constructor table for one capability.
type Category[T, A any] struct {
	name    string
	mu      sync.RWMutex
	entries []entry[T, A]
	index   map[string]struct{}
}

// NewCategory creates an empty table for the named capability.
func NewCategory[T, A any](name string) *Category[T, A] {
	return &Category[T, A]{name: name, index: make(map[string]struct{})}
}

// Name returns the capability identifier.
func (c *Category[T, A]) Name() string {
	return c.name
}

// Register adds a constructor. It panics on an empty name, a nil constructor
// or a duplicate name, since those are programming errors in the plugin table.
func (c *Category[T, A]) Register(name string, ctor Constructor[T, A]) {
	if name == "" {
		panic(fmt.Sprintf("%s: plugin name cannot be empty", c.name))
	}
	if ctor == nil {
		panic(fmt.Sprintf("%s: plugin %q has a nil constructor", c.name, name))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.index[name]; exists {
		panic(fmt.Sprintf("%s: plugin %q already registered", c.name, name))
	}
	c.index[name] = struct{}{}
	c.entries = append(c.entries, entry[T, A]{name: name, ctor: ctor})
}

// Descriptors lists registered plugins in registration order.
func (c *Category[T, A]) Descriptors() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Descriptor, len(c.entries))
	for i, e := range c.entries {
		out[i] = Descriptor{Category: c.name, Name: e.name}
	}
	return out
}

// Len returns the number of registered plugins.
func (c *Category[T, A]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Instantiate constructs every registered plugin with args, in registration order.
// Failed constructions are logged and skipped. An empty result is logged too.
func (c *Category[T, A]) Instantiate(logger *log.Logger, args A) []T {
	c.mu.RLock()
	entries := make([]entry[T, A], len(c.entries))
	copy(entries, c.entries)
	c.mu.RUnlock()

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		p, err := construct(e.ctor, args)
		if err != nil {
			logger.Warn("Skipping plugin", "category", c.name, "plugin", e.name, "err", err)
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		logger.Warn("No plugins available", "category", c.name)
	}
	return out
}

// construct calls ctor and converts a panic or a nil plugin into an error.
func construct[T, A any](ctor Constructor[T, A], args A) (p T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	p, err = ctor(args)
	if err != nil {
		return p, err
	}
	if any(p) == nil {
		return p, fmt.Errorf("constructor returned a nil plugin")
	}
	return p, nil
}
