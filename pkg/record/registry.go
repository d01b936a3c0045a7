package record

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-datatpl/pkg/errs"
)

// Built-in format tags.
const (
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatYAML  = "yaml"
)

// Factory builds a Source for a file whose existence and encoding have
// already been checked.
type Factory func(path string, dec Decoding) (Source, error)

// Registry maps format tags to source factories. Tags are matched
// case-insensitively.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry returns a registry holding the built-in formats.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.MustRegister(FormatCSV, newDelimitedFactory(FormatCSV, ','))
	reg.MustRegister(FormatTSV, newDelimitedFactory(FormatTSV, '\t'))
	reg.MustRegister(FormatJSON, newJSONSource)
	reg.MustRegister(FormatJSONL, newJSONLinesSource(FormatJSONL))
	reg.MustRegister("ndjson", newJSONLinesSource("ndjson"))
	reg.MustRegister(FormatYAML, newYAMLFactory(FormatYAML))
	reg.MustRegister("yml", newYAMLFactory("yml"))
	return reg
}

// Register adds a factory under tag. Duplicate tags return an error.
func (r *Registry) Register(tag string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("record: factory is required")
	}
	key := normalizeTag(tag)
	if key == "" {
		return fmt.Errorf("record: format tag is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("record: format %q already registered", key)
	}
	r.factories[key] = factory
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(tag string, factory Factory) {
	if err := r.Register(tag, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for tag, or a ConfigError naming the unknown
// format.
func (r *Registry) Lookup(tag string) (Factory, error) {
	key := normalizeTag(tag)

	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()

	if !ok {
		return nil, &errs.ConfigError{Setting: "data format", Value: tag, Known: r.Formats()}
	}
	return factory, nil
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.factories[normalizeTag(tag)]
	return ok
}

// Formats returns the sorted list of registered tags.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open resolves format and builds a Source for path. The format is checked
// before anything else so an unknown tag never touches the filesystem.
func (r *Registry) Open(format, path string, options ...Option) (Source, error) {
	factory, err := r.Lookup(format)
	if err != nil {
		return nil, err
	}

	opts := resolveOptions(options...)
	dec, err := ResolveDecoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &errs.FileAccessError{Op: "open", Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &errs.FileAccessError{Op: "open", Path: path, Err: fmt.Errorf("is a directory")}
	}

	return factory(path, dec)
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
