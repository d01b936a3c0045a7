// Package record loads data files into sequences of records. Each supported
// format is a Source implementation selected by tag through a Registry.
//
// Sources are lazy and restartable: every call to Records reopens the file, so
// a Source can be traversed any number of times without holding a handle
// between traversals.
package record

import (
	"context"
	"iter"
	"strings"
)

// Record is one unit of input data: a CSV row (map[string]any) or one element
// of a structured list (any JSON/YAML value).
type Record = any

// OverflowKey collects the cells of a delimited row that has more cells than
// the header. The surplus cells are stored in order as a []any of strings.
const OverflowKey = "_rest"

// DefaultEncoding is the text encoding used when none is configured.
const DefaultEncoding = "utf-8"

// Source produces the records of one data file.
type Source interface {
	// Format returns the tag the source was registered under.
	Format() string
	// Path returns the data file location.
	Path() string
	// Records opens the file and yields its records in file order. The file
	// is closed when the traversal ends, including when the caller stops
	// early. A non-nil error ends the traversal.
	Records(ctx context.Context) iter.Seq2[Record, error]
}

// Options configure source construction.
type Options struct {
	// Encoding is the text encoding label of the data file (default utf-8).
	Encoding string
}

// Option mutates Options.
type Option func(*Options)

// WithEncoding sets the text encoding label used to decode the data file.
func WithEncoding(label string) Option {
	return func(o *Options) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			o.Encoding = trimmed
		}
	}
}

func resolveOptions(options ...Option) Options {
	opts := Options{Encoding: DefaultEncoding}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&opts)
	}
	return opts
}

// Collect materialises every record of src. Used by single-file rendering,
// which hands the whole dataset to the template at once.
func Collect(ctx context.Context, src Source) ([]Record, error) {
	var out []Record
	for rec, err := range src.Records(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

// Open constructs a source for path using the default registry.
func Open(format, path string, options ...Option) (Source, error) {
	return DefaultRegistry().Open(format, path, options...)
}
