package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-datatpl/pkg/errs"
)

// JSONSource streams the elements of a JSON document whose root is an array.
// Elements may be any JSON value. Integers decode as int64 and other numbers
// as float64.
type JSONSource struct {
	path string
	dec  Decoding
}

func newJSONSource(path string, dec Decoding) (Source, error) {
	return &JSONSource{path: path, dec: dec}, nil
}

// Format returns the registered tag.
func (s *JSONSource) Format() string { return FormatJSON }

// Path returns the data file location.
func (s *JSONSource) Path() string { return s.path }

// Records yields the array elements in document order. A root value other
// than an array fails with a FormatError before anything is yielded.
func (s *JSONSource) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rc, err := s.dec.Open(s.path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()

		decoder := json.NewDecoder(rc)
		decoder.UseNumber()

		tok, err := decoder.Token()
		if err != nil {
			yield(nil, readError(s.path, err))
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			yield(nil, &errs.FormatError{Path: s.path, Format: FormatJSON, Message: "this JSON data is not start list"})
			return
		}

		for decoder.More() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			var value any
			if err := decoder.Decode(&value); err != nil {
				yield(nil, readError(s.path, err))
				return
			}
			if !yield(normalizeValue(value), nil) {
				return
			}
		}

		if _, err := decoder.Token(); err != nil {
			yield(nil, readError(s.path, err))
			return
		}
		if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
			if err == nil {
				err = errors.New("unexpected data after top-level array")
			}
			yield(nil, readError(s.path, err))
		}
	}
}

// JSONLinesSource yields one record per JSON value in a newline-delimited
// stream.
type JSONLinesSource struct {
	format string
	path   string
	dec    Decoding
}

func newJSONLinesSource(format string) Factory {
	return func(path string, dec Decoding) (Source, error) {
		return &JSONLinesSource{format: format, path: path, dec: dec}, nil
	}
}

// Format returns the registered tag.
func (s *JSONLinesSource) Format() string { return s.format }

// Path returns the data file location.
func (s *JSONLinesSource) Path() string { return s.path }

// Records yields each value in stream order.
func (s *JSONLinesSource) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rc, err := s.dec.Open(s.path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()

		decoder := json.NewDecoder(rc)
		decoder.UseNumber()
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			var value any
			err := decoder.Decode(&value)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, readError(s.path, err))
				return
			}
			if !yield(normalizeValue(value), nil) {
				return
			}
		}
	}
}

// YAMLSource reads a YAML document whose root is a sequence. The document is
// decoded in one pass; elements are then yielded in order.
type YAMLSource struct {
	format string
	path   string
	dec    Decoding
}

func newYAMLFactory(format string) Factory {
	return func(path string, dec Decoding) (Source, error) {
		return &YAMLSource{format: format, path: path, dec: dec}, nil
	}
}

// Format returns the registered tag.
func (s *YAMLSource) Format() string { return s.format }

// Path returns the data file location.
func (s *YAMLSource) Path() string { return s.path }

// Records yields the sequence elements in document order.
func (s *YAMLSource) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rc, err := s.dec.Open(s.path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()

		var root any
		if err := yaml.NewDecoder(rc).Decode(&root); err != nil && !errors.Is(err, io.EOF) {
			yield(nil, readError(s.path, err))
			return
		}
		items, ok := root.([]any)
		if !ok {
			yield(nil, &errs.FormatError{Path: s.path, Format: s.format, Message: "this YAML data is not start list"})
			return
		}
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(normalizeValue(item), nil) {
				return
			}
		}
	}
}

// normalizeValue converts decoder-specific shapes into the plain forms the
// template engine understands: json.Number becomes int64 or float64 and YAML
// maps with non-string keys gain string keys.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		for key, item := range v {
			v[key] = normalizeValue(item)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = normalizeValue(item)
		}
		return out
	case []any:
		for idx, item := range v {
			v[idx] = normalizeValue(item)
		}
		return v
	case int:
		return int64(v)
	default:
		return v
	}
}
