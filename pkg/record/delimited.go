package record

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"

	"github.com/goliatone/go-datatpl/pkg/errs"
)

// DelimitedSource reads delimited text with a header row. Each following row
// becomes a map from header name to cell text; values are never coerced.
//
// Rows shorter than the header map the missing fields to nil. Rows longer than
// the header keep the surplus cells under OverflowKey as a []any. When the
// header itself names OverflowKey, a longer row fails with a FormatError so
// the column value is never replaced. Blank lines are skipped and bare quotes
// inside unquoted fields are kept literally.
type DelimitedSource struct {
	format string
	path   string
	comma  rune
	dec    Decoding
}

func newDelimitedFactory(format string, comma rune) Factory {
	return func(path string, dec Decoding) (Source, error) {
		return &DelimitedSource{format: format, path: path, comma: comma, dec: dec}, nil
	}
}

// Format returns the registered tag.
func (s *DelimitedSource) Format() string { return s.format }

// Path returns the data file location.
func (s *DelimitedSource) Path() string { return s.path }

// Records yields one map per data row in file order.
func (s *DelimitedSource) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rc, err := s.dec.Open(s.path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()

		reader := csv.NewReader(rc)
		reader.Comma = s.comma
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(nil, readError(s.path, err))
			return
		}
		overflowTaken := slices.Contains(header, OverflowKey)

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, readError(s.path, err))
				return
			}
			if overflowTaken && len(row) > len(header) {
				line, _ := reader.FieldPos(0)
				yield(nil, &errs.FormatError{
					Path:    s.path,
					Format:  s.format,
					Message: fmt.Sprintf("line %d: %d cells for %d columns and the header already uses %q", line, len(row), len(header), OverflowKey),
				})
				return
			}
			if !yield(rowRecord(header, row), nil) {
				return
			}
		}
	}
}

func rowRecord(header, row []string) map[string]any {
	rec := make(map[string]any, len(header)+1)
	for idx, name := range header {
		if idx < len(row) {
			rec[name] = row[idx]
			continue
		}
		rec[name] = nil
	}
	if len(row) > len(header) {
		rest := make([]any, 0, len(row)-len(header))
		for _, cell := range row[len(header):] {
			rest = append(rest, cell)
		}
		rec[OverflowKey] = rest
	}
	return rec
}
