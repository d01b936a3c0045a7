// Package datatpl renders templates against records loaded from CSV, TSV,
// JSON, JSON Lines or YAML files.
package datatpl

import (
	"context"

	"github.com/goliatone/go-datatpl/pkg/pipeline"
	"github.com/goliatone/go-datatpl/pkg/record"
)

// Request aliases pipeline.Request for callers using the top-level package.
type Request = pipeline.Request

// Result aliases pipeline.Result.
type Result = pipeline.Result

// Record aliases record.Record.
type Record = record.Record

// NewDriver exposes the pipeline constructor from the top-level module.
func NewDriver(options ...pipeline.Option) *pipeline.Driver {
	return pipeline.New(options...)
}

// Render binds the template, reads the data file and writes the outputs in a
// single call.
func Render(ctx context.Context, req Request, options ...pipeline.Option) (Result, error) {
	return pipeline.New(options...).Run(ctx, req)
}

// Load reads every record of a data file in the given format.
func Load(ctx context.Context, format, path string, options ...record.Option) ([]Record, error) {
	src, err := record.Open(format, path, options...)
	if err != nil {
		return nil, err
	}
	return record.Collect(ctx, src)
}

// Formats lists the data format tags understood by the default registry.
func Formats() []string {
	return record.DefaultRegistry().Formats()
}
