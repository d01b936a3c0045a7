// Package pipeline drives one end-to-end run: it binds a template, opens the
// data source, renders either the whole dataset or one record at a time, and
// writes the results to disk.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goliatone/go-datatpl/pkg/errs"
	"github.com/goliatone/go-datatpl/pkg/record"
	"github.com/goliatone/go-datatpl/pkg/render/template"
	"github.com/goliatone/go-datatpl/pkg/render/template/pongo"
)

// OneFileName is the output written in single-file mode.
const OneFileName = "output.txt"

// OutputName returns the per-record output file name for a zero-based index.
// The index is zero-padded to four digits and widens past 9999.
func OutputName(index int) string {
	return fmt.Sprintf("output%04d.txt", index)
}

// Option customises the driver configuration.
type Option func(*Driver)

// WithRegistry replaces the format registry used to build sources.
func WithRegistry(registry *record.Registry) Option {
	return func(d *Driver) {
		if registry != nil {
			d.registry = registry
		}
	}
}

// WithTemplateFolder sets the folder template names are resolved against.
func WithTemplateFolder(folder string) Option {
	return func(d *Driver) {
		if folder != "" {
			d.templateFolder = folder
		}
	}
}

// WithOutputDir sets the directory output files are written to.
func WithOutputDir(dir string) Option {
	return func(d *Driver) {
		if dir != "" {
			d.outputDir = dir
		}
	}
}

// WithLogger injects the logger used for run progress.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRendererOptions forwards options to every renderer the driver builds.
func WithRendererOptions(options ...pongo.Option) Option {
	return func(d *Driver) {
		d.rendererOptions = append(d.rendererOptions, options...)
	}
}

// Driver coordinates RecordSource → TemplateRenderer → filesystem. A Driver
// holds no per-run state and can run any number of requests.
type Driver struct {
	registry        *record.Registry
	templateFolder  string
	outputDir       string
	logger          *slog.Logger
	rendererOptions []pongo.Option
}

// New constructs a Driver applying any provided options.
func New(options ...Option) *Driver {
	d := &Driver{
		registry:       record.DefaultRegistry(),
		templateFolder: pongo.DefaultFolder,
		outputDir:      ".",
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(d)
	}
	return d
}

// Request describes the inputs of one run.
type Request struct {
	// Template names the template file inside the template folder.
	Template string
	// DataFile is the path of the input data.
	DataFile string
	// Format selects the record source, matched case-insensitively.
	Format string
	// Encoding is the text encoding of DataFile (default utf-8).
	Encoding string
	// OneFile renders every record into a single output file.
	OneFile bool
}

// Result reports what a run produced.
type Result struct {
	Records int
	Files   []string
}

// Run executes the request. Any failure aborts the run; files written before
// the failure are left in place.
func (d *Driver) Run(ctx context.Context, req Request) (Result, error) {
	if ctx == nil {
		return Result{}, errors.New("pipeline: context is required")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	renderer, err := pongo.New(req.Template, d.rendererOptionsFor()...)
	if err != nil {
		return Result{}, err
	}

	src, err := d.registry.Open(req.Format, req.DataFile, record.WithEncoding(req.Encoding))
	if err != nil {
		return Result{}, err
	}

	d.logger.Debug("run started",
		"template", req.Template,
		"data", req.DataFile,
		"format", src.Format(),
		"onefile", req.OneFile,
	)

	var res Result
	if req.OneFile {
		res, err = d.renderAll(ctx, renderer, src)
	} else {
		res, err = d.renderEach(ctx, renderer, src)
	}
	if err != nil {
		return res, err
	}

	d.logger.Info("render complete", "records", res.Records, "files", len(res.Files))
	return res, nil
}

func (d *Driver) rendererOptionsFor() []pongo.Option {
	options := make([]pongo.Option, 0, len(d.rendererOptions)+1)
	options = append(options, pongo.WithBaseDir(d.templateFolder))
	return append(options, d.rendererOptions...)
}

func (d *Driver) renderAll(ctx context.Context, renderer template.TemplateRenderer, src record.Source) (Result, error) {
	records, err := record.Collect(ctx, src)
	if err != nil {
		return Result{}, err
	}

	out, err := renderer.Render(map[string]any{"data": records})
	if err != nil {
		return Result{}, err
	}

	path, err := d.write(OneFileName, out)
	if err != nil {
		return Result{}, err
	}
	return Result{Records: len(records), Files: []string{path}}, nil
}

func (d *Driver) renderEach(ctx context.Context, renderer template.TemplateRenderer, src record.Source) (Result, error) {
	var res Result
	for rec, err := range src.Records(ctx) {
		if err != nil {
			return res, err
		}

		out, err := renderer.Render(map[string]any{"data": []record.Record{rec}})
		if err != nil {
			return res, err
		}

		path, err := d.write(OutputName(res.Records), out)
		if err != nil {
			return res, err
		}
		res.Files = append(res.Files, path)
		res.Records++
	}
	return res, nil
}

func (d *Driver) write(name, content string) (string, error) {
	path := filepath.Join(d.outputDir, name)
	if d.outputDir != "." {
		if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
			return "", &errs.FileAccessError{Op: "write", Path: path, Err: err}
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", &errs.FileAccessError{Op: "write", Path: path, Err: err}
	}
	d.logger.Debug("wrote output", "path", path, "bytes", len(content))
	return path, nil
}
