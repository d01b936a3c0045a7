package pongo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-datatpl/pkg/errs"
	"github.com/goliatone/go-datatpl/pkg/render/template"
)

// DefaultFolder is the folder templates are resolved against when no base
// directory or fs.FS is configured.
const DefaultFolder = "."

// Option configures the renderer before construction.
type Option func(*config)

type config struct {
	baseDir    string
	templates  fs.FS
	envFile    string
	templateFn map[string]any
	globalData map[string]any
}

// WithBaseDir resolves the template name against a directory on disk.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		if trimmed := strings.TrimSpace(dir); trimmed != "" {
			cfg.baseDir = trimmed
		}
	}
}

// WithFS resolves the template name inside an fs.FS instead of the disk.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithEnvFile merges the variables of a dotenv file into the env global,
// overriding process environment values with the same name.
func WithEnvFile(path string) Option {
	return func(cfg *config) {
		cfg.envFile = strings.TrimSpace(path)
	}
}

// WithTemplateFunc registers helper functions or filters when the renderer
// loads.
func WithTemplateFunc(funcs map[string]any) Option {
	return func(cfg *config) {
		if len(funcs) == 0 {
			return
		}
		if cfg.templateFn == nil {
			cfg.templateFn = make(map[string]any, len(funcs))
		}
		for name, fn := range funcs {
			cfg.templateFn[strings.TrimSpace(name)] = fn
		}
	}
}

// WithGlobalData seeds global context values available to every render.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// Renderer satisfies template.TemplateRenderer with a compiled pongo2
// template.
type Renderer struct {
	mu sync.RWMutex

	name        string
	folder      string
	templateSet *pongo2.TemplateSet
	template    *pongo2.Template
}

var _ template.TemplateRenderer = (*Renderer)(nil)

// New locates name under the configured folder and compiles it. A missing
// template fails with errs.TemplateNotFoundError and a template that does not
// parse fails with errs.TemplateRenderError.
func New(name string, options ...Option) (*Renderer, error) {
	cfg := &config{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("pongo: template name is required")
	}

	folder := cfg.baseDir
	var loader pongo2.TemplateLoader
	if cfg.templates != nil {
		if err := checkFS(cfg.templates, name); err != nil {
			return nil, err
		}
		folder = "fs"
		loader = pongo2.NewFSLoader(cfg.templates)
	} else {
		if folder == "" {
			folder = DefaultFolder
		}
		if err := checkDisk(folder, name); err != nil {
			return nil, err
		}
		local, err := pongo2.NewLocalFileSystemLoader(folder)
		if err != nil {
			return nil, &errs.TemplateNotFoundError{Name: name, Folder: folder, Err: err}
		}
		loader = local
	}

	pongo2.SetAutoescape(false)
	registerDefaultFilters()

	r := &Renderer{
		name:        name,
		folder:      folder,
		templateSet: pongo2.NewSet("datatpl", loader),
	}

	env, err := environment(cfg.envFile)
	if err != nil {
		return nil, err
	}
	if err := r.GlobalContext(defaultGlobals(env)); err != nil {
		return nil, fmt.Errorf("pongo: apply default globals: %w", err)
	}
	if err := r.GlobalContext(cfg.globalData); err != nil {
		return nil, fmt.Errorf("pongo: apply global data: %w", err)
	}
	for fnName, fn := range cfg.templateFn {
		if err := r.registerTemplateFunc(fnName, fn); err != nil {
			return nil, fmt.Errorf("pongo: register template func %q: %w", fnName, err)
		}
	}

	tmpl, err := r.templateSet.FromFile(name)
	if err != nil {
		return nil, &errs.TemplateRenderError{Name: name, Stage: errs.StageParse, Err: err}
	}
	r.template = tmpl

	return r, nil
}

// Name returns the bound template name.
func (r *Renderer) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}

// Folder returns the folder the template was resolved against.
func (r *Renderer) Folder() string {
	if r == nil {
		return ""
	}
	return r.folder
}

// Render executes the bound template.
func (r *Renderer) Render(data any, out ...io.Writer) (string, error) {
	if r == nil || r.template == nil {
		return "", errors.New("pongo: renderer is nil")
	}
	return r.execute(r.template, r.name, data, out...)
}

// RenderString compiles and executes inline template content.
func (r *Renderer) RenderString(templateContent string, data any, out ...io.Writer) (string, error) {
	if r == nil || r.templateSet == nil {
		return "", errors.New("pongo: renderer is nil")
	}

	tmpl, err := r.templateSet.FromString(templateContent)
	if err != nil {
		return "", &errs.TemplateRenderError{Name: "<string>", Stage: errs.StageParse, Err: err}
	}
	return r.execute(tmpl, "<string>", data, out...)
}

func (r *Renderer) execute(tmpl *pongo2.Template, name string, data any, out ...io.Writer) (string, error) {
	viewContext, err := convertToContext(data)
	if err != nil {
		return "", &errs.TemplateRenderError{Name: name, Stage: errs.StageExecute, Err: fmt.Errorf("convert data: %w", err)}
	}

	var buf bytes.Buffer

	r.mu.RLock()
	err = tmpl.ExecuteWriter(viewContext, &buf)
	r.mu.RUnlock()

	if err != nil {
		return "", &errs.TemplateRenderError{Name: name, Stage: errs.StageExecute, Err: err}
	}

	rendered := buf.String()
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

// RegisterFilter registers a template filter. pongo2 filters are process
// wide, so registering an existing name fails.
func (r *Renderer) RegisterFilter(name string, fn func(input any, param any) (any, error)) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return errors.New("pongo: filter name and function required")
	}

	filter := func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		result, err := fn(in.Interface(), paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(result), nil
	}

	if pongo2.FilterExists(name) {
		return fmt.Errorf("pongo: filter %q already exists", name)
	}
	return pongo2.RegisterFilter(name, filter)
}

// GlobalContext merges data into the values visible to every render.
func (r *Renderer) GlobalContext(data any) error {
	if r == nil || r.templateSet == nil {
		return errors.New("pongo: renderer is nil")
	}
	if data == nil {
		return nil
	}

	globalCtx, err := convertToContext(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.templateSet.Globals == nil {
		r.templateSet.Globals = make(pongo2.Context)
	}
	r.templateSet.Globals.Update(globalCtx)
	return nil
}

func (r *Renderer) registerTemplateFunc(name string, fn any) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || fn == nil {
		return nil
	}

	if filter, ok := fn.(pongo2.FilterFunction); ok {
		if pongo2.FilterExists(trimmed) {
			return nil
		}
		return pongo2.RegisterFilter(trimmed, filter)
	}

	if !isCallable(fn) {
		return fmt.Errorf("value of type %T is not callable", fn)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.templateSet.Globals == nil {
		r.templateSet.Globals = make(pongo2.Context)
	}
	r.templateSet.Globals[trimmed] = fn
	return nil
}

func checkDisk(folder, name string) error {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(folder, name)
	}
	info, err := os.Stat(path)
	if err != nil {
		return &errs.TemplateNotFoundError{Name: name, Folder: folder, Err: err}
	}
	if info.IsDir() {
		return &errs.TemplateNotFoundError{Name: name, Folder: folder, Err: fmt.Errorf("%s is a directory", path)}
	}
	return nil
}

func checkFS(files fs.FS, name string) error {
	info, err := fs.Stat(files, name)
	if err != nil {
		return &errs.TemplateNotFoundError{Name: name, Folder: "fs", Err: err}
	}
	if info.IsDir() {
		return &errs.TemplateNotFoundError{Name: name, Folder: "fs", Err: fmt.Errorf("%s is a directory", name)}
	}
	return nil
}

func isCallable(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Func
}

// convertToContext builds a pongo2.Context from the top-level mapping. Nested
// values are passed through untouched; structs are flattened through JSON.
func convertToContext(data any) (pongo2.Context, error) {
	switch v := data.(type) {
	case nil:
		return pongo2.Context{}, nil
	case pongo2.Context:
		return copyContext(v), nil
	case map[string]any:
		return copyContext(v), nil
	default:
		m, err := jsonToMap(v)
		if err != nil {
			return nil, err
		}
		return copyContext(m), nil
	}
}

func copyContext(in map[string]any) pongo2.Context {
	out := make(pongo2.Context, len(in))
	for key, value := range in {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func jsonToMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
