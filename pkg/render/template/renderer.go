package template

import (
	"io"
)

// TemplateRenderer renders one named template bound at construction time.
// Implementations hand all template-language semantics (loops, conditionals,
// filters, dotted lookups) to the underlying engine.
type TemplateRenderer interface {
	// Name returns the bound template name.
	Name() string
	// Render executes the bound template with data as context. The output is
	// returned and also copied to every writer in out.
	Render(data any, out ...io.Writer) (string, error)
	RenderString(templateContent string, data any, out ...io.Writer) (string, error)
	RegisterFilter(name string, fn func(input any, param any) (any, error)) error
	GlobalContext(data any) error
}
