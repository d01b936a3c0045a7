// Package errs defines the error kinds surfaced by the datatpl pipeline. Every
// kind keeps the originating error reachable through errors.Unwrap so callers
// can match on both the kind (errors.As) and the cause (errors.Is).
package errs

import (
	"fmt"
	"strings"
)

// ConfigError reports an unsupported configuration value such as an unknown
// data format tag or encoding label.
type ConfigError struct {
	Setting string
	Value   string
	Known   []string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("unknown %s %q", e.Setting, e.Value)
	if len(e.Known) > 0 {
		msg += fmt.Sprintf(" (supported: %s)", strings.Join(e.Known, ", "))
	}
	return msg
}

// FileAccessError reports a failure opening, reading, decoding or writing a
// file.
type FileAccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// FormatError reports structured input whose root value is not a list.
type FormatError struct {
	Path    string
	Format  string
	Message string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// TemplateNotFoundError reports a template name that does not resolve to a
// file under the template folder.
type TemplateNotFoundError struct {
	Name   string
	Folder string
	Err    error
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %q not found in %q", e.Name, e.Folder)
}

func (e *TemplateNotFoundError) Unwrap() error { return e.Err }

// Render stages reported by TemplateRenderError.
const (
	StageParse   = "parse"
	StageExecute = "execute"
)

// TemplateRenderError reports a template that failed to compile or execute.
type TemplateRenderError struct {
	Name  string
	Stage string
	Err   error
}

func (e *TemplateRenderError) Error() string {
	return fmt.Sprintf("%s template %q: %v", e.Stage, e.Name, e.Err)
}

func (e *TemplateRenderError) Unwrap() error { return e.Err }
