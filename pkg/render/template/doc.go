// Package template defines the renderer contract the pipeline depends on. The
// pongo subpackage implements it on top of github.com/flosch/pongo2/v6, whose
// syntax follows Django/Jinja templates.
package template
