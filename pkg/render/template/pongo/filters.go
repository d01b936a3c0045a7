package pongo

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/goliatone/go-datatpl/pkg/errs"
)

var (
	filtersOnce sync.Once
	ugcPolicy   = bluemonday.UGCPolicy()
	markdown    = goldmark.New()
)

func registerDefaultFilters() {
	filtersOnce.Do(func() {
		if !pongo2.FilterExists("trim") {
			_ = pongo2.RegisterFilter("trim", filterTrim)
		}
		if !pongo2.FilterExists("lowerfirst") {
			_ = pongo2.RegisterFilter("lowerfirst", filterLowerFirst)
		}
		if !pongo2.FilterExists("sanitize_html") {
			_ = pongo2.RegisterFilter("sanitize_html", filterSanitizeHTML)
		}
		// markdown always renders through goldmark.
		if pongo2.FilterExists("markdown") {
			_ = pongo2.ReplaceFilter("markdown", filterMarkdown)
		} else {
			_ = pongo2.RegisterFilter("markdown", filterMarkdown)
		}
	})
}

// defaultGlobals exposes uuid() and the env mapping to every template.
func defaultGlobals(env map[string]string) map[string]any {
	return map[string]any{
		"uuid": func() string { return uuid.NewString() },
		"env":  env,
	}
}

// environment returns the process environment, overlaid with the variables
// of envFile when one is configured. The process environment is not modified.
func environment(envFile string) (map[string]string, error) {
	env := make(map[string]string)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	if envFile == "" {
		return env, nil
	}
	fileEnv, err := godotenv.Read(envFile)
	if err != nil {
		return nil, &errs.FileAccessError{Op: "read", Path: envFile, Err: err}
	}
	for key, value := range fileEnv {
		env[key] = value
	}
	return env, nil
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.IsNil() {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

func filterLowerFirst(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(lowerFirst(in.String())), nil
}

func filterSanitizeHTML(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(ugcPolicy.Sanitize(in.String())), nil
}

func filterMarkdown(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	html, err := renderMarkdown(in.String())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:markdown", OrigError: err}
	}
	return pongo2.AsValue(html), nil
}

func renderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// lowerFirst lowers the first non-whitespace rune, keeping leading
// whitespace.
func lowerFirst(t string) string {
	for idx, r := range t {
		if strings.ContainsRune(" \t\n\r", r) {
			continue
		}
		_, size := utf8.DecodeRuneInString(t[idx:])
		return t[:idx] + strings.ToLower(string(r)) + t[idx+size:]
	}
	return t
}
