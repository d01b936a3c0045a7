// Package prompt asks for run settings interactively, using the current
// values as defaults.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-datatpl/internal/config"
)

// Ask walks through template, data file, format and one-file mode. formats
// lists the selectable data formats; the current format is preselected.
func Ask(ctx context.Context, driver Driver, cfg config.Config, formats []string) (config.Config, error) {
	if driver == nil {
		return cfg, fmt.Errorf("prompt: driver is required")
	}

	template, err := driver.Input(ctx, InputConfig{
		Message:   "Template",
		Default:   cfg.Template,
		Help:      "template file name, resolved against the working directory",
		Validator: required("template"),
	})
	if err != nil {
		return cfg, err
	}

	dataFile, err := driver.Input(ctx, InputConfig{
		Message:   "Data file",
		Default:   cfg.DataFile,
		Validator: required("data file"),
	})
	if err != nil {
		return cfg, err
	}

	format := cfg.Format
	if len(formats) > 0 {
		idx, err := driver.Select(ctx, SelectConfig{
			Message:      "Data format",
			Options:      formats,
			DefaultIndex: indexOfFold(formats, cfg.Format),
		})
		if err != nil {
			return cfg, err
		}
		if idx >= 0 && idx < len(formats) {
			format = formats[idx]
		}
	}

	oneFile, err := driver.Confirm(ctx, ConfirmConfig{
		Message: "Render all records into a single output file?",
		Default: cfg.OneFile,
	})
	if err != nil {
		return cfg, err
	}

	out := cfg
	out.Template = strings.TrimSpace(template)
	out.DataFile = strings.TrimSpace(dataFile)
	out.Format = format
	out.OneFile = oneFile
	return out, nil
}

func required(label string) func(string) error {
	return func(value string) error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

func indexOfFold(options []string, value string) int {
	for i, option := range options {
		if strings.EqualFold(option, strings.TrimSpace(value)) {
			return i
		}
	}
	return 0
}
