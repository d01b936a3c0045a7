// Package config resolves CLI settings from flags, DATATPL_* environment
// variables and an optional YAML config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/goliatone/go-datatpl/pkg/errs"
	"github.com/goliatone/go-datatpl/pkg/record"
)

// EnvPrefix prefixes environment variable overrides (DATATPL_FORMAT, ...).
const EnvPrefix = "DATATPL"

// DefaultConfigName is looked up in the working directory when no explicit
// config file is given.
const DefaultConfigName = ".datatpl"

// Setting keys. They double as flag names.
const (
	KeyTemplate    = "template"
	KeyFile        = "file"
	KeyFormat      = "format"
	KeyEncoding    = "encoding"
	KeyOneFile     = "onefile"
	KeyOutputDir   = "output-dir"
	KeyEnvFile     = "env-file"
	KeyLogFormat   = "log-format"
	KeyLogLevel    = "log-level"
	KeyVerbose     = "verbose"
	KeyWatch       = "watch"
	KeyInteractive = "interactive"
	KeyConfig      = "config"
)

// Config holds the resolved settings of one CLI invocation.
type Config struct {
	Template    string
	DataFile    string
	Format      string
	Encoding    string
	OneFile     bool
	OutputDir   string
	EnvFile     string
	LogFormat   string
	LogLevel    string
	Verbose     bool
	Watch       bool
	Interactive bool
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		Template:  "template.txt",
		DataFile:  "data.csv",
		Format:    record.FormatCSV,
		Encoding:  record.DefaultEncoding,
		OutputDir: ".",
		LogFormat: "text",
		LogLevel:  "info",
	}
}

// flagAliases maps alternative long flag names onto their canonical names.
var flagAliases = map[string]string{
	"datafile":   KeyFile,
	"dataformat": KeyFormat,
}

// RegisterFlags declares every setting on fs with the built-in defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if canonical, ok := flagAliases[name]; ok {
			name = canonical
		}
		return pflag.NormalizedName(name)
	})

	fs.StringP(KeyTemplate, "t", d.Template, "template name")
	fs.StringP(KeyFile, "f", d.DataFile, "data file (alias --datafile)")
	fs.String(KeyFormat, d.Format, "data format: csv, tsv, json, jsonl, yaml (alias --dataformat)")
	fs.StringP(KeyEncoding, "e", d.Encoding, "data file text encoding")
	fs.Bool(KeyOneFile, d.OneFile, "render all records into output.txt")
	fs.StringP(KeyOutputDir, "o", d.OutputDir, "directory for output files")
	fs.String(KeyEnvFile, "", "dotenv file merged into the env template global")
	fs.String(KeyLogFormat, d.LogFormat, "log format: text or json")
	fs.String(KeyLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	fs.BoolP(KeyVerbose, "v", false, "enable debug logging")
	fs.BoolP(KeyWatch, "w", false, "re-render when the template or data file changes")
	fs.BoolP(KeyInteractive, "i", false, "prompt for settings before rendering")
	fs.String(KeyConfig, "", "config file (default ./.datatpl.yaml when present)")
}

// Load resolves the settings bound to v. When configFile is empty, an
// optional .datatpl.yaml in the working directory is read.
func Load(v *viper.Viper, configFile string) (Config, error) {
	d := Defaults()
	v.SetDefault(KeyTemplate, d.Template)
	v.SetDefault(KeyFile, d.DataFile)
	v.SetDefault(KeyFormat, d.Format)
	v.SetDefault(KeyEncoding, d.Encoding)
	v.SetDefault(KeyOutputDir, d.OutputDir)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyLogLevel, d.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, &errs.FileAccessError{Op: "read", Path: configFile, Err: err}
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, &errs.FileAccessError{Op: "read", Path: DefaultConfigName + ".yaml", Err: err}
			}
		}
	}

	return Config{
		Template:    v.GetString(KeyTemplate),
		DataFile:    v.GetString(KeyFile),
		Format:      v.GetString(KeyFormat),
		Encoding:    v.GetString(KeyEncoding),
		OneFile:     v.GetBool(KeyOneFile),
		OutputDir:   v.GetString(KeyOutputDir),
		EnvFile:     v.GetString(KeyEnvFile),
		LogFormat:   v.GetString(KeyLogFormat),
		LogLevel:    v.GetString(KeyLogLevel),
		Verbose:     v.GetBool(KeyVerbose),
		Watch:       v.GetBool(KeyWatch),
		Interactive: v.GetBool(KeyInteractive),
	}, nil
}

// Validate checks that the required settings are present. The data format
// is resolved later by the pipeline, after the template has been bound.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Template) == "" {
		return fmt.Errorf("config: template name is required")
	}
	if strings.TrimSpace(c.DataFile) == "" {
		return fmt.Errorf("config: data file is required")
	}
	return nil
}
