// Package config loads postlint settings from defaults, a postlint.yaml
// file, POSTLINT_* environment variables, and bound command-line flags, in
// ascending order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/postlint/postlint/internal/catalog"
	"github.com/postlint/postlint/internal/lint"
	"github.com/postlint/postlint/internal/types"
)

// Config carries every tunable postlint reads.
type Config struct {
	// Root is the corpus directory.
	Root string `mapstructure:"root"`

	// Ignore adds glob patterns to the built-in path filter.
	Ignore []string `mapstructure:"ignore"`

	// Extensions adds post file extensions beyond .md and .markdown.
	Extensions []string `mapstructure:"extensions"`

	// StaticDirs are directories searched when resolving root-relative
	// asset and link targets that match no post permalink.
	StaticDirs []string `mapstructure:"static-dirs"`

	// BaseURL prefixes permalinks in display output.
	BaseURL string `mapstructure:"base-url"`

	// Catalog overrides the per-user default catalog database location.
	Catalog string `mapstructure:"catalog"`

	// RequiredKeys must be present and non-empty in every post.
	RequiredKeys []string `mapstructure:"required-keys"`

	// ExtraKeys extends the recognized front-matter schema.
	ExtraKeys []string `mapstructure:"extra-keys"`

	// Schema names a JSON Schema file validated against raw front matter.
	Schema string `mapstructure:"schema"`

	// MaxDescription caps the description length.
	MaxDescription int `mapstructure:"max-description"`

	// Disable lists rule IDs to skip.
	Disable []string `mapstructure:"disable"`

	// Severity remaps rule severities, rule ID to "error" or "warning".
	Severity map[string]string `mapstructure:"severity"`

	// FailOn is the exit threshold for check: "error", "warning", or
	// "never".
	FailOn string `mapstructure:"fail-on"`

	// Format selects the report renderer, "text" or "json".
	Format string `mapstructure:"format"`

	// Verbose lifts logging to debug.
	Verbose bool `mapstructure:"verbose"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"root":            ".",
		"ignore":          []string{},
		"extensions":      []string{},
		"static-dirs":     []string{},
		"base-url":        "",
		"catalog":         "",
		"required-keys":   []string{"title", "date"},
		"extra-keys":      []string{},
		"schema":          "",
		"max-description": 160,
		"disable":         []string{},
		"fail-on":         "error",
		"format":          "text",
		"verbose":         false,
	}
}

// Load resolves the configuration for a command invocation. Sources are, in
// ascending precedence: built-in defaults, postlint.yaml found in the
// content root or the working directory (or the file named by configFile),
// POSTLINT_* environment variables, and flags set on cmd.
func Load(cmd *cobra.Command, configFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("postlint")
	v.SetConfigType("yaml")
	if configFile != "" {
		// An explicitly named file must exist; errors are fatal.
		v.SetConfigFile(configFile)
	}
	if f := cmd.Flags().Lookup("root"); f != nil && f.Value.String() != "" {
		v.AddConfigPath(f.Value.String())
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("postlint")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

// FilterConfig maps the ignore and extension settings onto the path filter,
// or nil when neither is customized.
func (c Config) FilterConfig() *types.PathFilterConfig {
	if len(c.Ignore) == 0 && len(c.Extensions) == 0 {
		return nil
	}
	return &types.PathFilterConfig{
		IgnoredPatterns:   c.Ignore,
		AllowedExtensions: c.Extensions,
	}
}

// LintOptions converts the configuration into runner options, compiling the
// JSON Schema when one is configured.
func (c Config) LintOptions() (lint.Options, error) {
	opts := lint.Options{
		RequiredKeys:   c.RequiredKeys,
		ExtraKeys:      c.ExtraKeys,
		StaticDirs:     c.StaticDirs,
		MaxDescription: c.MaxDescription,
		Disabled:       c.Disable,
	}
	if len(c.Severity) > 0 {
		opts.SeverityOverrides = make(map[string]lint.Severity, len(c.Severity))
		for rule, level := range c.Severity {
			severity, err := ParseSeverity(level)
			if err != nil {
				return opts, fmt.Errorf("severity for rule %s: %w", rule, err)
			}
			opts.SeverityOverrides[rule] = severity
		}
	}
	if c.Schema != "" {
		schema, err := lint.CompileSchema(c.Schema)
		if err != nil {
			return opts, err
		}
		opts.Schema = schema
	}
	return opts, nil
}

// CatalogPath returns the configured catalog location, or the per-user
// default for the given resolved corpus root.
func (c Config) CatalogPath(root string) string {
	if c.Catalog != "" {
		return c.Catalog
	}
	return catalog.DefaultPath(root)
}

// FailsOn reports whether a lint summary crosses the configured exit
// threshold.
func (c Config) FailsOn(summary lint.Summary) bool {
	switch strings.ToLower(strings.TrimSpace(c.FailOn)) {
	case "warning", "warn":
		return summary.Errors > 0 || summary.Warnings > 0
	case "never", "none":
		return false
	}
	return summary.Errors > 0
}

// ParseSeverity maps a config string onto a diagnostic severity.
func ParseSeverity(s string) (lint.Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return lint.SeverityError, nil
	case "warning", "warn":
		return lint.SeverityWarning, nil
	}
	return "", fmt.Errorf("unknown severity %q (want error or warning)", s)
}
