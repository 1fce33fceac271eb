package gen

import (
	"errors"
	"go/token"
	"path"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultHeader is the comment written at the top of every generated Go file.
const DefaultHeader = "Code generated by ormapi. DO NOT EDIT."

// Config holds the code generation configuration.
type Config struct {
	// Target is the directory generated files are written to.
	Target string
	// Package is the import path of the generated package. Its last element
	// is the package name.
	Package string
	// Header is the comment written at the top of generated Go files.
	Header string
	// OpenAPI enables the openapi.json document.
	OpenAPI bool
	// Title and Version are written to the info object of the document.
	Title   string
	Version string
	// Workers bounds the files written in parallel.
	Workers int
}

// Option configures code generation.
type Option func(*Config) error

// WithTarget sets the output directory.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Target", nil, "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithPackage sets the output package import path.
// For example: "github.com/org/project/models".
func WithPackage(pkg string) Option {
	return func(c *Config) error {
		if pkg == "" {
			return NewConfigError("Package", nil, "package cannot be empty")
		}
		if name := path.Base(pkg); !token.IsIdentifier(name) {
			return NewConfigError("Package", pkg, "package name must be a Go identifier")
		}
		c.Package = pkg
		return nil
	}
}

// WithHeader sets the file header comment.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithOpenAPI enables the OpenAPI document with the given info title and
// version.
func WithOpenAPI(title, version string) Option {
	return func(c *Config) error {
		c.OpenAPI = true
		c.Title = title
		c.Version = version
		return nil
	}
}

// WithWorkers sets the number of files written in parallel.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return NewConfigError("Workers", n, "workers must be positive")
		}
		c.Workers = n
		return nil
	}
}

// Name returns the name of the generated package. A name derived from the
// target directory is reduced to a lower-case Go identifier.
func (c *Config) Name() string {
	if c.Package != "" && token.IsIdentifier(path.Base(c.Package)) {
		return path.Base(c.Package)
	}
	base := path.Base(c.Target)
	if c.Package != "" {
		base = path.Base(c.Package)
	}
	return packageName(base)
}

func packageName(base string) string {
	name := strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, base)
	if name == "" {
		return "models"
	}
	if r, _ := utf8.DecodeRuneInString(name); unicode.IsDigit(r) || token.IsKeyword(name) {
		return "p" + name
	}
	return name
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a new Config with the given options, filling the
// defaults of unset values.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{Header: DefaultHeader, Workers: runtime.GOMAXPROCS(0)}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	if c.Target == "" {
		return nil, NewConfigError("Target", nil, "missing target directory in config")
	}
	if c.Title == "" {
		c.Title = "ormapi"
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	return c, nil
}
