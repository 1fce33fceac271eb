package gen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
	"golang.org/x/tools/imports"
)

// writeJen renders f and writes it to path.
func writeJen(path string, f *jen.File) error {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// writeTemplate executes t with data, formats the output with goimports and
// writes it to path. On a formatting failure, the unformatted output is
// written next to path with an ".error" suffix.
func writeTemplate(path string, t *GraphTemplate, data any) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute template %q: %w", t.Name, err)
	}
	formatted, err := imports.Process(path, buf.Bytes(), nil)
	if err != nil {
		debugPath := path + ".error"
		_ = os.WriteFile(debugPath, buf.Bytes(), 0o644)
		return fmt.Errorf("format %s: %w (unformatted written to %s)", filepath.Base(path), err, debugPath)
	}
	return os.WriteFile(path, formatted, 0o644)
}

// writeJSON writes v as indented JSON.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
