// Package template renders configuration, manifest and pyproject templates.
// Unknown variables are an error.
package template

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// Params is the data a template is rendered with.
type Params map[string]any

// With returns a copy of p with key set to value.
func (p Params) With(key string, value any) Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[key] = value
	return out
}

// BaseParams returns the `date` and `env` parameters available to every
// template.
func BaseParams() Params {
	return Params{
		"date": time.Now(),
		"env":  Environ(),
	}
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Render renders text with params.
func Render(name, text string, params Params) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any(params)); err != nil {
		return "", fmt.Errorf("rendering template %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderFile renders the template file at path.
func RenderFile(path string, params Params) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading template: %w", err)
	}
	return Render(filepath.Base(path), string(data), params)
}
