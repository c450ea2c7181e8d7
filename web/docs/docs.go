// Package docs serves an interactive API reference rendered from the
// OpenAPI document published by the API module.
package docs

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/JaimeStill/courier/pkg/module"
)

// DefaultScriptURL loads the Scalar API reference bundle.
const DefaultScriptURL = "https://cdn.jsdelivr.net/npm/@scalar/api-reference"

//go:embed index.html
var indexHTML string

var index = template.Must(template.New("index").Parse(indexHTML))

// Page configures the reference page.
type Page struct {
	Title     string
	SpecURL   string
	ScriptURL string
}

// NewModule creates a module mounted at prefix that renders page at its root.
// The page is rendered once; an empty ScriptURL uses DefaultScriptURL.
func NewModule(prefix string, page Page) (*module.Module, error) {
	if page.ScriptURL == "" {
		page.ScriptURL = DefaultScriptURL
	}

	var buf bytes.Buffer
	if err := index.Execute(&buf, page); err != nil {
		return nil, err
	}
	body := buf.Bytes()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	})

	return module.New(prefix, mux), nil
}
