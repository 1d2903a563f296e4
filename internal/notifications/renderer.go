package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders notifications as terminal text.
type Renderer struct {
	templates map[Level]*template.Template
}

// NewRenderer creates a renderer and loads a template per level.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title": titleCase,
		"upper": strings.ToUpper,
		"icon":  levelIcon,
	}

	r := &Renderer{templates: make(map[Level]*template.Template)}

	for _, level := range []Level{LevelSuccess, LevelError} {
		filename := fmt.Sprintf("templates/%s.tmpl", level)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(level)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", level, err)
		}
		r.templates[level] = tmpl
	}

	return r, nil
}

// Render renders n. Unknown levels fall back to the error template.
func (r *Renderer) Render(n Notification) (string, error) {
	tmpl, ok := r.templates[n.Level]
	if !ok {
		tmpl = r.templates[LevelError]
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("execute template %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func levelIcon(level Level) string {
	switch level {
	case LevelSuccess:
		return "✔"
	case LevelError:
		return "✖"
	default:
		return "•"
	}
}
