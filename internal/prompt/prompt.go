// Package prompt renders the prompt variants used by the translation
// pipeline. Template text is embedded; each variant declares the substitution
// fields it requires and rendering fails fast when one is missing.
package prompt

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

type Variant string

const (
	VariantSchemaLinking  Variant = "schema_linking"
	VariantClassification Variant = "classification"
	VariantEasy           Variant = "easy"
	VariantMedium         Variant = "medium"
	VariantHard           Variant = "hard"
	VariantClean          Variant = "clean"
)

// Delimiters the templates emit and the pipeline keys on. These must match
// the template text byte-for-byte.
const (
	ExampleTagStart      = "<example>"
	ExampleTagEnd        = "</example>"
	InstructionsTagStart = "<instructions>"
	InstructionsTagEnd   = "</instructions>"
	LabelTagName         = "label"
	LinksTagName         = "links"
)

type Fields map[string]string

var requiredFields = map[Variant][]string{
	VariantSchemaLinking:  {"fields", "foreign_keys", "question"},
	VariantClassification: {"fields", "foreign_keys", "question", "schema_links"},
	VariantEasy:           {"fields", "question", "schema_links"},
	VariantMedium:         {"fields", "foreign_keys", "question", "schema_links"},
	VariantHard:           {"fields", "foreign_keys", "question", "schema_links", "sub_questions"},
	VariantClean:          {"fields", "question", "sql_query", "sql_dialect"},
}

//go:embed templates/*.tmpl
var templateFS embed.FS

type Renderer struct {
	templates map[Variant]*template.Template
}

func NewRenderer() (*Renderer, error) {
	renderer := &Renderer{templates: map[Variant]*template.Template{}}
	for variant := range requiredFields {
		name := string(variant) + ".tmpl"
		parsed, err := template.New(name).Option("missingkey=error").ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %q: %w", name, err)
		}
		renderer.templates[variant] = parsed
	}
	return renderer, nil
}

// Render is pure: the same variant and fields always produce the same text.
func (r *Renderer) Render(variant Variant, fields Fields) (string, error) {
	tmpl, ok := r.templates[variant]
	if !ok {
		return "", fmt.Errorf("unknown prompt variant %q", variant)
	}
	if missing := missingRequired(variant, fields); len(missing) > 0 {
		return "", fmt.Errorf("prompt variant %q missing required fields: %s", variant, strings.Join(missing, ", "))
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, map[string]string(fields)); err != nil {
		return "", fmt.Errorf("render prompt variant %q: %w", variant, err)
	}
	return out.String(), nil
}

func RequiredFields(variant Variant) []string {
	required := requiredFields[variant]
	copied := make([]string, len(required))
	copy(copied, required)
	return copied
}

func missingRequired(variant Variant, fields Fields) []string {
	var missing []string
	for _, key := range requiredFields[variant] {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
