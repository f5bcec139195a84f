package templates

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Templates is a validated, ready to render template set
type Templates struct {
	set     Set
	prompts map[Name]*template.Template
}

// Default returns the built-in templates. They are validated at test time, so a
// failure here is a build defect.
func Default() *Templates {
	t, err := Load(bytes.NewReader(defaultsYAML))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in templates: %v", err))
	}
	return t
}

// LoadFile reads a YAML template set from disk
func LoadFile(path string) (*Templates, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open templates %s: %w", path, err)
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load templates %s: %w", path, err)
	}
	return t, nil
}

// Load parses and validates a template set from the provided reader
func Load(r io.Reader) (*Templates, error) {
	set, err := decodeSet(r)
	if err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	return compile(set)
}

func decodeSet(r io.Reader) (Set, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var set Set
	if err := dec.Decode(&set); err != nil {
		return Set{}, err
	}
	return set, nil
}

var requiredPrompts = []Name{AnalysisPrompt, AnalysisFocusedPrompt, ReportPrompt, ReportFocusedPrompt, SummaryPrompt}

func compile(set Set) (*Templates, error) {
	var problems []string
	compiled := make(map[Name]*template.Template, len(set.Prompts))

	for _, name := range requiredPrompts {
		src, ok := set.Prompts[name]
		if !ok || strings.TrimSpace(src) == "" {
			problems = append(problems, fmt.Sprintf("prompt %q is missing", name))
			continue
		}
		tpl, err := template.New(string(name)).Option("missingkey=error").Parse(src)
		if err != nil {
			problems = append(problems, fmt.Sprintf("prompt %q: %v", name, err))
			continue
		}
		compiled[name] = tpl
	}

	if strings.TrimSpace(set.Fallback.Report) == "" {
		problems = append(problems, "fallback.report is empty")
	}
	if strings.TrimSpace(set.Fallback.Summary) == "" {
		problems = append(problems, "fallback.summary is empty")
	}
	a := set.Fallback.Analysis
	if a.DefaultPattern == "" || a.DefaultInsight == "" || a.DefaultRecommendation == "" {
		problems = append(problems, "fallback.analysis defaults are incomplete")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid templates: %s", strings.Join(problems, "; "))
	}
	return &Templates{set: set, prompts: compiled}, nil
}

// Render executes the named prompt with data
func (t *Templates) Render(name Name, data any) (string, error) {
	tpl, ok := t.prompts[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}

// Fallback returns the deterministic content
func (t *Templates) Fallback() Fallback {
	return t.set.Fallback
}

// Version returns the template set version
func (t *Templates) Version() string {
	return t.set.Version
}
