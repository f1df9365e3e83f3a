package persona

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"

	"twin/internal/logging"
)

// Files read from a persona directory. Only facts.yaml is required.
const (
	FactsFile       = "facts.yaml"
	SummaryFile     = "summary.txt"
	StyleFile       = "style.txt"
	ProfileHTMLFile = "profile.html"
	ProfileTextFile = "profile.txt"
	TemplateFile    = "instructions.tmpl"
)

const timestampLayout = "2006-01-02 15:04:05"

//go:embed instructions.tmpl
var defaultTemplate string

// Facts is the parsed facts.yaml. FullName and Name are required; every
// other key is kept verbatim in the rendered facts block.
type Facts struct {
	FullName string `yaml:"full_name"`
	Name     string `yaml:"name"`
}

// DirProvider renders instructions from files loaded once at startup. The
// current time is stamped on every call.
type DirProvider struct {
	facts    Facts
	rawFacts string
	summary  string
	style    string
	profile  string
	tmpl     *template.Template
	now      func() time.Time
}

// Option customises a DirProvider.
type Option func(*DirProvider)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *DirProvider) {
		if now != nil {
			p.now = now
		}
	}
}

type templateData struct {
	FullName string
	Name     string
	Facts    string
	Summary  string
	Profile  string
	Style    string
	Now      string
}

// LoadDir reads a persona directory. An instructions.tmpl file in the
// directory replaces the built-in template.
func LoadDir(dir string, opts ...Option) (*DirProvider, error) {
	logger := logging.NewComponentLogger("Persona")

	rawFacts, err := os.ReadFile(filepath.Join(dir, FactsFile))
	if err != nil {
		return nil, fmt.Errorf("read persona facts: %w", err)
	}
	var facts Facts
	if err := yaml.Unmarshal(rawFacts, &facts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FactsFile, err)
	}
	facts.FullName = strings.TrimSpace(facts.FullName)
	facts.Name = strings.TrimSpace(facts.Name)
	if facts.FullName == "" || facts.Name == "" {
		return nil, fmt.Errorf("%s must define full_name and name", FactsFile)
	}

	summary, err := readOptional(filepath.Join(dir, SummaryFile))
	if err != nil {
		return nil, err
	}
	style, err := readOptional(filepath.Join(dir, StyleFile))
	if err != nil {
		return nil, err
	}
	profile, err := loadProfile(dir)
	if err != nil {
		return nil, err
	}

	source := defaultTemplate
	custom, err := readOptional(filepath.Join(dir, TemplateFile))
	if err != nil {
		return nil, err
	}
	if custom != "" {
		source = custom
		logger.Info("Using persona template from %s", filepath.Join(dir, TemplateFile))
	}
	tmpl, err := template.New("persona").Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse persona template: %w", err)
	}

	p := &DirProvider{
		facts:    facts,
		rawFacts: strings.TrimSpace(string(rawFacts)),
		summary:  summary,
		style:    style,
		profile:  profile,
		tmpl:     tmpl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	logger.Info("Loaded persona for %s (summary=%t profile=%t style=%t)", facts.FullName, summary != "", profile != "", style != "")
	return p, nil
}

// Facts returns the parsed identity fields.
func (p *DirProvider) Facts() Facts {
	return p.facts
}

func (p *DirProvider) Instructions(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err := p.tmpl.Execute(&buf, templateData{
		FullName: p.facts.FullName,
		Name:     p.facts.Name,
		Facts:    p.rawFacts,
		Summary:  p.summary,
		Profile:  p.profile,
		Style:    p.style,
		Now:      p.now().Format(timestampLayout),
	})
	if err != nil {
		return "", fmt.Errorf("render persona: %w", err)
	}
	return buf.String(), nil
}

func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// loadProfile prefers profile.html, reduced to text, over profile.txt.
func loadProfile(dir string) (string, error) {
	html, err := readOptional(filepath.Join(dir, ProfileHTMLFile))
	if err != nil {
		return "", err
	}
	if html != "" {
		return htmlToText(html)
	}
	return readOptional(filepath.Join(dir, ProfileTextFile))
}

func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", ProfileHTMLFile, err)
	}
	doc.Find("script, style, nav, footer, iframe").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		if s.Is("li") {
			text = "- " + text
		}
		lines = append(lines, text)
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(lines, "\n"), nil
}
