package notifier

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

type templateDef struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiled struct {
	subject *template.Template
	body    *htmltemplate.Template
}

// Catalog renders email subject and body per notification kind.
type Catalog struct {
	byKind map[Kind]compiled
}

func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultTemplates)
}

func ParseCatalog(src []byte) (*Catalog, error) {
	defs := map[string]templateDef{}
	if err := yaml.Unmarshal(src, &defs); err != nil {
		return nil, err
	}
	c := &Catalog{byKind: make(map[Kind]compiled, len(defs))}
	for k, d := range defs {
		st, err := template.New(k + ".subject").Parse(d.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", k, err)
		}
		bt, err := htmltemplate.New(k + ".body").Parse(d.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", k, err)
		}
		c.byKind[Kind(k)] = compiled{subject: st, body: bt}
	}
	return c, nil
}

func (c *Catalog) Render(n Notification) (subject, body string, err error) {
	t, ok := c.byKind[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("template %q not found", n.Kind)
	}
	var sb, bb bytes.Buffer
	if err := t.subject.Execute(&sb, n); err != nil {
		return "", "", err
	}
	if err := t.body.Execute(&bb, n); err != nil {
		return "", "", err
	}
	return sb.String(), bb.String(), nil
}
