package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"path"
	"strings"
	texttmpl "text/template"
)

//go:embed templates/*
var templatesFS embed.FS

// TemplateData is passed to every email template.
type TemplateData struct {
	RecipientName string
	Data          map[string]string
}

// Rendered is the output of one template pair.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type templatePair struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

// Templates holds the parsed email templates keyed by email type.
type Templates struct {
	byType map[string]templatePair
}

// LoadTemplates parses the embedded templates. Every .txt must define a "subject" block;
// the .gohtml counterpart is optional.
func LoadTemplates() (*Templates, error) {
	names, err := fs.Glob(templatesFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("glob templates: %w", err)
	}
	t := &Templates{byType: make(map[string]templatePair, len(names))}
	for _, name := range names {
		emailType := strings.TrimSuffix(path.Base(name), ".txt")
		text, err := texttmpl.New(path.Base(name)).Option("missingkey=zero").ParseFS(templatesFS, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if text.Lookup("subject") == nil {
			return nil, fmt.Errorf("template %s has no subject block", name)
		}
		pair := templatePair{text: text}

		htmlName := "templates/" + emailType + ".gohtml"
		if _, err := fs.Stat(templatesFS, htmlName); err == nil {
			pair.html, err = htmltmpl.New(path.Base(htmlName)).Option("missingkey=zero").ParseFS(templatesFS, htmlName)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", htmlName, err)
			}
		}
		t.byType[emailType] = pair
	}
	return t, nil
}

// Has reports whether a template exists for emailType.
func (t *Templates) Has(emailType string) bool {
	_, ok := t.byType[emailType]
	return ok
}

// Render executes the templates for emailType.
func (t *Templates) Render(emailType string, data TemplateData) (Rendered, error) {
	pair, ok := t.byType[emailType]
	if !ok {
		return Rendered{}, fmt.Errorf("no template for email type %q", emailType)
	}
	if data.Data == nil {
		data.Data = map[string]string{}
	}

	var out Rendered
	var buf bytes.Buffer
	if err := pair.text.ExecuteTemplate(&buf, "subject", data); err != nil {
		return Rendered{}, fmt.Errorf("render subject: %w", err)
	}
	out.Subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := pair.text.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("render text: %w", err)
	}
	out.Text = strings.TrimSpace(buf.String())

	if pair.html != nil {
		buf.Reset()
		if err := pair.html.Execute(&buf, data); err != nil {
			return Rendered{}, fmt.Errorf("render html: %w", err)
		}
		out.HTML = buf.String()
	}
	return out, nil
}
