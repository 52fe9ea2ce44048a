// Package template renders notification subjects and bodies from mustache
// style templates with a small variable bag.
//
// Every interpolated value is HTML-escaped, in the plain body as well as the
// HTML one. That is a deliberate XSS-prevention default: plain bodies are
// routinely re-displayed in web surfaces, and a consistently escaped output
// is easier to reason about than per-sink rules.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderRe matches {{key}} with optional inner whitespace.
var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Template is a renderable notification template.
type Template struct {
	ID       string
	Type     string
	Subject  string
	Body     string
	HTMLBody string
}

// Rendered is the output of Render.
type Rendered struct {
	Subject  string
	Body     string
	HTMLBody string
}

// Render interpolates vars into the template. Missing or nil variables render
// as the empty string; Render never fails.
func Render(tpl *Template, vars map[string]interface{}) Rendered {
	return Rendered{
		Subject:  interpolate(tpl.Subject, vars),
		Body:     interpolate(tpl.Body, vars),
		HTMLBody: interpolate(tpl.HTMLBody, vars),
	}
}

// ValidateVariables returns the placeholder names referenced by the template
// but absent (or nil) in vars. Advisory only: the send path degrades missing
// variables to empty text instead of failing.
func ValidateVariables(tpl *Template, vars map[string]interface{}) []string {
	seen := map[string]bool{}
	var missing []string
	for _, text := range []string{tpl.Subject, tpl.Body, tpl.HTMLBody} {
		for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
			name := m[1]
			if seen[name] {
				continue
			}
			seen[name] = true
			if v, ok := vars[name]; !ok || v == nil {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

func interpolate(text string, vars map[string]interface{}) string {
	if text == "" {
		return ""
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := vars[name]
		if !ok || v == nil {
			return ""
		}
		return escapeHTML(stringify(v))
	})
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// escapeHTML escapes & < > " ' in that order, & first so later entities are
// not double-escaped.
func escapeHTML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return r.Replace(s)
}
