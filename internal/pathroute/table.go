// Package pathroute maintains allow/deny route tables over URL path
// templates. Templates support literal segments, single-segment named
// parameters (":id"), and a trailing wildcard ("/*rest" or "/{*rest}").
// Matching is delegated to chi's routing tree; the template list stays the
// authoritative, serializable source of truth and the tree is rebuilt from
// it on removal.
package pathroute

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
)

var noop = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

// Table is a set of registered path templates with match lookup.
type Table struct {
	templates []string
	mux       *chi.Mux
}

// New returns an empty table.
func New() *Table {
	return &Table{mux: chi.NewRouter()}
}

// Add registers a template. It fails on duplicate or ambiguous templates and
// on templates that cannot be compiled.
func (t *Table) Add(template string) error {
	if slices.Contains(t.templates, template) {
		return fmt.Errorf("path template %q already registered", template)
	}
	pattern, err := toPattern(template)
	if err != nil {
		return err
	}
	if err := t.insert(pattern); err != nil {
		return err
	}
	t.templates = append(t.templates, template)
	return nil
}

// Remove deletes a template and rebuilds the routing tree from the remaining
// list. Removing an unknown template is a no-op.
func (t *Table) Remove(template string) {
	i := slices.Index(t.templates, template)
	if i < 0 {
		return
	}
	t.templates = slices.Delete(t.templates, i, i+1)
	t.rebuild()
}

// Match reports whether path matches any registered template.
func (t *Table) Match(path string) bool {
	if len(t.templates) == 0 {
		return false
	}
	if path == "" {
		path = "/"
	}
	rctx := chi.NewRouteContext()
	return t.mux.Match(rctx, http.MethodGet, path)
}

// Templates returns the registered templates in insertion order.
func (t *Table) Templates() []string {
	return slices.Clone(t.templates)
}

// Len returns the number of registered templates.
func (t *Table) Len() int { return len(t.templates) }

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	c := New()
	c.templates = slices.Clone(t.templates)
	c.rebuild()
	return c
}

func (t *Table) rebuild() {
	t.mux = chi.NewRouter()
	for _, tpl := range t.templates {
		pattern, err := toPattern(tpl)
		if err != nil {
			continue
		}
		// Previously inserted templates cannot conflict again.
		_ = t.insert(pattern)
	}
}

// insert registers the pattern, converting chi's conflict panics into errors.
func (t *Table) insert(pattern string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register path template %q: %v", pattern, r)
		}
	}()
	t.mux.Handle(pattern, noop)
	return nil
}

// toPattern converts a template to chi's syntax: ":name" becomes "{name}"
// and a trailing "*name" / "{*name}" becomes "*".
func toPattern(template string) (string, error) {
	if template == "" || !strings.HasPrefix(template, "/") {
		return "", fmt.Errorf("path template %q must start with '/'", template)
	}
	if template == "/" {
		return template, nil
	}
	segments := strings.Split(strings.TrimPrefix(template, "/"), "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		switch {
		case strings.HasPrefix(seg, ":"):
			name := seg[1:]
			if name == "" {
				return "", fmt.Errorf("path template %q has an unnamed parameter", template)
			}
			out = append(out, "{"+name+"}")
		case strings.HasPrefix(seg, "*"), strings.HasPrefix(seg, "{*") && strings.HasSuffix(seg, "}"):
			if i != len(segments)-1 {
				return "", fmt.Errorf("path template %q has a non-trailing wildcard", template)
			}
			out = append(out, "*")
		case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			if len(seg) == 2 {
				return "", fmt.Errorf("path template %q has an unnamed parameter", template)
			}
			out = append(out, seg)
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/"), nil
}
