// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pathtmpl renders ESGF directory format templates into relative
// file paths.
//
// Templates use Python-style named placeholders:
//
//	%(root)s/%(mip_era)s/%(activity_drs)s/%(institution_id)s/…/%(version)s
//
// The leading "%(root)s/" is dropped so the result is relative.
package pathtmpl

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/pdiddy/esgf-harvest/internal/facet"
)

const rootPrefix = "%(root)s/"

// ErrMissingPlaceholder reports a placeholder without a bound value.
var ErrMissingPlaceholder = errors.New("template placeholder has no value")

// TemplateError describes a template that could not be rendered.
type TemplateError struct {
	Template    string
	Placeholder string
	Err         error
}

func (e *TemplateError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("rendering %q: %%(%s)s: %v", e.Template, e.Placeholder, e.Err)
	}
	return fmt.Sprintf("rendering %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// Render expands tmpl with the given bindings and appends title.
//
// Each placeholder resolves from the first element of its binding. The
// "version" binding is always replaced by the version found in datasetID,
// since some sources report a version field that differs from the one used
// in paths.
func Render(tmpl string, bindings map[string][]string, datasetID, title string) (string, error) {
	if title == "" {
		return "", &TemplateError{Template: tmpl, Err: errors.New("empty title")}
	}
	dir, err := Expand(tmpl, func(name string) (string, bool) {
		if name == "version" {
			v := facet.DatasetVersion(datasetID)
			return v, v != ""
		}
		vals := bindings[name]
		if len(vals) == 0 || vals[0] == "" {
			return "", false
		}
		return vals[0], true
	})
	if err != nil {
		return "", err
	}
	return path.Join(dir, title), nil
}

// Expand substitutes every %(name)s placeholder in tmpl using lookup.
func Expand(tmpl string, lookup func(name string) (string, bool)) (string, error) {
	rest := strings.TrimPrefix(tmpl, rootPrefix)
	var b strings.Builder
	for {
		start := strings.Index(rest, "%(")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], ")s")
		if end < 0 {
			return "", &TemplateError{Template: tmpl, Err: errors.New("unterminated placeholder")}
		}
		name := rest[start+2 : start+end]
		value, ok := lookup(name)
		if !ok {
			return "", &TemplateError{Template: tmpl, Placeholder: name, Err: ErrMissingPlaceholder}
		}
		if strings.ContainsRune(value, '/') || value == ".." || value == "." {
			return "", &TemplateError{Template: tmpl, Placeholder: name, Err: fmt.Errorf("unsafe path component %q", value)}
		}
		b.WriteString(rest[:start])
		b.WriteString(value)
		rest = rest[start+end+2:]
	}
	return b.String(), nil
}
