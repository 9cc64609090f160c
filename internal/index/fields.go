// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// document is a search hit whose fields are either scalars or lists.
type document map[string]json.RawMessage

// list returns field as a list. Scalars become single-element lists;
// numbers and booleans keep their JSON text.
func (d document) list(field string) []string {
	raw, ok := d[field]
	if !ok {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, scalar(it))
		}
		return out
	case '{':
		return nil
	default:
		return []string{scalar(raw)}
	}
}

func (d document) first(field string) string {
	if vals := d.list(field); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (d document) integer(field string) (int64, error) {
	v := d.first(field)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return n, nil
}

// bindings returns every field that decodes as a list of strings, for use
// as template placeholder values.
func (d document) bindings() map[string][]string {
	out := make(map[string][]string, len(d))
	for k := range d {
		if vals := d.list(k); len(vals) > 0 {
			out[k] = vals
		}
	}
	return out
}

func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// fileEntry builds a FileEntry from a file document. splitURL maps one raw
// url value to (link, protocol).
func fileEntry(d document, splitURL func(string) (string, string, bool)) (types.FileEntry, error) {
	size, err := d.integer("size")
	if err != nil {
		return types.FileEntry{}, err
	}
	e := types.FileEntry{
		DatasetID:    d.first("dataset_id"),
		Template:     d.first("directory_format_template_"),
		Title:        d.first("title"),
		Checksum:     d.first("checksum"),
		ChecksumType: d.first("checksum_type"),
		Size:         size,
		URLs:         make(map[string][]string),
		Fields:       d.bindings(),
	}
	for _, raw := range d.list("url") {
		link, proto, ok := splitURL(raw)
		if !ok {
			continue
		}
		e.URLs[proto] = append(e.URLs[proto], link)
	}
	return e, nil
}

// splitSolrURL splits "link|mime|Protocol".
func splitSolrURL(raw string) (string, string, bool) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[0], parts[2], true
}

// splitGlobusURL splits "link|Protocol".
func splitGlobusURL(raw string) (string, string, bool) {
	i := strings.LastIndexByte(raw, '|')
	if i <= 0 || i == len(raw)-1 {
		return "", "", false
	}
	return raw[:i], raw[i+1:], true
}
