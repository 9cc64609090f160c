// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filemeta merges the file listings that several index sources return
// for the same logical dataset into one record per physical file.
package filemeta

import (
	"context"
	"fmt"

	"github.com/pdiddy/esgf-harvest/internal/logging"
	"github.com/pdiddy/esgf-harvest/internal/pathtmpl"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// SourceFiles is one source's answer to a file query. A non-nil Err means
// the source failed entirely and contributes nothing.
type SourceFiles struct {
	Source  string
	Entries []types.FileEntry
	Err     error
}

// Result holds the merged records and what was left out.
type Result struct {
	// Files holds one record per distinct path, in first-seen order.
	Files []types.FileRecord

	// Unrendered holds a *pathtmpl.TemplateError for each entry whose path
	// could not be computed.
	Unrendered []error

	// SourceErrors lists the sources that failed, as "name: error".
	SourceErrors []string
}

// Merge renders each entry's path and folds entries that share a path.
//
// The first entry seen for a path seeds every field. Later entries only
// extend the mirror lists; their scalar fields are ignored even when they
// disagree. Mirror lists are concatenated without removing duplicates.
func Merge(ctx context.Context, sources []SourceFiles) Result {
	log := logging.FromContext(ctx)

	var res Result
	index := make(map[string]int)
	for _, src := range sources {
		if src.Err != nil {
			log.Warn().Str("source", src.Source).Err(src.Err).Msg("file query failed, skipping source")
			res.SourceErrors = append(res.SourceErrors, fmt.Sprintf("%s: %v", src.Source, src.Err))
			continue
		}
		for _, e := range src.Entries {
			p, err := pathtmpl.Render(e.Template, e.Fields, e.DatasetID, e.Title)
			if err != nil {
				log.Warn().Str("source", src.Source).Str("title", e.Title).Err(err).Msg("skipping file")
				res.Unrendered = append(res.Unrendered, err)
				continue
			}
			rec := types.FileRecord{
				Checksum:     e.Checksum,
				ChecksumType: e.ChecksumType,
				Size:         e.Size,
				Path:         p,
				URLs:         e.URLs,
			}
			if i, ok := index[p]; ok {
				apply(&res.Files[i], &rec, false)
				continue
			}
			index[p] = len(res.Files)
			res.Files = append(res.Files, types.FileRecord{})
			apply(&res.Files[len(res.Files)-1], &rec, true)
		}
	}
	log.Debug().Int("files", len(res.Files)).Int("unrendered", len(res.Unrendered)).Msg("merged file metadata")
	return res
}
