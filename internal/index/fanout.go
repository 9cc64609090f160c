// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/esgf-harvest/internal/facet"
	"github.com/pdiddy/esgf-harvest/internal/filemeta"
	"github.com/pdiddy/esgf-harvest/internal/logging"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// SearchOutput holds each source's parsed records and what was dropped.
type SearchOutput struct {
	// Records holds one sequence per index, in index order. A failed index
	// contributes an empty sequence.
	Records [][]types.DatasetRecord

	// Rejected holds a *facet.ParseError per malformed id.
	Rejected []error

	// BackendErrors lists failed indices as "name: error".
	BackendErrors []string
}

// SearchAll sends q to every index concurrently and parses the returned ids.
// A failing index is logged and treated as having returned nothing, so
// the other indices still contribute.
func SearchAll(ctx context.Context, q Query, indices []Index) (SearchOutput, error) {
	if q.IsEmpty() {
		return SearchOutput{}, fmt.Errorf("query is empty: provide at least one facet")
	}
	if len(indices) == 0 {
		return SearchOutput{}, fmt.Errorf("no index sources configured")
	}
	log := logging.FromContext(ctx)

	ids := make([][]string, len(indices))
	errs := make([]error, len(indices))
	var g errgroup.Group
	for i, idx := range indices {
		g.Go(func() error {
			ids[i], errs[i] = idx.Search(ctx, q)
			return nil
		})
	}
	g.Wait()

	out := SearchOutput{Records: make([][]types.DatasetRecord, len(indices))}
	for i, idx := range indices {
		if errs[i] != nil {
			log.Warn().Str("index", idx.Name()).Err(errs[i]).Msg("index search failed")
			out.BackendErrors = append(out.BackendErrors, fmt.Sprintf("%s: %v", idx.Name(), errs[i]))
			continue
		}
		records, rejected := facet.ParseAll(ids[i])
		for _, err := range rejected {
			log.Debug().Str("index", idx.Name()).Err(err).Msg("skipping malformed id")
		}
		out.Records[i] = records
		out.Rejected = append(out.Rejected, rejected...)
		log.Info().Str("index", idx.Name()).Int("datasets", len(records)).Msg("index searched")
	}
	return out, nil
}

// GatherFiles asks every index for the files of datasetIDs concurrently.
// Failures are reported per source in the result, never as an error.
func GatherFiles(ctx context.Context, indices []Index, datasetIDs []string) []filemeta.SourceFiles {
	out := make([]filemeta.SourceFiles, len(indices))
	var g errgroup.Group
	for i, idx := range indices {
		g.Go(func() error {
			entries, err := idx.FileInfo(ctx, datasetIDs)
			out[i] = filemeta.SourceFiles{Source: idx.Name(), Entries: entries, Err: err}
			return nil
		})
	}
	g.Wait()
	return out
}
