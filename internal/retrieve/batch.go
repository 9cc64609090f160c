// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/esgf-harvest/internal/logging"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// BatchResult holds the outcome of a batch retrieval run.
type BatchResult struct {
	LocalHits int
	Verified  int
	Failed    int

	// Outcomes maps each task key to its outcome.
	Outcomes map[string]Outcome
}

// Total returns the number of keys processed.
func (r BatchResult) Total() int {
	return r.LocalHits + r.Verified + r.Failed
}

// HasFailures reports whether any task failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Paths maps each key to its final local path. Failed keys map to "".
func (r BatchResult) Paths() map[string]string {
	paths := make(map[string]string, len(r.Outcomes))
	for k, o := range r.Outcomes {
		paths[k] = o.LocalPath
	}
	return paths
}

// NewTask builds a DownloadTask for f using its mirrors for protocol.
func NewTask(key string, f types.FileRecord, protocol string) types.DownloadTask {
	return types.DownloadTask{
		Key:          key,
		Path:         f.Path,
		URLs:         append([]string(nil), f.Mirrors(protocol)...),
		Checksum:     f.Checksum,
		ChecksumType: f.ChecksumType,
		Size:         f.Size,
	}
}

// FetchAll runs tasks on at most workers goroutines (no limit when workers
// is not positive). Tasks sharing a destination path are fetched once; every
// key sharing the path receives that outcome. A failed task does not stop
// the batch.
func FetchAll(ctx context.Context, e *Engine, tasks []types.DownloadTask, workers int) BatchResult {
	byPath := make(map[string][]string)
	var unique []types.DownloadTask
	for _, t := range tasks {
		if _, ok := byPath[t.Path]; !ok {
			unique = append(unique, t)
		}
		byPath[t.Path] = append(byPath[t.Path], t.Key)
	}

	res := BatchResult{Outcomes: make(map[string]Outcome, len(tasks))}
	var mu sync.Mutex

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, t := range unique {
		g.Go(func() error {
			out, _ := e.Fetch(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			for _, key := range byPath[t.Path] {
				o := out
				o.Key = key
				res.Outcomes[key] = o
				switch out.State {
				case types.TaskLocalHit:
					res.LocalHits++
				case types.TaskVerified:
					res.Verified++
				default:
					res.Failed++
				}
			}
			return nil
		})
	}
	g.Wait()

	logging.FromContext(ctx).Info().
		Int("verified", res.Verified).
		Int("local", res.LocalHits).
		Int("failed", res.Failed).
		Msg("retrieval batch finished")
	return res
}

// PrintSummary writes the batch counters to w.
func PrintSummary(r BatchResult, w io.Writer) {
	fmt.Fprintf(w, "\nBatch summary: %d downloaded, %d local, %d failed (total: %d)\n",
		r.Verified, r.LocalHits, r.Failed, r.Total())
}
