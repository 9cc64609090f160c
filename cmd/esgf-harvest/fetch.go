package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/esgf-harvest/internal/catalog"
	"github.com/pdiddy/esgf-harvest/internal/filemeta"
	"github.com/pdiddy/esgf-harvest/internal/index"
	"github.com/pdiddy/esgf-harvest/internal/logging"
	"github.com/pdiddy/esgf-harvest/internal/reconcile"
	"github.com/pdiddy/esgf-harvest/internal/retrieve"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and verify the files of saved datasets",
	Long: `Fetch reads a dataset file written by "search --output", asks every index
for the files of each dataset, merges the answers by relative path, and
downloads each file into the cache. Mirrors are tried in order until one
delivers bytes matching the published checksum.

Files already present under the data root or the cache are used in place.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("datasets", "", "dataset file written by search --output")
	fetchCmd.Flags().StringArray("index", nil, "index source solr:<host> or globus:<index> (repeatable)")
	fetchCmd.Flags().String("cache-dir", "", "writable cache root (default esgf-cache)")
	fetchCmd.Flags().String("data-root", "", "read-only archive replica checked before the cache")
	fetchCmd.Flags().Int("workers", 0, "concurrent downloads (default 4)")
	fetchCmd.Flags().String("protocol", "", "mirror protocol (default HTTPServer)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)

	path, _ := cmd.Flags().GetString("datasets")
	if path == "" {
		return fmt.Errorf("provide a dataset file with --datasets")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if endpoints, _ := cmd.Flags().GetStringArray("index"); len(endpoints) > 0 {
		cfg.Index.Endpoints = endpoints
	}
	if v, _ := cmd.Flags().GetString("cache-dir"); v != "" {
		cfg.Retrieval.CacheDir = v
	}
	if v, _ := cmd.Flags().GetString("data-root"); v != "" {
		cfg.Retrieval.DataRoot = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Retrieval.Workers = v
	}
	if v, _ := cmd.Flags().GetString("protocol"); v != "" {
		cfg.Retrieval.Protocol = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	df, err := reconcile.ReadDatasetFile(path)
	if err != nil {
		return err
	}

	indices, err := openIndices(cfg.Index)
	if err != nil {
		return err
	}

	store, err := catalog.NewStore(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SaveDatasets(ctx, df.Datasets); err != nil {
		return err
	}

	var tasks []types.DownloadTask
	for _, d := range df.Datasets {
		files, err := datasetFiles(ctx, indices, store, d)
		if err != nil {
			return err
		}
		for _, f := range files {
			tasks = append(tasks, retrieve.NewTask(f.Path, f, cfg.Retrieval.Protocol))
		}
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no files to fetch")
	}

	engine := retrieve.New(&http.Client{Timeout: cfg.Retrieval.Timeout}, cfg.Retrieval, os.Stdout)
	result := retrieve.FetchAll(ctx, engine, tasks, cfg.Retrieval.Workers)

	keys := make([]string, 0, len(result.Outcomes))
	for k := range result.Outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	paths := result.Paths()
	for _, k := range keys {
		if err := store.RecordOutcome(ctx, result.Outcomes[k]); err != nil {
			log.Warn().Str("key", k).Err(err).Msg("could not record outcome")
		}
		if p := paths[k]; p != "" {
			fmt.Printf("%s -> %s\n", k, p)
		}
	}

	retrieve.PrintSummary(result, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed retrieval", result.Failed)
	}
	return nil
}

// datasetFiles gathers and merges the files of d from every index and
// records them in the ledger. When every index fails, the files recorded by
// an earlier run are used instead.
func datasetFiles(ctx context.Context, indices []index.Index, store *catalog.Store, d types.LogicalDataset) ([]types.FileRecord, error) {
	ctx = logging.WithFields(ctx, map[string]string{"dataset": d.Key()})
	log := logging.FromContext(ctx)

	res := filemeta.Merge(ctx, index.GatherFiles(ctx, indices, d.ID))
	if len(res.Files) > 0 {
		if err := store.SaveFiles(ctx, d.Key(), res.Files); err != nil {
			return nil, err
		}
		return res.Files, nil
	}

	if len(indices) > 0 && len(res.SourceErrors) == len(indices) {
		files, err := store.FilesFor(ctx, d.Key())
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			log.Warn().Strs("errors", res.SourceErrors).Int("files", len(files)).Msg("every index failed, using recorded files")
			return files, nil
		}
	}
	log.Warn().Strs("errors", res.SourceErrors).Msg("no files found")
	return nil, nil
}
