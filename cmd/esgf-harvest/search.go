package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/esgf-harvest/internal/catalog"
	"github.com/pdiddy/esgf-harvest/internal/index"
	"github.com/pdiddy/esgf-harvest/internal/logging"
	"github.com/pdiddy/esgf-harvest/internal/reconcile"
	"github.com/pdiddy/esgf-harvest/internal/secrets"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search ESGF indices and reconcile replicas into logical datasets",
	Long: `Search sends facet constraints to every configured index concurrently.
Catalog ids that do not match the CMIP6 grammar are skipped. Replicas of the
same dataset are merged, and only the newest version of each dataset is kept.

A failing index is reported and skipped; the other indices still contribute.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringArray("facet", nil, "facet constraint name=value[,value...] (repeatable)")
	searchCmd.Flags().StringArray("index", nil, "index source solr:<host> or globus:<index> (repeatable)")
	searchCmd.Flags().String("project", "CMIP6", "project to search")
	searchCmd.Flags().Bool("all-versions", false, "ask indices for every version, not only the latest")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().String("output", "", "save the reconciled datasets to a YAML file for fetch")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if endpoints, _ := cmd.Flags().GetStringArray("index"); len(endpoints) > 0 {
		cfg.Index.Endpoints = endpoints
	}
	if err := cfg.Index.Validate(); err != nil {
		return fmt.Errorf("invalid index config: %w", err)
	}

	facetArgs, _ := cmd.Flags().GetStringArray("facet")
	facets, err := index.ParseFacets(facetArgs)
	if err != nil {
		return err
	}
	project, _ := cmd.Flags().GetString("project")
	allVersions, _ := cmd.Flags().GetBool("all-versions")
	q := index.Query{Facets: facets, Project: project, AllVersions: allVersions}

	indices, err := openIndices(cfg.Index)
	if err != nil {
		return err
	}

	out, err := index.SearchAll(ctx, q, indices)
	if err != nil {
		return err
	}
	if len(out.Rejected) > 0 {
		log.Warn().Int("count", len(out.Rejected)).Msg("skipped malformed catalog ids")
	}

	datasets, err := reconcile.Reconcile(out.Records...)
	if err != nil {
		if errors.Is(err, reconcile.ErrEmptyResult) {
			fmt.Fprintln(os.Stderr, "No datasets found.")
		}
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		if err := reconcile.FormatJSON(datasets, os.Stdout); err != nil {
			return err
		}
	} else {
		reconcile.FormatTable(datasets, os.Stdout)
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		params := reconcile.QueryParams{Facets: facets, Sources: cfg.Index.Endpoints}
		if err := reconcile.WriteDatasetFile(output, params, datasets, len(out.Rejected), out.BackendErrors); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %d datasets to %s\n", len(datasets), output)
	}

	store, err := catalog.NewStore(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveDatasets(ctx, datasets)
}

// openIndices builds the configured index clients and hands the Globus
// token to Globus indices.
func openIndices(cfg types.IndexConfig) ([]index.Index, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	token := secrets.Lookup(loadedSecrets, secrets.GlobusToken)

	indices := make([]index.Index, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		idx, err := index.Open(ep, client, cfg)
		if err != nil {
			return nil, err
		}
		if g, ok := idx.(*index.GlobusIndex); ok {
			g.Token = token
		}
		indices = append(indices, idx)
	}
	return indices, nil
}
