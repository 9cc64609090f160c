package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/esgf-harvest/internal/catalog"
	"github.com/pdiddy/esgf-harvest/internal/reconcile"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded datasets and download outcomes from the ledger",
	Long: `Status lists the logical datasets recorded by search and fetch, followed by
the latest download outcome of every file. Failed downloads show the error
that ended them.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("failed", false, "list only failed downloads")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Catalog.Validate(); err != nil {
		return fmt.Errorf("invalid catalog config: %w", err)
	}

	store, err := catalog.NewStore(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	onlyFailed, _ := cmd.Flags().GetBool("failed")
	return printStatus(cmd, store, onlyFailed, os.Stdout)
}

// printStatus writes the ledger's datasets and download outcomes to w.
func printStatus(cmd *cobra.Command, store *catalog.Store, onlyFailed bool, w io.Writer) error {
	ctx := cmd.Context()

	datasets, err := store.ListDatasets(ctx)
	if err != nil {
		return err
	}
	reconcile.FormatTable(datasets, w)

	outcomes, err := store.Outcomes(ctx)
	if err != nil {
		return err
	}
	counts := make(map[types.TaskState]int)
	fmt.Fprintln(w)
	for _, d := range outcomes {
		counts[d.State]++
		if onlyFailed && d.State != types.TaskFailed {
			continue
		}
		switch d.State {
		case types.TaskFailed:
			fmt.Fprintf(w, "%-9s  %s (%s)\n", d.State, d.Path, d.Error)
		case types.TaskVerified:
			fmt.Fprintf(w, "%-9s  %s <- %s\n", d.State, d.Path, d.URL)
		default:
			fmt.Fprintf(w, "%-9s  %s\n", d.State, d.Path)
		}
	}
	fmt.Fprintf(w, "\nDownloads: %d verified, %d local, %d failed (total: %d)\n",
		counts[types.TaskVerified], counts[types.TaskLocalHit], counts[types.TaskFailed], len(outcomes))
	return nil
}
