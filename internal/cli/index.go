package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexRebuild bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the embedding index cache and exit",
	Long: `Embed every reference answer and store the vectors in the SQLite cache
under knowledge.cache_dir. An up-to-date cache is reused unless --rebuild
is given.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "drop the cache and embed everything")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a := &app{cfg: cfg, logger: logger}
	defer a.Close()

	b, err := newBackends(ctx, a)
	if err != nil {
		return err
	}

	store, index, err := buildIndex(ctx, cfg, b.embedder, indexRebuild, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d entries (%d dimensions, model %s) into %s\n",
		store.Len(), index.Dim(), b.embedder.Model(), cfg.Knowledge.CacheDir)
	return nil
}
