/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/dzerkalo/internal/store"
)

var (
	cacheProvider string
	cacheLimit    int
	cacheMaxAge   time.Duration
)

// withStore opens the database for the duration of one subcommand.
func withStore(fn func(ctx context.Context, db *store.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(cmd.Context(), db, args)
	}
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the persistent intermediate-translation cache",
	Long: `Every provider's source→pivot leg is cached under (provider, source, pivot,
text). The in-memory tier is per process; these commands work on the SQLite
tier that survives restarts.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recently used entries",
	RunE: withStore(func(ctx context.Context, db *store.Store, _ []string) error {
		entries, err := db.ListTranslations(ctx, cacheProvider, cacheLimit)
		if err != nil {
			return fmt.Errorf("list cache: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("Cache is empty.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tLEG\tHITS\tLAST USED\tVALUE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s→%s\t%d\t%s\t%s\n", e.Provider, e.SourceLang, e.TargetLang,
				e.Hits, e.LastUsed.Format("2006-01-02 15:04"), snippet(e.Value, 40))
		}
		return w.Flush()
	}),
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise cache size and reuse",
	RunE: withStore(func(ctx context.Context, db *store.Store, _ []string) error {
		st, err := db.CacheStats(ctx)
		if err != nil {
			return fmt.Errorf("cache stats: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "entries\t%d\n", st.TotalEntries)
		fmt.Fprintf(w, "hits\t%d\n", st.TotalHits)
		if st.TotalEntries > 0 {
			fmt.Fprintf(w, "reuse\t%.2f hits/entry\n", float64(st.TotalHits)/float64(st.TotalEntries))
			fmt.Fprintf(w, "span\t%s … %s\n", st.Oldest.Format(time.DateOnly), st.Newest.Format(time.DateOnly))
		}
		names := make([]string, 0, len(st.ByProvider))
		for name := range st.ByProvider {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s\t%d\n", name, st.ByProvider[name])
		}
		return w.Flush()
	}),
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop entries not written within --older-than",
	RunE: withStore(func(ctx context.Context, db *store.Store, _ []string) error {
		if cacheMaxAge <= 0 {
			return fmt.Errorf("--older-than must be positive, got %s", cacheMaxAge)
		}
		n, err := db.PruneCache(ctx, time.Now().Add(-cacheMaxAge))
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
		log.WithField("removed", n).WithField("older_than", cacheMaxAge.String()).Info("cache pruned")
		fmt.Printf("Removed %d entries.\n", n)
		return nil
	}),
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached entry",
	RunE: withStore(func(ctx context.Context, db *store.Store, _ []string) error {
		n, err := db.ClearCache(ctx)
		if err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Printf("Removed %d entries.\n", n)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheListCmd.Flags().StringVarP(&cacheProvider, "provider", "p", "", "only entries written by this provider")
	cacheListCmd.Flags().IntVarP(&cacheLimit, "limit", "n", 50, "maximum entries to show (0 for all)")
	cachePruneCmd.Flags().DurationVar(&cacheMaxAge, "older-than", 30*24*time.Hour, "age threshold such as 720h")

	cacheCmd.AddCommand(cacheListCmd, cacheStatsCmd, cachePruneCmd, cacheClearCmd)
}
