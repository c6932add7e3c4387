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
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/dzerkalo/internal/index"
	"github.com/valpere/dzerkalo/internal/ingest"
)

var (
	kbFiles          []string
	kbOutput         string
	kbWithEmbeddings bool
	kbTopK           int
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base",
	Long: `Build, inspect, query and save the knowledge base used as polishing context.

The knowledge base is loaded from the files listed under kb.load in the config
plus any --kb files. Supported formats: ` + fmt.Sprint(ingest.Extensions),
}

var kbAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Add documents to the knowledge base and save it",
	Long: `Parse the given documents, append them to the loaded knowledge base and save
the result as a JSON export. Add the saved file to kb.load to use it by default.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		ix, err := loadIndex(ctx, append(append([]string{}, kbFiles...), args...))
		if err != nil {
			return err
		}
		path, err := saveIndex(ix)
		if err != nil {
			return err
		}
		fmt.Printf("Knowledge base saved: %s (%d records)\n", path, ix.Len())
		return nil
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge-base sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		ix, err := loadIndex(ctx, kbFiles)
		if err != nil {
			return err
		}
		if ix.Len() == 0 {
			fmt.Println("Knowledge base is empty.")
			return nil
		}

		counts := make(map[string]int)
		for _, r := range ix.Records() {
			counts[r.Source]++
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tRECORDS")
		for _, src := range ix.Sources() {
			fmt.Fprintf(w, "%s\t%d\n", src, counts[src])
		}
		fmt.Fprintf(w, "TOTAL\t%d\n", ix.Len())
		return w.Flush()
	},
}

var kbQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Show the passages most similar to text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		ix, err := loadIndex(ctx, kbFiles)
		if err != nil {
			return err
		}
		hits, err := ix.Query(ctx, args[0], kbTopK)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("No matches (knowledge base is empty).")
			return nil
		}
		for i, h := range hits {
			fmt.Printf("%d. [%.3f] %s\n%s\n\n", i+1, h.Score, h.Record.Source, h.Record.Text)
		}
		return nil
	},
}

var kbSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the loaded knowledge base as one JSON export",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		ix, err := loadIndex(ctx, kbFiles)
		if err != nil {
			return err
		}
		if ix.Len() == 0 {
			return fmt.Errorf("knowledge base is empty")
		}
		path, err := saveIndex(ix)
		if err != nil {
			return err
		}
		fmt.Printf("Knowledge base saved: %s (%d records)\n", path, ix.Len())
		return nil
	},
}

func saveIndex(ix *index.Index) (string, error) {
	path := kbOutput
	if path == "" {
		path = filepath.Join(cfg.KB.Dir, index.DefaultExportName(time.Now()))
	}
	if err := ix.Save(path, kbWithEmbeddings); err != nil {
		return "", fmt.Errorf("failed to save knowledge base: %w", err)
	}
	return path, nil
}

func init() {
	rootCmd.AddCommand(kbCmd)

	kbCmd.PersistentFlags().StringSliceVar(&kbFiles, "kb", nil, "Extra knowledge-base files to load")

	for _, c := range []*cobra.Command{kbAddCmd, kbSaveCmd} {
		c.Flags().StringVarP(&kbOutput, "output", "o", "", "Output file (default <kb.dir>/knowledge_base_<timestamp>.json)")
		c.Flags().BoolVar(&kbWithEmbeddings, "with-embeddings", false, "Include embedding vectors in the export")
	}
	kbQueryCmd.Flags().IntVarP(&kbTopK, "top", "k", 3, "Number of passages to show")

	kbCmd.AddCommand(kbAddCmd)
	kbCmd.AddCommand(kbListCmd)
	kbCmd.AddCommand(kbQueryCmd)
	kbCmd.AddCommand(kbSaveCmd)
}
