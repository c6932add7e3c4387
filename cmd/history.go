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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/dzerkalo/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past polish requests",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent polish requests",
	RunE: withStore(func(ctx context.Context, db *store.Store, _ []string) error {
		recs, err := db.ListPolishes(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}
		if len(recs) == 0 {
			fmt.Println("No polish history.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tPROVIDERS\tTEXT")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Timestamp.Format("2006-01-02 15:04"), r.ProviderSelection, snippet(r.OriginalText, 30))
		}
		return w.Flush()
	}),
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one polish request with every provider's outcome",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, db *store.Store, args []string) error {
		rec, err := db.GetPolish(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:       %s\nTime:     %s\nProvider: %s\n", rec.ID, rec.Timestamp.Format("2006-01-02 15:04:05"), rec.ProviderSelection)
		fmt.Printf("\n原文：\n%s\n", rec.OriginalText)
		for _, o := range rec.Outcomes {
			if o.Error != "" {
				fmt.Printf("\n%s 错误 (%s)：\n%s\n", o.Provider, o.ErrorKind, o.Error)
				continue
			}
			fmt.Printf("\n%s [%s, %s]：\n%s\n", o.Provider, o.Preferred, o.Latency, o.FinalText)
			if o.OriginalScore != nil && o.RewrittenScore != nil {
				fmt.Printf("得分：原文 %.1f / 润色后 %.1f\n", *o.OriginalScore, *o.RewrittenScore)
			}
			fmt.Printf("分析：\n%s\n", o.Analysis)
		}
		if rec.Summary != "" {
			fmt.Printf("\n综合分析：\n%s\n", rec.Summary)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to show")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}
