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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/dzerkalo/internal/store"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Maintain domain terminology",
	Long: `Terms stored here are appended to the context hint of every LLM provider
whose round trip uses the same source and pivot languages, so a term such as
"机器学习" keeps one English rendering across a whole document.`,
}

var glossarySource, glossaryTarget string

// glossaryPair resolves --source/--target against the polish configuration.
func glossaryPair() (string, string, error) {
	src, tgt := glossarySource, glossaryTarget
	if src == "" {
		src = cfg.Polish.SourceLang
	}
	if tgt == "" {
		tgt = cfg.Polish.PivotLang
	}
	if src == "auto" {
		return "", "", errors.New("--source is required when polish.source_lang is auto")
	}
	return src, tgt, nil
}

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show glossary entries",
	RunE: withStore(func(ctx context.Context, db *store.Store, args []string) error {
		entries, err := db.ListGlossaryTerms(ctx, glossarySource, glossaryTarget)
		if err != nil {
			return fmt.Errorf("list glossary: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No glossary entries.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPAIR\tTERM\tRENDERING")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s→%s\t%s\t%s\n", e.ID, e.SourceLang, e.TargetLang, e.SourceTerm, e.TargetTerm)
		}
		return w.Flush()
	}),
}

var glossaryAddCmd = &cobra.Command{
	Use:   "add <term> <rendering>",
	Short: "Add or replace a term",
	Long: `Map a source-language term to its pivot-language rendering. Adding a term
that already exists for the pair replaces it.

  dzerkalo glossary add "机器学习" "machine learning"`,
	Args: cobra.ExactArgs(2),
	RunE: withStore(func(ctx context.Context, db *store.Store, args []string) error {
		src, tgt, err := glossaryPair()
		if err != nil {
			return err
		}
		id, err := db.AddGlossaryTerm(ctx, src, tgt, args[0], args[1])
		if err != nil {
			return fmt.Errorf("add term: %w", err)
		}
		fmt.Printf("%s  %s→%s  %s = %s\n", id, src, tgt, args[0], args[1])
		return nil
	}),
}

var glossaryImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Add terms from a two-column CSV file",
	Long: `Read term,rendering rows from a CSV file and add each one for the resolved
language pair. Rows with fewer than two columns are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, db *store.Store, args []string) error {
		src, tgt, err := glossaryPair()
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		added, skipped := 0, 0
		for {
			row, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if len(row) < 2 {
				skipped++
				continue
			}
			if _, err := db.AddGlossaryTerm(ctx, src, tgt, row[0], row[1]); err != nil {
				log.WithError(err).WithField("term", row[0]).Warn("glossary row skipped")
				skipped++
				continue
			}
			added++
		}
		fmt.Printf("Imported %d terms for %s→%s (%d skipped)\n", added, src, tgt, skipped)
		return nil
	}),
}

var glossaryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write terms for a language pair as CSV to stdout",
	RunE: withStore(func(ctx context.Context, db *store.Store, args []string) error {
		src, tgt, err := glossaryPair()
		if err != nil {
			return err
		}
		entries, err := db.ListGlossaryTerms(ctx, src, tgt)
		if err != nil {
			return fmt.Errorf("list glossary: %w", err)
		}
		w := csv.NewWriter(os.Stdout)
		for _, e := range entries {
			if err := w.Write([]string{e.SourceTerm, e.TargetTerm}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	}),
}

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a term by the id shown in list",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, db *store.Store, args []string) error {
		if err := db.DeleteGlossaryTerm(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted", args[0])
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryCmd.PersistentFlags().StringVarP(&glossarySource, "source", "s", "", "source language code (default polish.source_lang; filter for list)")
	glossaryCmd.PersistentFlags().StringVarP(&glossaryTarget, "target", "t", "", "pivot language code (default polish.pivot_lang; filter for list)")

	glossaryCmd.AddCommand(glossaryListCmd, glossaryAddCmd, glossaryImportCmd, glossaryExportCmd, glossaryDeleteCmd)
}
