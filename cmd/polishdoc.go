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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/dzerkalo/internal/ingest"
	"github.com/valpere/dzerkalo/internal/report"
)

var (
	docOutput   string
	docProvider string
	docResume   string
	docKB       []string
)

var polishDocCmd = &cobra.Command{
	Use:   "polish-doc <file>",
	Short: "Polish every paragraph of a document and write a report",
	Long: `Split a document (.txt, .md, .json, .docx, .pdf) into records, polish each
record, and write a plain-text report with the original, every provider's
rewrite and analysis, and a comparative summary.

A checkpoint ID is printed at the start of each run. If the job is interrupted,
use --resume with that ID to skip records that are already polished.

Example:
  dzerkalo polish-doc paper.docx
  dzerkalo polish-doc paper.docx --resume cp_0b6f...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]

		records, err := ingest.Parser{MaxChars: cfg.KB.MaxChars}.Parse(input)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no text found in %s", input)
		}

		output := docOutput
		if output == "" {
			output = filepath.Join(cfg.Server.PolishedDir, report.OutputName(input, time.Now()))
		}

		ctx, cancel := signalContext()
		defer cancel()

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		done := make(map[int]report.Entry)
		checkpointID := docResume
		if checkpointID != "" {
			cp, err := db.GetDocCheckpoint(ctx, checkpointID)
			if err != nil {
				return fmt.Errorf("failed to load checkpoint: %w", err)
			}
			if docOutput == "" {
				output = cp.OutputFile
			}
			if !cmd.Flags().Changed("provider") {
				docProvider = cp.Provider
			}
			saved, err := db.GetDocRecords(ctx, checkpointID)
			if err != nil {
				return fmt.Errorf("failed to load checkpoint records: %w", err)
			}
			for idx, payload := range saved {
				var e report.Entry
				if err := json.Unmarshal([]byte(payload), &e); err != nil {
					return fmt.Errorf("corrupt checkpoint record %d: %w", idx, err)
				}
				done[idx] = e
			}
			fmt.Fprintf(os.Stderr, "Resuming checkpoint %s (%d of %d records already done)\n", checkpointID, len(done), len(records))
		} else {
			checkpointID, err = db.CreateDocCheckpoint(ctx, input, output, docProvider)
			if err != nil {
				checkpointID = ""
				fmt.Fprintf(os.Stderr, "Warning: failed to create checkpoint: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "Checkpoint ID: %s (use --resume %s to resume if interrupted)\n", checkpointID, checkpointID)
			}
		}

		ix, err := loadIndex(ctx, docKB)
		if err != nil {
			return err
		}
		orch, err := buildOrchestrator(db, ix)
		if err != nil {
			return err
		}

		save := func(e report.Entry) error {
			if checkpointID == "" {
				return nil
			}
			payload, err := json.Marshal(e)
			if err != nil {
				return err
			}
			return db.SaveDocRecord(ctx, checkpointID, e.Index, string(payload))
		}

		entries, err := report.Run(ctx, orch, records, docProvider, done, save, log)
		if err != nil {
			return fmt.Errorf("polish interrupted after %d of %d records: %w", len(entries), len(records), err)
		}

		if err := writeReport(output, entries); err != nil {
			return err
		}
		if checkpointID != "" {
			if err := db.CompleteDocCheckpoint(ctx, checkpointID); err != nil {
				log.WithError(err).Warn("failed to mark checkpoint complete")
			}
		}

		logCacheStats()
		fmt.Printf("Polished %d records: %s\n", len(entries), output)
		return nil
	},
}

func writeReport(path string, entries []report.Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := report.WriteText(f, entries); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(polishDocCmd)

	polishDocCmd.Flags().StringVarP(&docOutput, "output", "o", "", "Report file (default <polished_dir>/<name>_polished_<timestamp>.txt)")
	polishDocCmd.Flags().StringVarP(&docProvider, "provider", "p", "all", "Provider to use, or \"all\"")
	polishDocCmd.Flags().StringVar(&docResume, "resume", "", "Resume from checkpoint ID (printed at start of original run)")
	polishDocCmd.Flags().StringSliceVar(&docKB, "kb", nil, "Extra knowledge-base files to load for context")
}
