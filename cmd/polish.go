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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/dzerkalo/internal/index"
	"github.com/valpere/dzerkalo/internal/orchestrator"
	"github.com/valpere/dzerkalo/internal/report"
)

var (
	polishInput    string
	polishProvider string
	polishContext  string
	polishKB       []string
	polishJSON     bool
	polishNoDB     bool
)

var polishCmd = &cobra.Command{
	Use:   "polish [text]",
	Short: "Polish text through mirror translation",
	Long: `Translate text into the pivot language and back through each provider, then
ask the judge whether the round trip improved on the original.

The text is taken from the argument, from --input, or from stdin.

Knowledge-base passages matching the text are passed to LLM providers as
context unless --context is given explicitly.

Example:
  dzerkalo polish "深度学习需要大量数据"
  dzerkalo polish -i paragraph.txt -p zhipu --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := polishText(cmd, args)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		ix, err := loadIndex(ctx, polishKB)
		if err != nil {
			return err
		}

		var orch *orchestrator.Orchestrator
		if polishNoDB {
			orch, err = buildOrchestrator(nil, ix)
		} else {
			db, dbErr := openStore()
			if dbErr != nil {
				return dbErr
			}
			defer db.Close()
			orch, err = buildOrchestrator(db, ix)
		}
		if err != nil {
			return err
		}

		res, err := orch.Polish(ctx, orchestrator.PolishRequest{
			Text:     text,
			Provider: polishProvider,
			Context:  polishContext,
		})
		if err != nil {
			return errors.New(orchestrator.ErrorResponse(err).Error)
		}

		if polishJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Response())
		}
		entry := report.NewEntry(0, index.Record{Text: res.Original}, res)
		return report.WriteText(os.Stdout, []report.Entry{entry})
	},
}

func polishText(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case polishInput != "":
		data, err := os.ReadFile(polishInput)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func init() {
	rootCmd.AddCommand(polishCmd)

	polishCmd.Flags().StringVarP(&polishInput, "input", "i", "", "Read the text from a file")
	polishCmd.Flags().StringVarP(&polishProvider, "provider", "p", orchestrator.AllProviders, "Provider to use, or \"all\"")
	polishCmd.Flags().StringVarP(&polishContext, "context", "c", "", "Context hint for LLM providers (overrides knowledge-base retrieval)")
	polishCmd.Flags().StringSliceVar(&polishKB, "kb", nil, "Extra knowledge-base files to load for context")
	polishCmd.Flags().BoolVar(&polishJSON, "json", false, "Print the result as JSON")
	polishCmd.Flags().BoolVar(&polishNoDB, "no-db", false, "Do not use the database (no persistent cache, glossary or history)")
}
